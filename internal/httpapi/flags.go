package httpapi

import (
	"net/http"

	"github.com/cellforge/idp-controlplane/internal/types"
	"github.com/gin-gonic/gin"
)

// HandleListFlags returns every feature flag and its current value.
func (h *Handlers) HandleListFlags(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"flags": h.deps.Flags.Snapshot()})
}

// HandleGetFlag returns a single feature flag by name.
func (h *Handlers) HandleGetFlag(c *gin.Context) {
	name := c.Param("name")
	enabled, ok := h.deps.Flags.Get(name)
	if !ok {
		respondError(c, h.deps.Log, &types.NotFoundError{Kind_: "FeatureFlag", Name: name})
		return
	}
	c.JSON(http.StatusOK, types.FeatureFlag{Name: name, Enabled: enabled})
}

// HandlePutFlag sets a single feature flag named in the URL.
func (h *Handlers) HandlePutFlag(c *gin.Context) {
	name := c.Param("name")
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, h.deps.Log, &types.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()})
		return
	}
	h.deps.Flags.Set(name, body.Enabled)
	c.JSON(http.StatusOK, types.FeatureFlag{Name: name, Enabled: body.Enabled})
}

// HandleDeleteFlag removes a feature flag, restoring its default (off)
// behavior.
func (h *Handlers) HandleDeleteFlag(c *gin.Context) {
	name := c.Param("name")
	if !h.deps.Flags.Delete(name) {
		respondError(c, h.deps.Log, &types.NotFoundError{Kind_: "FeatureFlag", Name: name})
		return
	}
	c.Status(http.StatusNoContent)
}
