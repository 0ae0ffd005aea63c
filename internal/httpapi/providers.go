package httpapi

import (
	"net/http"

	"github.com/cellforge/idp-controlplane/internal/types"
	"github.com/gin-gonic/gin"
)

// HandleListProviderHealth returns the health/breaker explanation for every
// known provider.
func (h *Handlers) HandleListProviderHealth(c *gin.Context) {
	snapshot := h.deps.Health.Snapshot()
	out := make(map[string]any, len(snapshot))
	for provider := range snapshot {
		out[provider] = h.deps.Health.Explain(provider, h.deps.Breakers)
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

// HandleGetProviderHealth returns the health/breaker explanation for one
// provider.
func (h *Handlers) HandleGetProviderHealth(c *gin.Context) {
	provider := c.Param("provider")
	c.JSON(http.StatusOK, h.deps.Health.Explain(provider, h.deps.Breakers))
}

type setHealthRequest struct {
	Healthy bool `json:"healthy"`
}

// HandleSetProviderHealth bulk-sets health for every provider named in the
// body's providers map, e.g. {"providers": {"aws": false}}.
func (h *Handlers) HandleSetProviderHealth(c *gin.Context) {
	var body struct {
		Providers map[string]bool `json:"providers"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, h.deps.Log, &types.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()})
		return
	}
	for provider, healthy := range body.Providers {
		h.deps.Health.SetHealthy(provider, healthy)
	}
	c.JSON(http.StatusOK, gin.H{"providers": h.deps.Health.Snapshot()})
}

// HandlePutProviderHealth sets health for a single provider named in the URL.
func (h *Handlers) HandlePutProviderHealth(c *gin.Context) {
	provider := c.Param("provider")
	var body setHealthRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, h.deps.Log, &types.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()})
		return
	}
	h.deps.Health.SetHealthy(provider, body.Healthy)
	c.JSON(http.StatusOK, h.deps.Health.Explain(provider, h.deps.Breakers))
}
