package httpapi

import (
	"net/http"

	"github.com/cellforge/idp-controlplane/internal/types"
	"github.com/gin-gonic/gin"
)

// HandleListExperiments returns every registered experiment.
func (h *Handlers) HandleListExperiments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"experiments": h.deps.Experiments.List()})
}

// HandleGetExperiment returns a single experiment by id.
func (h *Handlers) HandleGetExperiment(c *gin.Context) {
	id := c.Param("id")
	spec, ok := h.deps.Experiments.Get(id)
	if !ok {
		respondError(c, h.deps.Log, &types.NotFoundError{Kind_: "Experiment", Name: id})
		return
	}
	c.JSON(http.StatusOK, spec)
}

// HandleCreateExperiment registers or replaces an experiment spec.
func (h *Handlers) HandleCreateExperiment(c *gin.Context) {
	var spec types.ExperimentSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		respondError(c, h.deps.Log, &types.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()})
		return
	}
	if spec.ID == "" {
		respondError(c, h.deps.Log, &types.ValidationError{Field: "id", Message: "required field is missing or empty"})
		return
	}
	if err := h.deps.Experiments.Set(spec); err != nil {
		respondError(c, h.deps.Log, &types.ValidationError{Field: "variantWeights", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, spec)
}

// HandleDeleteExperiment removes an experiment by id.
func (h *Handlers) HandleDeleteExperiment(c *gin.Context) {
	id := c.Param("id")
	if !h.deps.Experiments.Delete(id) {
		respondError(c, h.deps.Log, &types.NotFoundError{Kind_: "Experiment", Name: id})
		return
	}
	c.Status(http.StatusNoContent)
}
