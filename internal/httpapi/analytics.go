package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleAnalytics returns the running placement analytics summary.
func (h *Handlers) HandleAnalytics(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Analytics.Snapshot())
}
