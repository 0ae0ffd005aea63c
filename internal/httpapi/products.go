package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleListProducts returns the extensible product catalog so a CLI or UI
// can discover what's creatable without hardcoding product names.
func (h *Handlers) HandleListProducts(c *gin.Context) {
	products := h.deps.Products.List()
	out := make([]gin.H, 0, len(products))
	for _, p := range products {
		params := make([]gin.H, 0, len(p.Parameters))
		for _, ps := range p.Parameters {
			params = append(params, gin.H{
				"name":     ps.Name,
				"required": ps.Required,
				"type":     ps.Type,
				"choices":  ps.Choices,
				"default":  ps.Default,
			})
		}
		out = append(out, gin.H{
			"name":        p.Name,
			"displayName": p.DisplayName,
			"description": p.Description,
			"parameters":  params,
		})
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}
