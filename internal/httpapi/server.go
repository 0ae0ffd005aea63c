package httpapi

import (
	"net/http"

	"github.com/cellforge/idp-controlplane/internal/auth"
	"github.com/gin-gonic/gin"
)

// NewEngine builds the gin engine with every route group registered.
// Grounded on AleutianLocal's RegisterRoutes(rg *gin.RouterGroup, handlers)
// grouping idiom, adapted to a single flat /api group. extraMiddleware is
// installed before route registration, alongside Recovery and the request
// logger, so callers (e.g. cmd/server's WAL durability hook) run on every
// route rather than only ones registered after the fact. adminAuth guards
// the mutating admin surface (provider health overrides, experiment and
// flag CRUD); pass nil to leave it disabled, e.g. in tests.
func NewEngine(h *Handlers, adminAuth *auth.Config, extraMiddleware ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(h.deps.Log))
	engine.Use(extraMiddleware...)

	engine.GET("/health", h.HandleHealth)

	api := engine.Group("/api")
	{
		api.GET("/products", h.HandleListProducts)

		api.POST("/services/:product", h.HandleCreateService)
		api.GET("/services/:product/:namespace/:name", h.HandleGetService)
		api.POST("/services/:product/:namespace/:name/failover", h.HandleFailoverService)

		api.POST("/mysql", h.HandleCreateMySQL)
		api.GET("/status/mysql/:namespace/:name", h.HandleGetMySQLStatus)
		api.POST("/mysql/:namespace/:name/failover", h.HandleFailoverMySQL)

		api.GET("/providers/health", h.HandleListProviderHealth)
		api.GET("/providers/:provider/health", h.HandleGetProviderHealth)

		api.GET("/experiments", h.HandleListExperiments)
		api.GET("/experiments/:id", h.HandleGetExperiment)
		api.GET("/flags", h.HandleListFlags)
		api.GET("/flags/:name", h.HandleGetFlag)
		api.GET("/analytics", h.HandleAnalytics)
	}

	if adminAuth == nil {
		adminAuth = &auth.Config{Enabled: false}
	}
	admin := engine.Group("/api")
	admin.Use(auth.Middleware(adminAuth))
	{
		admin.PUT("/providers/health", h.HandleSetProviderHealth)
		admin.PUT("/providers/:provider/health", h.HandlePutProviderHealth)

		admin.POST("/experiments", h.HandleCreateExperiment)
		admin.DELETE("/experiments/:id", h.HandleDeleteExperiment)

		admin.PUT("/flags/:name", h.HandlePutFlag)
		admin.DELETE("/flags/:name", h.HandleDeleteFlag)
	}

	return engine
}

// HandleHealth is the unauthenticated liveness probe.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
