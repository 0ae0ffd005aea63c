package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cellforge/idp-controlplane/internal/analytics"
	"github.com/cellforge/idp-controlplane/internal/audit"
	"github.com/cellforge/idp-controlplane/internal/auth"
	"github.com/cellforge/idp-controlplane/internal/config"
	"github.com/cellforge/idp-controlplane/internal/durability"
	"github.com/cellforge/idp-controlplane/internal/experiment"
	"github.com/cellforge/idp-controlplane/internal/flags"
	"github.com/cellforge/idp-controlplane/internal/health"
	"github.com/cellforge/idp-controlplane/internal/httpapi"
	"github.com/cellforge/idp-controlplane/internal/registry"
	"github.com/cellforge/idp-controlplane/internal/sticky"
	"github.com/cellforge/idp-controlplane/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()

	cfg, err := config.LoadOrDefault(getEnv("IDP_CONFIG_FILE", ""))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	products := registry.NewRegistry()
	if err := registry.SeedBuiltins(products); err != nil {
		log.Fatalf("failed to seed product catalog: %v", err)
	}

	stickyStore, err := newStickyStore(log)
	if err != nil {
		log.Fatalf("failed to init sticky store: %v", err)
	}

	healthRegistry := health.NewRegistry(providersOf(cfg)...)
	breakers := health.NewBreakerRegistry(getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		time.Duration(getEnvInt("BREAKER_COOLDOWN_SECONDS", 60))*time.Second)

	requestWAL, err := durability.NewRequestWAL(getEnv("WAL_DIR", "data/wal"))
	if err != nil {
		log.Fatalf("failed to init request WAL: %v", err)
	}

	auditSink, err := newAuditSink(log)
	if err != nil {
		log.Fatalf("failed to init audit sink: %v", err)
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	if endpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""); endpoint != "" {
		traceCfg := telemetry.DefaultTraceConfig("idp-controlplane")
		traceCfg.CollectorEndpoint = endpoint
		traceCfg.Environment = getEnv("IDP_ENVIRONMENT", "production")
		tp, err := telemetry.InitTracer(context.Background(), traceCfg)
		if err != nil {
			log.Warnf("failed to init tracer, continuing without tracing: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = telemetry.Shutdown(ctx, tp)
			}()
		}
	}

	deps := &httpapi.Deps{
		Config:      cfg,
		Products:    products,
		Sticky:      stickyStore,
		Health:      healthRegistry,
		Breakers:    breakers,
		Experiments: experiment.NewRegistry(),
		Flags:       flags.NewRegistry(),
		Analytics:   analytics.NewRecorder(),
		Audit:       auditSink,
		Metrics:     metrics,
		Log:         log,
	}
	handlers := httpapi.NewHandlers(deps)
	adminAuth := auth.DefaultConfig()
	adminAuth.Enabled = getEnv("ADMIN_AUTH_ENABLED", "true") == "true"
	engine := httpapi.NewEngine(handlers, adminAuth, requestDurability(requestWAL, log, metrics))

	engine.GET("/metrics", metricsHandler(reg, log))

	host := getEnv("IDP_HOST", "0.0.0.0")
	port := getEnv("IDP_PORT", "8080")
	httpServer := &http.Server{
		Addr:         host + ":" + port,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Infof("starting control plane on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdown
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("server shutdown error: %v", err)
	}

	if err := requestWAL.Close(); err != nil {
		log.Errorf("error closing request WAL: %v", err)
	}
	if err := stickyStore.Close(); err != nil {
		log.Errorf("error closing sticky store: %v", err)
	}
	if err := auditSink.Close(); err != nil {
		log.Errorf("error closing audit sink: %v", err)
	}

	log.Info("stopped")
}

// newStickyStore selects the sticky placement backend from STICKY_BACKEND,
// wrapping it in an LRU cache front, mirroring the teacher's
// DEDUP_BACKEND switch in shape.
func newStickyStore(log *logrus.Logger) (*sticky.CachedStore, error) {
	backend := getEnv("STICKY_BACKEND", "memory")
	cacheSize := getEnvInt("STICKY_CACHE_SIZE", 4096)
	cacheTTL := getEnvInt("STICKY_CACHE_TTL_SECONDS", 300)

	var store sticky.Store
	switch backend {
	case "memory":
		if snapshotPath := getEnv("STICKY_SNAPSHOT_FILE", ""); snapshotPath != "" {
			memStore, err := sticky.NewMemoryStoreWithSnapshot(snapshotPath)
			if err != nil {
				return nil, err
			}
			store = memStore
		} else {
			store = sticky.NewMemoryStore()
		}
	case "redis":
		addr := getEnv("REDIS_ADDR", "localhost:6379")
		password := getEnv("REDIS_PASSWORD", "")
		db := getEnvInt("REDIS_DB", 0)
		ttl := time.Duration(getEnvInt("STICKY_TTL_SECONDS", 0)) * time.Second
		redisStore, err := sticky.NewRedisStore(addr, password, db, ttl)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case "postgres":
		connStr := getEnv("POSTGRES_CONN", "")
		pgStore, err := sticky.NewPostgresStore(connStr)
		if err != nil {
			return nil, err
		}
		store = pgStore
	default:
		log.Fatalf("unknown STICKY_BACKEND: %s", backend)
	}

	return sticky.NewCachedStore(store, cacheSize, cacheTTL)
}

// newAuditSink selects the tamper-evident audit backend from AUDIT_BACKEND.
func newAuditSink(log *logrus.Logger) (audit.Sink, error) {
	backend := getEnv("AUDIT_BACKEND", "ledger")
	switch backend {
	case "memory":
		return audit.NewMemorySink(), nil
	case "ledger":
		dir := getEnv("AUDIT_DIR", "data/audit")
		return audit.NewLedger(dir)
	default:
		log.Fatalf("unknown AUDIT_BACKEND: %s", backend)
		return nil, nil
	}
}

// providersOf collects the distinct provider names present in the cell
// catalog, so the health registry starts with every real provider marked
// healthy instead of a hardcoded list.
func providersOf(cfg *config.Config) []string {
	seen := map[string]bool{}
	var out []string
	for _, candidates := range cfg.Cells {
		for _, c := range candidates {
			if !seen[c.Provider] {
				seen[c.Provider] = true
				out = append(out, c.Provider)
			}
		}
	}
	return out
}

// requestDurability appends every mutating API request body to the WAL
// before it reaches a handler, restoring the body afterward so binding
// still works — the same WAL-before-parse ordering the teacher's
// handleSubmit uses for fault tolerance.
func requestDurability(w *durability.RequestWAL, log *logrus.Logger, m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.FullPath(), "/api/") || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		if len(body) > 0 {
			if err := w.Append(body); err != nil {
				log.Errorf("WAL append error: %v", err)
				m.WALErrors.Inc()
			}
		}
		c.Next()
	}
}

func metricsHandler(reg *prometheus.Registry, log *logrus.Logger) gin.HandlerFunc {
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	user := getEnv("METRICS_USER", "")
	password := getEnv("METRICS_PASS", "")

	return func(c *gin.Context) {
		if user != "" {
			reqUser, reqPass, ok := c.Request.BasicAuth()
			if !ok || reqUser != user || reqPass != password {
				c.Header("WWW-Authenticate", `Basic realm="Metrics"`)
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
		}
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
