// Package httpapi is the gin-based HTTP surface of the control plane:
// product catalog, generic and legacy-mysql service lifecycle, provider
// health administration, experiment/flag CRUD, and analytics. Grounded on
// AleutianLocal's services/trace Handlers-struct-plus-RegisterRoutes idiom,
// adapted from net/http mux registration to gin route groups.
package httpapi

import (
	"time"

	"github.com/cellforge/idp-controlplane/internal/analytics"
	"github.com/cellforge/idp-controlplane/internal/audit"
	"github.com/cellforge/idp-controlplane/internal/config"
	"github.com/cellforge/idp-controlplane/internal/experiment"
	"github.com/cellforge/idp-controlplane/internal/flags"
	"github.com/cellforge/idp-controlplane/internal/health"
	"github.com/cellforge/idp-controlplane/internal/registry"
	"github.com/cellforge/idp-controlplane/internal/sticky"
	"github.com/cellforge/idp-controlplane/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// Deps bundles every injected dependency the handlers need. Constructed once
// at startup by cmd/server and passed by pointer — never a package-level
// singleton, per the module's concurrency conventions.
type Deps struct {
	Config      *config.Config
	Products    *registry.Registry
	Sticky      sticky.Store
	Health      *health.Registry
	Breakers    *health.BreakerRegistry
	Experiments *experiment.Registry
	Flags       *flags.Registry
	Analytics   *analytics.Recorder
	Audit       audit.Sink
	Metrics     *telemetry.Metrics
	Log         *logrus.Logger

	// StickyDeadline bounds every outbound sticky-store call. Cancellation of
	// the inbound request aborts the outbound call.
	StickyDeadline time.Duration
}

// Handlers holds Deps and exposes gin handler methods. Mirrors the
// AleutianLocal Handlers-struct-with-service idiom.
type Handlers struct {
	deps *Deps
}

// NewHandlers constructs a Handlers bound to deps.
func NewHandlers(deps *Deps) *Handlers {
	if deps.StickyDeadline == 0 {
		deps.StickyDeadline = 10 * time.Second
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &Handlers{deps: deps}
}
