package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cellforge/idp-controlplane/internal/analytics"
	"github.com/cellforge/idp-controlplane/internal/audit"
	"github.com/cellforge/idp-controlplane/internal/claim"
	"github.com/cellforge/idp-controlplane/internal/registry"
	"github.com/cellforge/idp-controlplane/internal/scheduler"
	"github.com/cellforge/idp-controlplane/internal/sticky"
	"github.com/cellforge/idp-controlplane/internal/types"
	"github.com/gin-gonic/gin"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// schedulerDeps adapts the shared Deps into the narrower Dependencies the
// scheduler package consults, so scheduler stays ignorant of the HTTP layer.
func (h *Handlers) schedulerDeps() scheduler.Dependencies {
	return scheduler.Dependencies{
		Health:      h.deps.Health,
		Breakers:    h.deps.Breakers,
		Experiments: h.deps.Experiments,
		Flags:       h.deps.Flags,
	}
}

func (h *Handlers) stickyContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.deps.StickyDeadline)
}

// HandleCreateService implements the sticky-lookup-first create path shared
// by every product: if a Claim already exists for (product, namespace,
// name) it is echoed back verbatim with sticky=true and the scheduler never
// runs; otherwise a placement is scheduled, a Claim built, and stored.
func (h *Handlers) HandleCreateService(c *gin.Context) {
	product := c.Param("product")
	prod, ok := h.deps.Products.Get(product)
	if !ok {
		respondError(c, h.deps.Log, &types.UnknownProductError{Product: product})
		return
	}

	body, err := bindBody(c)
	if err != nil {
		respondError(c, h.deps.Log, err)
		return
	}
	if err := checkForbiddenFields(body); err != nil {
		respondError(c, h.deps.Log, err)
		return
	}
	if err := requireFields(body, "namespace", "name", "cell", "tier"); err != nil {
		respondError(c, h.deps.Log, err)
		return
	}
	if unknown := registry.UnknownParams(prod, body); len(unknown) > 0 {
		respondError(c, h.deps.Log, &types.UnknownParameterError{Product: product, Fields: unknown})
		return
	}
	if problems := registry.ValidateParams(prod, body); len(problems) > 0 {
		respondError(c, h.deps.Log, &types.ValidationError{Field: "params", Message: strings.Join(problems, "; ")})
		return
	}

	namespace := stringField(body, "namespace")
	name := stringField(body, "name")
	cell := stringField(body, "cell")
	tierName := stringField(body, "tier")
	environment := stringField(body, "environment")
	ha := boolField(body, "ha")

	tier, ok := h.deps.Config.Tiers[tierName]
	if !ok {
		respondError(c, h.deps.Log, &types.UnknownTierError{Tier: tierName})
		return
	}
	candidates, ok := h.deps.Config.Cells[cell]
	if !ok {
		respondError(c, h.deps.Log, &types.UnknownCellError{Cell: cell})
		return
	}

	ctx, cancel := h.stickyContext(c)
	defer cancel()

	key := sticky.Key{Product: product, Namespace: namespace, Name: name}
	existing, err := h.deps.Sticky.Get(ctx, key)
	if err != nil {
		respondError(c, h.deps.Log, &types.DependencyMissingError{Dependency: "sticky-store", Cause: err})
		return
	}
	if existing != nil {
		if h.deps.Metrics != nil {
			h.deps.Metrics.StickyHits.Inc()
			h.deps.Metrics.RequestsTotal.WithLabelValues(product, tierName).Inc()
		}
		reasonJSON, _ := claim.PlacementReasonOf(existing)
		c.JSON(http.StatusOK, gin.H{
			"status": "exists",
			"sticky": true,
			"reason": json.RawMessage(reasonJSON),
			"claim":  existing.Object,
		})
		return
	}

	in := scheduler.Input{
		Tier:       tier,
		TierName:   tierName,
		Cell:       cell,
		Candidates: candidates,
		HA:         ha,
		EntityID:   namespace + "/" + name,
	}
	placement, err := scheduler.Schedule(h.schedulerDeps(), in)
	if err != nil {
		if h.deps.Analytics != nil {
			h.deps.Analytics.RecordGateRejection()
		}
		if h.deps.Metrics != nil {
			h.deps.Metrics.GateRejections.WithLabelValues(cell).Inc()
		}
		respondError(c, h.deps.Log, err)
		return
	}

	built, err := claim.Build(prod, namespace, name, cell, environment, tierName, body, placement)
	if err != nil {
		respondError(c, h.deps.Log, err)
		return
	}

	stored, applied, err := h.deps.Sticky.Set(ctx, key, built)
	if err != nil {
		respondError(c, h.deps.Log, &types.DependencyMissingError{Dependency: "sticky-store", Cause: err})
		return
	}

	h.recordSuccess(product, tierName, namespace, name, "placed", placement)

	c.JSON(http.StatusCreated, gin.H{
		"status":    "created",
		"sticky":    false,
		"placement": placement,
		"reason":    placement.Reason,
		"claim":     stored.Object,
		"applied":   applied,
	})
}

// HandleGetService returns a previously-placed Claim and the coordinates of
// its connection secret, never the secret's contents.
func (h *Handlers) HandleGetService(c *gin.Context) {
	product := c.Param("product")
	namespace := c.Param("namespace")
	name := c.Param("name")

	prod, ok := h.deps.Products.Get(product)
	if !ok {
		respondError(c, h.deps.Log, &types.UnknownProductError{Product: product})
		return
	}

	ctx, cancel := h.stickyContext(c)
	defer cancel()

	key := sticky.Key{Product: product, Namespace: namespace, Name: name}
	existing, err := h.deps.Sticky.Get(ctx, key)
	if err != nil {
		respondError(c, h.deps.Log, &types.DependencyMissingError{Dependency: "sticky-store", Cause: err})
		return
	}
	if existing == nil {
		respondError(c, h.deps.Log, &types.NotFoundError{Kind_: prod.Kind, Namespace: namespace, Name: name})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"claim": existing.Object,
		"connectionSecret": gin.H{
			"name":      claim.ConnectionSecretName(prod, name),
			"namespace": namespace,
			"exists":    true,
		},
	})
}

// HandleFailoverService re-schedules an existing Claim excluding its current
// provider (and any caller-supplied exclusions), replacing the stored Claim
// in place.
func (h *Handlers) HandleFailoverService(c *gin.Context) {
	product := c.Param("product")
	namespace := c.Param("namespace")
	name := c.Param("name")

	prod, ok := h.deps.Products.Get(product)
	if !ok {
		respondError(c, h.deps.Log, &types.UnknownProductError{Product: product})
		return
	}

	body, err := bindBody(c)
	if err != nil {
		respondError(c, h.deps.Log, err)
		return
	}
	exclude := excludeProvidersOf(body)

	ctx, cancel := h.stickyContext(c)
	defer cancel()

	key := sticky.Key{Product: product, Namespace: namespace, Name: name}
	existing, err := h.deps.Sticky.Get(ctx, key)
	if err != nil {
		respondError(c, h.deps.Log, &types.DependencyMissingError{Dependency: "sticky-store", Cause: err})
		return
	}
	if existing == nil {
		respondError(c, h.deps.Log, &types.NotFoundError{Kind_: prod.Kind, Namespace: namespace, Name: name})
		return
	}

	prevReason, err := decodePlacementReason(existing)
	if err != nil {
		respondError(c, h.deps.Log, err)
		return
	}
	previousProvider := prevReason.Selected.Provider
	exclude[previousProvider] = true

	tier, ok := h.deps.Config.Tiers[prevReason.Tier]
	if !ok {
		respondError(c, h.deps.Log, &types.UnknownTierError{Tier: prevReason.Tier})
		return
	}
	candidates, ok := h.deps.Config.Cells[prevReason.Cell]
	if !ok {
		respondError(c, h.deps.Log, &types.UnknownCellError{Cell: prevReason.Cell})
		return
	}

	in := scheduler.Input{
		Tier:             tier,
		TierName:         prevReason.Tier,
		Cell:             prevReason.Cell,
		Candidates:       candidates,
		ExcludeProviders: exclude,
		EntityID:         namespace + "/" + name,
		IsFailover:       true,
		FailoverOf:       previousProvider,
	}
	placement, err := scheduler.Schedule(h.schedulerDeps(), in)
	if err != nil {
		respondError(c, h.deps.Log, err)
		return
	}

	devParams, _, _ := unstructured.NestedMap(existing.Object, "spec", "parameters")
	environment := existing.GetLabels()["platform.example.org/environment"]

	built, err := claim.Build(prod, namespace, name, prevReason.Cell, environment, prevReason.Tier, devParams, placement)
	if err != nil {
		respondError(c, h.deps.Log, err)
		return
	}

	if err := h.deps.Sticky.Delete(ctx, key); err != nil {
		respondError(c, h.deps.Log, &types.DependencyMissingError{Dependency: "sticky-store", Cause: err})
		return
	}
	stored, _, err := h.deps.Sticky.Set(ctx, key, built)
	if err != nil {
		respondError(c, h.deps.Log, &types.DependencyMissingError{Dependency: "sticky-store", Cause: err})
		return
	}

	h.recordSuccess(product, prevReason.Tier, namespace, name, "failover", placement)

	c.JSON(http.StatusOK, gin.H{
		"status":           "failover_complete",
		"previousProvider": previousProvider,
		"placement":        placement,
		"reason":           placement.Reason,
		"claim":            stored.Object,
	})
}

func excludeProvidersOf(body map[string]any) map[string]bool {
	out := map[string]bool{}
	raw, ok := body["excludeProviders"].([]any)
	if !ok {
		return out
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out[s] = true
		}
	}
	return out
}

func decodePlacementReason(u *unstructured.Unstructured) (types.PlacementReason, error) {
	var reason types.PlacementReason
	raw, ok := claim.PlacementReasonOf(u)
	if !ok {
		return reason, &types.ValidationError{Field: "claim", Message: "existing claim carries no placement-reason annotation"}
	}
	if err := json.Unmarshal([]byte(raw), &reason); err != nil {
		return reason, &types.ValidationError{Field: "claim", Message: "malformed placement-reason annotation: " + err.Error()}
	}
	return reason, nil
}

// recordSuccess updates analytics, Prometheus counters, and the audit
// ledger for a completed placement. Failures to record are logged, not
// surfaced to the caller — the placement already succeeded.
func (h *Handlers) recordSuccess(product, tierName, namespace, name, outcome string, placement types.Placement) {
	if h.deps.Analytics != nil {
		h.deps.Analytics.RecordPlacement(analytics.EventFromPlacement(placement, placement.Reason.ExperimentID, placement.Reason.ExperimentArm))
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.RequestsTotal.WithLabelValues(product, tierName).Inc()
		h.deps.Metrics.PlacementsTotal.WithLabelValues(placement.Provider, placement.Region).Inc()
		if outcome == "failover" {
			h.deps.Metrics.FailoversTotal.WithLabelValues(placement.Reason.FailoverOf, placement.Provider).Inc()
		}
	}
	if h.deps.Audit != nil {
		entry, err := audit.EntryFromPlacement(product, namespace, name, outcome, placement)
		if err != nil {
			h.deps.Log.WithError(err).Warn("failed to build audit entry")
			return
		}
		if err := h.deps.Audit.Record(entry); err != nil {
			h.deps.Log.WithError(err).Warn("failed to record audit entry")
		}
	}
}
