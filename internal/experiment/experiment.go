// Package experiment implements deterministic, reproducible-across-restarts
// A/B bucketing for placement requests. Unlike the retrieved Python original
// (internal/scheduler/experiments.py, which used MD5), assignment here uses
// FNV-1a — a fast, well-specified non-cryptographic hash — so the bucket for
// a given (experiment id, entity id) never changes across process restarts
// or between Go and any other language re-implementing the same scheme,
// without pulling in a cryptographic hash for a non-adversarial purpose.
package experiment

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cellforge/idp-controlplane/internal/types"
)

// Registry holds active experiments behind a mutex, injected explicitly
// rather than kept as a package-level singleton. Creation order is tracked
// separately from the map so List (and therefore assignment) always iterates
// experiments in the order they were first registered.
type Registry struct {
	mu          sync.RWMutex
	experiments map[string]types.ExperimentSpec
	order       []string
}

// NewRegistry creates an empty experiment registry.
func NewRegistry() *Registry {
	return &Registry{experiments: make(map[string]types.ExperimentSpec)}
}

// Set registers or replaces an experiment. VariantWeights must be
// non-negative and sum to 1.0 within tolerance; TrafficPercentage must be in
// [0,1]. CreatedAt is stamped on first registration and preserved across
// replacement so creation order never shifts under an in-place update.
func (r *Registry) Set(spec types.ExperimentSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("experiment: id is required")
	}
	w := spec.VariantWeights
	sum := w.Latency + w.DR + w.Maturity + w.Cost
	if w.Latency < 0 || w.DR < 0 || w.Maturity < 0 || w.Cost < 0 {
		return fmt.Errorf("experiment %s: variant weights must be non-negative", spec.ID)
	}
	if absFloat(sum-1.0) > 1e-9 {
		return fmt.Errorf("experiment %s: variant weights sum to %f, want 1.0", spec.ID, sum)
	}
	if spec.TrafficPercentage < 0 || spec.TrafficPercentage > 1 {
		return fmt.Errorf("experiment %s: trafficPercentage %f out of [0,1]", spec.ID, spec.TrafficPercentage)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.experiments[spec.ID]; ok {
		spec.CreatedAt = existing.CreatedAt
	} else {
		if spec.CreatedAt.IsZero() {
			spec.CreatedAt = time.Now().UTC()
		}
		r.order = append(r.order, spec.ID)
	}
	r.experiments[spec.ID] = spec
	return nil
}

// Delete removes an experiment. Reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.experiments[id]
	if !ok {
		return false
	}
	delete(r.experiments, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the experiment with the given id.
func (r *Registry) Get(id string) (types.ExperimentSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.experiments[id]
	return spec, ok
}

// List returns all registered experiments in creation order.
func (r *Registry) List() []types.ExperimentSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ExperimentSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.experiments[id])
	}
	return out
}

// AssignArm walks experiments in creation order, skipping any scoped to a
// different tier, and returns the first one whose deterministic bucket falls
// below its TrafficPercentage together with the "variant" arm name. If none
// match, it falls through to unattributed control — a zero ExperimentSpec
// and an empty arm — deliberately not tagging the control outcome with any
// experiment id.
func AssignArm(experiments []types.ExperimentSpec, tier, entityID string) (types.ExperimentSpec, string) {
	for _, spec := range experiments {
		if spec.Tier != "" && spec.Tier != tier {
			continue
		}
		if fractionalHash(spec.ID, entityID) < spec.TrafficPercentage {
			return spec, "variant"
		}
	}
	return types.ExperimentSpec{}, ""
}

// fractionalHash maps (id, entityID) to a deterministic value in [0, 1)
// using 64-bit FNV-1a over the composite string "id:entityID", reduced
// modulo 10_000 so the boundary property (bucket < trafficPercentage) holds
// with a fixed, documented granularity independent of hash width.
func fractionalHash(id, entityID string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	_, _ = h.Write([]byte(":"))
	_, _ = h.Write([]byte(entityID))
	sum := h.Sum64()
	return float64(sum%10_000) / 10_000.0
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
