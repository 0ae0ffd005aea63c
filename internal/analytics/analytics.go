// Package analytics tracks placement decisions for data-driven scheduler
// tuning: provider/region/tier win rates, gate-rejection rate, per-arm
// experiment counts, and per-provider average score. Grounded on the
// original scheduler.experiments.PlacementAnalytics, translated from a
// list-of-dicts recomputed on every read to a set of running counters
// updated on every Record call.
package analytics

import (
	"sort"
	"sync"

	"github.com/cellforge/idp-controlplane/internal/types"
)

// Event is one recorded placement decision.
type Event struct {
	Provider     string
	Region       string
	Tier         string
	TotalScore   float64
	ExperimentID string
	ExperimentArm string
}

// Recorder accumulates placement events behind a mutex, matching the rest
// of the module's shared-state convention (small struct, own lock,
// constructed and injected explicitly).
type Recorder struct {
	mu sync.Mutex

	totalRequests   int64
	totalPlacements int64
	gateRejections  int64

	providerCounts map[string]int64
	regionCounts   map[string]int64
	tierCounts     map[string]int64
	providerScore  map[string]runningMean
	experimentArms map[string]map[string]int64
}

// runningMean is a Welford-style incremental mean: mean is updated in place
// per sample, so no unbounded sum is ever accumulated.
type runningMean struct {
	count int64
	mean  float64
}

func (m *runningMean) add(x float64) {
	m.count++
	m.mean += (x - m.mean) / float64(m.count)
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		providerCounts: make(map[string]int64),
		regionCounts:   make(map[string]int64),
		tierCounts:     make(map[string]int64),
		providerScore:  make(map[string]runningMean),
		experimentArms: make(map[string]map[string]int64),
	}
}

// RecordPlacement records a successful placement decision.
func (r *Recorder) RecordPlacement(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalRequests++
	r.totalPlacements++
	r.providerCounts[e.Provider]++
	r.regionCounts[e.Provider+"/"+e.Region]++
	r.tierCounts[e.Tier]++

	m := r.providerScore[e.Provider]
	m.add(e.TotalScore)
	r.providerScore[e.Provider] = m

	if e.ExperimentID != "" {
		arms, ok := r.experimentArms[e.ExperimentID]
		if !ok {
			arms = make(map[string]int64)
			r.experimentArms[e.ExperimentID] = arms
		}
		arms[e.ExperimentArm]++
	}
}

// RecordGateRejection records a request for which no candidate survived
// scheduling gates.
func (r *Recorder) RecordGateRejection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests++
	r.gateRejections++
}

// Distribution is a single bucket's share of a distribution.
type Distribution struct {
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summary is the point-in-time analytics snapshot returned by Snapshot.
type Summary struct {
	TotalPlacements     int64                        `json:"total_placements"`
	TotalRequests       int64                        `json:"total_requests"`
	GateRejectionRate   float64                       `json:"gate_rejection_rate"`
	ProviderDistribution map[string]Distribution       `json:"provider_distribution,omitempty"`
	RegionDistribution  map[string]Distribution       `json:"region_distribution,omitempty"`
	TierDistribution    map[string]Distribution       `json:"tier_distribution,omitempty"`
	ExperimentArms      map[string]map[string]int64   `json:"experiment_arms,omitempty"`
	AverageScoreByProvider map[string]float64          `json:"average_score_by_provider,omitempty"`
}

// Snapshot computes the current analytics summary. Grounded on
// experiments.py:PlacementAnalytics.get_summary.
func (r *Recorder) Snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	rejectionRate := 0.0
	if r.totalRequests > 0 {
		rejectionRate = round4(float64(r.gateRejections) / float64(r.totalRequests))
	}

	if r.totalPlacements == 0 {
		return Summary{
			TotalPlacements:   0,
			TotalRequests:     r.totalRequests,
			GateRejectionRate: rejectionRate,
		}
	}

	return Summary{
		TotalPlacements:        r.totalPlacements,
		TotalRequests:          r.totalRequests,
		GateRejectionRate:      rejectionRate,
		ProviderDistribution:   distributionOf(r.providerCounts, r.totalPlacements),
		RegionDistribution:     distributionOf(r.regionCounts, r.totalPlacements),
		TierDistribution:       distributionOf(r.tierCounts, r.totalPlacements),
		ExperimentArms:         copyArms(r.experimentArms),
		AverageScoreByProvider: averagesOf(r.providerScore),
	}
}

func distributionOf(counts map[string]int64, total int64) map[string]Distribution {
	out := make(map[string]Distribution, len(counts))
	for k, c := range counts {
		out[k] = Distribution{Count: c, Percentage: round1(float64(c) / float64(total) * 100)}
	}
	return out
}

func averagesOf(scores map[string]runningMean) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for k, m := range scores {
		out[k] = round4(m.mean)
	}
	return out
}

func copyArms(arms map[string]map[string]int64) map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(arms))
	for expID, counts := range arms {
		inner := make(map[string]int64, len(counts))
		for arm, c := range counts {
			inner[arm] = c
		}
		out[expID] = inner
	}
	return out
}

func round1(v float64) float64 { return roundTo(v, 1) }
func round4(v float64) float64 { return roundTo(v, 4) }

func roundTo(v float64, places int) float64 {
	mul := 1.0
	for i := 0; i < places; i++ {
		mul *= 10
	}
	return float64(int64(v*mul+0.5)) / mul
}

// EventFromPlacement adapts a scheduler placement decision into an
// analytics Event, threading through the experiment arm if one applied.
func EventFromPlacement(p types.Placement, experimentID, arm string) Event {
	return Event{
		Provider:      p.Provider,
		Region:        p.Region,
		Tier:          p.Reason.Tier,
		TotalScore:    p.Reason.Selected.Score,
		ExperimentID:  experimentID,
		ExperimentArm: arm,
	}
}

// SortedProviders returns provider keys of a distribution sorted by count
// descending then name ascending, for stable rendering.
func SortedProviders(dist map[string]Distribution) []string {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if dist[keys[i]].Count != dist[keys[j]].Count {
			return dist[keys[i]].Count > dist[keys[j]].Count
		}
		return keys[i] < keys[j]
	})
	return keys
}
