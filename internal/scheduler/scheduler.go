// Package scheduler runs the placement pipeline: health/breaker filtering,
// hard capability gates, weighted scoring (with optional experiment and
// feature-flag reweighting), and deterministic ranking. Grounded on the
// retrieved scheduler.py's score_candidate/schedule shape, generalized from
// a single hardcoded MySQL request type to any product request.
package scheduler

import (
	"sort"
	"strings"
	"time"

	"github.com/cellforge/idp-controlplane/internal/experiment"
	"github.com/cellforge/idp-controlplane/internal/flags"
	"github.com/cellforge/idp-controlplane/internal/health"
	"github.com/cellforge/idp-controlplane/internal/types"
)

// Dependencies bundles the shared, mutex-guarded registries the scheduler
// consults. Passed explicitly per call — never held as package state. Clock
// is injected so tests (and the determinism invariant in spec.md §4.4/§4.6)
// can prove Schedule is a pure function of its inputs; nil defaults to
// time.Now().UTC().
type Dependencies struct {
	Health      *health.Registry
	Breakers    *health.BreakerRegistry
	Experiments *experiment.Registry
	Flags       *flags.Registry
	Clock       func() time.Time
}

// Input is everything a single scheduling decision needs.
type Input struct {
	Tier             types.TierSpec
	TierName         string
	Cell             string
	Candidates       []types.Candidate
	ExcludeProviders map[string]bool
	HA               bool
	EntityID         string // stable id for deterministic experiment bucketing, e.g. "namespace/name"
	IsFailover       bool
	FailoverOf       string
}

// effectiveGates returns the tier's required capabilities plus multi_az when
// the caller requested high availability. Grounded on
// policy.py:effective_gates / spec.md §4.1.
func effectiveGates(tier types.TierSpec, ha bool) []types.Capability {
	gates := append([]types.Capability{}, tier.RequiredCapabilities...)
	if !ha {
		return gates
	}
	for _, g := range gates {
		if g == types.CapabilityMultiAZ {
			return gates
		}
	}
	return append(gates, types.CapabilityMultiAZ)
}

// CostOptimizationBonus is added to the cost dimension weight when the
// prefer_cost_optimization flag is enabled; the other three dimensions are
// reduced proportionally to keep the total at 1.0.
const CostOptimizationBonus = 0.20

// ApplyCostOptimization redistributes weight toward cost, reducing latency,
// dr, and maturity proportionally to their original shares. Clamps cost at
// 1.0 and the others at 0.0; the result always sums to 1.0 within 1e-9.
func ApplyCostOptimization(d types.Dimensions) types.Dimensions {
	newCost := d.Cost + CostOptimizationBonus
	if newCost > 1.0 {
		newCost = 1.0
	}
	remaining := 1.0 - newCost
	otherSum := d.Latency + d.DR + d.Maturity
	if otherSum <= 0 {
		return types.Dimensions{Latency: 0, DR: 0, Maturity: 0, Cost: newCost}
	}
	scale := remaining / otherSum
	out := types.Dimensions{
		Latency:  clampNonNegative(d.Latency * scale),
		DR:       clampNonNegative(d.DR * scale),
		Maturity: clampNonNegative(d.Maturity * scale),
		Cost:     newCost,
	}
	return out
}

func clampNonNegative(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// Schedule runs the full placement pipeline and returns a Placement or a
// types.NoViableCandidateError if every candidate was gated out.
func Schedule(deps Dependencies, in Input) (types.Placement, error) {
	weights := in.Tier.Weights
	var experimentID, experimentArm string
	var appliedFlags []string

	if deps.Experiments != nil {
		spec, arm := experiment.AssignArm(deps.Experiments.List(), in.TierName, in.EntityID)
		if arm == "variant" {
			experimentID = spec.ID
			experimentArm = arm
			weights = spec.VariantWeights
		}
	}

	if deps.Flags != nil && deps.Flags.IsEnabled(flags.PreferCostOptimization) {
		weights = ApplyCostOptimization(weights)
		appliedFlags = append(appliedFlags, flags.PreferCostOptimization)
	}

	gates := effectiveGates(in.Tier, in.HA)

	var scored []types.ScoredCandidate
	for _, c := range in.Candidates {
		sc := scoreCandidate(c, gates, weights)

		if in.ExcludeProviders[c.Provider] {
			sc.Blocked = true
			sc.BlockReason = "excluded by caller"
			scored = append(scored, sc)
			continue
		}
		if deps.Health != nil && !deps.Health.IsHealthy(c.Provider) {
			sc.Blocked = true
			sc.BlockReason = "provider marked unhealthy"
			scored = append(scored, sc)
			continue
		}
		if deps.Breakers != nil {
			state := deps.Breakers.State(c.Provider)
			if state == health.StateOpen {
				sc.Blocked = true
				sc.BlockReason = "circuit breaker open"
				scored = append(scored, sc)
				continue
			}
		}
		scored = append(scored, sc)
	}

	viable := make([]types.ScoredCandidate, 0, len(scored))
	excluded := make([]types.ScoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if sc.Blocked {
			excluded = append(excluded, sc)
			continue
		}
		viable = append(viable, sc)
	}

	if len(viable) == 0 {
		return types.Placement{}, &types.NoViableCandidateError{
			Cell:     in.Cell,
			Tier:     in.TierName,
			Reason:   "no candidate passed capability gates, health, and breaker filters",
			Excluded: excluded,
		}
	}

	rank(viable)

	winner := viable[0]
	alternates := viable[1:]
	if len(alternates) > 2 {
		alternates = alternates[:2]
	}

	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	reason := types.PlacementReason{
		DecidedAt:     clock(),
		Tier:          in.TierName,
		Cell:          in.Cell,
		WeightsUsed:   weights,
		ExperimentID:  experimentID,
		ExperimentArm: experimentArm,
		FeatureFlags:  appliedFlags,
		Selected: types.SelectedCandidate{
			Provider:       winner.Candidate.Provider,
			Region:         winner.Candidate.Region,
			RuntimeCluster: winner.Candidate.RuntimeCluster,
			Score:          winner.Score,
		},
		Alternates: alternates,
		Excluded:   excluded,
		FailoverOf: in.FailoverOf,
	}

	if in.Tier.FailoverRequired {
		var crossProvider *types.ScoredCandidate
		for i := range viable {
			if viable[i].Candidate.Provider != winner.Candidate.Provider {
				crossProvider = &viable[i]
				break
			}
		}
		if crossProvider == nil {
			reason.FailoverUnavailable = true
		} else {
			reason.FailoverCandidate = &types.SelectedCandidate{
				Provider:       crossProvider.Candidate.Provider,
				Region:         crossProvider.Candidate.Region,
				RuntimeCluster: crossProvider.Candidate.RuntimeCluster,
				Score:          crossProvider.Score,
			}
		}
	}

	placement := types.Placement{
		Provider:       winner.Candidate.Provider,
		Region:         winner.Candidate.Region,
		RuntimeCluster: winner.Candidate.RuntimeCluster,
		Network:        winner.Candidate.Network,
		Reason:         reason,
	}
	if in.IsFailover {
		placement.Failover = &types.FailoverInfo{
			PreviousProvider: in.FailoverOf,
			ExcludeProviders: keysOf(in.ExcludeProviders),
		}
	}
	return placement, nil
}

// scoreCandidate checks a candidate's hard gates and computes its weighted
// score, mirroring score_candidate's subscore/total-score split.
func scoreCandidate(c types.Candidate, gates []types.Capability, weights types.Dimensions) types.ScoredCandidate {
	var missing []types.Capability
	for _, cap := range gates {
		if !c.HasCapability(cap) {
			missing = append(missing, cap)
		}
	}
	if len(missing) > 0 {
		return types.ScoredCandidate{
			Candidate:    c,
			Blocked:      true,
			BlockReason:  "missing required capabilities: " + joinCapabilities(missing),
			GateFailures: missing,
		}
	}

	contributions := types.Dimensions{
		Latency:  c.Scores.Latency * weights.Latency,
		DR:       c.Scores.DR * weights.DR,
		Maturity: c.Scores.Maturity * weights.Maturity,
		Cost:     c.Scores.Cost * weights.Cost,
	}
	total := contributions.Latency + contributions.DR + contributions.Maturity + contributions.Cost

	return types.ScoredCandidate{
		Candidate:     c,
		Score:         total,
		Contributions: contributions,
	}
}

// rank sorts viable candidates by score descending. Ties break first on the
// higher dr subScore, then deterministically by provider, region, and
// runtime cluster so repeat runs against the same pool always pick the same
// winner.
func rank(candidates []types.ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Contributions.DR != b.Contributions.DR {
			return a.Contributions.DR > b.Contributions.DR
		}
		if a.Candidate.Provider != b.Candidate.Provider {
			return a.Candidate.Provider < b.Candidate.Provider
		}
		if a.Candidate.Region != b.Candidate.Region {
			return a.Candidate.Region < b.Candidate.Region
		}
		return a.Candidate.RuntimeCluster < b.Candidate.RuntimeCluster
	})
}

func joinCapabilities(caps []types.Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
