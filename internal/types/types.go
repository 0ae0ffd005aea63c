// Package types holds the shared data model for the placement control plane:
// developer requests, candidate locations, criticality tiers, and the
// decisions the scheduler produces.
package types

import "time"

// Capability is a hard gate a candidate location either has or does not.
type Capability string

const (
	CapabilityPITR                  Capability = "pitr"
	CapabilityMultiAZ                Capability = "multi_az"
	CapabilityPrivateNetworking      Capability = "private_networking"
	CapabilityCrossRegionReplication Capability = "cross_region_replication"
)

// Dimensions are the four axes candidates are scored on. Weights across a
// tier's Weights must sum to 1.0 (within float tolerance).
type Dimensions struct {
	Latency  float64 `json:"latency" yaml:"latency"`
	DR       float64 `json:"dr" yaml:"dr"`
	Maturity float64 `json:"maturity" yaml:"maturity"`
	Cost     float64 `json:"cost" yaml:"cost"`
}

// TierSpec is a criticality tier: RTO/RPO targets, required capabilities
// (hard gates), and the scoring weights applied to viable candidates.
type TierSpec struct {
	Name                 string       `json:"name" yaml:"name"`
	RTOMinutes           int          `json:"rtoMinutes" yaml:"rtoMinutes"`
	RPOMinutes           int          `json:"rpoMinutes" yaml:"rpoMinutes"`
	RequiredCapabilities []Capability `json:"requiredCapabilities" yaml:"requiredCapabilities"`
	Weights              Dimensions   `json:"weights" yaml:"weights"`
	FailoverRequired     bool         `json:"failoverRequired" yaml:"failoverRequired"`
	Description          string       `json:"description,omitempty" yaml:"description,omitempty"`
}

// Candidate is a schedulable (provider, region, runtime cluster) location
// within a cell, with the raw network shape to stamp into a Claim and the
// per-dimension scores used for weighted ranking.
type Candidate struct {
	Provider       string                 `json:"provider" yaml:"provider"`
	Region         string                 `json:"region" yaml:"region"`
	RuntimeCluster string                 `json:"runtimeCluster" yaml:"runtimeCluster"`
	Network        map[string]any         `json:"network" yaml:"network"`
	Capabilities   map[Capability]bool    `json:"capabilities" yaml:"capabilities"`
	Scores         Dimensions             `json:"scores" yaml:"scores"`
}

// HasCapability reports whether the candidate satisfies a required capability.
func (c Candidate) HasCapability(cap Capability) bool {
	return c.Capabilities[cap]
}

// Request is what a developer submits: everything the control plane does
// NOT decide. Provider, region, runtimeCluster, and network are forbidden
// fields here — they are decided by the scheduler.
type Request struct {
	Product     string         `json:"product"`
	Cell        string         `json:"cell"`
	Tier        string         `json:"tier"`
	Environment string         `json:"environment"`
	HA          bool           `json:"ha"`
	Namespace   string         `json:"namespace"`
	Name        string         `json:"name"`
	Params      map[string]any `json:"-"`
}

// ForbiddenFields are developer-supplied fields that would preempt a
// placement decision the scheduler is responsible for making.
var ForbiddenFields = []string{"provider", "region", "runtimeCluster", "runtime_cluster", "network"}

// ScoredCandidate pairs a Candidate with the weighted score it earned
// against a specific tier and the per-dimension contributions that produced
// it, so a placement decision remains explainable after the fact.
type ScoredCandidate struct {
	Candidate     Candidate    `json:"candidate"`
	Score         float64      `json:"score"`
	Contributions Dimensions   `json:"contributions"`
	Blocked       bool         `json:"blocked,omitempty"`
	BlockReason   string       `json:"blockReason,omitempty"`
	GateFailures  []Capability `json:"gateFailures,omitempty"`
}

// PlacementReason is the audit record attached to every Claim: what was
// decided, from what pool, under what weights, and via which experiment
// arm. It is serialized as canonical JSON into a Claim annotation.
type PlacementReason struct {
	DecidedAt      time.Time         `json:"decidedAt"`
	Tier           string            `json:"tier"`
	Cell           string            `json:"cell"`
	WeightsUsed    Dimensions        `json:"weightsUsed"`
	ExperimentID   string            `json:"experimentId,omitempty"`
	ExperimentArm  string            `json:"experimentArm,omitempty"` // "" (no experiment matched) or "variant"
	FeatureFlags   []string          `json:"featureFlags,omitempty"`
	Selected       SelectedCandidate `json:"selected"`
	Alternates     []ScoredCandidate `json:"alternates,omitempty"`
	Excluded       []ScoredCandidate `json:"excluded,omitempty"`
	FailoverOf     string            `json:"failoverOf,omitempty"`
	FailoverCandidate   *SelectedCandidate `json:"failoverCandidate,omitempty"`
	FailoverUnavailable bool               `json:"failoverUnavailable,omitempty"`
}

// SelectedCandidate is the compact form of the winning candidate carried in
// a PlacementReason (full Dimensions detail lives in Alternates/Excluded).
type SelectedCandidate struct {
	Provider       string  `json:"provider"`
	Region         string  `json:"region"`
	RuntimeCluster string  `json:"runtimeCluster"`
	Score          float64 `json:"score"`
}

// FailoverInfo records that a placement was produced by an explicit
// failover rather than an initial create.
type FailoverInfo struct {
	PreviousProvider string   `json:"previousProvider"`
	ExcludeProviders []string `json:"excludeProviders,omitempty"`
}

// Placement is the scheduler's output: where a request landed and why.
type Placement struct {
	Provider       string          `json:"provider"`
	Region         string          `json:"region"`
	RuntimeCluster string          `json:"runtimeCluster"`
	Network        map[string]any  `json:"network"`
	Reason         PlacementReason `json:"reason"`
	Failover       *FailoverInfo   `json:"failover,omitempty"`
}

// BreakerState is the state of a per-provider circuit breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// ExperimentSpec is a binary control/variant A/B experiment. A deterministic
// fraction of traffic (TrafficPercentage, in [0,1]) is bucketed into
// "variant", which scores candidates with VariantWeights instead of the
// tier's own weights; the remainder stays "control". Assignment is a pure
// function of (ID, entity id) — see package experiment.
type ExperimentSpec struct {
	ID                string     `json:"id" yaml:"id"`
	Description       string     `json:"description,omitempty" yaml:"description,omitempty"`
	VariantWeights    Dimensions `json:"variantWeights" yaml:"variantWeights"`
	TrafficPercentage float64    `json:"trafficPercentage" yaml:"trafficPercentage"`
	Tier              string     `json:"tier,omitempty" yaml:"tier,omitempty"` // empty = applies to every tier
	CreatedAt         time.Time  `json:"createdAt" yaml:"createdAt"`
}

// FeatureFlag is a named boolean toggle that alters scheduler behavior
// (e.g. prefer_cost_optimization reweights scoring dimensions).
type FeatureFlag struct {
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}
