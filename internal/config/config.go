// Package config loads the cell/candidate catalog, criticality tier table,
// and default product catalog from a YAML file, with an in-code fallback so
// the server boots standalone without a config file — mirroring the
// teacher's DefaultPolicy()/DefaultVerifyParams() pattern.
package config

import (
	"fmt"
	"os"

	"github.com/cellforge/idp-controlplane/internal/types"
	"gopkg.in/yaml.v3"
)

// Config is the full static configuration surface for a running cell.
type Config struct {
	Cells map[string][]types.Candidate `yaml:"cells"`
	Tiers map[string]types.TierSpec    `yaml:"tiers"`
}

// Load reads a YAML config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault reads path if non-empty and present, falling back to
// Default() otherwise — the same "config file with a working built-in
// fallback" posture the teacher gives its verification policy.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Load(path)
}

// Default returns the built-in catalog: the four criticality tiers and the
// seven-candidate AWS/GCP/OCI pool for the "payments" cell.
func Default() *Config {
	return &Config{
		Tiers: DefaultTiers(),
		Cells: map[string][]types.Candidate{
			"payments": DefaultCandidates(),
		},
	}
}

// DefaultTiers is the canonical four-tier criticality table.
func DefaultTiers() map[string]types.TierSpec {
	return map[string]types.TierSpec{
		"low": {
			Name:       "low",
			RTOMinutes: 30,
			RPOMinutes: 5,
			RequiredCapabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityMultiAZ, types.CapabilityPrivateNetworking,
			},
			Weights:          types.Dimensions{Latency: 0.30, DR: 0.30, Maturity: 0.25, Cost: 0.15},
			FailoverRequired: true,
			Description: "Low tolerance for failure. Strictest SLA with full DR capabilities. " +
				"Requires PITR, Multi-AZ, and private networking.",
		},
		"medium": {
			Name:       "medium",
			RTOMinutes: 120,
			RPOMinutes: 15,
			RequiredCapabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityPrivateNetworking,
			},
			Weights: types.Dimensions{Latency: 0.25, DR: 0.25, Maturity: 0.25, Cost: 0.25},
			Description: "Balanced tier. PITR and private networking required. " +
				"Equal weighting across all scoring dimensions.",
		},
		"critical": {
			Name:       "critical",
			RTOMinutes: 480,
			RPOMinutes: 60,
			RequiredCapabilities: []types.Capability{
				types.CapabilityPrivateNetworking,
			},
			Weights: types.Dimensions{Latency: 0.15, DR: 0.15, Maturity: 0.20, Cost: 0.50},
			Description: "Cost-sensitive tier. Only private networking required. " +
				"Cost has the highest weight (0.50) to optimize for budget.",
		},
		"business_critical": {
			Name:       "business_critical",
			RTOMinutes: 15,
			RPOMinutes: 1,
			RequiredCapabilities: []types.Capability{
				types.CapabilityPITR, types.CapabilityMultiAZ,
				types.CapabilityPrivateNetworking, types.CapabilityCrossRegionReplication,
			},
			Weights:          types.Dimensions{Latency: 0.25, DR: 0.40, Maturity: 0.25, Cost: 0.10},
			FailoverRequired: true,
			Description: "Highest criticality. Near-zero RPO with full DR and cross-region replication. " +
				"DR has the highest weight (0.40) to maximize resilience.",
		},
	}
}

// DefaultCandidates is the seven-candidate AWS/GCP/OCI pool, carried over
// verbatim (values and per-provider network shapes) from the retrieved
// scheduler fixture data.
func DefaultCandidates() []types.Candidate {
	caps := func(names ...types.Capability) map[types.Capability]bool {
		m := make(map[types.Capability]bool, len(names))
		for _, n := range names {
			m[n] = true
		}
		return m
	}
	return []types.Candidate{
		{
			Provider: "aws", Region: "us-east-1", RuntimeCluster: "aws-use1-prod-01",
			Network: map[string]any{"vpcId": "vpc-aws-use1", "subnetGroup": "db-private-use1"},
			Capabilities: caps(types.CapabilityPITR, types.CapabilityMultiAZ,
				types.CapabilityPrivateNetworking, types.CapabilityCrossRegionReplication),
			Scores: types.Dimensions{Latency: 0.90, DR: 0.95, Maturity: 0.95, Cost: 0.50},
		},
		{
			Provider: "aws", Region: "eu-west-1", RuntimeCluster: "aws-euw1-prod-01",
			Network: map[string]any{"vpcId": "vpc-aws-euw1", "subnetGroup": "db-private-euw1"},
			Capabilities: caps(types.CapabilityPITR, types.CapabilityMultiAZ,
				types.CapabilityPrivateNetworking, types.CapabilityCrossRegionReplication),
			Scores: types.Dimensions{Latency: 0.70, DR: 0.90, Maturity: 0.90, Cost: 0.45},
		},
		{
			Provider: "aws", Region: "us-west-2", RuntimeCluster: "aws-usw2-prod-01",
			Network: map[string]any{"vpcId": "vpc-aws-usw2", "subnetGroup": "db-private-usw2"},
			Capabilities: caps(types.CapabilityPITR, types.CapabilityMultiAZ, types.CapabilityPrivateNetworking),
			Scores:       types.Dimensions{Latency: 0.85, DR: 0.90, Maturity: 0.90, Cost: 0.55},
		},
		{
			Provider: "gcp", Region: "us-central1", RuntimeCluster: "gcp-usc1-prod-01",
			Network: map[string]any{"vpcName": "vpc-gcp-usc1", "subnet": "db-private-usc1"},
			Capabilities: caps(types.CapabilityPITR, types.CapabilityMultiAZ, types.CapabilityPrivateNetworking),
			Scores:       types.Dimensions{Latency: 0.88, DR: 0.85, Maturity: 0.88, Cost: 0.65},
		},
		{
			Provider: "gcp", Region: "europe-west1", RuntimeCluster: "gcp-euw1-prod-01",
			Network: map[string]any{"vpcName": "vpc-gcp-euw1", "subnet": "db-private-euw1"},
			Capabilities: caps(types.CapabilityPITR, types.CapabilityMultiAZ, types.CapabilityPrivateNetworking),
			Scores:       types.Dimensions{Latency: 0.72, DR: 0.82, Maturity: 0.85, Cost: 0.60},
		},
		{
			Provider: "oci", Region: "us-ashburn-1", RuntimeCluster: "oci-iad-prod-01",
			Network:      map[string]any{"vcnId": "vcn-oci-iad", "subnetId": "db-private-iad"},
			Capabilities: caps(types.CapabilityPITR, types.CapabilityPrivateNetworking),
			Scores:       types.Dimensions{Latency: 0.80, DR: 0.70, Maturity: 0.65, Cost: 0.85},
		},
		{
			Provider: "oci", Region: "eu-frankfurt-1", RuntimeCluster: "oci-fra-prod-01",
			Network:      map[string]any{"vcnId": "vcn-oci-fra", "subnetId": "db-private-fra"},
			Capabilities: caps(types.CapabilityPITR, types.CapabilityPrivateNetworking),
			Scores:       types.Dimensions{Latency: 0.68, DR: 0.65, Maturity: 0.60, Cost: 0.90},
		},
	}
}
