package experiment

import (
	"testing"

	"github.com/cellforge/idp-controlplane/internal/types"
)

func halfTrafficSpec() types.ExperimentSpec {
	return types.ExperimentSpec{
		ID:                "cost-weighting",
		VariantWeights:    types.Dimensions{Latency: 0.1, DR: 0.1, Maturity: 0.2, Cost: 0.6},
		TrafficPercentage: 0.5,
	}
}

func TestAssignArmIsDeterministic(t *testing.T) {
	spec := halfTrafficSpec()
	for _, id := range []string{"orders/checkout-db", "billing/ledger-db", "x"} {
		_, firstArm := AssignArm([]types.ExperimentSpec{spec}, "", id)
		for i := 0; i < 20; i++ {
			_, arm := AssignArm([]types.ExperimentSpec{spec}, "", id)
			if arm != firstArm {
				t.Fatalf("arm for %q changed across calls: %s != %s", id, arm, firstArm)
			}
		}
	}
}

func TestAssignArmDistributionRoughlyMatchesTrafficPercentage(t *testing.T) {
	spec := halfTrafficSpec()
	const n = 20000
	variant := 0
	for i := 0; i < n; i++ {
		_, arm := AssignArm([]types.ExperimentSpec{spec}, "", entityID(i))
		if arm == "variant" {
			variant++
		}
	}
	frac := float64(variant) / float64(n)
	if frac < 0.49 || frac > 0.51 {
		t.Fatalf("variant fraction = %f, want ~0.5", frac)
	}
}

func TestAssignArmTrafficPercentageBoundaries(t *testing.T) {
	always := halfTrafficSpec()
	always.TrafficPercentage = 1.0
	never := halfTrafficSpec()
	never.TrafficPercentage = 0

	for i := 0; i < 50; i++ {
		id := entityID(i)
		if _, arm := AssignArm([]types.ExperimentSpec{always}, "", id); arm != "variant" {
			t.Fatalf("trafficPercentage=1.0 should always assign variant, got %q for %q", arm, id)
		}
		if spec, arm := AssignArm([]types.ExperimentSpec{never}, "", id); arm != "" || spec.ID != "" {
			t.Fatalf("trafficPercentage=0 should always assign unattributed control, got id=%q arm=%q for %q", spec.ID, arm, id)
		}
	}
}

func TestAssignArmSkipsExperimentsScopedToOtherTiers(t *testing.T) {
	spec := halfTrafficSpec()
	spec.TrafficPercentage = 1.0
	spec.Tier = "critical"

	if _, arm := AssignArm([]types.ExperimentSpec{spec}, "low", "anything"); arm != "" {
		t.Fatalf("expected tier-scoped experiment to be skipped, got arm %q", arm)
	}
	if spec2, arm := AssignArm([]types.ExperimentSpec{spec}, "critical", "anything"); arm != "variant" || spec2.ID != "cost-weighting" {
		t.Fatalf("expected matching tier scope to assign variant, got id=%q arm=%q", spec2.ID, arm)
	}
}

func TestAssignArmFirstMatchWinsInCreationOrder(t *testing.T) {
	first := halfTrafficSpec()
	first.ID = "first"
	first.TrafficPercentage = 1.0
	second := halfTrafficSpec()
	second.ID = "second"
	second.TrafficPercentage = 1.0

	spec, arm := AssignArm([]types.ExperimentSpec{first, second}, "", "anything")
	if spec.ID != "first" || arm != "variant" {
		t.Fatalf("expected first experiment in order to win, got id=%q arm=%q", spec.ID, arm)
	}
}

func TestRegistrySetRejectsBadWeights(t *testing.T) {
	r := NewRegistry()
	bad := halfTrafficSpec()
	bad.VariantWeights.Cost = 0.9 // now sums to 0.7, not 1.0
	if err := r.Set(bad); err == nil {
		t.Fatal("expected error for variant weights not summing to 1.0")
	}
}

func TestRegistrySetRejectsOutOfRangeTrafficPercentage(t *testing.T) {
	r := NewRegistry()
	bad := halfTrafficSpec()
	bad.TrafficPercentage = 1.5
	if err := r.Set(bad); err == nil {
		t.Fatal("expected error for trafficPercentage outside [0,1]")
	}
}

func TestRegistrySetGetDelete(t *testing.T) {
	r := NewRegistry()
	spec := halfTrafficSpec()
	if err := r.Set(spec); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := r.Get(spec.ID)
	if !ok || got.ID != spec.ID {
		t.Fatalf("Get returned %+v, ok=%v", got, ok)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped on first registration")
	}
	if !r.Delete(spec.ID) {
		t.Fatal("expected Delete to report existing experiment")
	}
	if _, ok := r.Get(spec.ID); ok {
		t.Fatal("expected experiment gone after Delete")
	}
}

func TestRegistryListReturnsCreationOrderNotSortedOrder(t *testing.T) {
	r := NewRegistry()
	zebra := halfTrafficSpec()
	zebra.ID = "zebra"
	apple := halfTrafficSpec()
	apple.ID = "apple"

	if err := r.Set(zebra); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := r.Set(apple); err != nil {
		t.Fatalf("Set: %v", err)
	}

	list := r.List()
	if len(list) != 2 || list[0].ID != "zebra" || list[1].ID != "apple" {
		t.Fatalf("expected creation order [zebra apple], got %+v", list)
	}
}

func TestRegistrySetPreservesCreatedAtAcrossReplacement(t *testing.T) {
	r := NewRegistry()
	spec := halfTrafficSpec()
	if err := r.Set(spec); err != nil {
		t.Fatalf("Set: %v", err)
	}
	original, _ := r.Get(spec.ID)

	updated := spec
	updated.Description = "revised"
	if err := r.Set(updated); err != nil {
		t.Fatalf("Set: %v", err)
	}
	replaced, _ := r.Get(spec.ID)
	if !replaced.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("CreatedAt changed across replacement: %v != %v", replaced.CreatedAt, original.CreatedAt)
	}
	if len(r.List()) != 1 {
		t.Fatalf("expected replacement not to duplicate the creation-order entry, got %+v", r.List())
	}
}

func entityID(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	n := i
	for j := range b {
		b[j] = letters[(n%len(letters)+j*17)%len(letters)]
		n /= len(letters)
	}
	return string(b)
}
