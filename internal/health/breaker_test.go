package health

import (
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreakerRegistry(3, 50*time.Millisecond)
	for i := 0; i < 2; i++ {
		b.RecordFailure("aws")
	}
	if got := b.State("aws"); got != StateClosed {
		t.Fatalf("state = %s, want closed after 2 failures", got)
	}
	b.RecordFailure("aws")
	if got := b.State("aws"); got != StateOpen {
		t.Fatalf("state = %s, want open after 3 failures", got)
	}
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b := NewBreakerRegistry(1, 10*time.Millisecond)
	b.RecordFailure("gcp")
	if got := b.State("gcp"); got != StateOpen {
		t.Fatalf("state = %s, want open", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := b.State("gcp"); got != StateHalfOpen {
		t.Fatalf("state = %s, want half_open after cooldown", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreakerRegistry(1, 5*time.Millisecond)
	b.RecordFailure("oci")
	time.Sleep(10 * time.Millisecond)
	if got := b.State("oci"); got != StateHalfOpen {
		t.Fatalf("state = %s, want half_open", got)
	}
	b.RecordFailure("oci")
	if got := b.State("oci"); got != StateOpen {
		t.Fatalf("state = %s, want open after half_open failure", got)
	}
}

func TestBreakerSuccessClosesFromHalfOpen(t *testing.T) {
	b := NewBreakerRegistry(1, 5*time.Millisecond)
	b.RecordFailure("aws")
	time.Sleep(10 * time.Millisecond)
	b.State("aws") // promote to half_open
	b.RecordSuccess("aws")
	if got := b.State("aws"); got != StateClosed {
		t.Fatalf("state = %s, want closed after success", got)
	}
}

func TestExplainReportsHealthAndBreakerIndependently(t *testing.T) {
	reg := NewRegistry("aws", "gcp")
	breakers := NewBreakerRegistry(1, time.Hour)

	reg.SetHealthy("aws", false)
	exp := reg.Explain("aws", breakers)
	if exp.Eligible {
		t.Fatal("expected aws ineligible: unhealthy")
	}
	if exp.BreakerState != StateClosed {
		t.Fatalf("breaker state = %s, want closed (independent of health bit)", exp.BreakerState)
	}

	breakers.RecordFailure("gcp")
	exp = reg.Explain("gcp", breakers)
	if exp.Eligible {
		t.Fatal("expected gcp ineligible: breaker open")
	}
	if !exp.Healthy {
		t.Fatal("expected gcp still marked healthy (independent of breaker)")
	}
}
