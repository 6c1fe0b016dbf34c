package breaker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRegistry(threshold uint32, cooldown time.Duration) *Registry {
	return NewRegistry([]string{"alpha", "beta"}, Config{
		FailureThreshold: threshold,
		Cooldown:         cooldown,
	}, zerolog.Nop())
}

func TestRegistry_OpensAtThreshold(t *testing.T) {
	r := newTestRegistry(3, time.Minute)

	r.RecordFailure("alpha")
	r.RecordFailure("alpha")
	if !r.IsAvailable("alpha") {
		t.Fatal("Breaker must stay closed below the failure threshold")
	}

	r.RecordFailure("alpha")
	if r.IsAvailable("alpha") {
		t.Fatal("Breaker must open after threshold consecutive failures")
	}
}

func TestRegistry_CooldownReopensWithoutReset(t *testing.T) {
	r := newTestRegistry(2, 50*time.Millisecond)

	r.RecordFailure("alpha")
	r.RecordFailure("alpha")
	if r.IsAvailable("alpha") {
		t.Fatal("Breaker should be open")
	}

	time.Sleep(80 * time.Millisecond)
	if !r.IsAvailable("alpha") {
		t.Fatal("Breaker must become available after cooldown with no explicit reset")
	}
}

func TestRegistry_SuccessResetsFailureCount(t *testing.T) {
	r := newTestRegistry(3, time.Minute)

	r.RecordFailure("alpha")
	r.RecordFailure("alpha")
	r.RecordSuccess("alpha")
	r.RecordFailure("alpha")
	r.RecordFailure("alpha")

	if !r.IsAvailable("alpha") {
		t.Fatal("Success must reset consecutive failures; breaker should be closed")
	}
}

func TestRegistry_ProvidersIsolated(t *testing.T) {
	r := newTestRegistry(2, time.Minute)

	r.RecordFailure("alpha")
	r.RecordFailure("alpha")

	if r.IsAvailable("alpha") {
		t.Fatal("alpha should be open")
	}
	if !r.IsAvailable("beta") {
		t.Fatal("beta must be unaffected by alpha's failures")
	}
}

func TestRegistry_UnknownProviderUnavailable(t *testing.T) {
	r := newTestRegistry(2, time.Minute)

	if r.IsAvailable("unknown") {
		t.Fatal("Unknown providers must report unavailable")
	}
}

func TestRegistry_HalfOpenSuccessCloses(t *testing.T) {
	r := newTestRegistry(2, 50*time.Millisecond)

	r.RecordFailure("alpha")
	r.RecordFailure("alpha")
	time.Sleep(80 * time.Millisecond)

	if !r.IsAvailable("alpha") {
		t.Fatal("Breaker should allow a trial after cooldown")
	}
	r.RecordSuccess("alpha")
	if !r.IsAvailable("alpha") {
		t.Fatal("Trial success must close the breaker")
	}
}
