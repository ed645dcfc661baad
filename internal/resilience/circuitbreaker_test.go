package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func failingCalls(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Do(func() error { return errBackend })
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", FailureThreshold: 3})

	failingCalls(b, 2)
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}

	failingCalls(b, 1)
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}
}

func TestBreaker_RejectsWhileOpen(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	failingCalls(b, 1)

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn must not run while the breaker is open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3})
	failingCalls(b, 2)
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	// The counter restarted, so two more failures stay under the threshold.
	failingCalls(b, 2)
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond, ProbeCount: 2})
	failingCalls(b, 1)

	time.Sleep(5 * time.Millisecond)
	if got := b.State(); got != BreakerProbing {
		t.Fatalf("state after cooldown = %v, want probing", got)
	}

	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state after probes = %v, want closed", got)
	}
}

func TestBreaker_ReopensOnFailedProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond, ProbeCount: 3})
	failingCalls(b, 1)

	time.Sleep(5 * time.Millisecond)
	failingCalls(b, 1)
	if got := b.State(); got != BreakerOpen {
		t.Errorf("state after failed probe = %v, want open", got)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	failingCalls(b, 1)
	b.Reset()
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state after Reset = %v, want closed", got)
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Errorf("call after Reset: %v", err)
	}
}
