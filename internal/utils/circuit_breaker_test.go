package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerStateString(t *testing.T) {
	cases := []struct {
		state CircuitBreakerState
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{CircuitBreakerState(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("state %d: expected %q, got %q", tc.state, tc.want, got)
		}
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		CallTimeout:      time.Second,
	})

	failing := func(_ context.Context) error { return errors.New("backend down") }

	for i := 0; i < 2; i++ {
		if err := cb.Call(context.Background(), failing); err == nil {
			t.Fatal("expected call to fail")
		}
	}

	metrics := cb.GetMetrics()
	if metrics.State != StateOpen {
		t.Errorf("expected breaker to be open, got %s", metrics.State)
	}

	// Calls while open are rejected without reaching the backend.
	called := false
	err := cb.Call(context.Background(), func(_ context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("expected rejection while breaker is open")
	}
	if called {
		t.Error("backend must not be reached while breaker is open")
	}
}
