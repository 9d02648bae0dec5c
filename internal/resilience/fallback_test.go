package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFallbackGroup_PrimarySucceeds(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup("a", "primary", FallbackConfig{})
	fg.AddFallback("secondary", "b")

	var seen []string
	err := fg.Execute(func(v string) error {
		seen = append(seen, v)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != "a" {
		t.Errorf("tried %v, want [a]", seen)
	}
}

func TestFallbackGroup_FailsOver(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup("a", "primary", FallbackConfig{})
	fg.AddFallback("secondary", "b")

	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		if v == "a" {
			return "", errTest
		}
		return "served by " + v, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "served by b" {
		t.Errorf("result = %q", got)
	}
}

func TestFallbackGroup_AllFailed(t *testing.T) {
	t.Parallel()
	errB := errors.New("b down")
	fg := NewFallbackGroup("a", "primary", FallbackConfig{})
	fg.AddFallback("secondary", "b")

	err := fg.Execute(func(v string) error {
		if v == "b" {
			return errB
		}
		return errTest
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errTest) || !errors.Is(err, errB) {
		t.Errorf("err = %v should wrap every entry's error", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup("a", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fg.AddFallback("secondary", "b")

	calls := map[string]int{}
	run := func() {
		_ = fg.Execute(func(v string) error {
			calls[v]++
			if v == "a" {
				return errTest
			}
			return nil
		})
	}
	run()
	run()
	run()

	if calls["a"] != 1 {
		t.Errorf("primary called %d times, want 1 before its breaker opened", calls["a"])
	}
	if calls["b"] != 3 {
		t.Errorf("secondary called %d times, want 3", calls["b"])
	}

	states := fg.States()
	if len(states) != 2 || states[0].State != StateOpen || states[1].State != StateClosed {
		t.Errorf("states = %+v", states)
	}
	if fg.Primary() != "a" {
		t.Errorf("Primary = %q", fg.Primary())
	}
}
