package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/sceneforge/internal/resilience"
)

// Pinger is anything that can report its own reachability, such as a
// store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker wraps p as a [Checker].
func PingChecker(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// ProvidersChecker fails when every entry reported by states has an open
// circuit breaker, i.e. no LLM provider would accept a request.
func ProvidersChecker(name string, states func() []resilience.EntryState) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		entries := states()
		if len(entries) == 0 {
			return errors.New("no providers configured")
		}
		var open []string
		for _, e := range entries {
			if e.State != resilience.StateOpen {
				return nil
			}
			open = append(open, e.Name)
		}
		return fmt.Errorf("all circuits open: %s", strings.Join(open, ", "))
	}}
}
