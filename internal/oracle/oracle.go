// Package oracle decides when a scene's narrative goal has been reached.
//
// The moderator consults an [Oracle] after every beat. Implementations must
// not modify the entries they are given. [Never] reproduces the plain
// beat-limited behaviour; [Phrase] and [LLMJudge] detect completion from the
// transcript itself.
package oracle

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/sceneforge/internal/scene"
)

// Verdict is the outcome of one evaluation.
type Verdict struct {
	// Done reports that the scene should stop.
	Done bool

	// Reason is a short human-readable explanation. Optional.
	Reason string
}

// Oracle evaluates the transcript so far against the scene config.
type Oracle interface {
	Evaluate(ctx context.Context, entries []scene.Entry, cfg scene.Config) (Verdict, error)
}

// Func adapts a function to [Oracle].
type Func func(ctx context.Context, entries []scene.Entry, cfg scene.Config) (Verdict, error)

// Evaluate calls f.
func (f Func) Evaluate(ctx context.Context, entries []scene.Entry, cfg scene.Config) (Verdict, error) {
	return f(ctx, entries, cfg)
}

// Never is an [Oracle] that never signals completion, so scenes run until
// their beat limit.
type Never struct{}

// Evaluate always returns a not-done verdict.
func (Never) Evaluate(context.Context, []scene.Entry, scene.Config) (Verdict, error) {
	return Verdict{}, nil
}

// Any combines oracles: the first one reporting done wins. Errors from
// individual oracles are joined and returned alongside a not-done verdict
// only when no oracle reported done.
func Any(oracles ...Oracle) Oracle {
	return Func(func(ctx context.Context, entries []scene.Entry, cfg scene.Config) (Verdict, error) {
		var errs []error
		for _, o := range oracles {
			v, err := o.Evaluate(ctx, entries, cfg)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if v.Done {
				return v, nil
			}
		}
		return Verdict{}, errors.Join(errs...)
	})
}

// recentDialogs returns up to n of the latest dialog entries, newest first.
func recentDialogs(entries []scene.Entry, n int) []scene.Dialog {
	var out []scene.Dialog
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		if d, ok := entries[i].(scene.Dialog); ok {
			out = append(out, d)
		}
	}
	return out
}

// tokens lower-cases s and splits it into letter/digit runs.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r == '\'' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 0x7f
}
