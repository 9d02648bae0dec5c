package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/sceneforge/internal/scene"
)

// Phrase defaults.
const (
	DefaultPhraseThreshold = 0.92
	DefaultPhraseLookback  = 3
)

// PhraseOption configures a [Phrase] oracle.
type PhraseOption func(*Phrase)

// WithThreshold sets the minimum Jaro-Winkler similarity for a fuzzy match.
// Values outside (0, 1] are ignored.
func WithThreshold(t float64) PhraseOption {
	return func(p *Phrase) {
		if t > 0 && t <= 1 {
			p.threshold = t
		}
	}
}

// WithLookback sets how many of the latest dialog entries are inspected.
func WithLookback(n int) PhraseOption {
	return func(p *Phrase) {
		if n > 0 {
			p.lookback = n
		}
	}
}

// Phrase reports done once a recent line of dialog contains one of its
// closing phrases. Matching is case- and punctuation-insensitive and
// tolerates small wording or spelling drift through Jaro-Winkler similarity
// over word windows.
type Phrase struct {
	phrases   []string
	tokens    [][]string
	threshold float64
	lookback  int
}

var _ Oracle = (*Phrase)(nil)

// NewPhrase builds a [Phrase] oracle. At least one non-blank phrase is
// required.
func NewPhrase(phrases []string, opts ...PhraseOption) (*Phrase, error) {
	p := &Phrase{threshold: DefaultPhraseThreshold, lookback: DefaultPhraseLookback}
	for _, ph := range phrases {
		toks := tokens(ph)
		if len(toks) == 0 {
			continue
		}
		p.phrases = append(p.phrases, strings.TrimSpace(ph))
		p.tokens = append(p.tokens, toks)
	}
	if len(p.phrases) == 0 {
		return nil, errors.New("oracle: at least one closing phrase is required")
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Evaluate implements [Oracle].
func (p *Phrase) Evaluate(_ context.Context, entries []scene.Entry, _ scene.Config) (Verdict, error) {
	for _, d := range recentDialogs(entries, p.lookback) {
		line := tokens(d.Content)
		if len(line) == 0 {
			continue
		}
		for i, want := range p.tokens {
			if score := bestWindowScore(line, want); score >= p.threshold {
				return Verdict{
					Done:   true,
					Reason: fmt.Sprintf("%s said %q (similarity %.2f)", d.Speaker, p.phrases[i], score),
				}, nil
			}
		}
	}
	return Verdict{}, nil
}

// minFuzzyLen is the shortest phrase, in bytes without spaces, that is
// matched fuzzily. Shorter phrases must appear verbatim.
const minFuzzyLen = 6

// bestWindowScore compares phrase against every run of len(phrase)-1 to
// len(phrase)+1 consecutive words of line, both as spaced text and
// concatenated, and returns the best Jaro-Winkler similarity.
func bestWindowScore(line, phrase []string) float64 {
	full := strings.Join(phrase, " ")
	concat := strings.Join(phrase, "")

	if len(concat) < minFuzzyLen {
		for start := 0; start+len(phrase) <= len(line); start++ {
			if strings.Join(line[start:start+len(phrase)], " ") == full {
				return 1
			}
		}
		return 0
	}

	var best float64
	for size := max(1, len(phrase)-1); size <= len(phrase)+1; size++ {
		for start := 0; start+size <= len(line); start++ {
			win := line[start : start+size]
			if s := matchr.JaroWinkler(strings.Join(win, " "), full, false); s > best {
				best = s
			}
			if size > 1 || len(phrase) > 1 {
				if s := matchr.JaroWinkler(strings.Join(win, ""), concat, false); s > best {
					best = s
				}
			}
			if best == 1 {
				return best
			}
		}
	}
	return best
}
