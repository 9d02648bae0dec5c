// Package address maps the free-text addressee an agent writes in its
// annotation ("TO: the old merchant", "TO: Oskr") to a participant ID.
//
// Resolution runs three passes, first hit wins:
//
//  1. Name index: the lowercase ID, full name, and every name word of at
//     least three letters. The target is looked up whole, then scanned for
//     the longest contained key, so "Oskar the merchant" finds "oskar".
//  2. Phonetic: Double Metaphone codes of target and name words overlap and
//     the Jaro-Winkler similarity reaches the phonetic threshold.
//  3. Fuzzy: Jaro-Winkler alone reaches the higher fuzzy threshold.
package address

import (
	"slices"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/sceneforge/internal/agent"
)

const (
	DefaultPhoneticThreshold = 0.70
	DefaultFuzzyThreshold    = 0.85

	// minWordLen is the shortest name fragment that is indexed on its own.
	minWordLen = 3
)

// stopWords never identify anyone on their own.
var stopWords = map[string]bool{"the": true, "and": true, "von": true, "van": true, "der": true}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a candidate
// whose phonetic codes overlap the target's.
func WithPhoneticThreshold(t float64) Option {
	return func(r *Resolver) { r.phoneticThreshold = t }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a candidate
// without phonetic overlap.
func WithFuzzyThreshold(t float64) Option {
	return func(r *Resolver) { r.fuzzyThreshold = t }
}

type candidate struct {
	key string
	id  string
}

// person is the pre-tokenised name of one participant.
type person struct {
	id     string
	full   string
	tokens []string
	codes  map[string]struct{}
}

// Resolver is read-only after construction and safe for concurrent use.
type Resolver struct {
	index  map[string]string
	sorted []candidate
	people []person

	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New indexes cast. A name fragment shared by two characters is dropped
// from the index so it never resolves to the wrong one.
func New(cast []agent.Character, opts ...Option) *Resolver {
	r := &Resolver{
		index:             make(map[string]string),
		phoneticThreshold: DefaultPhoneticThreshold,
		fuzzyThreshold:    DefaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(r)
	}

	ambiguous := make(map[string]bool)
	add := func(key, id string) {
		if key == "" || ambiguous[key] {
			return
		}
		if prev, ok := r.index[key]; ok && prev != id {
			delete(r.index, key)
			ambiguous[key] = true
			return
		}
		r.index[key] = id
	}

	for _, c := range cast {
		if c.ID == "" {
			continue
		}
		id := strings.ToLower(c.ID)
		name := strings.ToLower(strings.TrimSpace(c.DisplayName()))
		add(id, c.ID)
		add(name, c.ID)
		tokens := words(name)
		for _, w := range tokens {
			if len(w) >= minWordLen {
				add(w, c.ID)
			}
		}
		r.people = append(r.people, person{
			id:     c.ID,
			full:   name,
			tokens: tokens,
			codes:  codesFor(append(slices.Clone(tokens), id)),
		})
	}

	r.sorted = make([]candidate, 0, len(r.index))
	for key, id := range r.index {
		r.sorted = append(r.sorted, candidate{key: key, id: id})
	}
	slices.SortFunc(r.sorted, func(a, b candidate) int {
		if d := len(b.key) - len(a.key); d != 0 {
			return d
		}
		return strings.Compare(a.key, b.key)
	})
	return r
}

// Resolve returns the participant ID target refers to.
func (r *Resolver) Resolve(target string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(target))
	if lower == "" {
		return "", false
	}
	if id, ok := r.index[lower]; ok {
		return id, true
	}
	for _, c := range r.sorted {
		if containsWord(lower, c.key) {
			return c.id, true
		}
	}
	return r.fuzzy(lower)
}

func (r *Resolver) fuzzy(lower string) (string, bool) {
	tokens := words(lower)
	if len(tokens) == 0 {
		return "", false
	}
	codes := codesFor(tokens)

	var (
		bestID       string
		bestScore    float64
		bestPhonetic bool
		tied         bool
	)
	for _, p := range r.people {
		score := bestJW(tokens, p.tokens, lower, p.full)
		phonetic := overlaps(codes, p.codes)
		threshold := r.fuzzyThreshold
		if phonetic {
			threshold = r.phoneticThreshold
		}
		if score < threshold {
			continue
		}
		switch {
		case phonetic && !bestPhonetic, phonetic == bestPhonetic && score > bestScore:
			bestID, bestScore, bestPhonetic, tied = p.id, score, phonetic, false
		case phonetic == bestPhonetic && score == bestScore:
			tied = true
		}
	}
	if bestID == "" || tied {
		return "", false
	}
	return bestID, true
}

// words splits s into fields without stop words.
func words(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// containsWord reports whether key occurs in s on word boundaries.
func containsWord(s, key string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], key)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(key)
		if (start == 0 || !isLetter(s[start-1])) && (end == len(s) || !isLetter(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}

func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// bestJW is the highest Jaro-Winkler score over the full strings, the
// space-stripped strings, and every token pair.
func bestJW(inTokens, nameTokens []string, in, name string) float64 {
	score := matchr.JaroWinkler(in, name, false)
	if len(inTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}
	for _, a := range inTokens {
		for _, b := range nameTokens {
			if s := matchr.JaroWinkler(a, b, false); s > score {
				score = s
			}
		}
	}
	return score
}
