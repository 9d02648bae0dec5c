// Package parser turns free-form agent output into a structured [scene.Event].
//
// Parsing runs three tiers, first success wins:
//
//  1. Strict: a leading "[...]" annotation block followed by the spoken line,
//     e.g. `[TO: Bob, TONE: frustrated, *paces*] "I can't believe this!"`.
//  2. Salvage: no leading bracket at all. The reply is treated as speech,
//     the tone is guessed from a keyword vocabulary, and the first quoted
//     span (or the whole text) becomes the content.
//  3. Fallback: empty input is treated as a silent beat.
//
// [Parse] never panics and never returns nil. Degradation is reported in the
// event's Warning field.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/sceneforge/internal/scene"
)

// MaxInputBytes bounds how much of a reply is inspected. Longer replies are
// cut at a rune boundary and flagged.
const MaxInputBytes = 64 << 10

// Warning texts attached to degraded events.
const (
	WarnEmpty            = "empty response"
	WarnMissingTone      = "missing TONE field"
	WarnMissingPhrase    = `INTERRUPT without an after "phrase"`
	WarnMissingContent   = "missing dialog content"
	WarnUnbracketed      = "response did not follow the [annotation] format; salvaged as speech"
	WarnTruncated        = "response truncated"
	WarnInvalidUTF8      = "response contained invalid UTF-8"
	WarnIgnoredSilentTxt = "text after SILENT ignored"
)

// ToneKeywords is the vocabulary the salvage tier scans for, in no
// particular order; the earliest occurrence in the text wins.
var ToneKeywords = []string{
	"angry", "frustrated", "happy", "sad", "nervous",
	"excited", "calm", "surprised", "confused", "worried",
}

var (
	actionWord     = regexp.MustCompile(`\b(INTERRUPT|SILENT|REACT)(?:S|ING)?\b`)
	addresseeField = regexp.MustCompile(`(?i)\bTO:\s*([^,;*]*)`)
	toneField      = regexp.MustCompile(`(?i)\bTONE:\s*([^,;*]*)`)
	nonverbalSpan  = regexp.MustCompile(`\*([^*]*)\*`)
	afterPhrase    = regexp.MustCompile(`(?i)\bafter\s*(?:"([^"]*)"|“([^”]*)”|'([^']*)')`)
	quotedSpan     = regexp.MustCompile(`"([^"]*)"|“([^”]*)”`)
	toneKeyword    = regexp.MustCompile(`\b(` + strings.Join(ToneKeywords, "|") + `)\b`)
)

// Parse extracts a [scene.Event] from raw. It is pure: equal inputs yield
// equal events.
func Parse(raw string) scene.Event {
	var w warnings
	text := raw
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
		w.add(WarnInvalidUTF8)
	}
	if len(text) > MaxInputBytes {
		text = truncate(text, MaxInputBytes)
		w.add(WarnTruncated)
	}
	text = strings.TrimSpace(text)

	if text == "" {
		w.add(WarnEmpty)
		return scene.Silent{Annotation: scene.Annotation{Tone: scene.NeutralTone, Warning: w.String()}}
	}

	if body, rest, ok := splitAnnotation(text); ok {
		return parseStrict(body, rest, w)
	}
	return salvage(text, w)
}

// splitAnnotation returns the body of a leading bracket block and the text
// after it. A ']' inside a double-quoted span does not close the block.
func splitAnnotation(text string) (body, rest string, ok bool) {
	if !strings.HasPrefix(text, "[") {
		return "", "", false
	}
	inQuote := false
	for i := 1; i < len(text); i++ {
		switch text[i] {
		case '"':
			inQuote = !inQuote
		case ']':
			if !inQuote {
				return text[1:i], text[i+1:], true
			}
		}
	}
	return "", "", false
}

func parseStrict(body, rest string, w warnings) scene.Event {
	after := firstGroup(afterPhrase, body)
	// Keywords become separators so they never leak into TO or TONE.
	stripped := afterPhrase.ReplaceAllString(body, ",")
	action := detectAction(quotedSpan.ReplaceAllString(stripped, ","))
	fields := actionWord.ReplaceAllString(stripped, ",")

	ann := scene.Annotation{
		Tone:      firstGroup(toneField, fields),
		Nonverbal: firstGroup(nonverbalSpan, body),
	}
	if ann.Tone == "" {
		ann.Tone = scene.NeutralTone
		if action != scene.ActionSilent {
			w.add(WarnMissingTone)
		}
	}
	target := firstGroup(addresseeField, fields)
	content := stripQuotes(strings.TrimSpace(rest))

	switch action {
	case scene.ActionSilent:
		if content != "" {
			w.add(WarnIgnoredSilentTxt)
		}
		ann.Warning = w.String()
		return scene.Silent{Annotation: ann}

	case scene.ActionReact:
		ann.Warning = w.String()
		return scene.React{Annotation: ann, Target: target, Content: content}

	case scene.ActionInterrupt:
		if after == "" {
			w.add(WarnMissingPhrase)
		}
		if content == "" {
			w.add(WarnMissingContent)
		}
		ann.Warning = w.String()
		return scene.Interrupt{Annotation: ann, Target: target, After: after, Content: content}

	default:
		if content == "" {
			w.add(WarnMissingContent)
		}
		ann.Warning = w.String()
		return scene.Speak{Annotation: ann, Target: target, Content: content}
	}
}

// detectAction applies keyword precedence INTERRUPT > SILENT > REACT > speak.
// Keywords are uppercase whole words anywhere in body, which must already
// have its quoted spans removed. A tone of "silent fury" stays speech.
func detectAction(body string) scene.Action {
	var seen [3]bool
	for _, m := range actionWord.FindAllStringSubmatch(body, -1) {
		switch m[1] {
		case "INTERRUPT":
			seen[0] = true
		case "SILENT":
			seen[1] = true
		case "REACT":
			seen[2] = true
		}
	}
	switch {
	case seen[0]:
		return scene.ActionInterrupt
	case seen[1]:
		return scene.ActionSilent
	case seen[2]:
		return scene.ActionReact
	default:
		return scene.ActionSpeak
	}
}

func salvage(text string, w warnings) scene.Event {
	w.add(WarnUnbracketed)

	tone := scene.NeutralTone
	if m := toneKeyword.FindString(strings.ToLower(text)); m != "" {
		tone = m
	}
	content := text
	if q := firstQuoted(text); q != "" {
		content = q
	}
	return scene.Speak{
		Annotation: scene.Annotation{Tone: tone, Warning: w.String()},
		Content:    content,
	}
}

// firstGroup returns the first non-empty capture group of re's first match
// in s, trimmed.
func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	for _, g := range m[min(1, len(m)):] {
		if g = strings.TrimSpace(g); g != "" {
			return g
		}
	}
	return ""
}

// firstQuoted returns the trimmed contents of the first double-quoted span,
// or "" when there is none.
func firstQuoted(s string) string {
	return firstGroup(quotedSpan, s)
}

// stripQuotes removes one layer of matching surrounding quotes.
func stripQuotes(s string) string {
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}}
	for _, p := range pairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}

func truncate(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// warnings accumulates degradation notes in order.
type warnings []string

func (w *warnings) add(msg string) { *w = append(*w, msg) }

func (w warnings) String() string { return strings.Join(w, "; ") }
