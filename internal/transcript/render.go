package transcript

import (
	"strconv"
	"strings"

	"github.com/MrWong99/sceneforge/internal/scene"
)

// Render formats entries one per line:
//
//	[beat 2] alice (to bob, frustrated) *slams the table*: "You never paid!"
//	[beat 2] bob interrupts after "never paid" (angry): "That's a lie!"
//	[beat 2] carol reacts (amused) *raises an eyebrow*
//	[beat 0] ~ Thunder rolls outside.
//	[beat 3] [system] dave could not respond this beat
//
// An empty slice renders as the empty string.
func Render(entries []scene.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeEntry(&b, e)
	}
	return b.String()
}

// RenderEntry formats a single entry without a trailing newline.
func RenderEntry(e scene.Entry) string {
	var b strings.Builder
	writeEntry(&b, e)
	return b.String()
}

// RenderRecent renders the last n entries of l.
func (l *Log) RenderRecent(n int) string {
	return Render(l.Recent(n))
}

func writeEntry(b *strings.Builder, e scene.Entry) {
	if e == nil {
		return
	}
	b.WriteString("[beat ")
	b.WriteString(strconv.Itoa(e.Beat()))
	b.WriteString("] ")

	switch v := e.(type) {
	case scene.Dialog:
		writeDialog(b, v)
	case scene.WorldEvent:
		b.WriteString("~ ")
		b.WriteString(v.Description)
	case scene.SystemNotice:
		b.WriteString("[system] ")
		b.WriteString(v.Message)
	}
}

func writeDialog(b *strings.Builder, d scene.Dialog) {
	b.WriteString(d.Speaker)
	switch d.Action {
	case scene.ActionInterrupt:
		b.WriteString(" interrupts")
		if d.InterruptAfter != "" {
			b.WriteString(" after ")
			b.WriteString(strconv.Quote(d.InterruptAfter))
		}
	case scene.ActionReact:
		b.WriteString(" reacts")
	}

	var meta []string
	if d.Target != "" {
		meta = append(meta, "to "+d.Target)
	}
	if d.Tone != "" {
		meta = append(meta, d.Tone)
	}
	if len(meta) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(meta, ", "))
		b.WriteByte(')')
	}
	if d.Nonverbal != "" {
		b.WriteString(" *")
		b.WriteString(d.Nonverbal)
		b.WriteByte('*')
	}
	if d.Content != "" {
		b.WriteString(": \"")
		b.WriteString(d.Content)
		b.WriteByte('"')
	}
}
