package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/internal/transcript"
)

// Markdown renders res as a human-readable report. Sections without content
// are omitted.
func Markdown(res scene.Result) []byte {
	m := res.Metadata
	var b strings.Builder

	fmt.Fprintf(&b, "# Scene %s\n\n", m.SceneID)

	b.WriteString("| | |\n|---|---|\n")
	row(&b, "Run", m.RunID)
	row(&b, "Outcome", outcome(res))
	row(&b, "Beats", fmt.Sprint(m.TotalBeats))
	row(&b, "Participants", fmt.Sprint(m.ParticipantCount))
	if m.Usage != nil {
		row(&b, "Tokens", fmt.Sprintf("%d (%d prompt, %d completion)",
			m.Usage.TotalTokens, m.Usage.PromptTokens, m.Usage.CompletionTokens))
	}
	if !m.StartedAt.IsZero() {
		row(&b, "Started", m.StartedAt.UTC().Format(time.RFC3339))
	}
	if !m.StartedAt.IsZero() && !m.FinishedAt.IsZero() {
		row(&b, "Duration", m.FinishedAt.Sub(m.StartedAt).Round(time.Millisecond).String())
	}

	if res.Err != nil {
		fmt.Fprintf(&b, "\n## Error\n\n`%s`: %s\n", res.Err.Code, res.Err.Message)
	}

	b.WriteString("\n## Transcript\n\n")
	if len(res.Entries) == 0 {
		b.WriteString("_Nothing was said._\n")
	} else {
		beat := -1
		for _, e := range res.Entries {
			if e.Beat() != beat {
				beat = e.Beat()
				fmt.Fprintf(&b, "\n### Beat %d\n\n", beat+1)
			}
			b.WriteString("- ")
			b.WriteString(entryLine(e))
			b.WriteByte('\n')
		}
	}

	if len(m.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range m.Errors {
			who := e.Participant
			if who == "" {
				who = "moderator"
			}
			fmt.Fprintf(&b, "- beat %d, %s: %s\n", e.Beat+1, who, e.Reason)
		}
	}

	if len(m.Warnings) > 0 {
		b.WriteString("\n## Parse Warnings\n\n")
		for _, w := range m.Warnings {
			fmt.Fprintf(&b, "- beat %d, %s: %s\n", w.Beat+1, w.Participant, w.Warning)
		}
	}

	if len(m.Trace) > 0 {
		b.WriteString("\n## Trace\n\n```text\n")
		for _, line := range m.Trace {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("```\n")
	}
	return []byte(b.String())
}

func row(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", key, strings.ReplaceAll(value, "|", `\|`))
}

func outcome(res scene.Result) string {
	m := res.Metadata
	s := string(m.CompletionReason)
	if m.OracleReason != "" {
		s += ": " + m.OracleReason
	}
	if !res.Success {
		s += " (failed)"
	}
	return s
}

// entryLine renders e without its beat prefix, which the section heading
// already carries.
func entryLine(e scene.Entry) string {
	line := transcript.RenderEntry(e)
	if i := strings.Index(line, "] "); i >= 0 {
		line = line[i+2:]
	}
	return line
}
