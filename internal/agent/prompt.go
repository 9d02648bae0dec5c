package agent

import (
	"fmt"
	"strings"

	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/internal/transcript"
)

// ResponseFormat is the instruction block telling a model how to shape its
// reply so the parser can read it.
const ResponseFormat = `Answer with one annotation block in square brackets, then your spoken line in double quotes.
Inside the brackets, separate fields with commas:
- TO: <name> when you address someone directly
- TONE: <word or short phrase> for how you say it
- *<action>* for a physical action or expression
- INTERRUPT after "<their words>" to cut into someone's line
- REACT for a wordless reaction, SILENT to say nothing this beat

Examples:
[TO: Bob, TONE: frustrated] "I can't believe this happened!"
[INTERRUPT after "you never paid", TONE: angry] "That's a lie!"
[REACT, TONE: amused, *raises an eyebrow*]
[SILENT, *crosses arms*]`

// emptyTranscript stands in for the recent window on the first beat.
const emptyTranscript = "(nothing has happened yet)"

// SystemPrompt builds the persona prompt for c. others lists the other
// participants in the scene; c itself is skipped if present.
func SystemPrompt(c Character, others []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s.", c.DisplayName())
	if p := strings.TrimSpace(c.Personality); p != "" {
		sb.WriteString(" ")
		sb.WriteString(p)
	}
	if g := strings.TrimSpace(c.Goal); g != "" {
		sb.WriteString("\n\n## Your Goal\n")
		sb.WriteString(g)
	}

	var company []string
	for _, o := range others {
		if o != c.ID {
			company = append(company, o)
		}
	}
	if len(company) > 0 {
		sb.WriteString("\n\n## Others In The Scene\n")
		sb.WriteString(strings.Join(company, ", "))
	}

	if len(c.BehaviorRules) > 0 {
		sb.WriteString("\n\n## Rules\n")
		for i, r := range c.BehaviorRules {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
		}
		sb.WriteString("Never break character.")
	}

	sb.WriteString("\n\n## Response Format\n")
	sb.WriteString(ResponseFormat)
	return sb.String()
}

// RenderSceneUpdate renders the beat context every participant receives.
// It is pure and participant-independent.
func RenderSceneUpdate(bc scene.BeatContext) string {
	var sb strings.Builder

	sb.WriteString("## Scene\n")
	sb.WriteString(bc.Prompt)

	fmt.Fprintf(&sb, "\n\n## Beat\nBeat %d of %d.", bc.Beat+1, bc.MaxBeats)

	sb.WriteString("\n\n## Recent Transcript\n")
	if bc.Recent != "" {
		sb.WriteString(bc.Recent)
	} else {
		sb.WriteString(emptyTranscript)
	}
	if bc.Last != nil {
		sb.WriteString("\n\nLast: ")
		sb.WriteString(transcript.RenderEntry(bc.Last))
	}

	if bc.Note != "" || bc.Opener != "" {
		sb.WriteString("\n\n## Moderator")
		if bc.Opener != "" {
			fmt.Fprintf(&sb, "\n%s opens the scene. Everyone else may react or stay silent.", bc.Opener)
		}
		if bc.Note != "" {
			sb.WriteString("\n")
			sb.WriteString(bc.Note)
		}
	}
	return sb.String()
}

// Prompter turns a beat context into the prompt for one participant.
type Prompter interface {
	Prompt(participantID string, bc scene.BeatContext) string
}

// PrompterFunc adapts a function to [Prompter].
type PrompterFunc func(participantID string, bc scene.BeatContext) string

// Prompt calls f.
func (f PrompterFunc) Prompt(participantID string, bc scene.BeatContext) string {
	return f(participantID, bc)
}

// DefaultPrompter sends every participant the same [RenderSceneUpdate] text.
var DefaultPrompter Prompter = PrompterFunc(func(_ string, bc scene.BeatContext) string {
	return RenderSceneUpdate(bc)
})
