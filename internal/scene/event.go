package scene

// Action is the kind of contribution a participant makes in one beat.
type Action string

const (
	ActionSpeak     Action = "speak"
	ActionInterrupt Action = "interrupt"
	ActionSilent    Action = "silent"
	ActionReact     Action = "react"
)

// IsValid reports whether a is one of the four known actions.
func (a Action) IsValid() bool {
	switch a {
	case ActionSpeak, ActionInterrupt, ActionSilent, ActionReact:
		return true
	}
	return false
}

// NeutralTone is the tone used when none could be recovered from a reply.
const NeutralTone = "neutral"

// Annotation carries the delivery details every parsed event has.
type Annotation struct {
	// Tone is the emotional-tone label. Never empty on parser output;
	// [NeutralTone] when unrecoverable.
	Tone string

	// Nonverbal is an optional physical description such as "crosses arms".
	Nonverbal string

	// Warning is set whenever extraction degraded from the strict grammar.
	// Multiple problems are joined with "; ".
	Warning string
}

// Annotations returns a. It is promoted into every [Event] variant.
func (a Annotation) Annotations() Annotation { return a }

// Event is a structured reply extracted from one participant's raw output.
// It is a closed union: the only implementations are [Speak], [Interrupt],
// [React], and [Silent].
type Event interface {
	// Action returns the variant's action kind.
	Action() Action

	// Annotations returns the tone, nonverbal, and warning fields.
	Annotations() Annotation

	// Addressee returns the participant the event is directed at, if any.
	Addressee() string

	// Utterance returns the spoken content, possibly empty.
	Utterance() string

	isEvent()
}

// Speak is ordinary dialog.
type Speak struct {
	Annotation
	Target  string
	Content string
}

// Interrupt is dialog that cuts into another participant's line. After is
// the quoted phrase the interruption follows; it may be empty, in which case
// Warning says so.
type Interrupt struct {
	Annotation
	Target  string
	After   string
	Content string
}

// React is a nonverbal or brief reaction. Content is usually empty.
type React struct {
	Annotation
	Target  string
	Content string
}

// Silent is a deliberate non-contribution. It never reaches the transcript.
type Silent struct {
	Annotation
}

func (Speak) Action() Action     { return ActionSpeak }
func (Interrupt) Action() Action { return ActionInterrupt }
func (React) Action() Action     { return ActionReact }
func (Silent) Action() Action    { return ActionSilent }

func (e Speak) Addressee() string     { return e.Target }
func (e Interrupt) Addressee() string { return e.Target }
func (e React) Addressee() string     { return e.Target }
func (Silent) Addressee() string      { return "" }

func (e Speak) Utterance() string     { return e.Content }
func (e Interrupt) Utterance() string { return e.Content }
func (e React) Utterance() string     { return e.Content }
func (Silent) Utterance() string      { return "" }

func (Speak) isEvent()     {}
func (Interrupt) isEvent() {}
func (React) isEvent()     {}
func (Silent) isEvent()    {}
