package scene

import "time"

// EntryKind discriminates the [Entry] variants.
type EntryKind string

const (
	KindDialog       EntryKind = "dialog"
	KindWorldEvent   EntryKind = "world_event"
	KindSystemNotice EntryKind = "system_notice"
)

// Entry is one line of the scene transcript. It is a closed union over
// [Dialog], [WorldEvent], and [SystemNotice].
type Entry interface {
	Kind() EntryKind
	Beat() int
	Time() time.Time
	isEntry()
}

// Dialog is an accepted participant contribution. Action is never
// [ActionSilent].
type Dialog struct {
	Speaker        string
	Action         Action
	Target         string
	Tone           string
	Content        string
	Nonverbal      string
	InterruptAfter string
	BeatIndex      int
	Timestamp      time.Time
}

// WorldEvent is a narrated change in the scene not attributed to a participant.
type WorldEvent struct {
	Description string
	BeatIndex   int
	Timestamp   time.Time
}

// SystemNotice is a moderator message, e.g. a participant failing to respond.
type SystemNotice struct {
	Message   string
	BeatIndex int
	Timestamp time.Time
}

func (Dialog) Kind() EntryKind       { return KindDialog }
func (WorldEvent) Kind() EntryKind   { return KindWorldEvent }
func (SystemNotice) Kind() EntryKind { return KindSystemNotice }

func (e Dialog) Beat() int       { return e.BeatIndex }
func (e WorldEvent) Beat() int   { return e.BeatIndex }
func (e SystemNotice) Beat() int { return e.BeatIndex }

func (e Dialog) Time() time.Time       { return e.Timestamp }
func (e WorldEvent) Time() time.Time   { return e.Timestamp }
func (e SystemNotice) Time() time.Time { return e.Timestamp }

func (Dialog) isEntry()       {}
func (WorldEvent) isEntry()   {}
func (SystemNotice) isEntry() {}

// NewDialog converts a parsed event from speaker into a transcript entry.
// It returns false for [Silent] events, which never become entries.
func NewDialog(speaker string, ev Event, beat int, at time.Time) (Dialog, bool) {
	if ev == nil || ev.Action() == ActionSilent {
		return Dialog{}, false
	}
	ann := ev.Annotations()
	d := Dialog{
		Speaker:   speaker,
		Action:    ev.Action(),
		Target:    ev.Addressee(),
		Tone:      ann.Tone,
		Content:   ev.Utterance(),
		Nonverbal: ann.Nonverbal,
		BeatIndex: beat,
		Timestamp: at,
	}
	if in, ok := ev.(Interrupt); ok {
		d.InterruptAfter = in.After
	}
	return d, true
}

// EntryRecord is the flat form of an [Entry] used for JSON output and
// database rows. Fields that do not apply to Kind are empty.
type EntryRecord struct {
	Seq            int       `json:"seq"`
	Kind           EntryKind `json:"kind"`
	Beat           int       `json:"beat"`
	Timestamp      time.Time `json:"timestamp"`
	Speaker        string    `json:"speaker,omitempty"`
	Action         Action    `json:"action,omitempty"`
	Target         string    `json:"target,omitempty"`
	Tone           string    `json:"tone,omitempty"`
	Content        string    `json:"content,omitempty"`
	Nonverbal      string    `json:"nonverbal,omitempty"`
	InterruptAfter string    `json:"interrupt_after,omitempty"`
	Text           string    `json:"text,omitempty"`
}

// ToRecord flattens e. seq is the entry's position in the transcript.
func ToRecord(seq int, e Entry) EntryRecord {
	r := EntryRecord{Seq: seq, Kind: e.Kind(), Beat: e.Beat(), Timestamp: e.Time()}
	switch v := e.(type) {
	case Dialog:
		r.Speaker = v.Speaker
		r.Action = v.Action
		r.Target = v.Target
		r.Tone = v.Tone
		r.Content = v.Content
		r.Nonverbal = v.Nonverbal
		r.InterruptAfter = v.InterruptAfter
	case WorldEvent:
		r.Text = v.Description
	case SystemNotice:
		r.Text = v.Message
	}
	return r
}

// FromRecord rebuilds an [Entry] from its flat form. Unknown kinds yield a
// [SystemNotice] carrying the record text; dialogs with an unknown or
// silent action are read back as speech.
func FromRecord(r EntryRecord) Entry {
	switch r.Kind {
	case KindDialog:
		if !r.Action.IsValid() || r.Action == ActionSilent {
			r.Action = ActionSpeak
		}
		return Dialog{
			Speaker:        r.Speaker,
			Action:         r.Action,
			Target:         r.Target,
			Tone:           r.Tone,
			Content:        r.Content,
			Nonverbal:      r.Nonverbal,
			InterruptAfter: r.InterruptAfter,
			BeatIndex:      r.Beat,
			Timestamp:      r.Timestamp,
		}
	case KindWorldEvent:
		return WorldEvent{Description: r.Text, BeatIndex: r.Beat, Timestamp: r.Timestamp}
	default:
		return SystemNotice{Message: r.Text, BeatIndex: r.Beat, Timestamp: r.Timestamp}
	}
}

// Records flattens entries in order.
func Records(entries []Entry) []EntryRecord {
	out := make([]EntryRecord, len(entries))
	for i, e := range entries {
		out[i] = ToRecord(i, e)
	}
	return out
}
