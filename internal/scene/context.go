package scene

// Moderator notes attached to a [BeatContext] as the scene progresses.
const (
	NoteMidpoint = "The scene is past its midpoint. Start steering toward the goal."
	NoteWrapUp   = "The scene is nearly over. Wrap up and resolve the goal."
)

// BeatContext is the read-only view every participant receives for one beat.
// It is built fresh each beat and discarded afterwards.
type BeatContext struct {
	// SceneID and Prompt are copied from the scene config.
	SceneID string
	Prompt  string

	// Participants lists everyone in the scene, in config order.
	Participants []string

	// Recent is the rendered window of the most recent transcript entries.
	Recent string

	// Last is the most recent transcript entry, or nil when the transcript
	// is empty.
	Last Entry

	// Note is the moderator guidance for this beat; empty early in the scene.
	Note string

	// Opener names the participant expected to open the scene. Only set on
	// beat 0.
	Opener string

	// Beat is the zero-based beat index and MaxBeats the configured ceiling.
	Beat     int
	MaxBeats int
}

// ModeratorNote returns the guidance string for beat out of maxBeats given
// the two progress thresholds. No note is produced before midpoint.
func ModeratorNote(beat, maxBeats int, midpoint, wrapUp float64) string {
	if maxBeats <= 0 {
		return ""
	}
	progress := float64(beat) / float64(maxBeats)
	switch {
	case progress >= wrapUp:
		return NoteWrapUp
	case progress >= midpoint:
		return NoteMidpoint
	default:
		return ""
	}
}
