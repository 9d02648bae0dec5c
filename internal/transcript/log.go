// Package transcript holds the append-only record of a scene run and renders
// it back into text for prompts and output.
//
// A [Log] is owned by exactly one moderator run and is not safe for
// concurrent use. Callers outside the run only ever see copies returned by
// [Log.Snapshot] or [Log.Recent].
package transcript

import (
	"errors"
	"fmt"

	"github.com/MrWong99/sceneforge/internal/scene"
)

var (
	// ErrOutOfOrder is returned when an entry would break beat or timestamp
	// ordering.
	ErrOutOfOrder = errors.New("transcript: entry out of order")

	// ErrInvalidEntry is returned for nil entries and dialog entries whose
	// action may not appear in a transcript.
	ErrInvalidEntry = errors.New("transcript: invalid entry")
)

// Log is an ordered, append-only list of [scene.Entry] values. Entries are
// ordered by beat index, then by timestamp within a beat.
type Log struct {
	entries []scene.Entry
}

// New returns an empty [Log]. capacity is a sizing hint.
func New(capacity int) *Log {
	return &Log{entries: make([]scene.Entry, 0, max(capacity, 0))}
}

// Append adds entries in order. Either all entries are appended or, on the
// first violation, none are and the error says which one failed.
func (l *Log) Append(entries ...scene.Entry) error {
	last := l.Last()
	for i, e := range entries {
		if err := check(last, e); err != nil {
			return fmt.Errorf("transcript: append entry %d: %w", i, err)
		}
		last = e
	}
	l.entries = append(l.entries, entries...)
	return nil
}

func check(prev, e scene.Entry) error {
	if e == nil {
		return ErrInvalidEntry
	}
	if d, ok := e.(scene.Dialog); ok {
		switch d.Action {
		case scene.ActionSpeak, scene.ActionInterrupt, scene.ActionReact:
		default:
			return fmt.Errorf("%w: dialog action %q", ErrInvalidEntry, d.Action)
		}
	}
	if prev == nil {
		return nil
	}
	if e.Beat() < prev.Beat() {
		return fmt.Errorf("%w: beat %d after beat %d", ErrOutOfOrder, e.Beat(), prev.Beat())
	}
	if e.Beat() == prev.Beat() && e.Time().Before(prev.Time()) {
		return fmt.Errorf("%w: timestamp %s before %s in beat %d",
			ErrOutOfOrder, e.Time().Format("15:04:05.000"), prev.Time().Format("15:04:05.000"), e.Beat())
	}
	return nil
}

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.entries) }

// Last returns the most recent entry, or nil when the log is empty.
func (l *Log) Last() scene.Entry {
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[len(l.entries)-1]
}

// Recent returns a copy of the last n entries, oldest first. n <= 0 yields
// an empty slice.
func (l *Log) Recent(n int) []scene.Entry {
	if n <= 0 {
		return []scene.Entry{}
	}
	start := max(len(l.entries)-n, 0)
	out := make([]scene.Entry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Snapshot returns a copy of every entry in order.
func (l *Log) Snapshot() []scene.Entry {
	out := make([]scene.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
