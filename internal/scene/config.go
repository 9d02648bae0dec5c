// Package scene defines the data model shared by the sceneforge components:
// the immutable scene [Config], the per-beat [BeatContext], the parsed agent
// [Event] variants, the transcript [Entry] variants, and the final [Result].
//
// The package has no dependencies beyond the standard library so that the
// parser, transcript, moderator, and storage layers can all import it without
// cycles.
package scene

import (
	"errors"
	"fmt"
	"time"
)

// Defaults applied by [Config.WithDefaults].
const (
	DefaultMaxBeats      = 50
	DefaultWindowSize    = 10
	DefaultMidpointRatio = 0.6
	DefaultWrapUpRatio   = 0.8
	DefaultReplyTimeout  = 60 * time.Second
)

// ErrInvalidConfig is wrapped by every error returned from [Config.Validate].
var ErrInvalidConfig = errors.New("invalid scene config")

// Config is the immutable input to one scene run.
type Config struct {
	// ID identifies the scene. Required.
	ID string

	// Prompt is the scene setup and goal text shown to every participant each
	// beat. Required.
	Prompt string

	// Participants is the ordered list of participant identifiers. Required.
	// Uniqueness is assumed, not enforced.
	Participants []string

	// FirstResponder optionally names the participant expected to open the
	// scene on beat 0.
	FirstResponder string

	// MaxBeats caps the number of beats. Zero means [DefaultMaxBeats].
	MaxBeats int

	// OpeningEvents are world-event descriptions recorded at beat 0 before
	// any participant is invoked.
	OpeningEvents []string

	// WindowSize is how many recent transcript entries are rendered into each
	// beat's context. Zero means [DefaultWindowSize].
	WindowSize int

	// MidpointRatio is the beat-progress fraction at which the "past midpoint"
	// moderator note starts. Zero means [DefaultMidpointRatio].
	MidpointRatio float64

	// WrapUpRatio is the beat-progress fraction at which the "wrap up"
	// moderator note starts. Zero means [DefaultWrapUpRatio].
	WrapUpRatio float64
}

// WithDefaults returns a copy of c with zero-valued tunables replaced by the
// package defaults. The participant and opening-event slices are copied.
func (c Config) WithDefaults() Config {
	out := c
	out.Participants = append([]string(nil), c.Participants...)
	out.OpeningEvents = append([]string(nil), c.OpeningEvents...)
	if out.MaxBeats == 0 {
		out.MaxBeats = DefaultMaxBeats
	}
	if out.WindowSize == 0 {
		out.WindowSize = DefaultWindowSize
	}
	if out.MidpointRatio == 0 {
		out.MidpointRatio = DefaultMidpointRatio
	}
	if out.WrapUpRatio == 0 {
		out.WrapUpRatio = DefaultWrapUpRatio
	}
	return out
}

// Validate reports every problem with c as a single joined error. Each
// component wraps [ErrInvalidConfig].
func (c Config) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, fmt.Errorf("%w: id is required", ErrInvalidConfig))
	}
	if c.Prompt == "" {
		errs = append(errs, fmt.Errorf("%w: prompt is required", ErrInvalidConfig))
	}
	if len(c.Participants) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one participant is required", ErrInvalidConfig))
	}
	for i, p := range c.Participants {
		if p == "" {
			errs = append(errs, fmt.Errorf("%w: participants[%d] is empty", ErrInvalidConfig, i))
		}
	}
	if c.MaxBeats < 0 {
		errs = append(errs, fmt.Errorf("%w: max beats %d must be positive", ErrInvalidConfig, c.MaxBeats))
	}
	if c.WindowSize < 0 {
		errs = append(errs, fmt.Errorf("%w: window size %d must not be negative", ErrInvalidConfig, c.WindowSize))
	}
	if c.MidpointRatio < 0 || c.MidpointRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: midpoint ratio %.2f is out of range [0, 1]", ErrInvalidConfig, c.MidpointRatio))
	}
	if c.WrapUpRatio < 0 || c.WrapUpRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: wrap-up ratio %.2f is out of range [0, 1]", ErrInvalidConfig, c.WrapUpRatio))
	}
	if c.MidpointRatio > 0 && c.WrapUpRatio > 0 && c.WrapUpRatio < c.MidpointRatio {
		errs = append(errs, fmt.Errorf("%w: wrap-up ratio %.2f is below midpoint ratio %.2f", ErrInvalidConfig, c.WrapUpRatio, c.MidpointRatio))
	}
	return errors.Join(errs...)
}

// HasParticipant reports whether id is one of c's participants.
func (c Config) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}
