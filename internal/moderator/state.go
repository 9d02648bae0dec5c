package moderator

// State is the lifecycle state of one scene run.
type State int

const (
	StateValidating State = iota
	StateRunning
	StateCompleted
	StateMaxBeatsReached
	StateFailed
	StateCancelled
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateMaxBeatsReached:
		return "max_beats_reached"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s >= StateCompleted
}
