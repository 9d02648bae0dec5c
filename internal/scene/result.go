package scene

import "time"

// CompletionReason says why a run stopped.
type CompletionReason string

const (
	ReasonGoalAchieved CompletionReason = "goal_achieved"
	ReasonMaxBeats     CompletionReason = "max_beats"
	ReasonCancelled    CompletionReason = "cancelled"
	ReasonError        CompletionReason = "error"
)

// ErrorCode classifies a hard failure reported in [Result.Err].
type ErrorCode string

const (
	CodeConfigInvalid ErrorCode = "config_invalid"
	CodeCancelled     ErrorCode = "cancelled"
)

// Error is a structured hard failure. It implements error.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// BeatError is a per-participant diagnostic recorded during a beat.
type BeatError struct {
	Beat        int    `json:"beat"`
	Participant string `json:"participant,omitempty"`
	Reason      string `json:"reason"`
}

// ParseWarning records a degraded parse for post-run analysis.
type ParseWarning struct {
	Beat        int    `json:"beat"`
	Participant string `json:"participant"`
	Warning     string `json:"warning"`
}

// Usage is cumulative token accounting across all gateway calls of a run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Metadata describes how a run went.
type Metadata struct {
	SceneID          string           `json:"scene_id"`
	RunID            string           `json:"run_id"`
	TotalBeats       int              `json:"total_beats"`
	ParticipantCount int              `json:"participant_count"`
	GoalAchieved     bool             `json:"goal_achieved"`
	CompletionReason CompletionReason `json:"completion_reason"`
	OracleReason     string           `json:"oracle_reason,omitempty"`
	Usage            *Usage           `json:"usage,omitempty"`
	Errors           []BeatError      `json:"errors,omitempty"`
	Warnings         []ParseWarning   `json:"warnings,omitempty"`
	Trace            []string         `json:"trace,omitempty"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
}

// Result is the immutable outcome of one scene run. The caller owns it
// exclusively once returned.
type Result struct {
	// Success is true when the scene executed without a hard failure, whether
	// or not the goal was reached.
	Success bool

	// Transcript is the rendered transcript text.
	Transcript string

	// Entries is a snapshot of the transcript entries in order.
	Entries []Entry

	Metadata Metadata

	// Err is set for hard failures (invalid config, cancellation).
	Err *Error
}
