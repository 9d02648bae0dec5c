// Package agent is the boundary between the moderator and whatever produces
// a participant's reply.
//
// The moderator only knows the [Gateway] contract: given a participant ID and
// a prompt, return the reply text or fail. [LLMGateway] implements it on top
// of an llm.Provider with one [Character] persona per participant, and
// [Prompter] turns a scene.BeatContext into the prompt text.
package agent

import (
	"context"
	"errors"

	"github.com/MrWong99/sceneforge/pkg/provider/llm"
)

var (
	// ErrTimeout marks an invocation that did not settle within the reply
	// timeout.
	ErrTimeout = errors.New("agent: participant did not respond in time")

	// ErrUnknownParticipant is returned by gateways asked to invoke a
	// participant they have no persona for.
	ErrUnknownParticipant = errors.New("agent: unknown participant")
)

// Gateway produces one participant's reply for one beat. One call per
// participant per beat; no retries and no streaming.
//
// Implementations must be safe for concurrent use: the moderator invokes all
// participants of a beat in parallel.
type Gateway interface {
	Invoke(ctx context.Context, participantID, prompt string) (string, error)
}

// GatewayFunc adapts a function to [Gateway].
type GatewayFunc func(ctx context.Context, participantID, prompt string) (string, error)

// Invoke calls f.
func (f GatewayFunc) Invoke(ctx context.Context, participantID, prompt string) (string, error) {
	return f(ctx, participantID, prompt)
}

// UsageReporter is implemented by gateways that track token usage. Usage
// returns the cumulative total since the gateway was created.
type UsageReporter interface {
	Usage() llm.Usage
}
