// Package mock provides a scriptable test double for the agent.Gateway
// interface.
//
// Replies are scripted per participant. Each participant's queue is consumed
// one entry per call and the last entry repeats once the queue runs dry.
//
// Example:
//
//	g := &mock.Gateway{
//	    Replies: map[string][]string{
//	        "alice": {`[TO: bob, TONE: calm] "Evening."`},
//	        "bob":   {`[SILENT]`},
//	    },
//	    Errors: map[string]error{"carol": errors.New("rate limited")},
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/sceneforge/internal/agent"
	"github.com/MrWong99/sceneforge/pkg/provider/llm"
)

// Call records a single invocation of Invoke.
type Call struct {
	Participant string
	Prompt      string
}

// Gateway is a mock implementation of agent.Gateway and agent.UsageReporter.
type Gateway struct {
	mu sync.Mutex

	// Replies holds the scripted replies per participant.
	Replies map[string][]string

	// DefaultReply is returned for participants without a script.
	DefaultReply string

	// Errors, when set for a participant, is returned instead of a reply.
	Errors map[string]error

	// Delays makes a participant's call sleep before answering. The sleep
	// honours ctx.
	Delays map[string]time.Duration

	// Hang lists participants whose calls ignore ctx and block until Release
	// is closed. Leave Release nil to block forever.
	Hang    map[string]bool
	Release chan struct{}

	// InvokeFunc, if set, replaces all other Invoke behaviour.
	InvokeFunc func(ctx context.Context, participantID, prompt string) (string, error)

	// UsagePerCall is added to the reported usage on every successful call.
	UsagePerCall llm.Usage

	// InvokeCalls records every invocation in arrival order.
	InvokeCalls []Call

	served map[string]int
	usage  llm.Usage
}

var (
	_ agent.Gateway       = (*Gateway)(nil)
	_ agent.UsageReporter = (*Gateway)(nil)
)

// Invoke records the call and plays back the participant's script.
func (g *Gateway) Invoke(ctx context.Context, participantID, prompt string) (string, error) {
	g.mu.Lock()
	g.InvokeCalls = append(g.InvokeCalls, Call{Participant: participantID, Prompt: prompt})
	fn := g.InvokeFunc
	hang := g.Hang[participantID]
	release := g.Release
	delay := g.Delays[participantID]
	err := g.Errors[participantID]
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, participantID, prompt)
	}
	if hang {
		<-release
		return "", context.Canceled
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage = g.usage.Add(g.UsagePerCall)
	return g.next(participantID), nil
}

// next pops participantID's script. Caller holds g.mu.
func (g *Gateway) next(participantID string) string {
	script, ok := g.Replies[participantID]
	if !ok || len(script) == 0 {
		return g.DefaultReply
	}
	if g.served == nil {
		g.served = make(map[string]int)
	}
	i := min(g.served[participantID], len(script)-1)
	g.served[participantID]++
	return script[i]
}

// Usage implements agent.UsageReporter.
func (g *Gateway) Usage() llm.Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

// Calls returns a copy of the recorded invocations.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.InvokeCalls...)
}

// CallsFor returns how many times participantID was invoked.
func (g *Gateway) CallsFor(participantID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.InvokeCalls {
		if c.Participant == participantID {
			n++
		}
	}
	return n
}

// Reset clears recorded calls, script positions, and usage.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.InvokeCalls = nil
	g.served = nil
	g.usage = llm.Usage{}
}
