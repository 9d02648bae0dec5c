package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/sceneforge/internal/observe"
	"github.com/MrWong99/sceneforge/pkg/provider/llm"
)

// GatewayOption configures an [LLMGateway].
type GatewayOption func(*LLMGateway)

// WithProviderName sets the provider label used on metrics. Defaults to "llm".
func WithProviderName(name string) GatewayOption {
	return func(g *LLMGateway) { g.providerName = name }
}

// WithGatewayMetrics records provider latency and request counts on m.
func WithGatewayMetrics(m *observe.Metrics) GatewayOption {
	return func(g *LLMGateway) { g.metrics = m }
}

// WithDefaultCharacter lets the gateway answer for participants without a
// configured persona. Only the ID is taken from the call; the rest of c is
// used as-is.
func WithDefaultCharacter(c Character) GatewayOption {
	return func(g *LLMGateway) { g.fallback = &c }
}

// LLMGateway is a [Gateway] that voices each participant through a shared
// llm.Provider, with one persona system prompt per participant.
//
// All methods are safe for concurrent use.
type LLMGateway struct {
	provider     llm.Provider
	providerName string
	metrics      *observe.Metrics
	characters   map[string]Character
	prompts      map[string]string
	roster       []string
	fallback     *Character

	mu    sync.Mutex
	usage llm.Usage
}

var (
	_ Gateway       = (*LLMGateway)(nil)
	_ UsageReporter = (*LLMGateway)(nil)
)

// NewLLMGateway builds a gateway over provider for characters. System prompts
// are rendered once here; every character sees the full roster.
func NewLLMGateway(provider llm.Provider, characters []Character, opts ...GatewayOption) (*LLMGateway, error) {
	if provider == nil {
		return nil, errors.New("agent: provider must not be nil")
	}
	g := &LLMGateway{
		provider:     provider,
		providerName: "llm",
		characters:   make(map[string]Character, len(characters)),
		prompts:      make(map[string]string, len(characters)),
	}
	for _, o := range opts {
		o(g)
	}

	var errs []error
	for i, c := range characters {
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("characters[%d]: %w", i, err))
			continue
		}
		if _, dup := g.characters[c.ID]; dup {
			errs = append(errs, fmt.Errorf("characters[%d]: duplicate id %q", i, c.ID))
			continue
		}
		g.characters[c.ID] = c
		g.roster = append(g.roster, c.ID)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	for id, c := range g.characters {
		g.prompts[id] = SystemPrompt(c, g.roster)
	}
	return g, nil
}

// Invoke asks the provider for participantID's reply to prompt.
func (g *LLMGateway) Invoke(ctx context.Context, participantID, prompt string) (string, error) {
	c, system, err := g.persona(participantID)
	if err != nil {
		return "", err
	}

	req := llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
	}

	start := time.Now()
	resp, err := g.provider.Complete(ctx, req)
	g.record(ctx, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("agent: invoke %q: %w", participantID, err)
	}
	if resp == nil {
		return "", fmt.Errorf("agent: invoke %q: provider returned no response", participantID)
	}

	g.mu.Lock()
	g.usage = g.usage.Add(resp.Usage)
	g.mu.Unlock()

	slog.Debug("agent: reply received",
		"participant", participantID,
		"finish_reason", resp.FinishReason,
		"tokens", resp.Usage.TotalTokens,
	)
	return resp.Content, nil
}

// Usage returns the token usage accumulated across all calls.
func (g *LLMGateway) Usage() llm.Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

func (g *LLMGateway) persona(id string) (Character, string, error) {
	if c, ok := g.characters[id]; ok {
		return c, g.prompts[id], nil
	}
	if g.fallback == nil {
		return Character{}, "", fmt.Errorf("%w: %q", ErrUnknownParticipant, id)
	}
	c := *g.fallback
	c.ID = id
	if c.Name == "" {
		c.Name = id
	}
	return c, SystemPrompt(c, g.roster), nil
}

func (g *LLMGateway) record(ctx context.Context, d time.Duration, err error) {
	if g.metrics == nil {
		return
	}
	status := observe.StatusOK
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = observe.StatusTimeout
	case err != nil:
		status = observe.StatusError
	}
	g.metrics.LLMDuration.Record(ctx, d.Seconds(), metric.WithAttributes(observe.Attr("provider", g.providerName)))
	g.metrics.RecordProviderRequest(ctx, g.providerName, "llm", status)
	if err != nil {
		g.metrics.RecordProviderError(ctx, g.providerName, "llm")
	}
}
