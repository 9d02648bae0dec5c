// Package moderator runs scenes: it drives a set of participants beat by beat
// until the completion oracle is satisfied, the beat limit is hit, or the
// caller cancels.
//
// Each beat every participant is invoked concurrently with the same
// [scene.BeatContext]. The moderator waits for all invocations to settle,
// parses the replies, orders them by arrival time, drops silent ones, and
// appends the rest to the transcript. A participant that fails or times out
// costs only its own contribution for that beat.
package moderator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/sceneforge/internal/agent"
	"github.com/MrWong99/sceneforge/internal/observe"
	"github.com/MrWong99/sceneforge/internal/oracle"
	"github.com/MrWong99/sceneforge/internal/parser"
	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/internal/transcript"
	"github.com/MrWong99/sceneforge/pkg/provider/llm"
)

// Option configures a [Moderator].
type Option func(*Moderator)

// WithOracle sets the completion oracle. Defaults to [oracle.Never].
func WithOracle(o oracle.Oracle) Option {
	return func(m *Moderator) { m.oracle = o }
}

// WithParser replaces the reply parser. Defaults to [parser.Parse].
func WithParser(parse func(raw string) scene.Event) Option {
	return func(m *Moderator) { m.parse = parse }
}

// WithPrompter sets how beat contexts become prompt text. Defaults to
// [agent.DefaultPrompter].
func WithPrompter(p agent.Prompter) Option {
	return func(m *Moderator) { m.prompter = p }
}

// WithReplyTimeout bounds each participant invocation. A participant that
// has not answered in time is treated as failed for that beat. Defaults to
// [scene.DefaultReplyTimeout].
func WithReplyTimeout(d time.Duration) Option {
	return func(m *Moderator) {
		if d > 0 {
			m.replyTimeout = d
		}
	}
}

// WithClock sets the time source used for arrival timestamps and run
// timing. Defaults to [time.Now].
func WithClock(now func() time.Time) Option {
	return func(m *Moderator) { m.now = now }
}

// WithMetrics records scene metrics on mt. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(mt *observe.Metrics) Option {
	return func(m *Moderator) { m.metrics = mt }
}

// WithObserver adds an observer notified after every beat.
func WithObserver(o Observer) Option {
	return func(m *Moderator) { m.observers = append(m.observers, o) }
}

// AddresseeResolver maps a free-text addressee to a participant ID.
type AddresseeResolver interface {
	Resolve(target string) (string, bool)
}

// WithAddresseeResolver rewrites dialog targets to the participant ID res
// resolves them to. Targets it cannot resolve are kept verbatim.
func WithAddresseeResolver(res AddresseeResolver) Option {
	return func(m *Moderator) { m.resolver = res }
}

// WithTrace records a free-text line per beat decision in
// [scene.Metadata.Trace].
func WithTrace() Option {
	return func(m *Moderator) { m.trace = true }
}

// Moderator runs scenes against a [agent.Gateway]. A single Moderator may
// run several scenes concurrently; each [Moderator.Run] owns its own
// transcript.
type Moderator struct {
	gateway      agent.Gateway
	oracle       oracle.Oracle
	parse        func(string) scene.Event
	prompter     agent.Prompter
	replyTimeout time.Duration
	now          func() time.Time
	metrics      *observe.Metrics
	observers    []Observer
	resolver     AddresseeResolver
	trace        bool
}

// New creates a Moderator that voices participants through gateway.
func New(gateway agent.Gateway, opts ...Option) *Moderator {
	m := &Moderator{
		gateway:      gateway,
		oracle:       oracle.Never{},
		parse:        parser.Parse,
		prompter:     agent.DefaultPrompter,
		replyTimeout: scene.DefaultReplyTimeout,
		now:          time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// run is the mutable state of one scene run. It never escapes Run.
type run struct {
	cfg   scene.Config
	log   *transcript.Log
	meta  scene.Metadata
	state State
	trace bool

	// opening holds the world events recorded before beat 0.
	opening []scene.Entry
}

func (r *run) tracef(format string, args ...any) {
	if r.trace {
		r.meta.Trace = append(r.meta.Trace, fmt.Sprintf(format, args...))
	}
}

// Run executes one scene to completion and returns its result. Invalid
// configs fail immediately without invoking any participant.
//
// ctx is only checked between beats: a beat that has started always
// finishes, so the returned transcript never holds a partial beat.
// In-flight invocations are bounded by the reply timeout instead.
func (m *Moderator) Run(ctx context.Context, cfg scene.Config) scene.Result {
	r := &run{
		state: StateValidating,
		trace: m.trace,
		meta: scene.Metadata{
			SceneID:          cfg.ID,
			RunID:            uuid.NewString(),
			ParticipantCount: len(cfg.Participants),
			StartedAt:        m.now(),
		},
	}
	log := observe.Logger(ctx).With("scene", cfg.ID, "run", r.meta.RunID)

	if m.gateway == nil {
		return m.fail(ctx, r, scene.CodeConfigInvalid, "moderator: gateway must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		log.Warn("moderator: rejected scene config", "err", err)
		return m.fail(ctx, r, scene.CodeConfigInvalid, err.Error())
	}
	r.cfg = cfg.WithDefaults()
	r.log = transcript.New(r.cfg.MaxBeats * (len(r.cfg.Participants) + 1))
	r.meta.ParticipantCount = len(r.cfg.Participants)

	ctx, span := observe.StartSpan(ctx, "moderator.run", trace.WithAttributes(
		attribute.String("scene.id", r.cfg.ID),
		attribute.String("scene.run_id", r.meta.RunID),
		attribute.Int("scene.participants", len(r.cfg.Participants)),
		attribute.Int("scene.max_beats", r.cfg.MaxBeats),
	))
	defer span.End()

	m.metrics.ActiveScenes.Add(ctx, 1)
	defer m.metrics.ActiveScenes.Add(context.WithoutCancel(ctx), -1)

	var usageBefore llm.Usage
	reporter, _ := m.gateway.(agent.UsageReporter)
	if reporter != nil {
		usageBefore = reporter.Usage()
	}

	if r.cfg.FirstResponder != "" && !r.cfg.HasParticipant(r.cfg.FirstResponder) {
		log.Warn("moderator: first responder is not a participant, ignoring", "first_responder", r.cfg.FirstResponder)
		r.tracef("first responder %q is not a participant; ignored", r.cfg.FirstResponder)
	}

	r.state = StateRunning
	log.Info("moderator: scene started", "participants", len(r.cfg.Participants), "max_beats", r.cfg.MaxBeats)

	if err := m.openScene(r); err != nil {
		log.Warn("moderator: opening events rejected", "err", err)
	}

	for beat := 0; beat < r.cfg.MaxBeats; beat++ {
		if err := ctx.Err(); err != nil {
			r.state = StateCancelled
			r.tracef("cancelled before beat %d: %v", beat, err)
			break
		}
		verdict := m.runBeat(ctx, r, beat)
		r.meta.TotalBeats = beat + 1
		if verdict.Done {
			r.state = StateCompleted
			r.meta.GoalAchieved = true
			r.meta.OracleReason = verdict.Reason
			break
		}
	}
	if !r.state.Terminal() {
		r.state = StateMaxBeatsReached
	}

	if reporter != nil {
		u := reporter.Usage()
		r.meta.Usage = &scene.Usage{
			PromptTokens:     u.PromptTokens - usageBefore.PromptTokens,
			CompletionTokens: u.CompletionTokens - usageBefore.CompletionTokens,
			TotalTokens:      u.TotalTokens - usageBefore.TotalTokens,
		}
	}

	res := m.finish(ctx, r)
	span.SetAttributes(
		attribute.String("scene.completion_reason", string(res.Metadata.CompletionReason)),
		attribute.Int("scene.total_beats", res.Metadata.TotalBeats),
	)
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
	}
	log.Info("moderator: scene finished",
		"state", r.state,
		"beats", res.Metadata.TotalBeats,
		"entries", len(res.Entries),
		"errors", len(res.Metadata.Errors),
		"warnings", len(res.Metadata.Warnings),
	)
	return res
}

// openScene records the configured opening world events at beat 0.
func (m *Moderator) openScene(r *run) error {
	if len(r.cfg.OpeningEvents) == 0 {
		return nil
	}
	at := r.meta.StartedAt
	events := make([]scene.Entry, 0, len(r.cfg.OpeningEvents))
	for _, desc := range r.cfg.OpeningEvents {
		events = append(events, scene.WorldEvent{Description: desc, BeatIndex: 0, Timestamp: at})
		r.tracef("beat 0: world event %q", desc)
	}
	if err := r.log.Append(events...); err != nil {
		return err
	}
	r.opening = events
	return nil
}

// finish builds the result for a run that reached a terminal state.
func (m *Moderator) finish(ctx context.Context, r *run) scene.Result {
	r.meta.FinishedAt = m.now()
	entries := r.log.Snapshot()
	res := scene.Result{
		Success:    true,
		Transcript: transcript.Render(entries),
		Entries:    entries,
	}
	switch r.state {
	case StateCompleted:
		r.meta.CompletionReason = scene.ReasonGoalAchieved
	case StateCancelled:
		r.meta.CompletionReason = scene.ReasonCancelled
		res.Success = false
		res.Err = &scene.Error{Code: scene.CodeCancelled, Message: cancelMessage(ctx)}
	default:
		r.meta.CompletionReason = scene.ReasonMaxBeats
	}
	res.Metadata = r.meta
	m.metrics.RecordSceneCompleted(context.WithoutCancel(ctx), string(r.meta.CompletionReason))
	return res
}

// fail builds the result for a run rejected before its first beat.
func (m *Moderator) fail(ctx context.Context, r *run, code scene.ErrorCode, msg string) scene.Result {
	r.state = StateFailed
	r.meta.FinishedAt = m.now()
	r.meta.CompletionReason = scene.ReasonError
	r.tracef("rejected: %s", msg)
	m.metrics.RecordSceneCompleted(context.WithoutCancel(ctx), string(scene.ReasonError))
	return scene.Result{
		Success:  false,
		Metadata: r.meta,
		Err:      &scene.Error{Code: code, Message: msg},
	}
}

func cancelMessage(ctx context.Context) string {
	err := ctx.Err()
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, err) {
		return fmt.Sprintf("scene cancelled: %v", cause)
	}
	if err == nil {
		return "scene cancelled"
	}
	return fmt.Sprintf("scene cancelled: %v", err)
}
