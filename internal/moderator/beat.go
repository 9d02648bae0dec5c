package moderator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sceneforge/internal/agent"
	"github.com/MrWong99/sceneforge/internal/observe"
	"github.com/MrWong99/sceneforge/internal/oracle"
	"github.com/MrWong99/sceneforge/internal/scene"
)

// noticeFormat is the system notice recorded for a participant that failed
// to answer.
const noticeFormat = "%s could not respond this beat"

// reply is the settled outcome of one participant invocation.
type reply struct {
	participant string
	index       int
	raw         string
	err         error
	arrived     time.Time
	elapsed     time.Duration
}

// runBeat executes one beat and returns the oracle's verdict on the updated
// transcript.
func (m *Moderator) runBeat(ctx context.Context, r *run, beat int) oracle.Verdict {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "moderator.beat", trace.WithAttributes(attribute.Int("scene.beat", beat)))
	defer span.End()
	log := observe.Logger(ctx).With("scene", r.cfg.ID, "beat", beat)

	replies := m.fanOut(ctx, r.cfg.Participants, r.beatContext(beat))

	report := BeatReport{RunID: r.meta.RunID, SceneID: r.cfg.ID, Beat: beat}
	entries := make([]scene.Entry, 0, len(replies))
	for _, rep := range orderByArrival(replies) {
		if rep.err != nil {
			status := observe.StatusError
			if errors.Is(rep.err, agent.ErrTimeout) {
				status = observe.StatusTimeout
			}
			m.metrics.RecordAgentInvocation(ctx, rep.participant, status, rep.elapsed)
			log.Warn("moderator: participant failed", "participant", rep.participant, "err", rep.err)

			report.Errors = append(report.Errors, scene.BeatError{Beat: beat, Participant: rep.participant, Reason: rep.err.Error()})
			entries = append(entries, scene.SystemNotice{
				Message:   fmt.Sprintf(noticeFormat, rep.participant),
				BeatIndex: beat,
				Timestamp: rep.arrived,
			})
			r.tracef("beat %d: %s failed after %s: %v", beat, rep.participant, rep.elapsed.Round(time.Millisecond), rep.err)
			continue
		}
		m.metrics.RecordAgentInvocation(ctx, rep.participant, observe.StatusOK, rep.elapsed)

		ev := m.parse(rep.raw)
		if ev == nil {
			ev = scene.Silent{Annotation: scene.Annotation{Tone: scene.NeutralTone, Warning: "parser returned no event"}}
		}
		if w := ev.Annotations().Warning; w != "" {
			m.metrics.RecordParseWarning(ctx, rep.participant)
			report.Warnings = append(report.Warnings, scene.ParseWarning{Beat: beat, Participant: rep.participant, Warning: w})
			log.Debug("moderator: degraded parse", "participant", rep.participant, "warning", w)
		}

		d, ok := scene.NewDialog(rep.participant, ev, beat, rep.arrived)
		if !ok {
			r.tracef("beat %d: %s stayed silent", beat, rep.participant)
			continue
		}
		if m.resolver != nil && d.Target != "" {
			if id, ok := m.resolver.Resolve(d.Target); ok {
				d.Target = id
			} else {
				r.tracef("beat %d: %s addressed unknown %q", beat, rep.participant, d.Target)
			}
		}
		entries = append(entries, d)
		m.metrics.RecordDialog(ctx, string(d.Action))
		r.tracef("beat %d: %s %s after %s", beat, rep.participant, d.Action, rep.elapsed.Round(time.Millisecond))
	}

	if err := r.log.Append(entries...); err != nil {
		log.Error("moderator: transcript rejected beat", "err", err)
		report.Errors = append(report.Errors, scene.BeatError{Beat: beat, Reason: err.Error()})
		entries = nil
	}

	verdict, err := m.oracle.Evaluate(context.WithoutCancel(ctx), r.log.Snapshot(), r.cfg)
	if err != nil {
		log.Warn("moderator: oracle failed", "err", err)
		report.Errors = append(report.Errors, scene.BeatError{Beat: beat, Reason: "oracle: " + err.Error()})
		verdict = oracle.Verdict{}
	}
	if verdict.Done {
		r.tracef("beat %d: oracle done: %s", beat, verdict.Reason)
	} else {
		r.tracef("beat %d: oracle not done", beat)
	}

	r.meta.Errors = append(r.meta.Errors, report.Errors...)
	r.meta.Warnings = append(r.meta.Warnings, report.Warnings...)

	report.Entries = entries
	if beat == 0 && len(r.opening) > 0 {
		report.Entries = append(slices.Clone(r.opening), entries...)
	}
	report.Verdict = verdict
	report.Duration = time.Since(start)
	m.metrics.BeatDuration.Record(ctx, report.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("scene.beat.entries", len(entries)),
		attribute.Int("scene.beat.errors", len(report.Errors)),
	)
	log.Debug("moderator: beat finished", "entries", len(entries), "errors", len(report.Errors), "done", verdict.Done)

	m.notify(context.WithoutCancel(ctx), report)
	return verdict
}

// beatContext builds the view every participant receives for beat.
func (r *run) beatContext(beat int) scene.BeatContext {
	bc := scene.BeatContext{
		SceneID:      r.cfg.ID,
		Prompt:       r.cfg.Prompt,
		Participants: r.cfg.Participants,
		Recent:       r.log.RenderRecent(r.cfg.WindowSize),
		Last:         r.log.Last(),
		Note:         scene.ModeratorNote(beat, r.cfg.MaxBeats, r.cfg.MidpointRatio, r.cfg.WrapUpRatio),
		Beat:         beat,
		MaxBeats:     r.cfg.MaxBeats,
	}
	if beat == 0 && r.cfg.HasParticipant(r.cfg.FirstResponder) {
		bc.Opener = r.cfg.FirstResponder
	}
	return bc
}

// fanOut invokes every participant concurrently with the same context and
// waits for all of them to settle. Replies come back in participant order.
func (m *Moderator) fanOut(ctx context.Context, participants []string, bc scene.BeatContext) []reply {
	replies := make([]reply, len(participants))
	var g errgroup.Group
	for i, id := range participants {
		prompt := m.prompter.Prompt(id, bc)
		g.Go(func() error {
			replies[i] = m.invoke(ctx, i, id, prompt)
			return nil
		})
	}
	// Failures are carried in each reply, never through the group.
	_ = g.Wait()
	return replies
}

// invoke calls the gateway for one participant. The call is detached from
// ctx cancellation and bounded by the reply timeout. A gateway that ignores
// its context is abandoned once the timeout fires; its goroutine finishes
// on its own.
func (m *Moderator) invoke(ctx context.Context, index int, id, prompt string) reply {
	rep := reply{participant: id, index: index}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.replyTimeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("moderator: gateway panicked: %v", p)}
			}
		}()
		text, err := m.gateway.Invoke(callCtx, id, prompt)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		rep.raw, rep.err = out.text, out.err
		if rep.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			rep.err = fmt.Errorf("%w: %w", agent.ErrTimeout, rep.err)
		}
	case <-callCtx.Done():
		rep.err = fmt.Errorf("%w after %s", agent.ErrTimeout, m.replyTimeout)
	}
	rep.arrived = m.now()
	rep.elapsed = time.Since(start)
	return rep
}

// orderByArrival returns replies sorted by arrival time. Replies that
// arrived at the same instant keep participant order.
func orderByArrival(replies []reply) []reply {
	out := slices.Clone(replies)
	slices.SortStableFunc(out, func(a, b reply) int {
		if c := a.arrived.Compare(b.arrived); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
	return out
}

// notify hands report to every observer. Observer errors are logged only.
func (m *Moderator) notify(ctx context.Context, report BeatReport) {
	for _, o := range m.observers {
		if err := o.BeatCompleted(ctx, report); err != nil {
			observe.Logger(ctx).Warn("moderator: observer failed", "beat", report.Beat, "err", err)
		}
	}
}
