// Package events streams scene progress to Kafka.
//
// A [Publisher] is a moderator.Observer: after every beat it publishes one
// "entry" message per accepted transcript entry followed by a "beat"
// summary, and [Publisher.PublishResult] sends a final "scene_completed"
// message. Messages are keyed by run ID so a run's events stay on one
// partition and in order.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrWong99/sceneforge/internal/moderator"
	"github.com/MrWong99/sceneforge/internal/observe"
	"github.com/MrWong99/sceneforge/internal/scene"
)

// Event types.
const (
	TypeEntry          = "entry"
	TypeBeat           = "beat"
	TypeSceneCompleted = "scene_completed"
)

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ Writer             = (*kafka.Writer)(nil)
	_ moderator.Observer = (*Publisher)(nil)
)

// Event is the JSON payload of every message. Fields that do not apply to
// Type are omitted.
type Event struct {
	Type    string    `json:"type"`
	RunID   string    `json:"run_id"`
	SceneID string    `json:"scene_id"`
	Beat    int       `json:"beat"`
	At      time.Time `json:"at"`

	Entry *scene.EntryRecord `json:"entry,omitempty"`

	Errors     []scene.BeatError    `json:"errors,omitempty"`
	Warnings   []scene.ParseWarning `json:"warnings,omitempty"`
	Done       bool                 `json:"done,omitempty"`
	Reason     string               `json:"reason,omitempty"`
	DurationMS int64                `json:"duration_ms,omitempty"`

	Success  *bool           `json:"success,omitempty"`
	Metadata *scene.Metadata `json:"metadata,omitempty"`
}

// Config holds broker settings.
type Config struct {
	Brokers []string
	Topic   string
}

// Option configures a [Publisher].
type Option func(*Publisher)

// WithMetrics overrides the default metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// Publisher writes scene events to one topic.
type Publisher struct {
	writer  Writer
	topic   string
	metrics *observe.Metrics
	now     func() time.Time

	mu sync.Mutex
	// seq numbers entries per run across beats.
	seq map[string]int
}

// New creates a Publisher connected to cfg.Brokers.
func New(cfg Config, opts ...Option) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("events: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("events: topic must not be empty")
	}
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	slog.Info("events: kafka publisher initialised", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewWithWriter(w, cfg.Topic, opts...), nil
}

// NewWithWriter creates a Publisher on an existing writer.
func NewWithWriter(w Writer, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		writer: w,
		topic:  topic,
		now:    time.Now,
		seq:    make(map[string]int),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// BeatCompleted implements moderator.Observer. One Publisher may observe
// several concurrent runs.
func (p *Publisher) BeatCompleted(ctx context.Context, r moderator.BeatReport) error {
	at := p.now()
	events := make([]Event, 0, len(r.Entries)+1)
	p.mu.Lock()
	for _, e := range r.Entries {
		rec := scene.ToRecord(p.seq[r.RunID], e)
		p.seq[r.RunID]++
		events = append(events, Event{
			Type: TypeEntry, RunID: r.RunID, SceneID: r.SceneID, Beat: r.Beat, At: at,
			Entry: &rec,
		})
	}
	p.mu.Unlock()
	events = append(events, Event{
		Type: TypeBeat, RunID: r.RunID, SceneID: r.SceneID, Beat: r.Beat, At: at,
		Errors:     r.Errors,
		Warnings:   r.Warnings,
		Done:       r.Verdict.Done,
		Reason:     r.Verdict.Reason,
		DurationMS: r.Duration.Milliseconds(),
	})
	return p.publish(ctx, events...)
}

// PublishResult sends the closing event of a run.
func (p *Publisher) PublishResult(ctx context.Context, res scene.Result) error {
	m := res.Metadata
	p.mu.Lock()
	delete(p.seq, m.RunID)
	p.mu.Unlock()
	success := res.Success
	return p.publish(ctx, Event{
		Type: TypeSceneCompleted, RunID: m.RunID, SceneID: m.SceneID, Beat: m.TotalBeats, At: p.now(),
		Reason:   string(m.CompletionReason),
		Success:  &success,
		Metadata: &m,
	})
}

func (p *Publisher) publish(ctx context.Context, events ...Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("events: marshal %s: %w", ev.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.RunID),
			Value: payload,
			Time:  ev.At,
			Headers: []kafka.Header{
				{Key: "eventType", Value: []byte(ev.Type)},
				{Key: "sceneID", Value: []byte(ev.SceneID)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		for _, ev := range events {
			p.metrics.RecordEventPublished(ctx, ev.Type, observe.StatusError)
		}
		slog.Error("events: failed to write to kafka", "topic", p.topic, "messages", len(msgs), "err", err)
		return fmt.Errorf("events: write %d messages: %w", len(msgs), err)
	}
	for _, ev := range events {
		p.metrics.RecordEventPublished(ctx, ev.Type, observe.StatusOK)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("events: close writer: %w", err)
	}
	return nil
}
