// Package observe provides the observability primitives for sceneforge:
// OpenTelemetry metrics, tracing helpers, trace-aware structured logging,
// and HTTP middleware for the metrics/health listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed to
// Prometheus via [InitProvider]. Tests should build their own [Metrics] with
// [NewMetrics] and an sdkmetric.ManualReader instead of touching the global
// [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all sceneforge metrics.
const meterName = "github.com/MrWong99/sceneforge"

// Status attribute values.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Metrics holds every metric instrument. All fields are safe for concurrent
// use.
type Metrics struct {
	// BeatDuration tracks wall time of a full beat, fan-out to transcript
	// update.
	BeatDuration metric.Float64Histogram

	// AgentDuration tracks a single participant invocation. Attributes:
	// participant, status.
	AgentDuration metric.Float64Histogram

	// LLMDuration tracks raw provider latency. Attributes: provider.
	LLMDuration metric.Float64Histogram

	// AgentInvocations counts participant invocations. Attributes:
	// participant, status.
	AgentInvocations metric.Int64Counter

	// ParseWarnings counts replies that degraded from the strict grammar.
	// Attributes: participant.
	ParseWarnings metric.Int64Counter

	// DialogEntries counts accepted transcript dialog. Attributes: action.
	DialogEntries metric.Int64Counter

	// ScenesCompleted counts finished runs. Attributes: reason.
	ScenesCompleted metric.Int64Counter

	// ProviderRequests counts provider API calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// EventsPublished counts transcript events sent to the broker.
	// Attributes: type, status.
	EventsPublished metric.Int64Counter

	// ActiveScenes is the number of scenes currently running.
	ActiveScenes metric.Int64UpDownCounter

	// HTTPRequestDuration tracks requests on the metrics/health listener.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, sized for LLM calls
// that take anywhere from tens of milliseconds to a minute.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	hist := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	if met.BeatDuration, err = hist("sceneforge.beat.duration", "Wall time of one scene beat."); err != nil {
		return nil, err
	}
	if met.AgentDuration, err = hist("sceneforge.agent.duration", "Latency of one participant invocation."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = hist("sceneforge.llm.duration", "Latency of LLM completions."); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("sceneforge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.AgentInvocations, err = m.Int64Counter("sceneforge.agent.invocations",
		metric.WithDescription("Participant invocations by participant and status."),
	); err != nil {
		return nil, err
	}
	if met.ParseWarnings, err = m.Int64Counter("sceneforge.parse.warnings",
		metric.WithDescription("Replies that degraded from the strict response grammar."),
	); err != nil {
		return nil, err
	}
	if met.DialogEntries, err = m.Int64Counter("sceneforge.dialog.entries",
		metric.WithDescription("Dialog entries appended to transcripts by action."),
	); err != nil {
		return nil, err
	}
	if met.ScenesCompleted, err = m.Int64Counter("sceneforge.scenes.completed",
		metric.WithDescription("Finished scene runs by completion reason."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("sceneforge.provider.requests",
		metric.WithDescription("Provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("sceneforge.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.EventsPublished, err = m.Int64Counter("sceneforge.events.published",
		metric.WithDescription("Transcript events published to the broker by type and status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveScenes, err = m.Int64UpDownCounter("sceneforge.active_scenes",
		metric.WithDescription("Number of scenes currently running."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on
// [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAgentInvocation records one participant call with its latency.
func (m *Metrics) RecordAgentInvocation(ctx context.Context, participant, status string, d time.Duration) {
	attrs := metric.WithAttributes(Attr("participant", participant), Attr("status", status))
	m.AgentInvocations.Add(ctx, 1, attrs)
	m.AgentDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordParseWarning counts a degraded parse for participant.
func (m *Metrics) RecordParseWarning(ctx context.Context, participant string) {
	m.ParseWarnings.Add(ctx, 1, metric.WithAttributes(Attr("participant", participant)))
}

// RecordDialog counts an accepted dialog entry by action.
func (m *Metrics) RecordDialog(ctx context.Context, action string) {
	m.DialogEntries.Add(ctx, 1, metric.WithAttributes(Attr("action", action)))
}

// RecordSceneCompleted counts a finished run by reason.
func (m *Metrics) RecordSceneCompleted(ctx context.Context, reason string) {
	m.ScenesCompleted.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordProviderRequest counts a provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(Attr("provider", provider), Attr("kind", kind), Attr("status", status)),
	)
}

// RecordProviderError counts a provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
}

// RecordEventPublished counts one broker publish attempt.
func (m *Metrics) RecordEventPublished(ctx context.Context, eventType, status string) {
	m.EventsPublished.Add(ctx, 1, metric.WithAttributes(Attr("type", eventType), Attr("status", status)))
}
