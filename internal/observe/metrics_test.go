package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterValue returns the value of the int64 sum data point whose attribute
// key equals value.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	t.Parallel()
	if m, _ := newTestMetrics(t); m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordAgentInvocation(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAgentInvocation(ctx, "alice", StatusOK, 120*time.Millisecond)
	m.RecordAgentInvocation(ctx, "alice", StatusOK, 300*time.Millisecond)
	m.RecordAgentInvocation(ctx, "bob", StatusTimeout, time.Second)

	rm := collect(t, reader)
	if got := counterValue(t, rm, "sceneforge.agent.invocations", "status", StatusOK); got != 2 {
		t.Errorf("ok invocations = %d, want 2", got)
	}
	if got := counterValue(t, rm, "sceneforge.agent.invocations", "status", StatusTimeout); got != 1 {
		t.Errorf("timeout invocations = %d, want 1", got)
	}

	met := findMetric(rm, "sceneforge.agent.duration")
	if met == nil {
		t.Fatal("agent duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("agent duration is not a histogram")
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 3 {
		t.Errorf("duration samples = %d, want 3", total)
	}
}

func TestSceneCounters(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordParseWarning(ctx, "bob")
	m.RecordParseWarning(ctx, "bob")
	m.RecordDialog(ctx, "speak")
	m.RecordDialog(ctx, "interrupt")
	m.RecordDialog(ctx, "speak")
	m.RecordSceneCompleted(ctx, "max_beats")
	m.RecordProviderRequest(ctx, "openai", "llm", StatusError)
	m.RecordProviderError(ctx, "openai", "llm")
	m.RecordEventPublished(ctx, "entry", StatusOK)
	m.RecordEventPublished(ctx, "entry", StatusOK)

	rm := collect(t, reader)
	checks := []struct {
		name, key, value string
		want             int64
	}{
		{"sceneforge.parse.warnings", "participant", "bob", 2},
		{"sceneforge.dialog.entries", "action", "speak", 2},
		{"sceneforge.dialog.entries", "action", "interrupt", 1},
		{"sceneforge.scenes.completed", "reason", "max_beats", 1},
		{"sceneforge.provider.requests", "status", StatusError, 1},
		{"sceneforge.provider.errors", "provider", "openai", 1},
		{"sceneforge.events.published", "type", "entry", 2},
	}
	for _, c := range checks {
		if got := counterValue(t, rm, c.name, c.key, c.value); got != c.want {
			t.Errorf("%s{%s=%s} = %d, want %d", c.name, c.key, c.value, got, c.want)
		}
	}
}

func TestActiveScenes(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveScenes.Add(ctx, 1)
	m.ActiveScenes.Add(ctx, 1)
	m.ActiveScenes.Add(ctx, -1)

	met := findMetric(collect(t, reader), "sceneforge.active_scenes")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("unexpected data %#v", met.Data)
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("active scenes = %d, want 1", sum.DataPoints[0].Value)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	t.Parallel()
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
