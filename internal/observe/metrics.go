package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all service metrics.
const meterName = "github.com/voiceshield/api"

// latencyBuckets defines histogram bucket boundaries (in seconds) sized
// for single-clip pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Metrics holds all OpenTelemetry metric instruments. Fields are safe
// for concurrent use; the underlying OTel types handle synchronization.
type Metrics struct {
	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram

	// StageDuration tracks per-stage pipeline latency. Use with
	// attribute: stage (decode, condition, extract, infer).
	StageDuration metric.Float64Histogram

	// Predictions counts completed predictions. Use with attributes:
	// label (REAL/FAKE), status (ok/error).
	Predictions metric.Int64Counter
}

// NewMetrics creates metric instruments from the given provider. Tests
// should pass a private provider to avoid cross-test pollution.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	httpDur, err := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request processing time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, err
	}

	stageDur, err := meter.Float64Histogram("pipeline_stage_duration_seconds",
		metric.WithDescription("Prediction pipeline stage latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, err
	}

	predictions, err := meter.Int64Counter("predictions_total",
		metric.WithDescription("Completed prediction requests"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		HTTPRequestDuration: httpDur,
		StageDuration:       stageDur,
		Predictions:         predictions,
	}, nil
}

// RecordStage records one pipeline stage duration.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordPrediction counts a finished prediction by label and status.
func (m *Metrics) RecordPrediction(ctx context.Context, label, status string) {
	if m == nil {
		return
	}
	m.Predictions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("label", label),
		attribute.String("status", status),
	))
}
