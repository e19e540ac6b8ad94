// Package observe provides application-wide observability primitives for
// speakmate: OpenTelemetry metrics, tracing helpers and structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. Tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all speakmate metrics.
const meterName = "github.com/speakmate/speakmate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ResolveDuration tracks end-to-end transcript resolution latency.
	ResolveDuration metric.Float64Histogram

	// Utterances counts resolved transcripts. Use with attribute:
	//   attribute.String("action", ...)
	Utterances metric.Int64Counter

	// GrammarReloads counts grammar resource loads. Use with attributes:
	//   attribute.String("language", ...), attribute.String("status", ...)
	GrammarReloads metric.Int64Counter

	// TimerExpiries counts ambiguity countdowns that fired and submitted
	// their preferred candidate.
	TimerExpiries metric.Int64Counter

	// AmbiguitySessions tracks currently open ambiguity sessions.
	AmbiguitySessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Matching
// is in-process and bounded by the legal-move count, so buckets skew small.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ResolveDuration, err = m.Float64Histogram("speakmate.resolve.duration",
		metric.WithDescription("Latency of transcript resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("speakmate.utterances",
		metric.WithDescription("Resolved transcripts by resulting action."),
	); err != nil {
		return nil, err
	}
	if met.GrammarReloads, err = m.Int64Counter("speakmate.grammar.reloads",
		metric.WithDescription("Grammar resource load attempts."),
	); err != nil {
		return nil, err
	}
	if met.TimerExpiries, err = m.Int64Counter("speakmate.timer.expiries",
		metric.WithDescription("Ambiguity countdowns that auto-submitted."),
	); err != nil {
		return nil, err
	}
	if met.AmbiguitySessions, err = m.Int64UpDownCounter("speakmate.ambiguity.sessions",
		metric.WithDescription("Currently open ambiguity sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordUtterance increments the utterance counter for the given action name.
func (m *Metrics) RecordUtterance(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordGrammarReload increments the grammar reload counter.
func (m *Metrics) RecordGrammarReload(ctx context.Context, language string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.GrammarReloads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("language", language),
		attribute.String("status", status),
	))
}
