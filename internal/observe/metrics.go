// Package observe provides observability primitives for voicerec:
// OpenTelemetry metrics, distributed tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge so the instruments can be scraped on
// /metrics. [DefaultMetrics] returns a package-level instance bound to the
// global provider; tests should use [NewMetrics] with their own
// [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicerec metrics.
const meterName = "github.com/MrWong99/voicerec"

// Outcome labels for recognition attempts.
const (
	OutcomeRecognized   = "recognized"
	OutcomeUnrecognized = "unrecognized"
	OutcomeError        = "error"
	OutcomeUnavailable  = "unavailable"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types are safe for concurrent use.
type Metrics struct {
	// RecognitionDuration tracks the latency of a single provider call.
	// Attributes: provider, outcome.
	RecognitionDuration metric.Float64Histogram

	// ProviderRequests counts recognition attempts by provider and outcome.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed requests by provider and error kind
	// ("request", "panic", "setup").
	ProviderErrors metric.Int64Counter

	// Selections counts which provider the random selector picked.
	Selections metric.Int64Counter

	// HookRecords counts voice-recognition hook invocations by transport
	// ("http", "ws") and whether text was produced.
	HookRecords metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by provider and
	// target state.
	BreakerTransitions metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for cloud
// speech round trips and local inference.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RecognitionDuration, err = m.Float64Histogram("voicerec.recognition.duration",
		metric.WithDescription("Latency of a single speech recognition request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("voicerec.provider.requests",
		metric.WithDescription("Recognition attempts by provider and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voicerec.provider.errors",
		metric.WithDescription("Recognition failures by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Selections, err = m.Int64Counter("voicerec.random.selections",
		metric.WithDescription("Providers chosen by random selection."),
	); err != nil {
		return nil, err
	}
	if met.HookRecords, err = m.Int64Counter("voicerec.hook.records",
		metric.WithDescription("Voice recognition hook invocations by transport and result."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voicerec.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by provider and state."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voicerec.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRecognition records one provider attempt: its latency and outcome.
func (m *Metrics) RecordRecognition(ctx context.Context, provider, outcome string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	m.RecognitionDuration.Record(ctx, seconds, attrs)
	m.ProviderRequests.Add(ctx, 1, attrs)
}

// RecordProviderError records a provider failure of the given kind.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSelection records a random selection result.
func (m *Metrics) RecordSelection(ctx context.Context, provider string) {
	m.Selections.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordHook records a hook invocation.
func (m *Metrics) RecordHook(ctx context.Context, transport string, recognized bool) {
	m.HookRecords.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("transport", transport),
			attribute.Bool("recognized", recognized),
		),
	)
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("state", state),
		),
	)
}
