// Package observe holds the observability layer: OpenTelemetry metric
// instruments, tracing helpers, trace-aware logging and the HTTP middleware
// that ties them to incoming requests.
//
// Metrics flow through the OTel Metrics API and reach Prometheus via the
// exporter bridge installed by [InitProvider]. Production code shares the
// lazily built [DefaultMetrics] instance; tests construct their own with
// [NewMetrics] over an isolated meter provider.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/talevox/talevox"

// stageBuckets are histogram boundaries in seconds, sized for speech and
// language backend latencies (tens of milliseconds up to several seconds).
var stageBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics bundles every instrument the service records. The OTel instrument
// types synchronize internally, so a single instance is shared freely.
type Metrics struct {
	// Per-stage latency histograms.
	RecognitionDuration metric.Float64Histogram
	GenerationDuration  metric.Float64Histogram
	SynthesisDuration   metric.Float64Histogram

	// InteractionDuration covers a whole /npc_interaction request,
	// recognition through history append.
	InteractionDuration metric.Float64Histogram

	// ProviderRequests counts backend calls, partitioned by provider, kind
	// and status.
	ProviderRequests metric.Int64Counter

	// Interactions counts finished interaction requests by npc_id and status.
	Interactions metric.Int64Counter

	// HistoryAppendsDropped counts post-reply history appends lost to store
	// failures. Those failures are swallowed by the pipeline, so this counter
	// is the only place the loss shows up.
	HistoryAppendsDropped metric.Int64Counter

	// ProviderErrors counts failed backend calls by provider and kind.
	ProviderErrors metric.Int64Counter

	// HTTPRequestDuration is recorded by [Middleware] for every request,
	// partitioned by method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics registers all instruments on a meter from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var firstErr error
	hist := func(name, desc string, buckets []float64) metric.Float64Histogram {
		opts := []metric.Float64HistogramOption{
			metric.WithDescription(desc),
			metric.WithUnit("s"),
		}
		if buckets != nil {
			opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
		}
		h, err := meter.Float64Histogram(name, opts...)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c
	}

	m := &Metrics{
		RecognitionDuration: hist("talevox.recognition.duration",
			"Latency of speech-to-text recognition.", stageBuckets),
		GenerationDuration: hist("talevox.generation.duration",
			"Latency of reply generation.", stageBuckets),
		SynthesisDuration: hist("talevox.synthesis.duration",
			"Latency of speech synthesis.", stageBuckets),
		InteractionDuration: hist("talevox.interaction.duration",
			"End-to-end interaction latency.", stageBuckets),
		ProviderRequests: counter("talevox.provider.requests",
			"Total provider API requests by provider, kind, and status."),
		Interactions: counter("talevox.interactions",
			"Total interaction requests by NPC ID and status."),
		HistoryAppendsDropped: counter("talevox.history.appends_dropped",
			"Total history appends lost to store failures."),
		ProviderErrors: counter("talevox.provider.errors",
			"Total provider errors by provider and kind."),
		HTTPRequestDuration: hist("talevox.http.request.duration",
			"HTTP request latency by method and path.", nil),
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the shared [Metrics] instance, built on first use
// from the global meter provider. It panics if instrument registration
// fails, which cannot happen with the SDK provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest increments [Metrics.ProviderRequests].
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordInteraction increments [Metrics.Interactions].
func (m *Metrics) RecordInteraction(ctx context.Context, npcID, status string) {
	m.Interactions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("npc_id", npcID),
			attribute.String("status", status),
		),
	)
}

// RecordHistoryAppendDropped increments [Metrics.HistoryAppendsDropped].
func (m *Metrics) RecordHistoryAppendDropped(ctx context.Context, npcID string) {
	m.HistoryAppendsDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("npc_id", npcID)),
	)
}

// RecordProviderError increments [Metrics.ProviderErrors].
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
