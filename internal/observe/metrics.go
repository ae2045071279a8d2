// Package observe provides application-wide observability primitives for
// MediSynth: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all MediSynth metrics.
const meterName = "github.com/medisynth-ai/medisynth"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SegmentDuration tracks speaker-turn segmentation latency.
	SegmentDuration metric.Float64Histogram

	// ExtractDuration tracks entity extraction latency (model or pattern).
	ExtractDuration metric.Float64Histogram

	// ComposeDuration tracks SOAP composition latency.
	ComposeDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end note generation latency.
	PipelineDuration metric.Float64Histogram

	// TranscribeDuration tracks audio transcription latency.
	TranscribeDuration metric.Float64Histogram

	// --- Counters ---

	// NotesGenerated counts completed note generations. Use with attribute:
	//   attribute.String("format", ...)
	NotesGenerated metric.Int64Counter

	// EntitiesExtracted counts extracted entities. Use with attributes:
	//   attribute.String("category", ...), attribute.String("strategy", ...)
	EntitiesExtracted metric.Int64Counter

	// ExtractorFallbacks counts model-to-pattern extraction fallbacks.
	ExtractorFallbacks metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// InFlightRequests tracks note generations currently being processed.
	InFlightRequests metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The
// pattern path completes in milliseconds; the model path can take seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SegmentDuration, err = m.Float64Histogram("medisynth.segment.duration",
		metric.WithDescription("Latency of speaker-turn segmentation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractDuration, err = m.Float64Histogram("medisynth.extract.duration",
		metric.WithDescription("Latency of entity extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ComposeDuration, err = m.Float64Histogram("medisynth.compose.duration",
		metric.WithDescription("Latency of SOAP note composition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("medisynth.pipeline.duration",
		metric.WithDescription("End-to-end note generation latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("medisynth.transcribe.duration",
		metric.WithDescription("Latency of audio transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.NotesGenerated, err = m.Int64Counter("medisynth.notes.generated",
		metric.WithDescription("Total SOAP notes generated by transcript format."),
	); err != nil {
		return nil, err
	}
	if met.EntitiesExtracted, err = m.Int64Counter("medisynth.entities.extracted",
		metric.WithDescription("Total entities extracted by category and strategy."),
	); err != nil {
		return nil, err
	}
	if met.ExtractorFallbacks, err = m.Int64Counter("medisynth.extractor.fallbacks",
		metric.WithDescription("Total model-to-pattern extraction fallbacks."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("medisynth.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.InFlightRequests, err = m.Int64UpDownCounter("medisynth.inflight_requests",
		metric.WithDescription("Number of note generations currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("medisynth.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
