// Package observe provides the relay's observability primitives:
// OpenTelemetry metrics and tracing, trace-aware logging, and the HTTP
// middleware that ties them together.
//
// Metrics are exported through a Prometheus bridge set up by [InitProvider]
// and scraped at /metrics. Tests should build their own [Metrics] with
// [NewMetrics] and an sdkmetric.ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/voicebot"

// Chat outcomes recorded on [Metrics.ChatRequests].
const (
	OutcomeOK             = "ok"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeNotConfigured  = "not_configured"
	OutcomeInvalidAPIKey  = "invalid_api_key"
	OutcomeUpstream       = "upstream_error"
	OutcomeProcessing     = "processing_error"
)

// Metrics holds all metric instruments. Safe for concurrent use.
type Metrics struct {
	// ChatRequests counts /api/chat requests by attribute "outcome".
	ChatRequests metric.Int64Counter

	// UpstreamDuration tracks chat-completion latency against the upstream
	// API, by attribute "provider".
	UpstreamDuration metric.Float64Histogram

	// UpstreamErrors counts failed upstream calls by "provider" and "kind"
	// ("unauthorized", "status", "transport").
	UpstreamErrors metric.Int64Counter

	// InFlight tracks upstream calls currently waiting for a reply.
	InFlight metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time by "method"
	// and "path".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Completions of up to
// 1000 tokens routinely take several seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// NewMetrics creates all instruments on the given [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ChatRequests, err = m.Int64Counter("voicebot.chat.requests",
		metric.WithDescription("Chat relay requests by outcome."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamDuration, err = m.Float64Histogram("voicebot.upstream.duration",
		metric.WithDescription("Latency of upstream chat completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UpstreamErrors, err = m.Int64Counter("voicebot.upstream.errors",
		metric.WithDescription("Failed upstream chat completions by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.InFlight, err = m.Int64UpDownCounter("voicebot.upstream.in_flight",
		metric.WithDescription("Upstream chat completions awaiting a reply."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicebot.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, created on
// first call from [otel.GetMeterProvider]. Call [InitProvider] first so the
// instruments land on the Prometheus bridge.
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

// RecordChat increments the chat request counter for outcome.
func (m *Metrics) RecordChat(ctx context.Context, outcome string) {
	m.ChatRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordUpstream records the latency of one upstream call.
func (m *Metrics) RecordUpstream(ctx context.Context, provider string, seconds float64) {
	m.UpstreamDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordUpstreamError increments the upstream error counter.
func (m *Metrics) RecordUpstreamError(ctx context.Context, provider, kind string) {
	m.UpstreamErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
