package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProviderKey is the span attribute naming the upstream LLM provider.
const ProviderKey = attribute.Key("voicebot.provider")

type providerCtxKey struct{}

// tracerName is the instrumentation scope name for relay spans.
const tracerName = "github.com/MrWong99/voicebot"

// Tracer returns the relay tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartUpstreamSpan starts a client span for a call to the named upstream
// provider. The provider is also recorded on the returned context so that
// [Logger] tags relay log lines with it. The caller must end the span.
func StartUpstreamSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	ctx = context.WithValue(ctx, providerCtxKey{}, provider)
	return StartSpan(ctx, "upstream.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(ProviderKey.String(provider)),
	)
}

// Provider returns the upstream provider recorded by [StartUpstreamSpan], or
// "" when ctx carries none.
func Provider(ctx context.Context) string {
	p, _ := ctx.Value(providerCtxKey{}).(string)
	return p
}

// CorrelationID returns the hex trace ID of the span in ctx, or "" when ctx
// carries no valid span.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span, and provider attached when it carries an upstream call.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if p := Provider(ctx); p != "" {
		l = l.With(slog.String("provider", p))
	}
	return l
}
