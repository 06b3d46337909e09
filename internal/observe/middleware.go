package observe

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// CorrelationHeader carries the request's trace ID back to the caller.
const CorrelationHeader = "X-Correlation-ID"

// panicBody is written when a handler panics before producing a response.
const panicBody = `{"error":"Internal server error"}`

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.statusCode = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Middleware wraps every relay request in a server span, echoes the trace ID
// as [CorrelationHeader], records [Metrics.HTTPRequestDuration] and logs one
// line on completion. A panic in next is converted into a 500 JSON response
// so one bad request never takes the relay down.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set(CorrelationHeader, cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			r = r.WithContext(ctx)
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				if v := recover(); v != nil {
					span.SetStatus(codes.Error, "panic")
					Logger(ctx).Error("handler panicked",
						"path", r.URL.Path,
						"panic", v,
						"stack", string(debug.Stack()),
					)
					if !rec.wroteHeader {
						rec.Header().Set("Content-Type", "application/json")
						rec.WriteHeader(http.StatusInternalServerError)
						_, _ = rec.Write([]byte(panicBody))
					}
				}

				duration := time.Since(start)
				m.HTTPRequestDuration.Record(ctx, duration.Seconds(),
					metric.WithAttributes(
						attribute.String("method", r.Method),
						attribute.String("path", r.URL.Path),
					),
				)
				span.SetAttributes(semconv.HTTPResponseStatusCode(rec.statusCode))
				if rec.statusCode >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(rec.statusCode))
				}

				slog.LogAttrs(ctx, slog.LevelInfo, "request completed",
					slog.String("trace_id", cid),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", rec.statusCode),
					slog.Duration("duration", duration),
				)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
