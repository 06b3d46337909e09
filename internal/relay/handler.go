// Package relay implements the HTTP relay between the voice client and the
// upstream chat-completion API, and the client that talks to it.
//
// The relay is stateless: each POST /api/chat attaches the persona prompt to
// one user message, forwards it upstream and returns the first choice's text.
// Every failure is answered with an [ErrorResponse] whose code tells the
// client whether the problem is its input, the server's credential, or the
// upstream.
package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/voicebot/internal/chat"
	"github.com/MrWong99/voicebot/internal/credential"
	"github.com/MrWong99/voicebot/internal/observe"
	"github.com/MrWong99/voicebot/internal/persona"
	"github.com/MrWong99/voicebot/pkg/provider/llm"
)

// MaxBodyBytes caps the size of a POST /api/chat body.
const MaxBodyBytes = 64 << 10

// HealthMessage is reported by GET /api/health.
const HealthMessage = "Claude Voice Bot Server is running!"

// Option configures a [Handler].
type Option func(*Handler)

// WithMetrics records chat outcomes and upstream latency on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithProviderName sets the provider label used in metrics and logs.
// Default: "groq".
func WithProviderName(name string) Option {
	return func(h *Handler) { h.providerName = name }
}

// WithKeyOptional lets the relay forward requests without a usable API key,
// for local providers that need none.
func WithKeyOptional() Option {
	return func(h *Handler) { h.keyOptional = true }
}

// Handler serves the relay endpoints. Safe for concurrent use.
type Handler struct {
	provider     llm.Provider
	apiKey       string
	providerName string
	keyOptional  bool
	metrics      *observe.Metrics
}

// NewHandler returns a Handler forwarding to provider. apiKey is the
// credential the provider was built with; a nil provider or an unusable key
// makes every chat request fail with not_configured.
func NewHandler(provider llm.Provider, apiKey string, opts ...Option) *Handler {
	h := &Handler{
		provider:     provider,
		apiKey:       apiKey,
		providerName: "groq",
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the relay routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("GET /api/health", h.Health)
}

// Configured reports whether the relay can call upstream.
func (h *Handler) Configured() bool {
	return h.provider != nil && (h.keyOptional || credential.Usable(h.apiKey))
}

// Health reports liveness and whether the credential looks valid.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "OK",
		Message:          HealthMessage,
		APIKeyConfigured: (h.keyOptional && h.provider != nil) || credential.Configured(h.apiKey),
	})
}

// Chat forwards one user message upstream and returns the reply.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		h.fail(w, r, &chat.Error{Code: chat.CodeInvalidRequest, Message: chat.MsgInvalidRequest, Err: err})
		return
	}

	if !h.Configured() {
		h.fail(w, r, &chat.Error{Code: chat.CodeNotConfigured, Message: chat.MsgNotConfigured})
		return
	}

	ctx, span := observe.StartUpstreamSpan(ctx, h.providerName)
	defer span.End()

	if h.metrics != nil {
		h.metrics.InFlight.Add(ctx, 1)
		defer h.metrics.InFlight.Add(ctx, -1)
	}

	start := time.Now()
	resp, err := h.provider.Complete(ctx, persona.Request(req.Message))
	if h.metrics != nil {
		h.metrics.RecordUpstream(ctx, h.providerName, time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream failed")
		if h.metrics != nil {
			h.metrics.RecordUpstreamError(ctx, h.providerName, errorKind(err))
		}
		h.fail(w, r.WithContext(ctx), chat.Classify(err))
		return
	}

	h.record(r, observe.OutcomeOK)
	writeJSON(w, http.StatusOK, ChatResponse{Response: resp.Content})
}

// fail logs e and writes it as an [ErrorResponse].
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, e *chat.Error) {
	status := StatusFor(e.Code)
	log := observe.Logger(r.Context())
	switch {
	case status >= http.StatusInternalServerError:
		attrs := []any{"code", e.Code, "err", e.Err}
		var se *llm.StatusError
		if errors.As(e.Err, &se) {
			attrs = append(attrs, "upstream_status", se.StatusCode)
		}
		log.Error("relay: chat failed", attrs...)
	default:
		log.Debug("relay: rejected request", "code", e.Code, "err", e.Err)
	}
	h.record(r, string(e.Code))
	writeJSON(w, status, ErrorResponse{Error: e.Message, Code: string(e.Code)})
}

func (h *Handler) record(r *http.Request, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordChat(r.Context(), outcome)
	}
}

// StatusFor returns the HTTP status the relay answers with for code.
func StatusFor(code chat.Code) int {
	switch code {
	case chat.CodeInvalidRequest:
		return http.StatusBadRequest
	case chat.CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	var se *llm.StatusError
	switch {
	case llm.IsUnauthorized(err):
		return "unauthorized"
	case errors.As(err, &se):
		return "status"
	default:
		return "transport"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("relay: write response", "err", err)
	}
}
