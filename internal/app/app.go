// Package app wires the relay server together.
//
// The App struct owns the full lifecycle: New builds the HTTP surface from the
// config and providers, Run serves until the context is cancelled, and
// Shutdown drains in-flight requests and runs the registered closers.
//
// For testing, inject doubles via functional options (WithMetrics,
// WithListener) and drive the result through [App.Handler].
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicebot/internal/config"
	"github.com/MrWong99/voicebot/internal/health"
	"github.com/MrWong99/voicebot/internal/observe"
	"github.com/MrWong99/voicebot/internal/relay"
	"github.com/MrWong99/voicebot/pkg/provider/llm"
	"github.com/MrWong99/voicebot/pkg/provider/stt"
	"github.com/MrWong99/voicebot/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated via [BuildProviders].
type Providers struct {
	LLM llm.Provider
	STT stt.Transcriber
	TTS tts.Synthesizer
}

// ErrCredentialMissing is reported by the readiness check while the relay
// has no usable upstream credential.
var ErrCredentialMissing = errors.New("app: upstream credential not configured")

// App owns the relay server lifetime.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	listener       net.Listener

	relay   *relay.Handler
	handler http.Handler
	server  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records relay metrics on m instead of the global meter.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h at /metrics. Default: [observe.MetricsHandler].
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithListener makes Run serve on l instead of listening on
// cfg.Server.ListenAddr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithCloser registers fn to run during Shutdown, after the HTTP server
// stopped.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New builds the relay's HTTP surface:
//
//	POST /api/chat, GET /api/health   relay endpoints
//	GET /healthz, GET /readyz         health checks
//	GET /metrics                      Prometheus scrape
//	/                                 cfg.Server.StaticDir, when set
//
// wrapped in CORS and the observability middleware.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsHandler == nil {
		a.metricsHandler = observe.MetricsHandler()
	}

	entry := cfg.Providers.LLM
	relayOpts := []relay.Option{
		relay.WithMetrics(a.metrics),
		relay.WithProviderName(entry.Name),
	}
	if KeylessLLM(entry.Name) {
		relayOpts = append(relayOpts, relay.WithKeyOptional())
	}
	a.relay = relay.NewHandler(providers.LLM, entry.APIKey, relayOpts...)

	mux := http.NewServeMux()
	a.relay.Register(mux)
	health.New(a.credentialChecker()).Register(mux)
	mux.Handle("GET /metrics", a.metricsHandler)
	if dir := cfg.Server.StaticDir; dir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(dir)))
	}

	a.handler = observe.Middleware(a.metrics)(relay.CORS(cfg.Server.CORSOrigin)(mux))
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// credentialChecker fails readiness until the relay can call upstream.
func (a *App) credentialChecker() health.Checker {
	return health.Checker{
		Name: "upstream_credential",
		Check: func(context.Context) error {
			if !a.relay.Configured() {
				return ErrCredentialMissing
			}
			return nil
		},
	}
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Configured reports whether the relay holds a usable upstream credential.
func (a *App) Configured() bool { return a.relay.Configured() }

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown stops accepting requests, waits for in-flight ones and runs the
// closers in order. It respects the context deadline: if ctx expires before
// all closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
