// Command voicebot is the relay server: it holds the upstream API key and
// answers POST /api/chat with replies in the Claude persona.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/voicebot/internal/app"
	"github.com/MrWong99/voicebot/internal/config"
	"github.com/MrWong99/voicebot/internal/credential"
	"github.com/MrWong99/voicebot/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (default: environment only)")
	envPath := flag.String("env", ".env", "path to the .env file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadEnvFile(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "voicebot: %v\n", err)
		return 1
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicebot: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel, cfg.Server.LogFormat))

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voicebot"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg, cfg.Server.UpstreamTimeout)

	providers, err := app.BuildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(cfg, application)

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, config.Validate(cfg)
	}
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found", path)
	}
	return cfg, err
}

// printStartupSummary logs the listen address and whether the upstream key
// looks usable.
func printStartupSummary(cfg *config.Config, a *app.App) {
	key := cfg.Providers.LLM.APIKey
	slog.Info("voicebot starting",
		"listen_addr", cfg.Server.ListenAddr,
		"provider", cfg.Providers.LLM.Name,
		"model", cfg.Providers.LLM.Model,
		"api_key_configured", a.Configured(),
		"api_key_format_valid", credential.Configured(key),
	)
	if !a.Configured() {
		slog.Warn("no usable API key, add " + config.EnvAPIKey + " to the .env file")
	}
	if cfg.Server.StaticDir != "" {
		slog.Info("serving static files", "dir", cfg.Server.StaticDir)
	}
}

func newLogger(level config.LogLevel, format config.LogFormat) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
