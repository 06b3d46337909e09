// Command voicechat is the interactive voice client. It listens on the
// microphone, sends what it hears (or what is typed) to the relay or
// straight to the upstream API, speaks the reply and prints the transcript.
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

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicebot/internal/app"
	"github.com/MrWong99/voicebot/internal/chat"
	"github.com/MrWong99/voicebot/internal/config"
	"github.com/MrWong99/voicebot/internal/console"
	"github.com/MrWong99/voicebot/internal/credential"
	"github.com/MrWong99/voicebot/internal/relay"
	"github.com/MrWong99/voicebot/internal/voice"
	"github.com/MrWong99/voicebot/pkg/audio/oto"
	"github.com/MrWong99/voicebot/pkg/provider/llm"
	"github.com/MrWong99/voicebot/pkg/provider/stt"
	"github.com/MrWong99/voicebot/pkg/provider/stt/mic"
	"github.com/MrWong99/voicebot/pkg/provider/tts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (default: environment only)")
	envPath := flag.String("env", ".env", "path to the .env file")
	mode := flag.String("mode", "", "override client.mode: relay or direct")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadEnvFile(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "voicechat: %v\n", err)
		return 1
	}
	cfg, err := loadConfig(*configPath, config.Mode(*mode))
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicechat: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel, cfg.Server.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg, cfg.Server.UpstreamTimeout)

	// ── Chat client ───────────────────────────────────────────────────────────
	var (
		client   voice.ChatClient
		store    credential.Store
		subtitle string
	)
	switch cfg.Client.Mode {
	case config.ModeDirect:
		path := cfg.Client.CredentialFile
		if path == "" {
			if path, err = credential.DefaultPath(); err != nil {
				slog.Error("failed to locate credential file", "err", err)
				return 1
			}
		}
		store = credential.NewFileStore(path)
		client = chat.NewDirect(store, func(key string) (llm.Provider, error) {
			entry := cfg.Providers.LLM
			entry.APIKey = key
			return reg.CreateLLM(entry)
		})
		subtitle = fmt.Sprintf("direct mode, %s %s, key file %s", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model, path)
	default:
		rc := relay.NewClient(cfg.Client.RelayURL)
		client = rc
		subtitle = "relay " + cfg.Client.RelayURL
		checkRelay(ctx, rc)
	}

	// ── Voice adapters ────────────────────────────────────────────────────────
	storedKey := func() string {
		if store == nil {
			return ""
		}
		key, _ := store.Get(credential.EntryName)
		return key
	}

	var source stt.Source
	if src, err := mic.New(mic.WithMaxDuration(cfg.Client.MaxListen)); err != nil {
		slog.Warn("microphone unavailable, voice input disabled", "err", err)
	} else {
		source = src
		defer src.Close()
	}
	var transcriber stt.Transcriber
	if t, err := buildAdapter("stt", withKey(cfg.Providers.STT, storedKey()), reg.CreateSTT); err == nil {
		transcriber = t
	}
	rec := stt.NewPipeline(source, transcriber, stt.WithMaxListen(cfg.Client.MaxListen))

	opts := []voice.Option{
		voice.WithRecognizer(rec),
		voice.WithRevealInterval(cfg.Client.RevealInterval),
		voice.WithReadyHintDelay(cfg.Client.ReadyHintDelay),
		voice.WithCaptureDelay(cfg.Client.CaptureDelay),
	}
	if store != nil {
		opts = append(opts, voice.WithCredentialStore(store))
	}
	if synth, err := buildAdapter("tts", withKey(cfg.Providers.TTS, storedKey()), reg.CreateTTS); err == nil {
		if player, err := oto.New(); err != nil {
			slog.Warn("audio output unavailable, replies are shown as text", "err", err)
		} else {
			opts = append(opts, voice.WithSpeaker(tts.NewPipeline(synth, player)))
		}
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	view := console.New(os.Stdout)
	opts = append(opts, voice.WithView(view))
	ctrl := voice.NewController(client, opts...)
	view.Banner(subtitle)

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, cancelLoop := context.WithCancel(gctx)
	defer cancelLoop()
	g.Go(func() error {
		return ctrl.Run(loopCtx)
	})
	g.Go(func() error {
		defer cancelLoop()
		return console.Loop(loopCtx, os.Stdin, view, ctrl)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	rec.Wait()
	return 0
}

func loadConfig(path string, mode config.Mode) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found", path)
		}
		return nil, err
	}
	if mode != "" {
		cfg.SetMode(mode)
	}
	return cfg, config.Validate(cfg)
}

// withKey fills a missing API key from the locally stored one when the
// entry targets the same provider as the stored key.
func withKey(entry config.ProviderEntry, stored string) config.ProviderEntry {
	if entry.APIKey == "" && credential.Usable(stored) && entry.Name == config.DefaultLLMProvider {
		entry.APIKey = stored
	}
	return entry
}

// buildAdapter creates an optional voice provider. Failures are logged; the
// client then runs without that capability.
func buildAdapter[T any](kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (T, error)) (T, error) {
	var zero T
	if entry.Name == "" {
		return zero, fmt.Errorf("no %s provider configured", kind)
	}
	p, err := create(entry)
	if err != nil {
		slog.Warn("voice provider unavailable", "kind", kind, "name", entry.Name, "err", err)
		return zero, err
	}
	return p, nil
}

// checkRelay logs whether the relay is reachable and holds a key. The
// client works either way; failures surface per message.
func checkRelay(ctx context.Context, rc *relay.Client) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	h, err := rc.Health(ctx)
	switch {
	case err != nil:
		slog.Warn("relay not reachable", "err", err)
	case !h.APIKeyConfigured:
		slog.Warn("relay has no valid API key configured")
	default:
		slog.Info("relay ready", "message", h.Message)
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
