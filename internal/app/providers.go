package app

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voicebot/internal/config"
	"github.com/MrWong99/voicebot/pkg/provider/llm"
	"github.com/MrWong99/voicebot/pkg/provider/llm/anyllm"
	llmopenai "github.com/MrWong99/voicebot/pkg/provider/llm/openai"
	"github.com/MrWong99/voicebot/pkg/provider/stt"
	sttopenai "github.com/MrWong99/voicebot/pkg/provider/stt/openai"
	"github.com/MrWong99/voicebot/pkg/provider/stt/whisper"
	"github.com/MrWong99/voicebot/pkg/provider/tts"
	"github.com/MrWong99/voicebot/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/MrWong99/voicebot/pkg/provider/tts/openai"
)

// keylessLLMs are local servers that accept requests without an API key.
var keylessLLMs = []string{"ollama", "llamacpp", "llamafile"}

// KeylessLLM reports whether the named LLM provider runs without a key.
func KeylessLLM(name string) bool {
	return slices.Contains(keylessLLMs, name)
}

// RegisterBuiltinProviders wires all built-in provider factories into reg.
// timeout bounds each upstream request of the hosted providers; zero means
// no limit.
func RegisterBuiltinProviders(reg *config.Registry, timeout time.Duration) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	reg.RegisterLLM("groq", func(entry config.ProviderEntry) (llm.Provider, error) {
		opts := []llmopenai.Option{llmopenai.WithTimeout(timeout)}
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.NewGroq(entry.APIKey, entry.Model, opts...)
	})
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		opts := []llmopenai.Option{llmopenai.WithTimeout(timeout)}
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		if org := config.OptString(entry.Options, "organization"); org != "" {
			opts = append(opts, llmopenai.WithOrganization(org))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})
	// The remaining vendors share one pattern: optional APIKey + optional BaseURL.
	for _, vendor := range anyllm.Vendors {
		reg.RegisterLLM(vendor, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(vendor, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterSTT("groq", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		opts := []sttopenai.Option{sttopenai.WithTimeout(timeout)}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})
	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		base := entry.BaseURL
		if base == "" {
			base = llmopenai.OpenAIBaseURL
		}
		model := entry.Model
		if model == "" {
			model = "whisper-1"
		}
		return sttopenai.New(entry.APIKey, model, sttopenai.WithBaseURL(base), sttopenai.WithTimeout(timeout))
	})
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────
	reg.RegisterTTS("groq", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		opts := []ttsopenai.Option{ttsopenai.WithTimeout(timeout)}
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if v := config.OptString(entry.Options, "voice"); v != "" {
			opts = append(opts, ttsopenai.WithDefaultVoice(v))
		}
		return ttsopenai.New(entry.APIKey, entry.Model, opts...)
	})
	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		base := entry.BaseURL
		if base == "" {
			base = llmopenai.OpenAIBaseURL
		}
		model := entry.Model
		if model == "" {
			model = "tts-1"
		}
		opts := []ttsopenai.Option{
			ttsopenai.WithBaseURL(base),
			ttsopenai.WithOpenAIVoices(),
			ttsopenai.WithTimeout(timeout),
		}
		if v := config.OptString(entry.Options, "voice"); v != "" {
			opts = append(opts, ttsopenai.WithDefaultVoice(v))
		}
		return ttsopenai.New(entry.APIKey, model, opts...)
	})
	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	for _, kind := range []string{"llm", "stt", "tts"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// BuildProviders instantiates the providers named in cfg using the registry.
// A slot whose entry has no API key and whose factory refuses to build
// without one is left nil so the caller can run unconfigured.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	var (
		ps  Providers
		err error
	)
	if ps.LLM, err = build("llm", cfg.Providers.LLM, reg.CreateLLM); err != nil {
		return nil, err
	}
	if ps.STT, err = build("stt", cfg.Providers.STT, reg.CreateSTT); err != nil {
		return nil, err
	}
	if ps.TTS, err = build("tts", cfg.Providers.TTS, reg.CreateTTS); err != nil {
		return nil, err
	}
	return &ps, nil
}

func build[T any](kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (T, error)) (T, error) {
	var zero T
	if entry.Name == "" {
		return zero, nil
	}
	p, err := create(entry)
	switch {
	case errors.Is(err, config.ErrProviderNotRegistered):
		return zero, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	case err != nil && entry.APIKey == "":
		slog.Warn("provider not configured", "kind", kind, "name", entry.Name, "err", err)
		return zero, nil
	case err != nil:
		return zero, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", entry.Name)
	return p, nil
}
