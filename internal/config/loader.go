package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by [Default] and [LoadFromReader] to unset fields.
const (
	DefaultPort           = "3002"
	DefaultLLMProvider    = "groq"
	DefaultRelayModel     = "llama-3.1-8b-instant"
	DefaultDirectModel    = "llama-3.1-70b-versatile"
	DefaultRelayURL       = "http://localhost:" + DefaultPort
	DefaultRevealInterval = 300 * time.Millisecond
	DefaultReadyHintDelay = time.Second
	DefaultCaptureDelay   = 500 * time.Millisecond
	DefaultMaxListen      = 15 * time.Second
)

// Environment variables consulted when the matching field is unset.
const (
	EnvAPIKey = "GROQ_API_KEY"
	EnvPort   = "PORT"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"groq", "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "llamacpp", "llamafile"},
	"stt": {"groq", "openai", "whisper"},
	"tts": {"groq", "openai", "elevenlabs"},
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load env file %q: %w", path, err)
	}
	return nil
}

// Load reads the YAML configuration file at path, expands ${VAR} references
// against the environment and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg, err := LoadFromReader(strings.NewReader(os.ExpandEnv(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills unset fields from the
// environment and defaults, and validates the result. An empty document is
// equivalent to [Default].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given: Groq for
// every provider, the key from GROQ_API_KEY and the port from PORT.
func Default() *Config {
	cfg := &Config{}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		if port := os.Getenv(EnvPort); port != "" {
			cfg.Server.ListenAddr = ":" + port
		}
	}
	llm := &cfg.Providers.LLM
	if llm.APIKey == "" && (llm.Name == "" || llm.Name == DefaultLLMProvider) {
		llm.APIKey = os.Getenv(EnvAPIKey)
	}
}

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = ":" + DefaultPort
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.LogFormat == "" {
		s.LogFormat = LogFormatText
	}
	if s.CORSOrigin == "" {
		s.CORSOrigin = "*"
	}

	c := &cfg.Client
	if c.Mode == "" {
		c.Mode = ModeRelay
	}

	p := &cfg.Providers
	if p.LLM.Name == "" {
		p.LLM.Name = DefaultLLMProvider
	}
	if p.LLM.Model == "" && p.LLM.Name == DefaultLLMProvider {
		p.LLM.Model = DefaultModel(c.Mode)
	}
	// STT and TTS default to the LLM vendor and share its key.
	for _, e := range []*ProviderEntry{&p.STT, &p.TTS} {
		if e.Name == "" {
			e.Name = p.LLM.Name
		}
		if e.APIKey == "" && e.Name == p.LLM.Name {
			e.APIKey = p.LLM.APIKey
		}
	}

	if c.RelayURL == "" {
		c.RelayURL = DefaultRelayURL
	}
	if c.RevealInterval == 0 {
		c.RevealInterval = DefaultRevealInterval
	}
	if c.ReadyHintDelay == 0 {
		c.ReadyHintDelay = DefaultReadyHintDelay
	}
	if c.CaptureDelay == 0 {
		c.CaptureDelay = DefaultCaptureDelay
	}
	if c.MaxListen == 0 {
		c.MaxListen = DefaultMaxListen
	}
}

// DefaultModel returns the Groq model used when none is configured: the relay
// answers with the small instant model, the client-only variant with the
// larger versatile one.
func DefaultModel(m Mode) string {
	if m == ModeDirect {
		return DefaultDirectModel
	}
	return DefaultRelayModel
}

// SetMode switches the client mode after loading. A Groq model that was left
// at the old mode's default follows the new mode.
func (cfg *Config) SetMode(m Mode) {
	llm := &cfg.Providers.LLM
	if llm.Name == DefaultLLMProvider && llm.Model == DefaultModel(cfg.Client.Mode) {
		llm.Model = DefaultModel(m)
	}
	cfg.Client.Mode = m
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.UpstreamTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.upstream_timeout %s must not be negative", cfg.Server.UpstreamTimeout))
	}
	if cfg.Server.StaticDir != "" {
		if fi, err := os.Stat(cfg.Server.StaticDir); err != nil || !fi.IsDir() {
			errs = append(errs, fmt.Errorf("server.static_dir %q is not a directory", cfg.Server.StaticDir))
		}
	}

	// Providers
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Client
	c := cfg.Client
	if c.Mode != "" && !c.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("client.mode %q is invalid; valid values: relay, direct", c.Mode))
	}
	if c.Mode == ModeRelay {
		if u, err := url.Parse(c.RelayURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("client.relay_url %q must be an http(s) URL", c.RelayURL))
		}
	}
	for name, d := range map[string]time.Duration{
		"reveal_interval":  c.RevealInterval,
		"ready_hint_delay": c.ReadyHintDelay,
		"capture_delay":    c.CaptureDelay,
		"max_listen":       c.MaxListen,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("client.%s %s must not be negative", name, d))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// OptString returns the string option key from opts, or "".
func OptString(opts map[string]any, key string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}
