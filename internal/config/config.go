// Package config provides the configuration schema, loader, and provider registry
// for the voicebot relay and voice client.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Mode selects how the voice client reaches the language model.
type Mode string

const (
	// ModeRelay sends messages to a relay server, which holds the key.
	ModeRelay Mode = "relay"

	// ModeDirect calls the upstream API with a locally stored key.
	ModeDirect Mode = "direct"
)

// IsValid reports whether m is a recognised client mode.
func (m Mode) IsValid() bool {
	return m == ModeRelay || m == ModeDirect
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader],
// or built from the environment alone with [Default].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Client    ClientConfig    `yaml:"client"`
}

// ServerConfig holds network and logging settings for the relay server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":3002").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects text or JSON log output.
	LogFormat LogFormat `yaml:"log_format"`

	// StaticDir, when set, is served at "/".
	StaticDir string `yaml:"static_dir"`

	// CORSOrigin is sent as Access-Control-Allow-Origin.
	CORSOrigin string `yaml:"cors_origin"`

	// UpstreamTimeout bounds each relay to upstream call. Zero means no limit.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "groq", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// ClientConfig holds settings for the interactive voice client.
type ClientConfig struct {
	// Mode is relay or direct.
	Mode Mode `yaml:"mode"`

	// RelayURL is the relay server root used in relay mode.
	RelayURL string `yaml:"relay_url"`

	// CredentialFile stores the API key in direct mode. Empty selects the
	// per-user default location.
	CredentialFile string `yaml:"credential_file"`

	// RevealInterval is the delay between revealed words of a reply.
	RevealInterval time.Duration `yaml:"reveal_interval"`

	// ReadyHintDelay is how long after speech ends the ready hint appears.
	ReadyHintDelay time.Duration `yaml:"ready_hint_delay"`

	// CaptureDelay is the pause between a captured transcript and its submission.
	CaptureDelay time.Duration `yaml:"capture_delay"`

	// MaxListen bounds one listening session.
	MaxListen time.Duration `yaml:"max_listen"`
}
