package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voicebot/internal/config"
)

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
  log_format: json
  cors_origin: "https://example.com"
  upstream_timeout: 20s
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  stt:
    name: whisper
    base_url: http://localhost:8081
  tts:
    name: elevenlabs
    api_key: xi-test
    options:
      voice: Rachel
client:
  mode: direct
  reveal_interval: 100ms
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogFormat != config.LogFormatJSON {
		t.Errorf("LogFormat = %q, want %q", cfg.Server.LogFormat, config.LogFormatJSON)
	}
	if cfg.Server.UpstreamTimeout != 20*time.Second {
		t.Errorf("UpstreamTimeout = %v, want 20s", cfg.Server.UpstreamTimeout)
	}
	if cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want %q", cfg.Providers.LLM.Model, "gpt-4o-mini")
	}
	if cfg.Providers.STT.APIKey != "" {
		t.Errorf("STT.APIKey = %q, want empty for a different vendor", cfg.Providers.STT.APIKey)
	}
	if got := config.OptString(cfg.Providers.TTS.Options, "voice"); got != "Rachel" {
		t.Errorf("tts voice option = %q, want %q", got, "Rachel")
	}
	if cfg.Client.Mode != config.ModeDirect {
		t.Errorf("Mode = %q, want %q", cfg.Client.Mode, config.ModeDirect)
	}
	if cfg.Client.RevealInterval != 100*time.Millisecond {
		t.Errorf("RevealInterval = %v, want 100ms", cfg.Client.RevealInterval)
	}
	if cfg.Client.ReadyHintDelay != config.DefaultReadyHintDelay {
		t.Errorf("ReadyHintDelay = %v, want %v", cfg.Client.ReadyHintDelay, config.DefaultReadyHintDelay)
	}
}

func TestLoadFromReader_EmptyIsDefault(t *testing.T) {
	t.Setenv(config.EnvAPIKey, "gsk_fromenv")
	t.Setenv(config.EnvPort, "4000")

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	def := config.Default()

	if cfg.Server.ListenAddr != ":4000" || def.Server.ListenAddr != ":4000" {
		t.Errorf("ListenAddr = %q / %q, want %q", cfg.Server.ListenAddr, def.Server.ListenAddr, ":4000")
	}
	for _, e := range []config.ProviderEntry{cfg.Providers.LLM, cfg.Providers.STT, cfg.Providers.TTS, def.Providers.TTS} {
		if e.Name != config.DefaultLLMProvider {
			t.Errorf("provider name = %q, want %q", e.Name, config.DefaultLLMProvider)
		}
		if e.APIKey != "gsk_fromenv" {
			t.Errorf("%s api key = %q, want %q", e.Name, e.APIKey, "gsk_fromenv")
		}
	}
	if cfg.Providers.LLM.Model != config.DefaultRelayModel {
		t.Errorf("LLM.Model = %q, want %q", cfg.Providers.LLM.Model, config.DefaultRelayModel)
	}
	if cfg.Client.Mode != config.ModeRelay || cfg.Client.RelayURL != config.DefaultRelayURL {
		t.Errorf("client = %+v, want relay mode at %s", cfg.Client, config.DefaultRelayURL)
	}
	if cfg.Server.CORSOrigin != "*" {
		t.Errorf("CORSOrigin = %q, want %q", cfg.Server.CORSOrigin, "*")
	}
}

func TestLoadFromReader_DefaultPort(t *testing.T) {
	t.Setenv(config.EnvPort, "")
	cfg := config.Default()
	if cfg.Server.ListenAddr != ":3002" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, ":3002")
	}
}

func TestLoadFromReader_FileKeyWinsOverEnv(t *testing.T) {
	t.Setenv(config.EnvAPIKey, "gsk_fromenv")
	cfg, err := config.LoadFromReader(strings.NewReader("providers:\n  llm:\n    api_key: gsk_fromfile\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "gsk_fromfile" {
		t.Errorf("APIKey = %q, want %q", cfg.Providers.LLM.APIKey, "gsk_fromfile")
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adr: \":1\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "invalid log level",
			yaml: "server:\n  log_level: verbose\n",
			want: []string{"log_level"},
		},
		{
			name: "invalid log format",
			yaml: "server:\n  log_format: xml\n",
			want: []string{"log_format"},
		},
		{
			name: "negative timeout",
			yaml: "server:\n  upstream_timeout: -1s\n",
			want: []string{"upstream_timeout"},
		},
		{
			name: "missing static dir",
			yaml: "server:\n  static_dir: /does/not/exist/voicebot\n",
			want: []string{"static_dir"},
		},
		{
			name: "invalid mode",
			yaml: "client:\n  mode: p2p\n",
			want: []string{"client.mode"},
		},
		{
			name: "bad relay url",
			yaml: "client:\n  relay_url: localhost:3002\n",
			want: []string{"relay_url"},
		},
		{
			name: "multiple errors",
			yaml: "server:\n  log_level: loud\nclient:\n  mode: p2p\n  max_listen: -5s\n",
			want: []string{"log_level", "client.mode", "max_listen"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

func TestValidate_DirectModeIgnoresRelayURL(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Client.Mode = config.ModeDirect
	cfg.Client.RelayURL = "not a url"
	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("VOICEBOT_TEST_KEY", "gsk_expanded")
	path := filepath.Join(t.TempDir(), "voicebot.yaml")
	content := "providers:\n  llm:\n    name: groq\n    api_key: ${VOICEBOT_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "gsk_expanded" {
		t.Errorf("APIKey = %q, want %q", cfg.Providers.LLM.APIKey, "gsk_expanded")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	if err := config.LoadEnvFile(filepath.Join(dir, "absent.env")); err != nil {
		t.Errorf("LoadEnvFile(missing) = %v, want nil", err)
	}

	t.Setenv("VOICEBOT_ENV_PRESET", "kept")
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VOICEBOT_ENV_NEW=loaded\nVOICEBOT_ENV_PRESET=overridden\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOICEBOT_ENV_NEW", "")
	os.Unsetenv("VOICEBOT_ENV_NEW")

	if err := config.LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("VOICEBOT_ENV_NEW"); got != "loaded" {
		t.Errorf("VOICEBOT_ENV_NEW = %q, want %q", got, "loaded")
	}
	if got := os.Getenv("VOICEBOT_ENV_PRESET"); got != "kept" {
		t.Errorf("VOICEBOT_ENV_PRESET = %q, want %q", got, "kept")
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"llm", "stt", "tts"} {
		names := config.ValidProviderNames[kind]
		found := false
		for _, n := range names {
			if n == "groq" {
				found = true
			}
		}
		if !found {
			t.Errorf("ValidProviderNames[%q] should contain \"groq\"", kind)
		}
	}
}

func TestDefaultModelByMode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "relay", yaml: "client:\n  mode: relay\n", want: config.DefaultRelayModel},
		{name: "direct", yaml: "client:\n  mode: direct\n", want: config.DefaultDirectModel},
		{name: "explicit", yaml: "client:\n  mode: direct\nproviders:\n  llm:\n    name: groq\n    model: mixtral-8x7b-32768\n", want: "mixtral-8x7b-32768"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err != nil {
				t.Fatalf("LoadFromReader: %v", err)
			}
			if got := cfg.Providers.LLM.Model; got != tc.want {
				t.Errorf("LLM.Model = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestConfig_SetMode(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	cfg.SetMode(config.ModeDirect)
	if cfg.Client.Mode != config.ModeDirect || cfg.Providers.LLM.Model != config.DefaultDirectModel {
		t.Errorf("mode = %q model = %q, want direct with %q", cfg.Client.Mode, cfg.Providers.LLM.Model, config.DefaultDirectModel)
	}

	cfg.Providers.LLM.Model = "custom"
	cfg.SetMode(config.ModeRelay)
	if cfg.Providers.LLM.Model != "custom" {
		t.Errorf("model = %q, want configured model kept", cfg.Providers.LLM.Model)
	}
}
