// Package openai synthesizes speech with an OpenAI-compatible /audio/speech
// endpoint. Groq's hosted PlayAI voices are the default.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voicebot/pkg/audio"
	"github.com/MrWong99/voicebot/pkg/provider/llm"
	llmopenai "github.com/MrWong99/voicebot/pkg/provider/llm/openai"
	"github.com/MrWong99/voicebot/pkg/provider/tts"
)

const (
	// DefaultModel is Groq's hosted text-to-speech model.
	DefaultModel = "playai-tts"

	// DefaultVoice is used when Synthesize receives the zero Voice.
	DefaultVoice = "Fritz-PlayAI"

	// maxResponseBytes caps a single synthesized clip.
	maxResponseBytes = 32 << 20
)

// groqVoices are the English PlayAI voices served by Groq.
var groqVoices = []string{
	"Arista-PlayAI", "Atlas-PlayAI", "Basil-PlayAI", "Briggs-PlayAI",
	"Calum-PlayAI", "Celeste-PlayAI", "Cheyenne-PlayAI", "Chip-PlayAI",
	"Cillian-PlayAI", "Deedee-PlayAI", "Fritz-PlayAI", "Gail-PlayAI",
	"Indigo-PlayAI", "Mamaw-PlayAI", "Mason-PlayAI", "Mikail-PlayAI",
	"Mitch-PlayAI", "Quinn-PlayAI", "Thunder-PlayAI",
}

// openaiVoices are the voices of OpenAI's tts-1 family.
var openaiVoices = []string{
	"alloy", "ash", "coral", "echo", "fable", "onyx", "nova", "sage", "shimmer",
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Option configures a Synthesizer.
type Option func(*config)

type config struct {
	baseURL      string
	defaultVoice string
	voices       []string
	timeout      time.Duration
	httpClient   *http.Client
}

// WithBaseURL points the synthesizer at another OpenAI-compatible server.
// Default: Groq.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithDefaultVoice sets the voice used when none is selected.
func WithDefaultVoice(v string) Option {
	return func(c *config) { c.defaultVoice = v }
}

// WithVoices replaces the voice catalogue returned by ListVoices.
func WithVoices(names ...string) Option {
	return func(c *config) { c.voices = names }
}

// WithOpenAIVoices selects OpenAI's voice catalogue and default voice.
func WithOpenAIVoices() Option {
	return func(c *config) {
		c.voices = openaiVoices
		c.defaultVoice = "alloy"
	}
}

// WithTimeout bounds each synthesis request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithHTTPClient replaces the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// Synthesizer implements tts.Synthesizer using openai-go. It requests WAV
// so the result decodes straight into a PCM clip.
type Synthesizer struct {
	client       oai.Client
	model        string
	defaultVoice string
	voices       []tts.Voice
}

// New returns a Synthesizer authenticating with apiKey. An empty model
// selects [DefaultModel].
func New(apiKey, model string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := config{
		baseURL:      llmopenai.GroqBaseURL,
		defaultVoice: DefaultVoice,
		voices:       groqVoices,
	}
	for _, o := range opts {
		o(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithMaxRetries(0),
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.timeout))
	}

	voices := make([]tts.Voice, len(cfg.voices))
	for i, name := range cfg.voices {
		voices[i] = tts.Voice{ID: name, Name: name, Lang: "en-US"}
	}
	return &Synthesizer{
		client:       oai.NewClient(reqOpts...),
		model:        model,
		defaultVoice: cfg.defaultVoice,
		voices:       voices,
	}, nil
}

// Synthesize renders text and decodes the WAV response. Pitch is not
// supported by the endpoint and is ignored.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, v tts.Voice, set tts.Settings) (audio.Clip, error) {
	voice := v.ID
	if voice == "" {
		voice = s.defaultVoice
	}
	params := oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(s.model),
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	}
	if set.Rate > 0 && set.Rate != 1 {
		params.Speed = oai.Float(set.Rate)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			return audio.Clip{}, fmt.Errorf("openai tts: synthesize: %w",
				&llm.StatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Message})
		}
		return audio.Clip{}, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	wav, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return audio.Clip{}, fmt.Errorf("openai tts: read audio: %w", err)
	}
	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("openai tts: decode audio: %w", err)
	}
	return clip, nil
}

// ListVoices returns the static catalogue configured for this endpoint.
func (s *Synthesizer) ListVoices(context.Context) ([]tts.Voice, error) {
	return append([]tts.Voice(nil), s.voices...), nil
}
