// Package openai transcribes recordings with an OpenAI-compatible
// /audio/transcriptions endpoint. Groq's hosted Whisper is the default.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voicebot/pkg/provider/llm"
	llmopenai "github.com/MrWong99/voicebot/pkg/provider/llm/openai"
	"github.com/MrWong99/voicebot/pkg/provider/stt"
)

// DefaultModel is Groq's hosted Whisper model.
const DefaultModel = "whisper-large-v3"

var _ stt.Transcriber = (*Transcriber)(nil)

// Option configures a Transcriber.
type Option func(*config)

type config struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// WithBaseURL points the transcriber at another OpenAI-compatible server.
// Default: Groq.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout bounds each transcription request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithHTTPClient replaces the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// Transcriber implements stt.Transcriber using openai-go.
type Transcriber struct {
	client oai.Client
	model  string
}

// New returns a Transcriber authenticating with apiKey. An empty model
// selects [DefaultModel].
func New(apiKey, model string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := config{baseURL: llmopenai.GroqBaseURL}
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
	return &Transcriber{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Transcribe uploads wav and returns the transcript text.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(t.model),
	}
	if language != "" {
		params.Language = oai.String(language)
	}

	res, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai stt: transcribe: %w",
				&llm.StatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Message})
		}
		return "", fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}
