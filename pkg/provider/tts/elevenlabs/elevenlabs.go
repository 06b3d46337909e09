// Package elevenlabs provides an ElevenLabs-backed tts.Synthesizer using the
// ElevenLabs streaming WebSocket API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicebot/pkg/audio"
	"github.com/MrWong99/voicebot/pkg/provider/llm"
	"github.com/MrWong99/voicebot/pkg/provider/tts"
)

const (
	defaultWSBase  = "wss://api.elevenlabs.io"
	defaultAPIBase = "https://api.elevenlabs.io"
	defaultModel   = "eleven_flash_v2_5"

	// DefaultVoice is the premade "Rachel" voice, used when Synthesize
	// receives the zero Voice.
	DefaultVoice = "21m00Tcm4TlvDq8ikWAM"

	outputFormat = "pcm_24000"
	sampleRate   = 24000
)

// Option is a functional option for configuring the ElevenLabs Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(s *Synthesizer) {
		s.model = model
	}
}

// WithBaseURL points both the WebSocket and REST calls at another host.
// An http(s) URL is translated to ws(s) for streaming.
func WithBaseURL(base string) Option {
	return func(s *Synthesizer) {
		base = strings.TrimSuffix(base, "/")
		s.apiBase = base
		s.wsBase = "ws" + strings.TrimPrefix(base, "http")
	}
}

// WithHTTPClient replaces the client used for the voice catalogue.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Synthesizer) {
		s.httpClient = hc
	}
}

// Synthesizer implements tts.Synthesizer backed by the ElevenLabs API.
type Synthesizer struct {
	apiKey     string
	model      string
	wsBase     string
	apiBase    string
	httpClient *http.Client
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// New creates a new ElevenLabs Synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	s := &Synthesizer{
		apiKey:     apiKey,
		model:      defaultModel,
		wsBase:     defaultWSBase,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// streamURL returns the stream-input endpoint for voiceID.
func (s *Synthesizer) streamURL(voiceID string) string {
	q := url.Values{}
	q.Set("model_id", s.model)
	q.Set("output_format", outputFormat)
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", s.wsBase, url.PathEscape(voiceID), q.Encode())
}

// Synthesize streams text through a single WebSocket session and collects
// the returned PCM into one clip. Pitch is not supported and is ignored.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, v tts.Voice, set tts.Settings) (audio.Clip, error) {
	voiceID := v.ID
	if voiceID == "" {
		voiceID = DefaultVoice
	}

	conn, resp, err := websocket.Dial(ctx, s.streamURL(voiceID), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return audio.Clip{}, fmt.Errorf("elevenlabs: dial: %w", &llm.StatusError{StatusCode: resp.StatusCode})
		}
		return audio.Clip{}, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if set.Rate > 0 && set.Rate != 1 {
		vs.Speed = set.Rate
	}
	msgs := []textMessage{
		// ElevenLabs requires a non-empty first text value.
		{Text: " ", VoiceSettings: vs, XiAPIKey: s.apiKey},
		{Text: strings.TrimSpace(text) + " "},
		{Text: ""},
	}
	for _, m := range msgs {
		data, _ := json.Marshal(m)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			return audio.Clip{}, fmt.Errorf("elevenlabs: send text: %w", err)
		}
	}

	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return audio.Clip{}, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var r audioResponse
		if err := json.Unmarshal(msg, &r); err != nil {
			continue
		}
		if r.Error != "" {
			return audio.Clip{}, fmt.Errorf("elevenlabs: synthesize: %s", strings.TrimSpace(r.Error+" "+r.Message))
		}
		if r.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(r.Audio)
			if err != nil {
				return audio.Clip{}, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if r.IsFinal {
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	return audio.Clip{PCM: pcm, Format: audio.Format{SampleRate: sampleRate, Channels: 1}}, nil
}

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available from ElevenLabs for the configured API key.
func (s *Synthesizer) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", &llm.StatusError{StatusCode: resp.StatusCode})
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return toVoices(vr), nil
}

func toVoices(vr voicesResponse) []tts.Voice {
	voices := make([]tts.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, tts.Voice{
			ID:   v.VoiceID,
			Name: v.Name,
			Lang: langFromLabels(v.Labels),
		})
	}
	return voices
}

// accentLangs maps ElevenLabs accent labels to BCP-47 tags.
var accentLangs = map[string]string{
	"american":   "en-US",
	"british":    "en-GB",
	"australian": "en-AU",
	"irish":      "en-IE",
	"indian":     "en-IN",
}

// langFromLabels derives a language tag from a voice's labels. Returns ""
// when the labels say nothing usable.
func langFromLabels(labels map[string]string) string {
	if lang, ok := accentLangs[strings.ToLower(labels["accent"])]; ok {
		return lang
	}
	if lang := labels["language"]; lang != "" {
		if lang == "en" {
			return "en-US"
		}
		return lang
	}
	return ""
}
