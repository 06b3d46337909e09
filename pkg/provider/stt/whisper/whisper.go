// Package whisper transcribes recordings with a whisper.cpp server.
//
// The server (whisper-server from the whisper.cpp project) exposes
// POST /inference, accepting a multipart form with the WAV file and optional
// language and model fields and answering {"text": "..."}.
//
// Usage:
//
//	t, err := whisper.New("http://localhost:8080", whisper.WithModel("base.en"))
//	text, err := t.Transcribe(ctx, wav, "en")
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voicebot/pkg/provider/stt"
)

var _ stt.Transcriber = (*Transcriber)(nil)

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithModel names the model the server should use. Empty uses whichever
// model the server was started with.
func WithModel(model string) Option {
	return func(t *Transcriber) { t.model = model }
}

// WithHTTPClient replaces the default HTTP client (30s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transcriber) { t.httpClient = c }
}

// Transcriber implements stt.Transcriber against a whisper.cpp server.
type Transcriber struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New returns a Transcriber for the server at serverURL.
func New(serverURL string, opts ...Option) (*Transcriber, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	t := &Transcriber{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Transcribe posts wav to /inference and returns the recognised text.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	fields := map[string]string{
		"language":        language,
		"model":           t.model,
		"response_format": "json",
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
