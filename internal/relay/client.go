package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrWong99/voicebot/internal/chat"
)

// DefaultURL is the relay address used when none is configured.
const DefaultURL = "http://localhost:3002"

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used to reach the relay.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// Client talks to a relay over HTTP. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for the relay at baseURL. Requests carry W3C
// trace context so relay logs correlate with the caller's spans.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send posts message to /api/chat and returns the reply. Every failure is a
// *chat.Error carrying the relay's code and message.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	payload, err := json.Marshal(ChatRequest{Message: message})
	if err != nil {
		return "", processing(fmt.Errorf("relay: encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", processing(fmt.Errorf("relay: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", processing(fmt.Errorf("relay: post chat: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return "", processing(fmt.Errorf("relay: read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp.StatusCode, body)
	}

	var out ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", processing(fmt.Errorf("relay: decode response: %w", err))
	}
	return out.Response, nil
}

// Health fetches /api/health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return nil, fmt.Errorf("relay: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay: get health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay: get health: unexpected status %d", resp.StatusCode)
	}
	var out HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("relay: decode health: %w", err)
	}
	return &out, nil
}

// decodeError turns a non-200 relay response into a *chat.Error. Responses
// without a code (older relays, proxies) are classified by status.
func decodeError(status int, body []byte) *chat.Error {
	var er ErrorResponse
	_ = json.Unmarshal(body, &er)

	code := chat.Code(er.Code)
	if code == "" {
		switch {
		case status == http.StatusBadRequest:
			code = chat.CodeInvalidRequest
		case status == http.StatusBadGateway:
			code = chat.CodeUpstream
		default:
			code = chat.CodeProcessing
		}
	}
	msg := er.Error
	if msg == "" {
		msg = chat.MsgProcessing
	}
	return &chat.Error{
		Code:    code,
		Message: msg,
		Err:     fmt.Errorf("relay: status %d", status),
	}
}

func processing(err error) *chat.Error {
	return &chat.Error{Code: chat.CodeProcessing, Message: chat.MsgProcessing, Err: err}
}
