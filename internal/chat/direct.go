package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/voicebot/internal/credential"
	"github.com/MrWong99/voicebot/internal/persona"
	"github.com/MrWong99/voicebot/pkg/provider/llm"
)

// MsgNoLocalKey is shown when the client-only variant has no stored key.
const MsgNoLocalKey = "❌ Please set up your API key first"

// Factory builds a provider for the given API key.
type Factory func(apiKey string) (llm.Provider, error)

// Direct sends messages straight to the upstream API using the key held in
// a credential store. The provider is rebuilt whenever the stored key changes.
type Direct struct {
	store   credential.Store
	factory Factory

	mu       sync.Mutex
	key      string
	provider llm.Provider
}

// NewDirect returns a Direct client reading its key from store.
func NewDirect(store credential.Store, factory Factory) *Direct {
	return &Direct{store: store, factory: factory}
}

// Send forwards message with the persona attached and returns the reply text.
// All failures are returned as *Error.
func (d *Direct) Send(ctx context.Context, message string) (string, error) {
	p, err := d.providerForKey()
	if err != nil {
		return "", err
	}

	resp, err := p.Complete(ctx, persona.Request(message))
	if err != nil {
		return "", Classify(err)
	}
	return resp.Content, nil
}

// providerForKey returns the provider for the currently stored key.
func (d *Direct) providerForKey() (llm.Provider, error) {
	key, err := d.store.Get(credential.EntryName)
	if err != nil {
		return nil, &Error{Code: CodeProcessing, Message: MsgProcessing, Err: err}
	}
	if !credential.Usable(key) {
		return nil, &Error{Code: CodeNotConfigured, Message: MsgNoLocalKey}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.provider != nil && d.key == key {
		return d.provider, nil
	}
	p, err := d.factory(key)
	if err != nil {
		return nil, &Error{Code: CodeProcessing, Message: MsgProcessing, Err: fmt.Errorf("build provider: %w", err)}
	}
	d.key, d.provider = key, p
	return p, nil
}

// Classify maps a provider error onto the chat taxonomy.
func Classify(err error) *Error {
	var se *llm.StatusError
	switch {
	case llm.IsUnauthorized(err):
		return &Error{Code: CodeInvalidAPIKey, Message: MsgInvalidAPIKey, Err: err}
	case errors.As(err, &se):
		return &Error{Code: CodeUpstream, Message: UpstreamMessage(se.StatusCode, se.Message), Err: err}
	default:
		slog.Debug("chat: upstream call failed", "err", err)
		return &Error{Code: CodeProcessing, Message: MsgProcessing, Err: err}
	}
}
