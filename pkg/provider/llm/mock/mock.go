// Package mock provides a test double for the llm.Provider interface.
//
// Example:
//
//	p := &mock.Provider{
//	    CompleteResponse: &llm.CompletionResponse{Content: "Hello!"},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicebot/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider. Set CompleteErr to
// inject a failure.
type Provider struct {
	mu sync.Mutex

	// CompleteResponse is returned by Complete. May be nil.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// Block, if non-nil, makes Complete wait until it is closed or the
	// context is cancelled.
	Block chan struct{}

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

// Complete records the call and returns CompleteResponse, CompleteErr.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CompleteResponse, p.CompleteErr
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}

var _ llm.Provider = (*Provider)(nil)
