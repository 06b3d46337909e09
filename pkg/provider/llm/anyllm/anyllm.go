// Package anyllm provides a multi-vendor LLM provider backed by
// github.com/mozilla-ai/any-llm-go. It covers the vendors that do not speak
// the OpenAI wire format natively (Anthropic, Gemini, ...) as well as local
// servers.
//
// Usage:
//
//	p, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"

	"github.com/MrWong99/voicebot/pkg/provider/llm"
)

// Vendors lists the provider names accepted by [New].
var Vendors = []string{"anthropic", "gemini", "ollama", "deepseek", "mistral", "llamacpp", "llamafile"}

// Provider implements llm.Provider by wrapping an any-llm-go backend.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a Provider for the named vendor. Without an API key option the
// backend falls back to the vendor's usual environment variable.
func New(vendor string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if vendor == "" {
		return nil, fmt.Errorf("anyllm: vendor must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(vendor, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", vendor, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

func createBackend(vendor string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(vendor) {
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported vendor %q; supported: %s", vendor, strings.Join(Vendors, ", "))
	}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	result := &llm.CompletionResponse{
		Content: resp.Choices[0].Message.ContentString(),
	}
	if resp.Usage != nil {
		result.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// buildParams converts a CompletionRequest into any-llm-go params.
func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}

var _ llm.Provider = (*Provider)(nil)
