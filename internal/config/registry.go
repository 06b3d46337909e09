package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/voicebot/pkg/provider/llm"
	"github.com/MrWong99/voicebot/pkg/provider/stt"
	"github.com/MrWong99/voicebot/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]func(ProviderEntry) (llm.Provider, error)
	stt map[string]func(ProviderEntry) (stt.Transcriber, error)
	tts map[string]func(ProviderEntry) (tts.Synthesizer, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt: make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Synthesizer, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers a transcriber factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a synthesizer factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Synthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates a transcriber using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a synthesizer using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Synthesizer, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// Names returns the sorted provider names registered for kind ("llm",
// "stt" or "tts").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "llm":
		for n := range r.llm {
			names = append(names, n)
		}
	case "stt":
		for n := range r.stt {
			names = append(names, n)
		}
	case "tts":
		for n := range r.tts {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
