// Package mock provides test doubles for the stt.Recognizer and
// stt.Transcriber interfaces.
//
// Tests start a session through the code under test, then drive it with
// Emit:
//
//	r := &mock.Recognizer{}
//	ctrl.ToggleListening()
//	r.Emit(stt.Event{Kind: stt.EventStart})
//	r.Emit(stt.Event{Kind: stt.EventResult, Text: "hello"})
//	r.Emit(stt.Event{Kind: stt.EventEnd})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicebot/pkg/provider/stt"
)

// Recognizer is a mock implementation of stt.Recognizer. At most one session
// is active; an EventEnd passed to Emit ends it.
type Recognizer struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StartCalls counts successful and failed Start calls.
	StartCalls int

	// StopCalls counts Stop calls.
	StopCalls int

	listener stt.Listener
}

var _ stt.Recognizer = (*Recognizer)(nil)

// Start records the listener unless StartErr is set or a session is active.
func (r *Recognizer) Start(l stt.Listener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartCalls++
	if r.StartErr != nil {
		return r.StartErr
	}
	if r.listener != nil {
		return stt.ErrSessionActive
	}
	r.listener = l
	return nil
}

// Stop counts the call. It does not emit events; tests do that via Emit.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StopCalls++
}

// Active reports whether a session is open.
func (r *Recognizer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener != nil
}

// Emit delivers e to the active session's listener. It reports false when
// no session is active.
func (r *Recognizer) Emit(e stt.Event) bool {
	r.mu.Lock()
	l := r.listener
	if e.Kind == stt.EventEnd {
		r.listener = nil
	}
	r.mu.Unlock()
	if l == nil {
		return false
	}
	l(e)
	return true
}

// Calls returns the Start and Stop counters.
func (r *Recognizer) Calls() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.StartCalls, r.StopCalls
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Text and Err are returned by Transcribe.
	Text string
	Err  error

	// Languages records the language of every Transcribe call.
	Languages []string
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcribe records the call and returns Text, Err.
func (t *Transcriber) Transcribe(_ context.Context, _ []byte, language string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Languages = append(t.Languages, language)
	return t.Text, t.Err
}
