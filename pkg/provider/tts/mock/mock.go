// Package mock provides test doubles for the tts package interfaces.
//
// Speaker records every Speak and lets tests fire lifecycle events for the
// current utterance with Emit. Synthesizer and Output are scripted building
// blocks for exercising tts.Pipeline.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicebot/pkg/audio"
	"github.com/MrWong99/voicebot/pkg/provider/tts"
)

// Speaker is a mock implementation of tts.Speaker.
type Speaker struct {
	mu sync.Mutex

	// Spoken records the text of every Speak call in order.
	Spoken []string

	// CancelCalls counts Cancel calls.
	CancelCalls int

	listener tts.Listener
}

var _ tts.Speaker = (*Speaker)(nil)

// Speak records text and makes l the current listener, replacing the
// previous utterance.
func (s *Speaker) Speak(text string, l tts.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Spoken = append(s.Spoken, text)
	s.listener = l
}

// Cancel drops the current listener.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CancelCalls++
	s.listener = nil
}

// Emit delivers e to the current utterance. End and error events finish it.
// It reports false when nothing is being spoken.
func (s *Speaker) Emit(e tts.Event) bool {
	s.mu.Lock()
	l := s.listener
	if e.Kind != tts.EventStart {
		s.listener = nil
	}
	s.mu.Unlock()
	if l == nil {
		return false
	}
	l(e)
	return true
}

// Speaking reports whether an utterance is current.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Cancels returns CancelCalls.
func (s *Speaker) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CancelCalls
}

// Texts returns a copy of Spoken.
func (s *Speaker) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Spoken...)
}

// SynthesizeCall records one Synthesize invocation.
type SynthesizeCall struct {
	Text     string
	Voice    tts.Voice
	Settings tts.Settings
}

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Clip is returned by every Synthesize call.
	Clip audio.Clip

	// SynthesizeErr, if non-nil, is returned by Synthesize.
	SynthesizeErr error

	// Voices and ListVoicesErr are returned by ListVoices.
	Voices        []tts.Voice
	ListVoicesErr error

	// VoicesGate, if non-nil, delays ListVoices until closed.
	VoicesGate chan struct{}

	// Calls records every Synthesize invocation.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns Clip, SynthesizeErr.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, v tts.Voice, set tts.Settings) (audio.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, SynthesizeCall{Text: text, Voice: v, Settings: set})
	if err := ctx.Err(); err != nil {
		return audio.Clip{}, err
	}
	return s.Clip, s.SynthesizeErr
}

// ListVoices returns Voices, ListVoicesErr.
func (s *Synthesizer) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	if s.VoicesGate != nil {
		select {
		case <-s.VoicesGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Voices, s.ListVoicesErr
}

// SynthesizeCalls returns a copy of Calls.
func (s *Synthesizer) SynthesizeCalls() []SynthesizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SynthesizeCall(nil), s.Calls...)
}

// Output is a mock implementation of tts.Output. Play blocks until Release
// is called for it, Stop is called, or ctx is done.
type Output struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by Play immediately.
	PlayErr error

	// Played records every clip passed to Play.
	Played []audio.Clip

	// Instant makes Play return immediately.
	Instant bool

	StopCalls int

	stop    chan struct{}
	release chan struct{}
}

// Play records clip and blocks as described on [Output].
func (o *Output) Play(ctx context.Context, clip audio.Clip) error {
	o.mu.Lock()
	o.Played = append(o.Played, clip)
	if o.PlayErr != nil || o.Instant {
		err := o.PlayErr
		o.mu.Unlock()
		return err
	}
	o.stop = make(chan struct{})
	if o.release == nil {
		o.release = make(chan struct{})
	}
	stop, release := o.stop, o.release
	o.mu.Unlock()

	select {
	case <-stop:
	case <-release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Release lets the blocked and all future Play calls finish.
func (o *Output) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.release == nil {
		o.release = make(chan struct{})
	}
	select {
	case <-o.release:
	default:
		close(o.release)
	}
}

// Stop ends the blocked Play call, if any.
func (o *Output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.StopCalls++
	if o.stop != nil {
		close(o.stop)
		o.stop = nil
	}
}

// Stops returns StopCalls.
func (o *Output) Stops() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.StopCalls
}

// PlayedClips returns a copy of Played.
func (o *Output) PlayedClips() []audio.Clip {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]audio.Clip(nil), o.Played...)
}
