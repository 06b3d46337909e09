package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voicebot/pkg/audio"
)

// EventKind identifies a session lifecycle event.
type EventKind int

const (
	// EventStart is emitted once capture begins.
	EventStart EventKind = iota

	// EventResult carries the final transcript.
	EventResult

	// EventError carries a failure reason.
	EventError

	// EventEnd is always the last event of a session.
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Error reasons reported with [EventError].
const (
	ReasonNoSpeech     = "no-speech"
	ReasonAudioCapture = "audio-capture"
	ReasonNetwork      = "network"
)

// Event is one step of a recognition session.
type Event struct {
	Kind EventKind

	// Text is set for EventResult.
	Text string

	// Reason is set for EventError.
	Reason string
}

// Listener receives session events. It is called from the session goroutine
// and must not block.
type Listener func(Event)

// Recognizer is the transcription adapter used by the interaction
// controller.
type Recognizer interface {
	// Start opens a session reporting to l. It fails with ErrUnsupported
	// when capture is unavailable and ErrSessionActive while a session runs.
	Start(l Listener) error

	// Stop ends the active session early. The session then reports only
	// EventEnd. Safe to call when idle.
	Stop()
}

// PipelineOption configures a [Pipeline].
type PipelineOption func(*Pipeline)

// WithLanguage sets the recognition language tag. Default: [DefaultLanguage].
func WithLanguage(tag string) PipelineOption {
	return func(p *Pipeline) { p.language = tag }
}

// WithMaxListen bounds how long one session may capture audio. Whatever was
// heard by then is transcribed. Default: 15s.
func WithMaxListen(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.maxListen = d }
}

// WithTranscribeTimeout bounds the transcription call. Default: 30s.
func WithTranscribeTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.transcribeTimeout = d }
}

// Pipeline is a [Recognizer] built from a capture [Source] and a
// [Transcriber]. A nil source makes every Start fail with ErrUnsupported.
type Pipeline struct {
	source            Source
	transcriber       Transcriber
	language          string
	maxListen         time.Duration
	transcribeTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Recognizer = (*Pipeline)(nil)

// NewPipeline returns a Pipeline recording from source and transcribing with
// transcriber.
func NewPipeline(source Source, transcriber Transcriber, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		source:            source,
		transcriber:       transcriber,
		language:          DefaultLanguage,
		maxListen:         15 * time.Second,
		transcribeTimeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start implements [Recognizer].
func (p *Pipeline) Start(l Listener) error {
	if p.source == nil || p.transcriber == nil {
		return ErrUnsupported
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrSessionActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	go func() {
		defer close(done)
		defer func() {
			p.mu.Lock()
			if p.done == done {
				p.cancel, p.done = nil, nil
			}
			p.mu.Unlock()
			cancel()
			l(Event{Kind: EventEnd})
		}()
		p.run(ctx, l)
	}()
	return nil
}

// Stop implements [Recognizer].
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current session, if any, has emitted EventEnd.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// run captures and transcribes one utterance. Results are dropped once ctx
// is cancelled by Stop.
func (p *Pipeline) run(ctx context.Context, l Listener) {
	l(Event{Kind: EventStart})

	captureCtx, cancelCapture := context.WithTimeout(ctx, p.maxListen)
	pcm, err := p.source.Capture(captureCtx)
	cancelCapture()

	if ctx.Err() != nil {
		return
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("stt: capture failed", "err", err)
		l(Event{Kind: EventError, Reason: ReasonAudioCapture})
		return
	}
	if len(pcm) == 0 {
		l(Event{Kind: EventError, Reason: ReasonNoSpeech})
		return
	}

	wav := audio.EncodeWAV(audio.Clip{
		PCM:    pcm,
		Format: audio.Format{SampleRate: p.source.SampleRate(), Channels: 1},
	})

	tctx, cancelTranscribe := context.WithTimeout(ctx, p.transcribeTimeout)
	text, err := p.transcriber.Transcribe(tctx, wav, BaseLanguage(p.language))
	cancelTranscribe()

	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		slog.Warn("stt: transcription failed", "err", err)
		l(Event{Kind: EventError, Reason: ReasonNetwork})
	case strings.TrimSpace(text) == "":
		l(Event{Kind: EventError, Reason: ReasonNoSpeech})
	default:
		l(Event{Kind: EventResult, Text: strings.TrimSpace(text)})
	}
}
