package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/MrWong99/voicebot/pkg/audio"
	"github.com/MrWong99/voicebot/pkg/provider/llm"
)

// EventKind identifies an utterance lifecycle signal.
type EventKind int

const (
	// EventStart is emitted when audio starts playing.
	EventStart EventKind = iota

	// EventEnd is emitted when the utterance finished playing.
	EventEnd

	// EventError is emitted instead of EventEnd when the utterance failed.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Error reasons reported with [EventError].
const (
	ReasonSynthesisFailed = "synthesis-failed"
	ReasonNetwork         = "network"
	ReasonAudioHardware   = "audio-hardware"
)

// Event is one utterance lifecycle signal.
type Event struct {
	Kind   EventKind
	Reason string
}

// Listener receives utterance events from a background goroutine. It must
// not block.
type Listener func(Event)

// Speaker is the speech output adapter used by the interaction controller.
type Speaker interface {
	// Speak cancels the current utterance and starts speaking text. The
	// cancelled utterance emits nothing further.
	Speak(text string, l Listener)

	// Cancel stops the current utterance immediately. Idempotent.
	Cancel()
}

// DefaultMaxChunk is the largest piece of text sent to the synthesizer in
// one request.
const DefaultMaxChunk = 400

// PipelineOption configures a [Pipeline].
type PipelineOption func(*Pipeline)

// WithSettings overrides [DefaultSettings].
func WithSettings(s Settings) PipelineOption {
	return func(p *Pipeline) { p.settings = s }
}

// WithMaxChunk sets the maximum characters per synthesis request.
func WithMaxChunk(n int) PipelineOption {
	return func(p *Pipeline) { p.maxChunk = n }
}

// WithVoiceLoadTimeout bounds the background voice catalogue fetch.
func WithVoiceLoadTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.voiceLoadTimeout = d }
}

// Pipeline is a [Speaker] that synthesizes text sentence group by sentence
// group and plays each clip on an [Output], synthesizing the next group
// while the current one plays.
type Pipeline struct {
	synth            Synthesizer
	out              Output
	settings         Settings
	maxChunk         int
	voiceLoadTimeout time.Duration

	voicesMu     sync.RWMutex
	voices       []Voice
	voicesLoaded chan struct{}

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

var _ Speaker = (*Pipeline)(nil)

// NewPipeline returns a Pipeline and starts loading the voice catalogue in
// the background. Speak works before the catalogue arrives, using the
// provider's default voice.
func NewPipeline(synth Synthesizer, out Output, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		synth:            synth,
		out:              out,
		settings:         DefaultSettings,
		maxChunk:         DefaultMaxChunk,
		voiceLoadTimeout: 10 * time.Second,
		voicesLoaded:     make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	go p.loadVoices()
	return p
}

func (p *Pipeline) loadVoices() {
	defer close(p.voicesLoaded)
	ctx, cancel := context.WithTimeout(context.Background(), p.voiceLoadTimeout)
	defer cancel()

	voices, err := p.synth.ListVoices(ctx)
	if err != nil {
		slog.Warn("tts: voice list unavailable, using default voice", "err", err)
		return
	}
	p.voicesMu.Lock()
	p.voices = voices
	p.voicesMu.Unlock()
	slog.Debug("tts: voices loaded", "count", len(voices), "selected", SelectVoice(voices).Name)
}

// VoicesLoaded is closed once the catalogue fetch finished, successfully or
// not.
func (p *Pipeline) VoicesLoaded() <-chan struct{} { return p.voicesLoaded }

func (p *Pipeline) currentVoice() Voice {
	p.voicesMu.RLock()
	defer p.voicesMu.RUnlock()
	return SelectVoice(p.voices)
}

// Speak implements [Speaker].
func (p *Pipeline) Speak(text string, l Listener) {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.out.Stop()
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.mu.Unlock()

	voice := p.currentVoice()
	emit := func(e Event) {
		p.mu.Lock()
		current := p.gen == gen
		p.mu.Unlock()
		if current && ctx.Err() == nil {
			l(e)
		}
	}

	go func() {
		defer func() {
			p.mu.Lock()
			if p.gen == gen {
				p.cancel = nil
			}
			p.mu.Unlock()
			cancel()
		}()
		if reason, err := p.utter(ctx, text, voice, emit); err != nil {
			if ctx.Err() == nil {
				slog.Warn("tts: utterance failed", "reason", reason, "err", err)
			}
			emit(Event{Kind: EventError, Reason: reason})
			return
		}
		emit(Event{Kind: EventEnd})
	}()
}

// Cancel implements [Speaker].
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.out.Stop()
}

type synthesized struct {
	clip audio.Clip
	err  error
}

// utter synthesizes and plays text. On failure it returns the reason to
// report.
func (p *Pipeline) utter(ctx context.Context, text string, voice Voice, emit func(Event)) (string, error) {
	chunks := SplitText(text, p.maxChunk)
	if len(chunks) == 0 {
		emit(Event{Kind: EventStart})
		return "", nil
	}

	clips := make(chan synthesized, 1)
	go func() {
		defer close(clips)
		for _, chunk := range chunks {
			clip, err := p.synth.Synthesize(ctx, chunk, voice, p.settings)
			select {
			case clips <- synthesized{clip: clip, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	started := false
	for s := range clips {
		if s.err != nil {
			return synthesisReason(s.err), s.err
		}
		if !started {
			emit(Event{Kind: EventStart})
			started = true
		}
		clip := s.clip
		clip.PCM = audio.ScaleVolume(clip.PCM, p.settings.Volume)
		if err := p.out.Play(ctx, clip); err != nil {
			return ReasonAudioHardware, err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", ctx.Err()
}

func synthesisReason(err error) string {
	var se *llm.StatusError
	if errors.As(err, &se) {
		return ReasonNetwork
	}
	return ReasonSynthesisFailed
}

// SplitText breaks text into pieces of at most maxChars runes, preferring
// sentence ends and then word boundaries. Whitespace-only input yields no
// pieces.
func SplitText(text string, maxChars int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		return []string{text}
	}

	var out []string
	for len([]rune(text)) > maxChars {
		r := []rune(text)
		cut := lastBreak(r[:maxChars], isSentenceEnd)
		if cut <= 0 {
			cut = lastBreak(r[:maxChars+1], unicode.IsSpace)
		}
		if cut <= 0 {
			cut = maxChars
		}
		out = append(out, strings.TrimSpace(string(r[:cut])))
		text = strings.TrimSpace(string(r[cut:]))
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func isSentenceEnd(r rune) bool { return r == '.' || r == '!' || r == '?' }

// lastBreak returns the index just past the last rune in r matching fn.
func lastBreak(r []rune, fn func(rune) bool) int {
	for i := len(r) - 1; i > 0; i-- {
		if fn(r[i]) {
			return i + 1
		}
	}
	return 0
}
