package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voicebot/internal/chat"
	"github.com/MrWong99/voicebot/internal/credential"
	"github.com/MrWong99/voicebot/internal/persona"
	"github.com/MrWong99/voicebot/pkg/provider/stt"
	"github.com/MrWong99/voicebot/pkg/provider/tts"
)

// Default timings.
const (
	DefaultRevealInterval = 300 * time.Millisecond
	DefaultReadyHintDelay = time.Second
	DefaultCaptureDelay   = 500 * time.Millisecond
)

// Option configures a [Controller].
type Option func(*Controller)

// WithRecognizer sets the transcription adapter. Without one, voice input is
// reported as unsupported.
func WithRecognizer(r stt.Recognizer) Option {
	return func(c *Controller) { c.rec = r }
}

// WithSpeaker sets the speech output adapter. Without one, replies are only
// revealed as text.
func WithSpeaker(s tts.Speaker) Option {
	return func(c *Controller) { c.speaker = s }
}

// WithView sets the renderer notified after every change.
func WithView(v View) Option {
	return func(c *Controller) { c.view = v }
}

// WithClock replaces the wall clock used for reveal ticks and delays.
func WithClock(clk Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithCredentialStore enables the API key setup form, storing keys in s.
// Used by the client-only variant.
func WithCredentialStore(s credential.Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithRevealInterval sets the delay between revealed words.
func WithRevealInterval(d time.Duration) Option {
	return func(c *Controller) { c.revealInterval = d }
}

// WithReadyHintDelay sets how long after speech ends the ready hint appears.
func WithReadyHintDelay(d time.Duration) Option {
	return func(c *Controller) { c.readyHintDelay = d }
}

// WithCaptureDelay sets the pause between a captured transcript and its
// submission.
func WithCaptureDelay(d time.Duration) Option {
	return func(c *Controller) { c.captureDelay = d }
}

// Controller is the interaction state machine. Construct it with
// [NewController], start [Controller.Run] once, then drive it through its
// methods from any goroutine.
type Controller struct {
	chat    ChatClient
	rec     stt.Recognizer
	speaker tts.Speaker
	view    View
	clock   Clock
	store   credential.Store

	revealInterval time.Duration
	readyHintDelay time.Duration
	captureDelay   time.Duration

	events chan func()
	done   chan struct{}
	snap   atomic.Pointer[Snapshot]

	// Owned by the Run goroutine.
	ctx           context.Context
	state         State
	msgs          []Message
	status        Status
	setupOpen     bool
	sessionGen    uint64
	utterGen      uint64
	reveal        *reveal
	hint          Timer
	pendingSubmit Timer
	ttsWarned     bool
}

// NewController returns a Controller sending messages through cc.
func NewController(cc ChatClient, opts ...Option) *Controller {
	c := &Controller{
		chat:           cc,
		clock:          realClock{},
		revealInterval: DefaultRevealInterval,
		readyHintDelay: DefaultReadyHintDelay,
		captureDelay:   DefaultCaptureDelay,
		events:         make(chan func(), 64),
		done:           make(chan struct{}),
		ctx:            context.Background(),
	}
	for _, o := range opts {
		o(c)
	}
	c.snap.Store(&Snapshot{})
	return c
}

// Run processes events until ctx is cancelled. It must be called exactly
// once. On return the current utterance and listening session are stopped.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	c.ctx = ctx

	if c.store != nil {
		key, err := c.store.Get(credential.EntryName)
		if err != nil {
			slog.Warn("voice: read stored key", "err", err)
		}
		c.setupOpen = !credential.Usable(key)
	}
	c.publish()

	for {
		select {
		case fn := <-c.events:
			fn()
			c.publish()
		case <-ctx.Done():
			c.interrupt()
			return ctx.Err()
		}
	}
}

// post schedules fn on the Run goroutine. It is dropped once Run returned.
func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

// Snapshot returns the state as of the last processed event.
func (c *Controller) Snapshot() Snapshot {
	return *c.snap.Load()
}

func (c *Controller) publish() {
	s := &Snapshot{
		State:     c.state,
		Messages:  append([]Message(nil), c.msgs...),
		Status:    c.status,
		SetupOpen: c.setupOpen,
	}
	c.snap.Store(s)
	if c.view != nil {
		c.view.Render(*s)
	}
}

// ── User actions ──────────────────────────────────────────────────────────────

// ToggleListening starts a listening session, or stops the active one. While
// speaking it interrupts the reply first.
func (c *Controller) ToggleListening() {
	c.post(func() {
		switch c.state {
		case StateListening:
			c.rec.Stop()
		case StateSpeaking:
			c.interrupt()
			c.startListening()
		default:
			c.startListening()
		}
	})
}

// Submit sends text as a user message. Blank text is ignored.
func (c *Controller) Submit(text string) {
	c.post(func() { c.submit(text) })
}

// Ask submits quick question n, counted from 1.
func (c *Controller) Ask(n int) {
	c.post(func() {
		if n < 1 || n > len(persona.QuickQuestions) {
			c.setStatus(fmt.Sprintf(MsgUnknownQuestion, n), StatusError)
			return
		}
		c.submit(persona.QuickQuestions[n-1])
	})
}

// Interrupt stops whatever is in progress (speech, reveal, listening) and
// returns to idle. Safe in any state.
func (c *Controller) Interrupt() {
	c.post(c.interrupt)
}

// SaveKey stores key through the setup form.
func (c *Controller) SaveKey(key string) {
	c.post(func() {
		if c.store == nil {
			c.setStatus(MsgKeyOnServer, StatusError)
			return
		}
		key = strings.TrimSpace(key)
		if key == "" {
			c.setStatus(MsgEnterKey, StatusError)
			return
		}
		if err := c.store.Set(credential.EntryName, key); err != nil {
			slog.Error("voice: save key", "err", err)
			c.setStatus(fmt.Sprintf(MsgKeySaveFailed, err), StatusError)
			return
		}
		c.setupOpen = false
		c.setStatus(MsgKeySaved, StatusSuccess)
	})
}

// ── Transitions ───────────────────────────────────────────────────────────────

func (c *Controller) setState(s State) {
	c.cancelHint()
	if s != c.state {
		slog.Debug("voice: state", "from", c.state, "to", s)
	}
	c.state = s
}

// setStatus replaces the status line. A pending ready hint is dropped so it
// cannot overwrite the new status.
func (c *Controller) setStatus(text string, kind StatusKind) {
	c.cancelHint()
	c.status = Status{Text: text, Kind: kind}
}

func (c *Controller) cancelHint() {
	if c.hint != nil {
		c.hint.Stop()
		c.hint = nil
	}
}

func (c *Controller) cancelPendingSubmit() {
	if c.pendingSubmit != nil {
		c.pendingSubmit.Stop()
		c.pendingSubmit = nil
	}
}

func (c *Controller) clearStatus() { c.status = Status{} }

func (c *Controller) startListening() {
	if c.rec == nil {
		c.setStatus(MsgSTTUnsupported, StatusError)
		return
	}
	// A transcript still waiting for its capture delay belongs to the
	// previous session and is discarded.
	c.cancelPendingSubmit()
	c.sessionGen++
	gen := c.sessionGen
	err := c.rec.Start(func(e stt.Event) {
		c.post(func() { c.onRecognition(gen, e) })
	})
	switch {
	case errors.Is(err, stt.ErrUnsupported):
		c.setStatus(MsgSTTUnsupported, StatusError)
	case err != nil:
		slog.Warn("voice: start listening", "err", err)
		c.setStatus(fmt.Sprintf(MsgRecognitionErr, err), StatusError)
	default:
		c.setState(StateListening)
	}
}

func (c *Controller) onRecognition(gen uint64, e stt.Event) {
	if gen != c.sessionGen {
		return
	}
	switch e.Kind {
	case stt.EventStart:
		c.setStatus(MsgListening, StatusInfo)
	case stt.EventResult:
		c.setStatus(MsgCaptured, StatusSuccess)
		c.schedulePendingSubmit(e.Text)
	case stt.EventError:
		slog.Warn("voice: recognition error", "reason", e.Reason)
		c.setStatus(fmt.Sprintf(MsgRecognitionErr, e.Reason), StatusError)
	case stt.EventEnd:
		if c.state == StateListening {
			c.setState(StateIdle)
		}
		if c.status.Text == MsgListening {
			c.clearStatus()
		}
	}
}

func (c *Controller) schedulePendingSubmit(text string) {
	c.cancelPendingSubmit()
	var t Timer
	t = c.clock.AfterFunc(c.captureDelay, func() {
		c.post(func() {
			if c.pendingSubmit != t {
				return
			}
			c.pendingSubmit = nil
			c.submit(text)
		})
	})
	c.pendingSubmit = t
}

func (c *Controller) submit(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if c.state == StateSpeaking {
		c.interrupt()
	}

	c.msgs = append(c.msgs, Message{Role: RoleUser, Text: text, Shown: text})
	c.setStatus(MsgThinking, StatusInfo)

	ctx := c.ctx
	go func() {
		reply, err := c.chat.Send(ctx, text)
		c.post(func() { c.onReply(reply, err) })
	}()
}

func (c *Controller) onReply(reply string, err error) {
	if err != nil {
		var ce *chat.Error
		if !errors.As(err, &ce) {
			ce = &chat.Error{Code: chat.CodeProcessing, Message: chat.MsgProcessing, Err: err}
		}
		slog.Warn("voice: message failed", "code", ce.Code, "err", err)
		if ce.Misconfigured() {
			c.setStatus("❌ "+strings.TrimPrefix(ce.Message, "❌ "), StatusError)
			c.setupOpen = true
		} else {
			c.setStatus(MsgSendFailed, StatusError)
		}
		c.msgs = append(c.msgs, Message{Role: RoleAssistant, Text: MsgApology, Shown: MsgApology})
		return
	}

	c.clearStatus()
	c.msgs = append(c.msgs, Message{Role: RoleAssistant, Text: reply})
	c.present(len(c.msgs)-1, reply)
}

// present speaks the reply at msgs[idx] and reveals it word by word, both
// starting now.
func (c *Controller) present(idx int, reply string) {
	c.cancelUtterance()
	c.startReveal(idx, reply)

	if c.speaker == nil {
		if !c.ttsWarned {
			c.ttsWarned = true
			c.setStatus(MsgTTSUnsupported, StatusInfo)
		}
		return
	}
	if c.state == StateListening {
		// Keep the microphone session; the reply is shown without speech.
		return
	}
	c.utterGen++
	gen := c.utterGen
	c.setState(StateSpeaking)
	c.speaker.Speak(reply, func(e tts.Event) {
		c.post(func() { c.onSpeech(gen, e) })
	})
}

func (c *Controller) onSpeech(gen uint64, e tts.Event) {
	if gen != c.utterGen || c.state != StateSpeaking {
		return
	}
	switch e.Kind {
	case tts.EventStart:
		slog.Debug("voice: speaking")
	case tts.EventEnd:
		c.setState(StateIdle)
		c.scheduleReadyHint()
	case tts.EventError:
		slog.Warn("voice: speech failed", "reason", e.Reason)
		c.setState(StateIdle)
	}
}

// scheduleReadyHint shows [MsgReady] after the grace delay unless the state
// changes or another status is set first. It never starts listening.
func (c *Controller) scheduleReadyHint() {
	var t Timer
	t = c.clock.AfterFunc(c.readyHintDelay, func() {
		c.post(func() {
			if c.hint != t {
				return
			}
			c.hint = nil
			if c.state != StateIdle || c.status.Visible() {
				return
			}
			c.setStatus(MsgReady, StatusInfo)
		})
	})
	c.hint = t
}

func (c *Controller) cancelUtterance() {
	if c.state != StateSpeaking {
		return
	}
	c.utterGen++
	c.speaker.Cancel()
}

func (c *Controller) interrupt() {
	c.cancelPendingSubmit()
	switch c.state {
	case StateSpeaking:
		c.cancelUtterance()
	case StateListening:
		c.sessionGen++
		c.rec.Stop()
		if c.status.Text == MsgListening {
			c.clearStatus()
		}
	}
	c.cancelReveal()
	c.setState(StateIdle)
}
