package voice

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voicebot/internal/chat"
	"github.com/MrWong99/voicebot/internal/credential"
	"github.com/MrWong99/voicebot/internal/persona"
	"github.com/MrWong99/voicebot/pkg/provider/stt"
	sttmock "github.com/MrWong99/voicebot/pkg/provider/stt/mock"
	"github.com/MrWong99/voicebot/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voicebot/pkg/provider/tts/mock"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Duration
	f     func()
	done  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires every due timer in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && t.at <= c.now {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	slices.SortStableFunc(due, func(a, b *fakeTimer) int { return cmp.Compare(a.at, b.at) })
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type reply struct {
	text string
	err  error
}

type fakeChat struct {
	mu      sync.Mutex
	sent    []string
	replies chan reply
}

func newFakeChat() *fakeChat { return &fakeChat{replies: make(chan reply, 4)} }

func (f *fakeChat) Send(ctx context.Context, message string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, message)
	f.mu.Unlock()
	select {
	case r := <-f.replies:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeChat) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type recordingView struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (v *recordingView) Render(s Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snaps = append(v.snaps, s)
}

func (v *recordingView) Last() (Snapshot, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.snaps) == 0 {
		return Snapshot{}, 0
	}
	return v.snaps[len(v.snaps)-1], len(v.snaps)
}

type memStore struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func (m *memStore) Get(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[name], nil
}

func (m *memStore) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[name] = value
	return nil
}

// ── Harness ───────────────────────────────────────────────────────────────────

type harness struct {
	ctrl  *Controller
	clock *fakeClock
	rec   *sttmock.Recognizer
	spk   *ttsmock.Speaker
	chat  *fakeChat
	view  *recordingView
	stop  func() error
}

type harnessOpts struct {
	noRecognizer bool
	noSpeaker    bool
	extra        []Option
}

func newHarness(t *testing.T, ho harnessOpts) *harness {
	t.Helper()
	h := &harness{
		clock: &fakeClock{},
		rec:   &sttmock.Recognizer{},
		spk:   &ttsmock.Speaker{},
		chat:  newFakeChat(),
		view:  &recordingView{},
	}
	opts := []Option{WithClock(h.clock), WithView(h.view)}
	if !ho.noRecognizer {
		opts = append(opts, WithRecognizer(h.rec))
	}
	if !ho.noSpeaker {
		opts = append(opts, WithSpeaker(h.spk))
	}
	opts = append(opts, ho.extra...)
	h.ctrl = NewController(h.chat, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.ctrl.Run(ctx) }()
	var once sync.Once
	var runErr error
	h.stop = func() error {
		once.Do(func() {
			cancel()
			runErr = <-errc
		})
		return runErr
	}
	t.Cleanup(func() { _ = h.stop() })
	h.flush()
	return h
}

// flush waits until every event posted so far has been processed.
func (h *harness) flush() {
	done := make(chan struct{})
	h.ctrl.post(func() { close(done) })
	<-done
}

func (h *harness) snap() Snapshot {
	h.flush()
	return h.ctrl.Snapshot()
}

// waitFor polls until cond holds for the published snapshot.
func (h *harness) waitFor(t *testing.T, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := h.snap()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last snapshot %+v", what, s)
		}
		time.Sleep(time.Millisecond)
	}
}

// answer submits text, delivers r and waits for the assistant entry.
func (h *harness) answer(t *testing.T, text string, r reply) Snapshot {
	t.Helper()
	before := len(h.snap().Messages)
	h.ctrl.Submit(text)
	h.chat.replies <- r
	return h.waitFor(t, "assistant reply", func(s Snapshot) bool {
		return len(s.Messages) == before+2
	})
}

// ── Submission ────────────────────────────────────────────────────────────────

func TestController_SubmitAppendsUserMessageFirst(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})

	h.ctrl.Submit("  hello  ")
	s := h.snap()
	if len(s.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(s.Messages))
	}
	if got := s.Messages[0]; got.Role != RoleUser || got.Text != "hello" || got.Shown != "hello" {
		t.Errorf("user message = %+v", got)
	}
	if s.Status.Text != MsgThinking {
		t.Errorf("status = %q, want %q", s.Status.Text, MsgThinking)
	}
	if s.State != StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}

	h.chat.replies <- reply{text: "hi there"}
	s = h.waitFor(t, "reply", func(s Snapshot) bool { return len(s.Messages) == 2 })
	if got := s.Messages[1]; got.Role != RoleAssistant || got.Text != "hi there" || got.Shown != "" {
		t.Errorf("assistant message = %+v, want empty shown text", got)
	}
	if s.State != StateSpeaking {
		t.Errorf("state = %v, want speaking", s.State)
	}
	if s.Status.Visible() {
		t.Errorf("status = %q, want hidden", s.Status.Text)
	}
	if got := h.spk.Texts(); !slices.Equal(got, []string{"hi there"}) {
		t.Errorf("spoken = %v, want [hi there]", got)
	}
	if got := h.chat.Sent(); !slices.Equal(got, []string{"hello"}) {
		t.Errorf("sent = %v, want [hello]", got)
	}
}

func TestController_BlankSubmitIsNoop(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "\n\t "} {
		t.Run(fmt.Sprintf("%q", in), func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, harnessOpts{})
			h.ctrl.Submit(in)
			s := h.snap()
			if len(s.Messages) != 0 || s.Status.Visible() || s.State != StateIdle {
				t.Errorf("snapshot = %+v, want untouched", s)
			}
			if got := h.chat.Sent(); len(got) != 0 {
				t.Errorf("sent = %v, want nothing", got)
			}
		})
	}
}

func TestController_SendFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		err        error
		wantStatus string
		wantSetup  bool
	}{
		{name: "network", err: errors.New("connection refused"), wantStatus: MsgSendFailed},
		{
			name:       "upstream",
			err:        &chat.Error{Code: chat.CodeUpstream, Message: chat.UpstreamMessage(500, "boom")},
			wantStatus: MsgSendFailed,
		},
		{
			name:       "not configured",
			err:        &chat.Error{Code: chat.CodeNotConfigured, Message: chat.MsgNotConfigured},
			wantStatus: "❌ " + chat.MsgNotConfigured,
			wantSetup:  true,
		},
		{
			name:       "invalid key",
			err:        &chat.Error{Code: chat.CodeInvalidAPIKey, Message: chat.MsgInvalidAPIKey},
			wantStatus: "❌ " + chat.MsgInvalidAPIKey,
			wantSetup:  true,
		},
		{
			name:       "no local key",
			err:        &chat.Error{Code: chat.CodeNotConfigured, Message: chat.MsgNoLocalKey},
			wantStatus: chat.MsgNoLocalKey,
			wantSetup:  true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, harnessOpts{})
			s := h.answer(t, "hello", reply{err: tc.err})

			if got := s.Messages[1]; got.Role != RoleAssistant || got.Text != MsgApology || got.Shown != MsgApology {
				t.Errorf("assistant message = %+v, want apology", got)
			}
			if s.Status.Text != tc.wantStatus || s.Status.Kind != StatusError {
				t.Errorf("status = %+v, want error %q", s.Status, tc.wantStatus)
			}
			if s.SetupOpen != tc.wantSetup {
				t.Errorf("SetupOpen = %v, want %v", s.SetupOpen, tc.wantSetup)
			}
			if s.State != StateIdle {
				t.Errorf("state = %v, want idle", s.State)
			}
			if got := h.spk.Texts(); len(got) != 0 {
				t.Errorf("spoken = %v, want nothing", got)
			}
		})
	}
}

func TestController_Ask(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})

	h.ctrl.Ask(2)
	s := h.snap()
	if len(s.Messages) != 1 || s.Messages[0].Text != persona.QuickQuestions[1] {
		t.Fatalf("messages = %+v, want quick question 2", s.Messages)
	}

	h.ctrl.Ask(len(persona.QuickQuestions) + 1)
	s = h.snap()
	if len(s.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(s.Messages))
	}
	if want := fmt.Sprintf(MsgUnknownQuestion, len(persona.QuickQuestions)+1); s.Status.Text != want {
		t.Errorf("status = %q, want %q", s.Status.Text, want)
	}
}

// ── Reveal ────────────────────────────────────────────────────────────────────

func TestController_RevealOneWordPerTick(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "count", reply{text: "one two three"})

	for _, want := range []string{"one", "one two", "one two three"} {
		h.clock.Advance(DefaultRevealInterval)
		if got := h.snap().Messages[1].Shown; got != want {
			t.Fatalf("shown = %q, want %q", got, want)
		}
	}
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("pending timers = %d, want 0 after the last word", n)
	}
	h.clock.Advance(10 * DefaultRevealInterval)
	if got := h.snap().Messages[1].Shown; got != "one two three" {
		t.Errorf("shown = %q after extra time", got)
	}
}

func TestController_RevealIndependentOfSpeech(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "count", reply{text: "one two three"})

	h.spk.Emit(tts.Event{Kind: tts.EventStart})
	h.spk.Emit(tts.Event{Kind: tts.EventEnd})
	s := h.snap()
	if s.State != StateIdle {
		t.Fatalf("state = %v, want idle", s.State)
	}
	if s.Messages[1].Shown != "" {
		t.Errorf("shown = %q, want reveal still at zero words", s.Messages[1].Shown)
	}
	h.clock.Advance(DefaultRevealInterval)
	if got := h.snap().Messages[1].Shown; got != "one" {
		t.Errorf("shown = %q, want %q", got, "one")
	}
}

func TestController_NewReplyCancelsPreviousReveal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "first", reply{text: "a b c"})
	h.clock.Advance(DefaultRevealInterval)

	s := h.answer(t, "second", reply{text: "x y"})
	if got := s.Messages[1].Shown; got != "a b c" {
		t.Errorf("first reply shown = %q, want full text", got)
	}
	if got := s.Messages[3].Shown; got != "" {
		t.Errorf("second reply shown = %q, want empty", got)
	}
	if n := h.clock.Pending(); n != 1 {
		t.Errorf("pending timers = %d, want exactly one reveal", n)
	}
	if got := h.spk.Cancels(); got != 1 {
		t.Errorf("speaker cancels = %d, want 1", got)
	}
	h.clock.Advance(DefaultRevealInterval)
	s = h.snap()
	if s.Messages[1].Shown != "a b c" || s.Messages[3].Shown != "x" {
		t.Errorf("shown = %q / %q", s.Messages[1].Shown, s.Messages[3].Shown)
	}
}

// ── Interrupt ─────────────────────────────────────────────────────────────────

func TestController_InterruptWhileSpeaking(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "hello", reply{text: "one two three"})
	h.clock.Advance(DefaultRevealInterval)

	h.ctrl.Interrupt()
	s := h.snap()
	if s.State != StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
	if got := s.Messages[1].Shown; got != "one two three" {
		t.Errorf("shown = %q, want full reply", got)
	}
	if got := h.spk.Cancels(); got != 1 {
		t.Errorf("speaker cancels = %d, want 1", got)
	}
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("pending timers = %d, want 0", n)
	}

	// Idempotent.
	h.ctrl.Interrupt()
	h.ctrl.Interrupt()
	if s := h.snap(); s.State != StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
}

func TestController_VoiceInputInterruptsSpeech(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "hello", reply{text: "one two three"})

	h.ctrl.ToggleListening()
	s := h.snap()
	if s.State != StateListening {
		t.Fatalf("state = %v, want listening", s.State)
	}
	if got := h.spk.Cancels(); got != 1 {
		t.Errorf("speaker cancels = %d, want 1", got)
	}
	if got := s.Messages[1].Shown; got != "one two three" {
		t.Errorf("shown = %q, want full reply", got)
	}
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("pending timers = %d, want 0", n)
	}
	if starts, _ := h.rec.Calls(); starts != 1 {
		t.Errorf("recognizer starts = %d, want 1", starts)
	}
}

func TestController_StaleSpeechEventsIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "hello", reply{text: "first"})

	var stale tts.Listener
	h.ctrl.post(func() {
		gen := h.ctrl.utterGen
		stale = func(e tts.Event) { h.ctrl.post(func() { h.ctrl.onSpeech(gen, e) }) }
	})
	h.answer(t, "again", reply{text: "second"})

	stale(tts.Event{Kind: tts.EventEnd})
	if s := h.snap(); s.State != StateSpeaking {
		t.Errorf("state = %v, want speaking after stale end", s.State)
	}
}

// ── Listening ─────────────────────────────────────────────────────────────────

func TestController_ListeningSubmitsTranscript(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})

	h.ctrl.ToggleListening()
	if s := h.snap(); s.State != StateListening {
		t.Fatalf("state = %v, want listening", s.State)
	}
	h.rec.Emit(stt.Event{Kind: stt.EventStart})
	if s := h.snap(); s.Status.Text != MsgListening {
		t.Errorf("status = %q, want %q", s.Status.Text, MsgListening)
	}
	h.rec.Emit(stt.Event{Kind: stt.EventResult, Text: "tell me a story"})
	h.rec.Emit(stt.Event{Kind: stt.EventEnd})
	s := h.snap()
	if s.State != StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
	if s.Status.Text != MsgCaptured || s.Status.Kind != StatusSuccess {
		t.Errorf("status = %+v, want captured", s.Status)
	}
	if len(s.Messages) != 0 {
		t.Errorf("messages = %d before capture delay", len(s.Messages))
	}

	h.clock.Advance(DefaultCaptureDelay)
	s = h.snap()
	if len(s.Messages) != 1 || s.Messages[0].Text != "tell me a story" {
		t.Fatalf("messages = %+v, want transcript", s.Messages)
	}
	h.chat.replies <- reply{text: "once upon a time"}
	h.waitFor(t, "speaking", func(s Snapshot) bool { return s.State == StateSpeaking })
}

func TestController_RecognitionError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})

	h.ctrl.ToggleListening()
	h.rec.Emit(stt.Event{Kind: stt.EventStart})
	h.rec.Emit(stt.Event{Kind: stt.EventError, Reason: "no-speech"})
	h.rec.Emit(stt.Event{Kind: stt.EventEnd})

	s := h.snap()
	if s.State != StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
	if want := fmt.Sprintf(MsgRecognitionErr, "no-speech"); s.Status.Text != want {
		t.Errorf("status = %q, want %q", s.Status.Text, want)
	}
	if len(s.Messages) != 0 {
		t.Errorf("messages = %d, want 0", len(s.Messages))
	}
}

func TestController_ToggleStopsSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})

	h.ctrl.ToggleListening()
	h.rec.Emit(stt.Event{Kind: stt.EventStart})
	h.ctrl.ToggleListening()
	if _, stops := h.rec.Calls(); stops != 1 {
		t.Errorf("recognizer stops = %d, want 1", stops)
	}
	h.rec.Emit(stt.Event{Kind: stt.EventEnd})
	s := h.snap()
	if s.State != StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
	if s.Status.Visible() {
		t.Errorf("status = %q, want cleared", s.Status.Text)
	}
}

func TestController_InterruptWhileListening(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})

	h.ctrl.ToggleListening()
	h.rec.Emit(stt.Event{Kind: stt.EventStart})
	h.ctrl.Interrupt()
	s := h.snap()
	if s.State != StateIdle || s.Status.Visible() {
		t.Errorf("snapshot = %+v, want idle with no status", s)
	}

	// The cancelled session's late result must not be submitted.
	h.rec.Emit(stt.Event{Kind: stt.EventResult, Text: "late"})
	h.rec.Emit(stt.Event{Kind: stt.EventEnd})
	h.clock.Advance(DefaultCaptureDelay)
	if s := h.snap(); len(s.Messages) != 0 || s.Status.Visible() {
		t.Errorf("snapshot = %+v, want stale session ignored", s)
	}
}

func TestController_RecognizerUnavailable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		noRec      bool
		startErr   error
		wantStatus string
	}{
		{name: "no recognizer", noRec: true, wantStatus: MsgSTTUnsupported},
		{name: "unsupported", startErr: stt.ErrUnsupported, wantStatus: MsgSTTUnsupported},
		{name: "device error", startErr: errors.New("device busy"), wantStatus: fmt.Sprintf(MsgRecognitionErr, "device busy")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, harnessOpts{noRecognizer: tc.noRec})
			h.rec.StartErr = tc.startErr
			h.ctrl.ToggleListening()
			s := h.snap()
			if s.State != StateIdle {
				t.Errorf("state = %v, want idle", s.State)
			}
			if s.Status.Text != tc.wantStatus {
				t.Errorf("status = %q, want %q", s.Status.Text, tc.wantStatus)
			}
		})
	}
}

// ── Speech ────────────────────────────────────────────────────────────────────

func TestController_ReadyHint(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "hello", reply{text: "hi"})

	h.spk.Emit(tts.Event{Kind: tts.EventStart})
	h.spk.Emit(tts.Event{Kind: tts.EventEnd})
	if s := h.snap(); s.State != StateIdle || s.Status.Visible() {
		t.Fatalf("snapshot = %+v, want idle without status", s)
	}
	h.clock.Advance(DefaultReadyHintDelay)
	s := h.snap()
	if s.Status.Text != MsgReady || s.Status.Kind != StatusInfo {
		t.Errorf("status = %+v, want ready hint", s.Status)
	}
	if s.State != StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
	if starts, _ := h.rec.Calls(); starts != 0 {
		t.Errorf("recognizer starts = %d, want 0", starts)
	}
}

func TestController_ReadyHintCancelledByStateChange(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "hello", reply{text: "hi"})
	h.spk.Emit(tts.Event{Kind: tts.EventEnd})

	h.ctrl.ToggleListening()
	h.clock.Advance(DefaultReadyHintDelay)
	if s := h.snap(); s.Status.Text == MsgReady {
		t.Errorf("ready hint shown while listening")
	}
}

func TestController_ReadyHintKeepsThinkingStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "hello", reply{text: "hi"})
	h.spk.Emit(tts.Event{Kind: tts.EventEnd})

	h.ctrl.Submit("second question")
	h.flush()
	h.clock.Advance(DefaultReadyHintDelay)

	s := h.snap()
	if s.Status.Text != MsgThinking {
		t.Errorf("status = %q, want %q while the reply is pending", s.Status.Text, MsgThinking)
	}
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("pending timers = %d, want 0", n)
	}
}

func TestController_ReadyHintKeepsKeySavedStatus(t *testing.T) {
	t.Parallel()
	store := &memStore{values: map[string]string{credential.EntryName: "gsk_old"}}
	h := newHarness(t, harnessOpts{extra: []Option{WithCredentialStore(store)}})
	h.answer(t, "hello", reply{text: "hi"})
	h.spk.Emit(tts.Event{Kind: tts.EventEnd})

	h.ctrl.SaveKey("gsk_new")
	h.flush()
	h.clock.Advance(DefaultReadyHintDelay)

	if got := h.snap().Status.Text; got != MsgKeySaved {
		t.Errorf("status = %q, want %q", got, MsgKeySaved)
	}
}

func TestController_NewSessionDropsPendingTranscript(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})

	h.ctrl.ToggleListening()
	h.rec.Emit(stt.Event{Kind: stt.EventStart})
	h.rec.Emit(stt.Event{Kind: stt.EventResult, Text: "first take"})
	h.rec.Emit(stt.Event{Kind: stt.EventEnd})

	// Voice input again before the capture delay elapsed.
	h.ctrl.ToggleListening()
	h.clock.Advance(DefaultCaptureDelay)

	s := h.snap()
	if s.State != StateListening {
		t.Errorf("state = %v, want listening", s.State)
	}
	if len(s.Messages) != 0 {
		t.Errorf("messages = %+v, want the earlier transcript dropped", s.Messages)
	}
	if got := h.chat.Sent(); len(got) != 0 {
		t.Errorf("sent = %v, want nothing", got)
	}
	if starts, _ := h.rec.Calls(); starts != 2 {
		t.Errorf("recognizer starts = %d, want 2", starts)
	}
}

func TestController_TranscriptSubmittedWhileReplyPending(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})

	h.ctrl.Submit("typed")
	h.ctrl.ToggleListening()
	h.rec.Emit(stt.Event{Kind: stt.EventResult, Text: "spoken"})
	h.rec.Emit(stt.Event{Kind: stt.EventEnd})
	h.flush()
	h.clock.Advance(DefaultCaptureDelay)

	s := h.snap()
	if len(s.Messages) != 2 || s.Messages[0].Text != "typed" || s.Messages[1].Text != "spoken" {
		t.Fatalf("messages = %+v, want both user entries in order", s.Messages)
	}
	if s.Status.Text != MsgThinking || s.State != StateIdle {
		t.Errorf("snapshot = %+v, want idle and thinking", s)
	}
	h.waitFor(t, "both sends", func(Snapshot) bool { return len(h.chat.Sent()) == 2 })
}

func TestController_SpeechErrorReturnsIdle(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "hello", reply{text: "hi"})

	h.spk.Emit(tts.Event{Kind: tts.EventError, Reason: tts.ReasonSynthesisFailed})
	if s := h.snap(); s.State != StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
}

func TestController_NoSpeaker(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{noSpeaker: true})
	s := h.answer(t, "hello", reply{text: "one two"})
	if s.State != StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
	if s.Status.Text != MsgTTSUnsupported {
		t.Errorf("status = %q, want %q", s.Status.Text, MsgTTSUnsupported)
	}
	h.clock.Advance(DefaultRevealInterval)
	h.clock.Advance(DefaultRevealInterval)
	if got := h.snap().Messages[1].Shown; got != "one two" {
		t.Errorf("shown = %q, want revealed reply", got)
	}

	// Reported once.
	s = h.answer(t, "again", reply{text: "ok"})
	if s.Status.Visible() {
		t.Errorf("status = %q, want hidden on second reply", s.Status.Text)
	}
}

// ── Setup form ────────────────────────────────────────────────────────────────

func TestController_SetupOpenWithoutStoredKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{name: "empty", key: "", want: true},
		{name: "placeholder", key: credential.Placeholder, want: true},
		{name: "stored", key: "gsk_abc", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := &memStore{values: map[string]string{credential.EntryName: tc.key}}
			h := newHarness(t, harnessOpts{extra: []Option{WithCredentialStore(store)}})
			if got := h.snap().SetupOpen; got != tc.want {
				t.Errorf("SetupOpen = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestController_SaveKey(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	h := newHarness(t, harnessOpts{extra: []Option{WithCredentialStore(store)}})

	h.ctrl.SaveKey("   ")
	s := h.snap()
	if s.Status.Text != MsgEnterKey || !s.SetupOpen {
		t.Errorf("snapshot = %+v, want enter-key error with setup open", s)
	}

	h.ctrl.SaveKey(" gsk_abc ")
	s = h.snap()
	if s.Status.Text != MsgKeySaved || s.Status.Kind != StatusSuccess {
		t.Errorf("status = %+v, want saved", s.Status)
	}
	if s.SetupOpen {
		t.Error("SetupOpen = true after save")
	}
	if got, _ := store.Get(credential.EntryName); got != "gsk_abc" {
		t.Errorf("stored key = %q, want gsk_abc", got)
	}
}

func TestController_SaveKeyErrors(t *testing.T) {
	t.Parallel()

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("disk full")
		h := newHarness(t, harnessOpts{extra: []Option{WithCredentialStore(&memStore{setErr: boom})}})
		h.ctrl.SaveKey("gsk_abc")
		if want := fmt.Sprintf(MsgKeySaveFailed, boom); h.snap().Status.Text != want {
			t.Errorf("status = %q, want %q", h.snap().Status.Text, want)
		}
	})

	t.Run("relay variant", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, harnessOpts{})
		h.ctrl.SaveKey("gsk_abc")
		if got := h.snap().Status.Text; got != MsgKeyOnServer {
			t.Errorf("status = %q, want %q", got, MsgKeyOnServer)
		}
	})
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

func TestController_ViewReceivesSnapshots(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.ctrl.Submit("hello")
	h.flush()

	last, n := h.view.Last()
	if n < 2 {
		t.Fatalf("renders = %d, want at least 2", n)
	}
	if len(last.Messages) != 1 || last.Status.Text != MsgThinking {
		t.Errorf("last render = %+v", last)
	}
}

func TestController_RunStopsAdapters(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.answer(t, "hello", reply{text: "one two"})

	if err := h.stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if got := h.spk.Cancels(); got != 1 {
		t.Errorf("speaker cancels = %d, want 1", got)
	}

	// Posting after Run returned must not block.
	done := make(chan struct{})
	go func() {
		h.ctrl.Submit("late")
		h.ctrl.Interrupt()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("actions blocked after Run returned")
	}
}
