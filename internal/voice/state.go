// Package voice implements the interaction controller: the state machine that
// turns voice input and typed text into relay calls, and replies into speech
// and a word-by-word transcript reveal.
//
// All controller state is owned by the goroutine running [Controller.Run].
// Public methods, adapter listeners and timers only post closures to it, so
// nothing here takes a lock on the transcript.
package voice

import (
	"context"
	"fmt"
	"time"
)

// State is the interaction state. Exactly one holds at any time.
type State int

const (
	StateIdle State = iota
	StateListening
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role Role

	// Text is the full message.
	Text string

	// Shown is the part currently rendered. It equals Text except while an
	// assistant reply is being revealed.
	Shown string
}

// StatusKind styles the status line.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusError
)

// Status is the transient status line. A zero Status is hidden.
type Status struct {
	Text string
	Kind StatusKind
}

// Visible reports whether the status line shows anything.
func (s Status) Visible() bool { return s.Text != "" }

// Snapshot is an immutable copy of the controller state.
type Snapshot struct {
	State    State
	Messages []Message
	Status   Status

	// SetupOpen is true while the API key setup panel should be shown.
	SetupOpen bool
}

// View renders snapshots. Render is called from the controller goroutine
// after every change and must not call back into the controller
// synchronously.
type View interface {
	Render(Snapshot)
}

// ChatClient sends one message and returns the reply. Failures should be
// *chat.Error values; anything else is treated as a processing error.
type ChatClient interface {
	Send(ctx context.Context, message string) (string, error)
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// User-visible status and transcript texts.
const (
	MsgListening       = "🎤 Listening... Speak now!"
	MsgCaptured        = "✅ Voice captured! Sending message..."
	MsgRecognitionErr  = "❌ Voice recognition error: %s"
	MsgSTTUnsupported  = "❌ Voice recognition not supported on this system"
	MsgTTSUnsupported  = "🔇 Speech output not available on this system, replies are shown as text"
	MsgThinking        = "🤔 Claude is thinking..."
	MsgSendFailed      = "❌ Sorry, there was an error. Please try again."
	MsgApology         = "I apologize, but I encountered an error while processing your request. Please try again or check your API key."
	MsgReady           = "🎙️ Ready for your next question"
	MsgEnterKey        = "Please enter an API key"
	MsgKeySaved        = "API key saved successfully! 🎉"
	MsgKeySaveFailed   = "❌ Could not save API key: %v"
	MsgKeyOnServer     = "❌ The API key is configured on the relay server, add it to its .env file"
	MsgUnknownQuestion = "❌ Quick question %d does not exist"
)
