// Package stt turns one spoken utterance into text.
//
// A [Recognizer] runs at most one session at a time. Each session captures a
// single utterance from a [Source], wraps it as WAV and hands it to a
// [Transcriber]. Listeners observe the session through [Event] values: a
// start, then at most one result or error, then always an end.
package stt

import (
	"context"
	"errors"
	"strings"
)

// DefaultLanguage is the recognition language used unless configured.
const DefaultLanguage = "en-US"

var (
	// ErrUnsupported is returned by [Recognizer.Start] when no capture device
	// is available on this system.
	ErrUnsupported = errors.New("stt: speech recognition not supported")

	// ErrSessionActive is returned by [Recognizer.Start] while a session is
	// already running.
	ErrSessionActive = errors.New("stt: session already active")
)

// Source records a single utterance of signed 16-bit little-endian mono PCM
// at SampleRate. Capture returns once the speaker falls silent, the source's
// own length limit is hit, or ctx is done. On ctx expiry it returns whatever
// was recorded together with ctx.Err().
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
	SampleRate() int
}

// Transcriber converts a WAV recording to text. language is an ISO-639-1
// code such as "en"; empty lets the backend detect it.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}

// BaseLanguage reduces a BCP-47 tag like "en-US" to its primary subtag.
func BaseLanguage(tag string) string {
	base, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(base)
}
