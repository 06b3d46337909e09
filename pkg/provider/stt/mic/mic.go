// Package mic captures utterances from the default input device.
//
// Capture uses PortAudio, which needs the native library at build time, so
// the real source is only compiled with the "portaudio" build tag. Without it
// [New] returns [ErrUnavailable] and speech recognition is reported as
// unsupported.
package mic

import (
	"errors"
	"time"
)

// ErrUnavailable is returned by [New] when microphone capture is not
// compiled in or no input device could be opened.
var ErrUnavailable = errors.New("mic: microphone capture unavailable")

const (
	// DefaultSampleRate matches what hosted Whisper models expect.
	DefaultSampleRate = 16000

	framesPerBuffer = 1024
)

// Option configures a Source.
type Option func(*options)

type options struct {
	sampleRate      int
	maxDuration     time.Duration
	trailingSilence time.Duration
	silenceRMS      float64
}

// WithSampleRate sets the capture rate. Default: 16000.
func WithSampleRate(hz int) Option {
	return func(o *options) { o.sampleRate = hz }
}

// WithMaxDuration caps a single utterance. Default: 15s.
func WithMaxDuration(d time.Duration) Option {
	return func(o *options) { o.maxDuration = d }
}

// WithTrailingSilence sets how much silence ends an utterance.
func WithTrailingSilence(d time.Duration) Option {
	return func(o *options) { o.trailingSilence = d }
}

// WithSilenceRMS sets the level below which input counts as silence.
func WithSilenceRMS(level float64) Option {
	return func(o *options) { o.silenceRMS = level }
}

func buildOptions(opts []Option) options {
	o := options{
		sampleRate:  DefaultSampleRate,
		maxDuration: 15 * time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
