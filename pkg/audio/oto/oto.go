// Package oto plays PCM clips on the default output device through
// ebitengine/oto.
//
// Playback needs cgo on most platforms, so the real player is only compiled
// with the "oto" build tag. Without it [New] returns [ErrUnavailable] and
// callers run without audio output.
package oto

import (
	"errors"

	"github.com/MrWong99/voicebot/pkg/audio"
)

// ErrUnavailable is returned by [New] when the binary was built without
// audio output support or no device could be opened.
var ErrUnavailable = errors.New("oto: audio output unavailable")

// DefaultFormat is the device format used unless overridden.
var DefaultFormat = audio.Format{SampleRate: 24000, Channels: 1}

// Option configures a Player.
type Option func(*options)

type options struct {
	format audio.Format
}

// WithFormat sets the device sample rate and channel count. Clips in other
// formats are converted before playback.
func WithFormat(f audio.Format) Option {
	return func(o *options) { o.format = f }
}

func buildOptions(opts []Option) options {
	o := options{format: DefaultFormat}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
