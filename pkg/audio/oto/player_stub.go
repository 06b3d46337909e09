//go:build !oto

package oto

import (
	"context"

	"github.com/MrWong99/voicebot/pkg/audio"
)

// Player is unavailable without the "oto" build tag.
type Player struct{}

// New always returns [ErrUnavailable]; rebuild with -tags oto for playback.
func New(...Option) (*Player, error) {
	return nil, ErrUnavailable
}

// Format returns the zero format.
func (*Player) Format() audio.Format { return audio.Format{} }

// Play always returns [ErrUnavailable].
func (*Player) Play(context.Context, audio.Clip) error { return ErrUnavailable }

// Stop does nothing.
func (*Player) Stop() {}
