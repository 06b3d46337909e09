// Package tts speaks reply text aloud.
//
// A [Synthesizer] turns text into PCM and an [Output] plays it. [Pipeline]
// combines the two into a [Speaker]: at most one utterance is audible, a new
// Speak cancels the previous one, and listeners observe start, end and
// error signals.
package tts

import (
	"context"
	"strings"

	"github.com/MrWong99/voicebot/pkg/audio"
)

// Voice is one entry of a synthesizer's voice catalogue.
type Voice struct {
	// ID is the provider-specific identifier passed back to Synthesize.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Lang is a BCP-47 tag such as "en-US". May be empty.
	Lang string
}

// Settings are the per-utterance prosody parameters.
type Settings struct {
	// Rate is the speaking-rate multiplier, 1 being normal speed.
	Rate float64

	// Pitch is the pitch multiplier, 1 being the voice's natural pitch.
	Pitch float64

	// Volume is the output gain in [0, 1].
	Volume float64
}

// DefaultSettings is applied to every utterance.
var DefaultSettings = Settings{Rate: 0.9, Pitch: 1, Volume: 0.8}

// Synthesizer renders text as audio.
type Synthesizer interface {
	// Synthesize returns the whole utterance as one clip. A zero v selects
	// the synthesizer's default voice.
	Synthesize(ctx context.Context, text string, v Voice, s Settings) (audio.Clip, error)

	// ListVoices returns the voices available for Synthesize.
	ListVoices(ctx context.Context) ([]Voice, error)
}

// Output plays clips on an audio device.
type Output interface {
	// Play blocks until clip finished, Stop was called or ctx is done.
	Play(ctx context.Context, clip audio.Clip) error

	// Stop silences the current clip. Safe to call when idle.
	Stop()
}

// qualityVendors mark voices that usually sound better than the rest.
var qualityVendors = []string{"Google", "Microsoft"}

// SelectVoice picks a voice from voices: first one whose name carries a
// quality vendor, else the first English one, else the zero Voice meaning
// "provider default".
func SelectVoice(voices []Voice) Voice {
	for _, v := range voices {
		for _, vendor := range qualityVendors {
			if strings.Contains(v.Name, vendor) {
				return v
			}
		}
	}
	for _, v := range voices {
		if strings.HasPrefix(v.Lang, "en-") {
			return v
		}
	}
	return Voice{}
}
