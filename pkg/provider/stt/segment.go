package stt

import (
	"time"

	"github.com/MrWong99/voicebot/pkg/audio"
)

const (
	// DefaultSilenceRMS is the level (in 16-bit sample units) below which a
	// chunk counts as silence.
	DefaultSilenceRMS = 300.0

	// DefaultTrailingSilence ends an utterance once speech was heard.
	DefaultTrailingSilence = 800 * time.Millisecond
)

// Segmenter accumulates PCM chunks from a live stream and decides when one
// utterance is complete: after speech followed by enough silence, or once
// the buffer reaches its maximum length. Leading silence is discarded.
// Not safe for concurrent use.
type Segmenter struct {
	SampleRate      int
	SilenceRMS      float64
	TrailingSilence time.Duration
	MaxDuration     time.Duration

	buf       []byte
	hadSpeech bool
	silence   time.Duration
}

// NewSegmenter returns a Segmenter for mono PCM at sampleRate with default
// thresholds.
func NewSegmenter(sampleRate int, maxDuration time.Duration) *Segmenter {
	return &Segmenter{
		SampleRate:      sampleRate,
		SilenceRMS:      DefaultSilenceRMS,
		TrailingSilence: DefaultTrailingSilence,
		MaxDuration:     maxDuration,
	}
}

// Push adds chunk and reports whether the utterance is complete.
func (s *Segmenter) Push(chunk []byte) bool {
	clip := audio.Clip{PCM: chunk, Format: audio.Format{SampleRate: s.SampleRate, Channels: 1}}
	d := clip.Duration()

	if audio.RMS(chunk) < s.SilenceRMS {
		if !s.hadSpeech {
			return false
		}
		s.silence += d
		s.buf = append(s.buf, chunk...)
		return s.silence >= s.TrailingSilence
	}

	s.hadSpeech = true
	s.silence = 0
	s.buf = append(s.buf, chunk...)
	return s.MaxDuration > 0 && s.Duration() >= s.MaxDuration
}

// Duration returns the length of the buffered audio.
func (s *Segmenter) Duration() time.Duration {
	return audio.Clip{PCM: s.buf, Format: audio.Format{SampleRate: s.SampleRate, Channels: 1}}.Duration()
}

// Utterance returns the buffered audio, or nil when no speech was heard.
func (s *Segmenter) Utterance() []byte {
	if !s.hadSpeech {
		return nil
	}
	return s.buf
}

// Reset discards all buffered audio.
func (s *Segmenter) Reset() {
	s.buf, s.hadSpeech, s.silence = nil, false, 0
}
