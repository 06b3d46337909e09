//go:build portaudio

package mic

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voicebot/pkg/provider/stt"
)

var _ stt.Source = (*Source)(nil)

// Source records from the default input device. The device is opened per
// Capture and closed afterwards so the microphone is only live while
// listening.
type Source struct {
	opts options
	mu   sync.Mutex
}

// New initialises PortAudio and checks that an input device exists. Call
// [Source.Close] on shutdown.
func New(opts ...Option) (*Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Source{opts: buildOptions(opts)}, nil
}

// SampleRate implements stt.Source.
func (s *Source) SampleRate() int { return s.opts.sampleRate }

// Capture implements stt.Source.
func (s *Source) Capture(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.opts.sampleRate), len(frames), frames)
	if err != nil {
		return nil, fmt.Errorf("mic: open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("mic: start stream: %w", err)
	}
	defer stream.Stop()

	seg := stt.NewSegmenter(s.opts.sampleRate, s.opts.maxDuration)
	if s.opts.trailingSilence > 0 {
		seg.TrailingSilence = s.opts.trailingSilence
	}
	if s.opts.silenceRMS > 0 {
		seg.SilenceRMS = s.opts.silenceRMS
	}

	chunk := make([]byte, len(frames)*2)
	for {
		if err := ctx.Err(); err != nil {
			return seg.Utterance(), err
		}
		if err := stream.Read(); err != nil {
			return seg.Utterance(), fmt.Errorf("mic: read: %w", err)
		}
		for i, v := range frames {
			binary.LittleEndian.PutUint16(chunk[i*2:], uint16(v))
		}
		if seg.Push(append([]byte(nil), chunk...)) {
			slog.Debug("mic: utterance captured", "duration", seg.Duration())
			return seg.Utterance(), nil
		}
	}
}

// Close releases PortAudio.
func (s *Source) Close() error {
	return portaudio.Terminate()
}
