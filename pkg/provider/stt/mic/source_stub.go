//go:build !portaudio

package mic

import "context"

// Source is unavailable without the "portaudio" build tag.
type Source struct{}

// New always returns [ErrUnavailable]; rebuild with -tags portaudio.
func New(...Option) (*Source, error) {
	return nil, ErrUnavailable
}

// SampleRate returns [DefaultSampleRate].
func (*Source) SampleRate() int { return DefaultSampleRate }

// Capture always returns [ErrUnavailable].
func (*Source) Capture(context.Context) ([]byte, error) { return nil, ErrUnavailable }

// Close does nothing.
func (*Source) Close() error { return nil }
