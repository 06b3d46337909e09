package audio

import (
	"errors"
	"fmt"
)

// ErrOddLength is returned by [Convert] for PCM that is not a whole number of
// 16-bit samples.
var ErrOddLength = errors.New("audio: odd PCM byte count")

// Convert resamples and remixes c to target. Resampling happens before
// channel conversion so a stereo-to-mono change never resamples two
// channels. A clip already in the target format is returned as is.
func Convert(c Clip, target Format) (Clip, error) {
	if len(c.PCM)%bytesPerSample != 0 {
		return Clip{}, fmt.Errorf("audio: convert %d bytes: %w", len(c.PCM), ErrOddLength)
	}
	if c.Format == target {
		return c, nil
	}
	if c.Channels > 2 || target.Channels > 2 || c.Channels < 1 || target.Channels < 1 {
		return Clip{}, fmt.Errorf("audio: convert %s to %s: unsupported channel count", c.Format, target)
	}

	pcm := c.PCM
	if c.SampleRate != target.SampleRate {
		pcm = resample(pcm, c.Channels, c.SampleRate, target.SampleRate)
	}
	switch {
	case c.Channels == 1 && target.Channels == 2:
		pcm = MonoToStereo(pcm)
	case c.Channels == 2 && target.Channels == 1:
		pcm = StereoToMono(pcm)
	}
	return Clip{PCM: pcm, Format: target}, nil
}

// String renders f as e.g. "24000Hz mono".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// MonoToStereo duplicates every mono sample into an L/R pair.
func MonoToStereo(pcm []byte) []byte {
	n := len(pcm) / bytesPerSample
	out := make([]byte, n*2*bytesPerSample)
	for i := range n {
		s := sampleAt(pcm, i)
		putSample(out, 2*i, s)
		putSample(out, 2*i+1, s)
	}
	return out
}

// StereoToMono averages each L/R pair.
func StereoToMono(pcm []byte) []byte {
	n := len(pcm) / (2 * bytesPerSample)
	out := make([]byte, n*bytesPerSample)
	for i := range n {
		l, r := int32(sampleAt(pcm, 2*i)), int32(sampleAt(pcm, 2*i+1))
		putSample(out, i, int16((l+r)/2))
	}
	return out
}

// ResampleMono16 resamples mono PCM from srcRate to dstRate with linear
// interpolation. Invalid or equal rates return pcm unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample(pcm, 1, srcRate, dstRate)
}

// resample linearly interpolates each channel of interleaved pcm.
func resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return pcm
	}
	srcFrames := len(pcm) / (bytesPerSample * channels)
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	out := make([]byte, dstFrames*channels*bytesPerSample)
	step := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, srcFrames-1)
		for ch := range channels {
			s0 := float64(sampleAt(pcm, idx*channels+ch))
			s1 := float64(sampleAt(pcm, next*channels+ch))
			putSample(out, i*channels+ch, clamp16(s0+(s1-s0)*frac))
		}
	}
	return out
}
