// Package audio holds the PCM plumbing shared by capture, transcription and
// playback: WAV encoding, format conversion, volume scaling and energy
// measurement.
//
// All PCM in this package is signed 16-bit little-endian, interleaved when
// there is more than one channel.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
	wavHeaderSize  = 44
)

var (
	// ErrNotWAV is returned by [DecodeWAV] for data without a RIFF/WAVE header.
	ErrNotWAV = errors.New("audio: not a WAV file")

	// ErrUnsupportedWAV is returned by [DecodeWAV] for WAV data that is not
	// 16-bit PCM.
	ErrUnsupportedWAV = errors.New("audio: unsupported WAV encoding")
)

// Format describes the sample rate and channel count of PCM data.
type Format struct {
	SampleRate int
	Channels   int
}

// Clip is a self-contained piece of PCM audio.
type Clip struct {
	PCM []byte
	Format
}

// Samples returns the number of frames in c.
func (c Clip) Samples() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.PCM) / (bytesPerSample * c.Channels)
}

// Duration returns the playback length of c.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Samples()) * time.Second / time.Duration(c.SampleRate)
}

// EncodeWAV wraps c in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(c Clip) []byte {
	channels := max(c.Channels, 1)
	blockAlign := channels * bytesPerSample
	size := len(c.PCM)

	buf := make([]byte, wavHeaderSize+size)
	le := binary.LittleEndian

	copy(buf[0:], "RIFF")
	le.PutUint32(buf[4:], uint32(36+size))
	copy(buf[8:], "WAVE")

	copy(buf[12:], "fmt ")
	le.PutUint32(buf[16:], 16)
	le.PutUint16(buf[20:], 1) // PCM
	le.PutUint16(buf[22:], uint16(channels))
	le.PutUint32(buf[24:], uint32(c.SampleRate))
	le.PutUint32(buf[28:], uint32(c.SampleRate*blockAlign))
	le.PutUint16(buf[32:], uint16(blockAlign))
	le.PutUint16(buf[34:], bitsPerSample)

	copy(buf[36:], "data")
	le.PutUint32(buf[40:], uint32(size))
	copy(buf[wavHeaderSize:], c.PCM)
	return buf
}

// DecodeWAV walks the RIFF chunks of wav and returns its PCM payload and
// format. Only 16-bit integer PCM is accepted.
func DecodeWAV(wav []byte) (Clip, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var (
		clip   Clip
		gotFmt bool
		le     = binary.LittleEndian
	)
	for pos := 12; pos+8 <= len(wav); {
		id := string(wav[pos : pos+4])
		size := int(le.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8
		end := min(body+size, len(wav))

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Clip{}, fmt.Errorf("audio: decode wav: short fmt chunk: %w", ErrUnsupportedWAV)
			}
			format := le.Uint16(wav[body:])
			bits := le.Uint16(wav[body+14:])
			if format != 1 || bits != bitsPerSample {
				return Clip{}, fmt.Errorf("audio: decode wav: format %d, %d bits: %w", format, bits, ErrUnsupportedWAV)
			}
			clip.Channels = int(le.Uint16(wav[body+2:]))
			clip.SampleRate = int(le.Uint32(wav[body+4:]))
			gotFmt = true
		case "data":
			if !gotFmt {
				return Clip{}, fmt.Errorf("audio: decode wav: data before fmt: %w", ErrUnsupportedWAV)
			}
			clip.PCM = wav[body:end]
			return clip, nil
		}

		pos = body + size
		if size%2 != 0 {
			pos++
		}
	}
	return Clip{}, fmt.Errorf("audio: decode wav: no data chunk: %w", ErrNotWAV)
}

// RMS returns the root-mean-square level of pcm in sample units (0..32767).
func RMS(pcm []byte) float64 {
	n := len(pcm) / bytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(sampleAt(pcm, i))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// ScaleVolume returns a copy of pcm with every sample multiplied by gain and
// clamped to the int16 range. A gain of 1 returns pcm unchanged.
func ScaleVolume(pcm []byte, gain float64) []byte {
	if gain == 1 {
		return pcm
	}
	n := len(pcm) / bytesPerSample
	out := make([]byte, n*bytesPerSample)
	for i := range n {
		putSample(out, i, clamp16(float64(sampleAt(pcm, i))*gain))
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
}

func putSample(pcm []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(pcm[i*bytesPerSample:], uint16(v))
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
