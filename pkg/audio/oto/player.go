//go:build oto

package oto

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	otov3 "github.com/ebitengine/oto/v3"

	"github.com/MrWong99/voicebot/pkg/audio"
)

// pollInterval is how often Play checks whether the device drained.
const pollInterval = 10 * time.Millisecond

// Player writes clips to the system audio device. Only one Player may exist
// per process. Safe for concurrent use; Play calls are serialised.
type Player struct {
	ctx    *otov3.Context
	format audio.Format

	playMu sync.Mutex

	mu     sync.Mutex
	active *otov3.Player
}

// New opens the default output device.
func New(opts ...Option) (*Player, error) {
	o := buildOptions(opts)
	ctx, ready, err := otov3.NewContext(&otov3.NewContextOptions{
		SampleRate:   o.format.SampleRate,
		ChannelCount: o.format.Channels,
		Format:       otov3.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	<-ready
	slog.Debug("oto: output opened", "format", o.format)
	return &Player{ctx: ctx, format: o.format}, nil
}

// Format returns the device format.
func (p *Player) Format() audio.Format { return p.format }

// Play blocks until clip has been played, [Player.Stop] is called, or ctx is
// cancelled. A cancelled ctx is reported as its error; Stop is not an error.
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	clip, err := audio.Convert(clip, p.format)
	if err != nil {
		return fmt.Errorf("oto: play: %w", err)
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	player := p.ctx.NewPlayer(bytes.NewReader(clip.PCM))
	defer player.Close()

	p.mu.Lock()
	p.active = player
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active = nil
		p.mu.Unlock()
	}()

	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Stop silences the clip currently playing. Safe to call when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		p.active.Pause()
	}
}
