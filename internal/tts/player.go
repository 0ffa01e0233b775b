package tts

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/voicechat/internal/logger"
	"github.com/hammamikhairi/voicechat/internal/wavfile"
)

// Playback plays decoded audio to completion.
type Playback interface {
	Play(clip *wavfile.Clip) error
}

// Player plays 16-bit PCM through oto. oto allows one context per process,
// so every clip must match the rate and channel count it was opened with.
type Player struct {
	ctx      *oto.Context
	rate     int
	channels int
	log      *logger.Logger

	mu     sync.Mutex
	active *oto.Player
}

// NewPlayer opens the system audio output.
func NewPlayer(rate, channels int, log *logger.Logger) (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: open audio output: %w", err)
	}
	<-ready

	log.Debug("audio player initialized (rate=%d, channels=%d)", rate, channels)
	return &Player{ctx: ctx, rate: rate, channels: channels, log: log}, nil
}

// Play blocks until clip has played or Stop is called.
func (p *Player) Play(clip *wavfile.Clip) error {
	if clip.SampleRate != p.rate || clip.Channels != p.channels {
		return fmt.Errorf("tts: clip is %d Hz/%d ch, output is %d Hz/%d ch",
			clip.SampleRate, clip.Channels, p.rate, p.channels)
	}
	pcm, err := clip.PCM16LE()
	if err != nil {
		return err
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	player.Play()
	p.log.Debug("playing %.2fs", clip.Seconds())
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()
	return player.Close()
}

// Stop interrupts playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if active != nil {
		active.Pause()
		p.log.Debug("playback interrupted")
	}
}
