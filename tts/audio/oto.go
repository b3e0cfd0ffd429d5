//go:build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/troupe/tts"
)

// DeviceSampleRate is the rate the output context is opened at. Clips are
// resampled to it.
const DeviceSampleRate = 48000

// OtoPlayer plays through the system audio device. The oto context can
// only be created once per process, so all OtoPlayers share it.
type OtoPlayer struct {
	logger *log.Logger
}

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   DeviceSampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   40 * time.Millisecond,
		})
		if err != nil {
			otoErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// NewOtoPlayer opens the audio device.
func NewOtoPlayer(logger *log.Logger) (*OtoPlayer, error) {
	if logger == nil {
		logger = log.Default().WithPrefix("audio")
	}
	if _, err := sharedContext(); err != nil {
		return nil, err
	}
	return &OtoPlayer{logger: logger}, nil
}

// Play starts a clip. Non-analyzable clips are timed without sound.
func (o *OtoPlayer) Play(ctx context.Context, a *tts.Audio) (Handle, error) {
	if a == nil {
		return nil, ErrNothingToPlay
	}
	p := newPlayback(a, nil)
	if len(p.samples) == 0 {
		go p.expire(ctx)
		return p, nil
	}

	octx, err := sharedContext()
	if err != nil {
		return nil, err
	}

	// The reader's backing slice must outlive playback.
	pcm := EncodePCM16(Resample(p.samples, a.SampleRate, DeviceSampleRate))
	player := octx.NewPlayer(bytes.NewReader(pcm))
	p.onStop = func() {
		player.Pause()
		if err := player.Close(); err != nil {
			o.logger.Debug("close player", "err", err)
		}
	}
	player.Play()

	go o.watch(ctx, p, player)
	return p, nil
}

// watch finishes p once the device has drained the clip.
func (o *OtoPlayer) watch(ctx context.Context, p *playback, player *oto.Player) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.finish()
			return
		case <-p.done:
			return
		case <-ticker.C:
			if !player.IsPlaying() {
				p.finish()
				return
			}
		}
	}
}
