package audio

import (
	"context"
	"sync"
	"time"

	"github.com/dgnsrekt/troupe/tts"
)

// ClockPlayer plays nothing. Each clip lasts its Duration by the wall clock
// while Samples still reports the clip's content, so animation runs exactly
// as with a device. It backs --mute, headless hosts and tests.
type ClockPlayer struct {
	now func() time.Time

	mu        sync.Mutex
	played    []*tts.Audio
	playError error
}

// NewClockPlayer creates a player. A nil now uses time.Now.
func NewClockPlayer(now func() time.Time) *ClockPlayer {
	return &ClockPlayer{now: now}
}

// Play starts a clip.
func (c *ClockPlayer) Play(ctx context.Context, a *tts.Audio) (Handle, error) {
	if a == nil {
		return nil, ErrNothingToPlay
	}
	c.mu.Lock()
	err := c.playError
	if err == nil {
		c.played = append(c.played, a)
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p := newPlayback(a, c.now)
	go p.expire(ctx)
	return p, nil
}

// Test control methods

// SetPlayError makes Play fail with err; nil clears it.
func (c *ClockPlayer) SetPlayError(err error) {
	c.mu.Lock()
	c.playError = err
	c.mu.Unlock()
}

// Played returns every clip passed to Play.
func (c *ClockPlayer) Played() []*tts.Audio {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*tts.Audio(nil), c.played...)
}
