package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/troupe/tts"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func ramp(n int) *tts.Audio {
	s := make([]float64, n)
	for i := range s {
		s[i] = float64(i+1) / float64(n+1)
	}
	return tts.NewPCM16(EncodePCM16(s), 1000, 1)
}

func TestClockPlayerFinishes(t *testing.T) {
	p := NewClockPlayer(nil)
	h, err := p.Play(context.Background(), ramp(50))
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("playback did not finish")
	}
	if h.Position() != 50*time.Millisecond {
		t.Errorf("final position = %v", h.Position())
	}
	if len(p.Played()) != 1 {
		t.Errorf("played = %d", len(p.Played()))
	}
}

func TestClockPlayerSamplesFollowPosition(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	p := NewClockPlayer(clock.Now)
	h, err := p.Play(context.Background(), ramp(1000))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Stop()

	dst := make([]float64, 8)
	if n := h.Samples(dst); n != 0 {
		t.Errorf("at start n = %d, want 0", n)
	}

	clock.Advance(4 * time.Millisecond)
	n := h.Samples(dst)
	if n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}
	if dst[0] != 0 || dst[3] != 0 || dst[4] == 0 {
		t.Errorf("samples not right-aligned: %v", dst)
	}

	clock.Advance(100 * time.Millisecond)
	if n := h.Samples(dst); n != 8 {
		t.Errorf("n = %d, want 8", n)
	}
	if h.SampleRate() != 1000 {
		t.Errorf("rate = %d", h.SampleRate())
	}
}

func TestClockPlayerStopAndCancel(t *testing.T) {
	p := NewClockPlayer(nil)
	long := tts.NewPCM16(make([]byte, 2*16000*10), 16000, 1)

	h, _ := p.Play(context.Background(), long)
	h.Stop()
	h.Stop()
	select {
	case <-h.Done():
	default:
		t.Error("Stop did not close Done")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h, _ = p.Play(ctx, long)
	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Error("cancel did not finish playback")
	}
}

func TestClockPlayerNonAnalyzable(t *testing.T) {
	p := NewClockPlayer(nil)
	h, err := p.Play(context.Background(), &tts.Audio{Duration: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if n := h.Samples(make([]float64, 16)); n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	<-h.Done()
}

func TestClockPlayerErrors(t *testing.T) {
	p := NewClockPlayer(nil)
	if _, err := p.Play(context.Background(), nil); !errors.Is(err, ErrNothingToPlay) {
		t.Errorf("nil audio err = %v", err)
	}
	boom := errors.New("boom")
	p.SetPlayError(boom)
	if _, err := p.Play(context.Background(), ramp(10)); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
