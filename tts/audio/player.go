// Package audio plays synthesized speech and exposes the samples being heard
// so mouth animation can follow the voice.
package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgnsrekt/troupe/tts"
)

var (
	// ErrNothingToPlay is returned for nil audio.
	ErrNothingToPlay = errors.New("no audio to play")
	// ErrUnavailable is returned when no output device can be opened.
	ErrUnavailable = errors.New("audio output unavailable")
)

// Player starts playback of one clip.
type Player interface {
	Play(ctx context.Context, a *tts.Audio) (Handle, error)
}

// Handle is a clip being played.
type Handle interface {
	// Done is closed when playback ends, is stopped, or ctx is cancelled.
	Done() <-chan struct{}

	// Samples fills the tail of dst with the mono samples just before the
	// current position, zeroing the rest. It returns how many real samples
	// were written; 0 means nothing to analyze.
	Samples(dst []float64) int

	// SampleRate of the samples returned by Samples.
	SampleRate() int

	// Position is the elapsed playback time.
	Position() time.Duration

	// Stop ends playback early. It is safe to call more than once.
	Stop()
}

// playback tracks a clip against a clock. Device players embed it and call
// finish when the device drains.
type playback struct {
	samples  []float64
	rate     int
	duration time.Duration
	now      func() time.Time
	start    time.Time

	done   chan struct{}
	once   sync.Once
	onStop func()

	mu     sync.Mutex
	frozen time.Duration
	ended  bool
}

func newPlayback(a *tts.Audio, now func() time.Time) *playback {
	if now == nil {
		now = time.Now
	}
	p := &playback{
		rate:     a.SampleRate,
		duration: a.Duration,
		now:      now,
		done:     make(chan struct{}),
	}
	if a.Analyzable {
		p.samples = DecodePCM16Mono(a.Data, a.Channels)
	}
	p.start = now()
	return p
}

func (p *playback) Done() <-chan struct{} { return p.done }

func (p *playback) SampleRate() int { return p.rate }

func (p *playback) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ended {
		return p.frozen
	}
	pos := p.now().Sub(p.start)
	if pos < 0 {
		pos = 0
	}
	if pos > p.duration {
		pos = p.duration
	}
	return pos
}

func (p *playback) Samples(dst []float64) int {
	for i := range dst {
		dst[i] = 0
	}
	if len(p.samples) == 0 || p.rate <= 0 || len(dst) == 0 {
		return 0
	}

	end := int(int64(p.Position()) * int64(p.rate) / int64(time.Second))
	if end > len(p.samples) {
		end = len(p.samples)
	}
	begin := end - len(dst)
	if begin < 0 {
		begin = 0
	}
	n := copy(dst[len(dst)-(end-begin):], p.samples[begin:end])
	return n
}

func (p *playback) Stop() { p.finish() }

// finish freezes the position and closes Done exactly once.
func (p *playback) finish() {
	p.once.Do(func() {
		pos := p.Position()
		p.mu.Lock()
		p.frozen, p.ended = pos, true
		p.mu.Unlock()
		if p.onStop != nil {
			p.onStop()
		}
		close(p.done)
	})
}

// expire finishes the playback after its duration or on cancellation.
func (p *playback) expire(ctx context.Context) {
	timer := time.NewTimer(p.duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-p.done:
	}
	p.finish()
}
