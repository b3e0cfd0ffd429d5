// Package mock provides a speech engine that renders a synthetic voice-like
// tone, for tests and the offline demo.
package mock

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/troupe/tts"
)

const (
	Name       = "mock"
	SampleRate = 16000
	// syllableRate is the number of loudness bumps per second.
	syllableRate = 4.0
)

func init() {
	tts.Register(Name, func(tts.EngineConfig) (tts.Engine, error) { return New(), nil })
}

// Engine renders a tone whose loudness pulses like syllables.
type Engine struct {
	mu           sync.Mutex
	delay        time.Duration
	failureError error
	callCount    int
	texts        []string
}

// New creates a mock engine with no delay.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string { return Name }

// Synthesize renders EstimateDuration(text) of audio. The voice picks the
// pitch so characters sound different.
func (e *Engine) Synthesize(ctx context.Context, text, voice string) (*tts.Audio, error) {
	e.mu.Lock()
	e.callCount++
	e.texts = append(e.texts, text)
	delay, failure := e.delay, e.failureError
	e.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}

	return tts.NewPCM16(Tone(tts.EstimateDuration(text), pitch(voice)), SampleRate, 1), nil
}

// Tone renders d of 16-bit mono PCM at SampleRate.
func Tone(d time.Duration, freq float64) []byte {
	n := int(d.Seconds() * SampleRate)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / SampleRate
		envelope := 0.5 - 0.5*math.Cos(2*math.Pi*syllableRate*t)
		v := 0.6 * envelope * math.Sin(2*math.Pi*freq*t)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return buf
}

func pitch(voice string) float64 {
	var h uint32
	for _, r := range voice {
		h = h*31 + uint32(r)
	}
	return 110 + float64(h%8)*20
}

// Test control methods

// SetDelay sets the simulated synthesis delay.
func (e *Engine) SetDelay(d time.Duration) {
	e.mu.Lock()
	e.delay = d
	e.mu.Unlock()
}

// SetFailure makes every call fail with err.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	e.failureError = err
	e.mu.Unlock()
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.SetFailure(nil)
}

// CallCount returns the number of Synthesize calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// Texts returns every text passed to Synthesize.
func (e *Engine) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}
