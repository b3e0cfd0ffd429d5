// Package tts turns a character's line into audio. Engines are composed into
// a Chain that degrades through secondary engines down to silence, so a turn
// never fails because speech did.
package tts

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Engine synthesizes speech.
type Engine interface {
	// Synthesize renders text with the given voice. An empty voice selects
	// the engine default.
	Synthesize(ctx context.Context, text, voice string) (*Audio, error)

	// Name identifies the engine in logs and cache keys.
	Name() string
}

// Audio is mono or interleaved 16-bit little-endian PCM.
type Audio struct {
	Data       []byte
	SampleRate int
	Channels   int
	Duration   time.Duration

	// Analyzable is false when Data carries no speech, as with the silent
	// engine. Mouth animation then uses a fixed pattern.
	Analyzable bool
}

// NewPCM16 wraps raw PCM and computes its duration.
func NewPCM16(data []byte, sampleRate, channels int) *Audio {
	if channels <= 0 {
		channels = 1
	}
	a := &Audio{Data: data, SampleRate: sampleRate, Channels: channels, Analyzable: len(data) > 0}
	if sampleRate > 0 {
		frames := len(data) / (2 * channels)
		a.Duration = time.Duration(frames) * time.Second / time.Duration(sampleRate)
	}
	return a
}

// EngineConfig configures an engine built through NewEngine.
type EngineConfig struct {
	Name    string
	Model   string
	Voice   string
	BaseURL string
	APIKey  string
	Binary  string
	Timeout time.Duration

	HTTPClient *http.Client
}

// Client returns the configured HTTP client or a new one using Timeout.
func (c EngineConfig) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

const (
	wordsPerMinute = 160
	minEstimate    = 600 * time.Millisecond
	sentencePause  = 250 * time.Millisecond
)

// EstimateDuration guesses how long text takes to speak.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	d := time.Duration(words) * time.Minute / wordsPerMinute
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			d += sentencePause
		}
	}
	if d < minEstimate {
		d = minEstimate
	}
	return d
}
