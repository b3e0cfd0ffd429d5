package tts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultMaxFailures is how many consecutive failures bench an engine.
	DefaultMaxFailures = 3
	// DefaultCooldown is how long a benched engine is skipped.
	DefaultCooldown = time.Minute
)

// Chain tries engines in order and falls back to Silent when all fail.
// An engine that fails MaxFailures times in a row is skipped until its
// cooldown passes.
type Chain struct {
	engines     []Engine
	last        Engine
	logger      *log.Logger
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu     sync.Mutex
	health map[string]*engineHealth
}

type engineHealth struct {
	failures     int
	benchedUntil time.Time
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets the logger degradations are reported to.
func WithLogger(l *log.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// WithBenching sets the failure threshold and cooldown. Zero values keep
// the defaults.
func WithBenching(maxFailures int, cooldown time.Duration) ChainOption {
	return func(c *Chain) {
		if maxFailures > 0 {
			c.maxFailures = maxFailures
		}
		if cooldown > 0 {
			c.cooldown = cooldown
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ChainOption {
	return func(c *Chain) { c.now = now }
}

// NewChain composes engines, skipping nil entries.
func NewChain(engines []Engine, opts ...ChainOption) *Chain {
	c := &Chain{
		last:        Silent{},
		logger:      log.Default().WithPrefix("tts"),
		maxFailures: DefaultMaxFailures,
		cooldown:    DefaultCooldown,
		now:         time.Now,
		health:      make(map[string]*engineHealth),
	}
	for _, e := range engines {
		if e != nil {
			c.engines = append(c.engines, e)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name lists the composed engines.
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.engines)+1)
	for _, e := range c.engines {
		names = append(names, e.Name())
	}
	names = append(names, c.last.Name())
	return strings.Join(names, ">")
}

// Synthesize never returns an error: failures are logged and the next
// engine is tried, ending with silence.
func (c *Chain) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	for _, e := range c.engines {
		if ctx.Err() != nil {
			break
		}
		if c.benched(e.Name()) {
			c.logger.Debug("skipping benched engine", "engine", e.Name())
			continue
		}

		audio, err := e.Synthesize(ctx, text, voice)
		if err == nil && audio == nil {
			err = ErrBadAudio
		}
		if err != nil {
			c.recordFailure(e.Name())
			c.logger.Warn("speech engine failed, degrading", "err", &SynthesisError{Engine: e.Name(), Err: err})
			continue
		}

		c.recordSuccess(e.Name())
		return audio, nil
	}

	audio, _ := c.last.Synthesize(ctx, text, voice)
	return audio, nil
}

func (c *Chain) benched(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.health[name]
	return ok && c.now().Before(h.benchedUntil)
}

func (c *Chain) recordFailure(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.health[name]
	if !ok {
		h = &engineHealth{}
		c.health[name] = h
	}
	h.failures++
	if c.maxFailures > 0 && h.failures >= c.maxFailures {
		h.benchedUntil = c.now().Add(c.cooldown)
		h.failures = 0
		c.logger.Warn("benching speech engine", "engine", name, "cooldown", c.cooldown)
	}
}

func (c *Chain) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.health[name]; ok && h.failures > 0 {
		c.logger.Info("speech engine recovered", "engine", name, "after", h.failures)
		h.failures = 0
	}
}
