// Package viseme computes how far a speaking character's mouth is open.
//
// While audio is playing the openness follows the low-frequency energy of
// the samples being heard. When no samples are available it plays a fixed
// open/close pattern for the estimated length of the line.
package viseme

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Source supplies the samples currently being heard. audio.Handle
// satisfies it.
type Source interface {
	Samples(dst []float64) int
	SampleRate() int
}

// Mode is what drives the synthesizer.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAudio
	ModePattern
	ModeStopped
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAudio:
		return "audio"
	case ModePattern:
		return "pattern"
	case ModeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config tunes the analysis.
type Config struct {
	FFTSize         int           `mapstructure:"fft_size"`
	Smoothing       float64       `mapstructure:"smoothing"`
	LowBandFraction float64       `mapstructure:"low_band"`
	MinDecibels     float64       `mapstructure:"min_db"`
	MaxDecibels     float64       `mapstructure:"max_db"`
	Exponent        float64       `mapstructure:"exponent"`
	Pattern         []float64     `mapstructure:"pattern"`
	PatternStep     time.Duration `mapstructure:"pattern_step"`
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		FFTSize:         256,
		Smoothing:       0.8,
		LowBandFraction: 0.3,
		MinDecibels:     -100,
		MaxDecibels:     -30,
		Exponent:        0.6,
		Pattern:         []float64{0.15, 0.55, 0.85, 0.45, 0.7, 0.25, 0.9, 0.35},
		PatternStep:     90 * time.Millisecond,
	}
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithClock overrides time.Now for pattern timing.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// WithLogger sets the logger fallbacks are reported to.
func WithLogger(l *log.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

// Synthesizer produces one openness value in [0,1] per Tick.
type Synthesizer struct {
	cfg    Config
	now    func() time.Time
	logger *log.Logger

	mu       sync.Mutex
	mode     Mode
	src      Source
	deadline time.Time
	started  time.Time

	fft      *fourier.FFT
	window   []float64
	buf      []float64
	coeff    []complex128
	smoothed []float64

	ticksAfterStop int
}

// New creates an idle synthesizer.
func New(cfg Config, opts ...Option) *Synthesizer {
	d := DefaultConfig()
	if len(cfg.Pattern) == 0 {
		cfg.Pattern = d.Pattern
	}
	if cfg.PatternStep <= 0 {
		cfg.PatternStep = d.PatternStep
	}
	if cfg.MaxDecibels <= cfg.MinDecibels {
		cfg.MinDecibels, cfg.MaxDecibels = d.MinDecibels, d.MaxDecibels
	}
	if cfg.Exponent <= 0 {
		cfg.Exponent = d.Exponent
	}
	s := &Synthesizer{
		cfg:    cfg,
		now:    time.Now,
		logger: log.Default().WithPrefix("viseme"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a line. A nil src, or any failure preparing the analysis,
// selects pattern mode for estimate. Start never fails.
func (s *Synthesizer) Start(src Source, estimate time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticksAfterStop = 0
	s.started = s.now()
	s.deadline = s.started.Add(estimate)
	s.src = nil

	if src == nil {
		s.mode = ModePattern
		return
	}
	if err := s.initAnalyzer(src); err != nil {
		s.logger.Debug("audio analysis unavailable, using pattern", "err", err)
		s.mode = ModePattern
		return
	}
	s.src = src
	s.mode = ModeAudio
}

// initAnalyzer prepares the FFT, converting panics into errors.
func (s *Synthesizer) initAnalyzer(src Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()

	n := s.cfg.FFTSize
	if n < 32 || n > 32768 || n&(n-1) != 0 {
		return fmt.Errorf("fft size %d is not a power of two in [32, 32768]", n)
	}
	if src.SampleRate() <= 0 {
		return fmt.Errorf("source has no sample rate")
	}
	if s.cfg.Smoothing < 0 || s.cfg.Smoothing >= 1 {
		return fmt.Errorf("smoothing %v outside [0, 1)", s.cfg.Smoothing)
	}
	if s.cfg.LowBandFraction <= 0 || s.cfg.LowBandFraction > 1 {
		return fmt.Errorf("low band fraction %v outside (0, 1]", s.cfg.LowBandFraction)
	}

	if s.fft == nil || s.fft.Len() != n {
		s.fft = fourier.NewFFT(n)
		s.window = make([]float64, n)
		for i := range s.window {
			s.window[i] = 1
		}
		window.Blackman(s.window)
		s.buf = make([]float64, n)
		s.coeff = make([]complex128, n/2+1)
		s.smoothed = make([]float64, n/2)
	}
	for i := range s.smoothed {
		s.smoothed[i] = 0
	}
	return nil
}

// Tick returns the current openness.
func (s *Synthesizer) Tick() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case ModeAudio:
		v, err := s.analyze()
		if err != nil {
			s.logger.Debug("audio analysis failed, using pattern", "err", err)
			s.mode = ModePattern
			return s.pattern()
		}
		return v
	case ModePattern:
		return s.pattern()
	case ModeStopped:
		s.ticksAfterStop++
		return 0
	default:
		return 0
	}
}

// Stop ends the line. Every later Tick returns 0 until the next Start.
func (s *Synthesizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeStopped
	s.src = nil
}

// Mode reports what drives the synthesizer.
func (s *Synthesizer) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// TicksAfterStop counts Tick calls since Stop. A non-zero value after a
// driver has been stopped means a frame loop outlived its line.
func (s *Synthesizer) TicksAfterStop() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticksAfterStop
}

func (s *Synthesizer) pattern() float64 {
	elapsed := s.now().Sub(s.started)
	if elapsed < 0 || !s.now().Before(s.deadline) {
		return 0
	}
	i := int(elapsed/s.cfg.PatternStep) % len(s.cfg.Pattern)
	return clamp01(s.cfg.Pattern[i])
}

// analyze maps the low band of the windowed spectrum to openness.
func (s *Synthesizer) analyze() (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()

	n := len(s.buf)
	s.src.Samples(s.buf)
	for i := range s.buf {
		s.buf[i] *= s.window[i]
	}
	s.coeff = s.fft.Coefficients(s.coeff, s.buf)

	bins := len(s.smoothed)
	low := int(math.Ceil(float64(bins) * s.cfg.LowBandFraction))
	if low < 1 {
		low = 1
	}
	span := s.cfg.MaxDecibels - s.cfg.MinDecibels
	k := s.cfg.Smoothing

	var sum float64
	for i := 0; i < bins; i++ {
		mag := math.Hypot(real(s.coeff[i]), imag(s.coeff[i])) / float64(n)
		s.smoothed[i] = k*s.smoothed[i] + (1-k)*mag
		if i >= low {
			continue
		}
		if s.smoothed[i] <= 0 {
			continue
		}
		db := 20 * math.Log10(s.smoothed[i])
		sum += clamp01((db - s.cfg.MinDecibels) / span)
	}

	return clamp01(math.Pow(sum/float64(low), s.cfg.Exponent)), nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
