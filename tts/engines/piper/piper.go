// Package piper runs the local Piper speech synthesizer as a subprocess.
package piper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/troupe/tts"
)

const (
	// Name is the registered engine name.
	Name = "piper"
	// SampleRate of Piper's raw output for medium-quality voices.
	SampleRate     = 22050
	defaultTimeout = 30 * time.Second
)

func init() {
	tts.Register(Name, func(cfg tts.EngineConfig) (tts.Engine, error) {
		return New(Config{Binary: cfg.Binary, Model: cfg.Model, Timeout: cfg.Timeout})
	})
}

// Config configures the engine.
type Config struct {
	Binary     string
	Model      string
	SampleRate int
	Timeout    time.Duration
}

// Engine starts a fresh piper process per line, feeding text on stdin and
// reading raw PCM from stdout.
type Engine struct {
	cfg    Config
	logger *log.Logger
}

// New validates cfg, locating the binary on PATH when unset.
func New(cfg Config) (*Engine, error) {
	if cfg.Binary == "" {
		cfg.Binary = FindBinary()
	}
	if cfg.Binary == "" {
		return nil, fmt.Errorf("%w: piper binary not found", tts.ErrUnavailable)
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = SampleRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Engine{cfg: cfg, logger: log.Default().WithPrefix("piper")}, nil
}

func (e *Engine) Name() string { return Name }

// Synthesize runs piper once. A voice ending in .onnx selects that model; a
// numeric voice selects a speaker of a multi-speaker model.
func (e *Engine) Synthesize(ctx context.Context, text, voice string) (*tts.Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}

	model := e.cfg.Model
	var speaker string
	switch {
	case strings.HasSuffix(voice, ".onnx"):
		model = voice
	case voice != "":
		if _, err := strconv.Atoi(voice); err == nil {
			speaker = voice
		}
	}
	if model == "" {
		return nil, fmt.Errorf("%w: no piper model configured", tts.ErrUnavailable)
	}

	args := []string{"--model", model, "--output-raw"}
	if speaker != "" {
		args = append(args, "--speaker", speaker)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.cfg.Binary, args...)
	cmd.Stdin = strings.NewReader(text + "\n")
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("piper: %w", ctx.Err())
		}
		return nil, fmt.Errorf("piper: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if len(out) < 2 {
		return nil, tts.ErrBadAudio
	}
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	audio := tts.NewPCM16(out, e.cfg.SampleRate, 1)
	e.logger.Debug("synthesized", "bytes", len(out), "audio", audio.Duration, "took", time.Since(start))
	return audio, nil
}

// FindBinary looks for piper on PATH and in common install locations.
func FindBinary() string {
	candidates := []string{"piper", "/usr/local/bin/piper", "/usr/bin/piper"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".local", "bin", "piper"),
			filepath.Join(home, "bin", "piper"),
		)
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return ""
}
