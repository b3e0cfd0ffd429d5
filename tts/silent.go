package tts

import (
	"context"
	"strings"
)

// SilentName is the registered name of the silent engine.
const SilentName = "silent"

func init() {
	Register(SilentName, func(EngineConfig) (Engine, error) { return Silent{}, nil })
}

// Silent produces no sound, only a duration estimated from the text. It is
// the last resort of every Chain and never fails.
type Silent struct{}

func (Silent) Name() string { return SilentName }

// Synthesize returns non-analyzable audio lasting as long as text would
// take to speak.
func (Silent) Synthesize(_ context.Context, text, _ string) (*Audio, error) {
	return &Audio{
		SampleRate: 22050,
		Channels:   1,
		Duration:   EstimateDuration(strings.TrimSpace(text)),
	}, nil
}
