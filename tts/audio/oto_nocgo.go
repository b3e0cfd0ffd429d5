//go:build nocgo

package audio

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/troupe/tts"
)

// DeviceSampleRate is the rate the output context is opened at.
const DeviceSampleRate = 48000

// OtoPlayer is unavailable without cgo.
type OtoPlayer struct{}

// NewOtoPlayer always fails in nocgo builds; callers fall back to
// ClockPlayer.
func NewOtoPlayer(*log.Logger) (*OtoPlayer, error) {
	return nil, ErrUnavailable
}

func (*OtoPlayer) Play(context.Context, *tts.Audio) (Handle, error) {
	return nil, ErrUnavailable
}
