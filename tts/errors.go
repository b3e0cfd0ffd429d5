package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEngine is returned by NewEngine for an unregistered name.
	ErrUnknownEngine = errors.New("unknown speech engine")
	// ErrUnavailable is returned when an engine lacks a credential, binary
	// or model.
	ErrUnavailable = errors.New("speech engine unavailable")
	// ErrEmptyText is returned for text with nothing to speak.
	ErrEmptyText = errors.New("nothing to speak")
	// ErrBadAudio is returned when an engine produces unusable output.
	ErrBadAudio = errors.New("engine returned unusable audio")
)

// SynthesisError reports a failure of one engine. The Chain logs these and
// moves on to the next engine.
type SynthesisError struct {
	Engine string
	Err    error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s synthesis: %v", e.Engine, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
