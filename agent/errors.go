package agent

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by GenerateTurn while another turn is in flight.
var ErrBusy = errors.New("agent is busy")

// Stage names the step of a turn that failed.
type Stage string

const (
	StageLanguageModel Stage = "language_model"
	StagePlayback      Stage = "playback"
)

// TurnError is returned when a turn is aborted. Memory is left untouched.
type TurnError struct {
	Stage Stage
	Agent string
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("agent %s: %s: %v", e.Agent, e.Stage, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }
