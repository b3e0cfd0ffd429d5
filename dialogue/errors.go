package dialogue

import "errors"

var (
	// ErrNoParticipants is returned by Start when no speaker is enabled.
	ErrNoParticipants = errors.New("no enabled participants")
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrUnknownSpeaker is returned for ids not in the roster.
	ErrUnknownSpeaker = errors.New("unknown speaker")
	// ErrDuplicateSpeaker is returned when adding an id twice.
	ErrDuplicateSpeaker = errors.New("speaker already in roster")
)
