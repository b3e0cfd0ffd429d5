package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnknownProvider is returned by New for an unregistered provider id.
	ErrUnknownProvider = errors.New("unknown language model provider")
	// ErrNoCredential is returned when a provider needs an API key and has none.
	ErrNoCredential = errors.New("no credential configured")
	// ErrEmptyCompletion is returned when a provider answers with no text.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Kind classifies a backend failure.
type Kind string

const (
	KindAuth      Kind = "auth"
	KindNetwork   Kind = "network"
	KindRateLimit Kind = "rate_limit"
	KindStatus    Kind = "status"
	KindEmpty     Kind = "empty"
	KindCanceled  Kind = "canceled"
)

// Error is the failure type every backend returns.
type Error struct {
	Provider string
	Kind     Kind
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether retrying later could succeed.
func (e *Error) Temporary() bool {
	return e.Kind == KindNetwork || e.Kind == KindRateLimit
}

// StatusError builds an *Error from a non-2xx HTTP response.
func StatusError(provider string, status int, body []byte) *Error {
	kind := KindStatus
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuth
	case http.StatusTooManyRequests:
		kind = KindRateLimit
	}
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &Error{Provider: provider, Kind: kind, Status: status, Err: errors.New(msg)}
}

// TransportError builds an *Error from a failed round trip.
func TransportError(ctx context.Context, provider string, err error) *Error {
	kind := KindNetwork
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		kind = KindCanceled
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}

// NoCredential builds the error providers return when no key is configured.
func NoCredential(provider string) *Error {
	return &Error{Provider: provider, Kind: KindAuth, Err: ErrNoCredential}
}

// Empty builds the error providers return when the response has no text.
func Empty(provider string) *Error {
	return &Error{Provider: provider, Kind: KindEmpty, Err: ErrEmptyCompletion}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
