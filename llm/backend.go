// Package llm defines the language-model capability every character speaks
// through, plus a registry of provider implementations selected by
// configuration.
package llm

import (
	"context"
	"net/http"
	"time"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the chat history sent to a backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Backend completes a conversation.
//
// Implementations must return a *Error for authentication, network,
// rate-limit and non-2xx failures so callers can tell them apart.
type Backend interface {
	Complete(ctx context.Context, systemPrompt string, history []Message) (string, error)
	Name() string
}

// Config configures a backend built through New.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	// RequestsPerMinute wraps the backend in a limiter when positive.
	RequestsPerMinute int

	HTTPClient *http.Client
}

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 60 * time.Second

// Client returns the configured HTTP client or a new one using Timeout.
func (c Config) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
