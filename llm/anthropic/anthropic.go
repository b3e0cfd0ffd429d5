// Package anthropic implements llm.Backend against the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgnsrekt/troupe/llm"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-haiku-latest"
	APIVersion       = "2023-06-01"
	defaultMaxTokens = 400
)

func init() {
	llm.Register("anthropic", func(cfg llm.Config) (llm.Backend, error) {
		return New(cfg), nil
	})
}

// Backend calls POST /v1/messages.
type Backend struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// New creates a backend with defaults applied.
func New(cfg llm.Config) *Backend {
	b := &Backend{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      cfg.Client(),
	}
	if b.baseURL == "" {
		b.baseURL = DefaultBaseURL
	}
	if b.model == "" {
		b.model = DefaultModel
	}
	if b.maxTokens <= 0 {
		b.maxTokens = defaultMaxTokens
	}
	if b.temperature == 0 {
		b.temperature = 0.9
	}
	return b
}

func (b *Backend) Name() string { return "anthropic" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends history as alternating user/assistant turns.
func (b *Backend) Complete(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	if b.apiKey == "" {
		return "", llm.NoCredential(b.Name())
	}

	body, err := json.Marshal(messagesRequest{
		Model:       b.model,
		System:      systemPrompt,
		Messages:    alternate(history),
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", b.apiKey)
	req.Header.Set("Anthropic-Version", APIVersion)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", llm.TransportError(ctx, b.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.TransportError(ctx, b.Name(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", llm.StatusError(b.Name(), resp.StatusCode, raw)
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &llm.Error{Provider: b.Name(), Kind: llm.KindStatus, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	var sb strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", llm.Empty(b.Name())
	}
	return text, nil
}

// alternate folds history into the strict user/assistant alternation the
// Messages API requires, starting with a user turn. System entries are
// treated as user content.
func alternate(history []llm.Message) []message {
	out := make([]message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "assistant"
		}
		if len(out) == 0 && role == "assistant" {
			out = append(out, message{Role: "user", Content: "(conversation start)"})
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, message{Role: role, Content: m.Content})
	}
	if len(out) == 0 {
		out = append(out, message{Role: "user", Content: "(conversation start)"})
	}
	return out
}
