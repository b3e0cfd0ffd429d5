// Package openai implements llm.Backend against the OpenAI chat completions
// API and the compatible endpoints of Qwen (DashScope) and OpenRouter.
package openai

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

// Base URLs of the registered providers.
const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	QwenBaseURL       = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

func init() {
	llm.Register("openai", factory("openai", OpenAIBaseURL, "gpt-4o-mini"))
	llm.Register("qwen", factory("qwen", QwenBaseURL, "qwen-plus"))
	llm.Register("openrouter", factory("openrouter", OpenRouterBaseURL, "openai/gpt-4o-mini"))
}

func factory(name, baseURL, model string) llm.Factory {
	return func(cfg llm.Config) (llm.Backend, error) {
		if cfg.BaseURL == "" {
			cfg.BaseURL = baseURL
		}
		if cfg.Model == "" {
			cfg.Model = model
		}
		return New(name, cfg), nil
	}
}

// Backend talks to an OpenAI-compatible /chat/completions endpoint.
type Backend struct {
	name        string
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// New creates a backend. The API key is checked lazily so a roster can be
// loaded before credentials are known.
func New(name string, cfg llm.Config) *Backend {
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.9
	}
	return &Backend{
		name:        name,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: temp,
		client:      cfg.Client(),
	}
}

// Name returns the provider id.
func (b *Backend) Name() string { return b.name }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the system prompt followed by history.
func (b *Backend) Complete(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	if b.apiKey == "" {
		return "", llm.NoCredential(b.name)
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, history...)

	body, err := json.Marshal(chatRequest{
		Model:       b.model,
		Messages:    msgs,
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", llm.TransportError(ctx, b.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.TransportError(ctx, b.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", llm.StatusError(b.name, resp.StatusCode, raw)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &llm.Error{Provider: b.name, Kind: llm.KindStatus, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", llm.Empty(b.name)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", llm.Empty(b.name)
	}
	return text, nil
}
