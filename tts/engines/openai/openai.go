// Package openai synthesizes speech with the OpenAI audio API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgnsrekt/troupe/tts"
)

const (
	Name           = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini-tts"
	DefaultVoice   = "alloy"
	// SampleRate of the API's raw "pcm" response format.
	SampleRate = 24000
)

// Voices accepted by the API.
var Voices = []string{"alloy", "ash", "ballad", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

func init() {
	tts.Register(Name, func(cfg tts.EngineConfig) (tts.Engine, error) {
		return New(cfg), nil
	})
}

// Engine calls POST /audio/speech and requests raw PCM.
type Engine struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	client  *http.Client
}

// New creates an engine with defaults applied.
func New(cfg tts.EngineConfig) *Engine {
	e := &Engine{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		voice:   cfg.Voice,
		client:  cfg.Client(),
	}
	if e.baseURL == "" {
		e.baseURL = DefaultBaseURL
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.voice == "" {
		e.voice = DefaultVoice
	}
	return e
}

func (e *Engine) Name() string { return Name }

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize renders text. Unknown voices fall back to the engine default.
func (e *Engine) Synthesize(ctx context.Context, text, voice string) (*tts.Audio, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: no OpenAI API key", tts.ErrUnavailable)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}

	body, err := json.Marshal(speechRequest{
		Model:          e.model,
		Input:          text,
		Voice:          e.resolveVoice(voice),
		ResponseFormat: "pcm",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
	if len(data) < 2 {
		return nil, tts.ErrBadAudio
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	return tts.NewPCM16(data, SampleRate, 1), nil
}

func (e *Engine) resolveVoice(voice string) string {
	v := strings.ToLower(strings.TrimSpace(voice))
	for _, known := range Voices {
		if v == known {
			return v
		}
	}
	return e.voice
}
