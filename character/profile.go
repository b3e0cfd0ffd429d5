// Package character holds the identity, conversation memory and prompt policy
// of a single conversational character.
package character

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProfile is returned when a profile is missing required fields.
var ErrInvalidProfile = errors.New("invalid character profile")

// LLMConfig selects the language-model backend a character speaks through.
type LLMConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`
	Model      string `mapstructure:"model" yaml:"model"`
	Credential string `mapstructure:"credential" yaml:"-"`
}

// SpeechConfig selects the synthesis engine and voice of a character.
type SpeechConfig struct {
	Engine  string `mapstructure:"engine" yaml:"engine"`
	VoiceID string `mapstructure:"voice" yaml:"voice"`
}

// Profile is the identity and policy of one character.
type Profile struct {
	ID          string       `mapstructure:"id" yaml:"id"`
	DisplayName string       `mapstructure:"name" yaml:"name"`
	Personality string       `mapstructure:"personality" yaml:"personality"`
	Context     string       `mapstructure:"context" yaml:"context,omitempty"`
	LLM         LLMConfig    `mapstructure:"llm" yaml:"llm"`
	Speech      SpeechConfig `mapstructure:"speech" yaml:"speech"`
	Enabled     bool         `mapstructure:"enabled" yaml:"enabled"`
}

// Name returns the display name, falling back to the id.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// Validate checks the fields every character needs.
func (p Profile) Validate() error {
	var missing []string
	if strings.TrimSpace(p.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(p.Personality) == "" {
		missing = append(missing, "personality")
	}
	if p.LLM.Provider == "" {
		missing = append(missing, "llm.provider")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w %q: missing %s", ErrInvalidProfile, p.ID, strings.Join(missing, ", "))
	}
	return nil
}
