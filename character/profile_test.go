package character

import (
	"errors"
	"strings"
	"testing"
)

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{
			name: "complete",
			profile: Profile{
				ID:          "mika",
				Personality: "curious",
				LLM:         LLMConfig{Provider: "mock"},
			},
		},
		{
			name:    "missing everything",
			profile: Profile{},
			wantErr: true,
		},
		{
			name:    "missing provider",
			profile: Profile{ID: "mika", Personality: "curious"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidProfile) {
				t.Errorf("expected ErrInvalidProfile, got %v", err)
			}
		})
	}
}

func TestProfileName(t *testing.T) {
	if got := (Profile{ID: "mika"}).Name(); got != "mika" {
		t.Errorf("Name() = %q, want id fallback", got)
	}
	if got := (Profile{ID: "mika", DisplayName: "Mika"}).Name(); got != "Mika" {
		t.Errorf("Name() = %q, want display name", got)
	}
}

func TestSystemPrompt(t *testing.T) {
	p := Profile{
		ID:          "ren",
		DisplayName: "Ren",
		Personality: "A grumpy retired sailor.",
		Context:     "Waiting for a delayed ferry.",
	}

	prompt := SystemPrompt(p, "A storm is coming in.")

	for _, want := range []string{
		"You are Ren.",
		"A grumpy retired sailor.",
		"Waiting for a delayed ferry.",
		"A storm is coming in.",
		"2-3 sentences",
		"negative emotions",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	if strings.Contains(SystemPrompt(Profile{ID: "x", Personality: "p"}, ""), "Scene:") {
		t.Error("empty extra context should not add a Scene section")
	}
}
