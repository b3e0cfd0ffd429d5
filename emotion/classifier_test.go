package emotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/troupe/llm"
)

type stubBackend struct {
	reply string
	err   error
	delay time.Duration
}

func (s stubBackend) Name() string { return "stub" }

func (s stubBackend) Complete(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

type panicClassifier struct{}

func (panicClassifier) Classify(context.Context, string) (Label, error) { panic("bad") }

type rawClassifier Label

func (r rawClassifier) Classify(context.Context, string) (Label, error) { return Label(r), nil }

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		c       Classifier
		want    Label
		wantErr bool
	}{
		{"llm reply", NewLLMClassifier(stubBackend{reply: "angry_strong"}), AngryStrong, false},
		{"ambiguous reply", NewLLMClassifier(stubBackend{reply: "happy, maybe sad"}), Normal, false},
		{"backend error", NewLLMClassifier(stubBackend{err: errors.New("down")}), Normal, true},
		{"timeout", NewLLMClassifier(stubBackend{reply: "happy", delay: time.Second}), Normal, true},
		{"panic", panicClassifier{}, Normal, true},
		{"nil classifier", nil, Normal, true},
		{"invalid label", rawClassifier("bored"), Normal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(context.Background(), tt.c, "line", 20*time.Millisecond)
			if got != tt.want {
				t.Errorf("label = %s, want %s", got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ce *ClassificationError
				if !errors.As(err, &ce) {
					t.Errorf("error %T is not *ClassificationError", err)
				}
			}
		})
	}
}

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		text string
		want Label
	}{
		{"This is absolutely infuriating, I hate it.", AngryStrong},
		{"Thanks so much, I appreciate it.", Grateful},
		{"Hmm, I wonder about that.", Thinking},
		{"The weather is mild today.", Normal},
		{"Wow, really?", Surprised},
		{"I'm sad but glad.", Normal},
		{"I'm sad but glad, so glad.", Happy},
		{"The mission starts at noon.", Normal},
		{"Ask the dealer.", Normal},
		{"I missed you.", Sad},
		{"She hated the ending.", AngryStrong},
		{"I'm thinking about it.", Thinking},
	}
	for _, tt := range tests {
		got, err := KeywordClassifier{}.Classify(context.Background(), tt.text)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
