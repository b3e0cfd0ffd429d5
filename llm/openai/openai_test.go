package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgnsrekt/troupe/llm"
)

func TestComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"  Hello there.  "}}]}`))
	}))
	defer srv.Close()

	b := New("openai", llm.Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "m"})
	text, err := b.Complete(context.Background(), "be nice", []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "Hello there." {
		t.Errorf("text = %q", text)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != llm.RoleSystem || got.Messages[1].Content != "hi" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.Model != "m" {
		t.Errorf("model = %q", got.Model)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   llm.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, llm.KindAuth},
		{"rate limited", http.StatusTooManyRequests, `{}`, llm.KindRateLimit},
		{"server error", http.StatusInternalServerError, `oops`, llm.KindStatus},
		{"no choices", http.StatusOK, `{"choices":[]}`, llm.KindEmpty},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, llm.KindEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			b := New("openai", llm.Config{APIKey: "k", BaseURL: srv.URL})
			_, err := b.Complete(context.Background(), "", nil)
			var le *llm.Error
			if !errors.As(err, &le) {
				t.Fatalf("error %v is not *llm.Error", err)
			}
			if le.Kind != tt.want {
				t.Errorf("kind = %s, want %s", le.Kind, tt.want)
			}
		})
	}
}

func TestCompleteWithoutKey(t *testing.T) {
	b := New("qwen", llm.Config{BaseURL: "http://127.0.0.1:0"})
	_, err := b.Complete(context.Background(), "", nil)
	if !errors.Is(err, llm.ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
}

func TestCompleteNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	b := New("openai", llm.Config{APIKey: "k", BaseURL: url})
	_, err := b.Complete(context.Background(), "", nil)
	if llm.KindOf(err) != llm.KindNetwork {
		t.Errorf("kind = %s, want network", llm.KindOf(err))
	}
}

func TestRegisteredProviders(t *testing.T) {
	for _, name := range []string{"openai", "qwen", "openrouter"} {
		b, err := llm.New(llm.Config{Provider: name, APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if b.Name() != name {
			t.Errorf("Name() = %s, want %s", b.Name(), name)
		}
	}
}
