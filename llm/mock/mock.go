// Package mock provides a scripted language-model backend for tests and the
// offline demo.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/troupe/llm"
)

func init() {
	llm.Register("mock", func(cfg llm.Config) (llm.Backend, error) {
		b := New()
		if cfg.Model != "" {
			b.name = cfg.Model
		}
		return b, nil
	})
}

// demoLines are cycled when no script is set.
var demoLines = []string{
	"Honestly? I think %s is overrated, and I am tired of pretending otherwise.",
	"Wait, really? I had no idea %s could go that way. That is surprising.",
	"Hmm, let me think about %s for a second. There is more to it than it looks.",
	"Thank you for bringing up %s. I am grateful someone finally did.",
	"Ugh, %s again? That makes me genuinely angry.",
	"I feel a bit sad whenever %s comes up, if I am being honest.",
}

// Backend returns scripted replies.
type Backend struct {
	mu        sync.Mutex
	name      string
	responses []string
	next      int
	delay     time.Duration
	err       error
	failOn    map[int]error
	calls     []Call
}

// Call records one Complete invocation.
type Call struct {
	SystemPrompt string
	History      []llm.Message
}

// New creates a mock backend that produces demo lines.
func New(responses ...string) *Backend {
	return &Backend{name: "mock", responses: responses, failOn: make(map[int]error)}
}

func (b *Backend) Name() string { return b.name }

// Complete returns the next scripted reply.
func (b *Backend) Complete(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	b.mu.Lock()
	n := len(b.calls)
	b.calls = append(b.calls, Call{SystemPrompt: systemPrompt, History: append([]llm.Message(nil), history...)})
	delay, err := b.delay, b.err
	if e, ok := b.failOn[n]; ok {
		err = e
	}
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", llm.TransportError(ctx, b.name, ctx.Err())
		}
	}
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.responses) > 0 {
		r := b.responses[b.next%len(b.responses)]
		b.next++
		return r, nil
	}
	line := demoLines[b.next%len(demoLines)]
	b.next++
	return fmt.Sprintf(line, subject(history)), nil
}

// subject picks a short phrase from the latest user message.
func subject(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != llm.RoleUser {
			continue
		}
		if topic, ok := strings.CutPrefix(history[i].Content, "Topic: "); ok {
			if line, _, _ := strings.Cut(topic, "\n"); line != "" {
				return line
			}
		}
		words := strings.Fields(history[i].Content)
		if len(words) > 4 {
			words = words[len(words)-4:]
		}
		if len(words) > 0 {
			return strings.Trim(strings.Join(words, " "), ".?!")
		}
	}
	return "this"
}

// Test control methods

// SetDelay makes Complete wait before answering.
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	b.delay = d
	b.mu.Unlock()
}

// SetError makes every call fail with err; nil clears it.
func (b *Backend) SetError(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// FailOn makes the n-th call (zero based) fail with err.
func (b *Backend) FailOn(n int, err error) {
	b.mu.Lock()
	b.failOn[n] = err
	b.mu.Unlock()
}

// Calls returns a copy of the recorded invocations.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}
