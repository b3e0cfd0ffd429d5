package agent

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/troupe/character"
	"github.com/dgnsrekt/troupe/emotion"
	"github.com/dgnsrekt/troupe/llm"
	llmmock "github.com/dgnsrekt/troupe/llm/mock"
	"github.com/dgnsrekt/troupe/tts"
	"github.com/dgnsrekt/troupe/tts/audio"
	ttsmock "github.com/dgnsrekt/troupe/tts/engines/mock"
	"github.com/dgnsrekt/troupe/viseme"
)

// clipEngine returns a tone of fixed length, or err when set.
type clipEngine struct {
	name   string
	mu     sync.Mutex
	length time.Duration
	err    error
	texts  []string
}

func (e *clipEngine) Name() string {
	if e.name != "" {
		return e.name
	}
	return "clip"
}

func (e *clipEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.texts)
}

func (e *clipEngine) Synthesize(_ context.Context, text, _ string) (*tts.Audio, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	if e.err != nil {
		return nil, e.err
	}
	return tts.NewPCM16(ttsmock.Tone(e.length, 220), ttsmock.SampleRate, 1), nil
}

type fixedClassifier struct {
	label emotion.Label
	err   error
}

func (c fixedClassifier) Classify(context.Context, string) (emotion.Label, error) {
	return c.label, c.err
}

func testProfile() character.Profile {
	return character.Profile{
		ID:          "mika",
		DisplayName: "Mika",
		Personality: "A blunt engineer.",
		LLM:         character.LLMConfig{Provider: "mock"},
		Speech:      character.SpeechConfig{Engine: "clip", VoiceID: "v1"},
		Enabled:     true,
	}
}

func newTestAgent(t *testing.T, backend llm.Backend, cfg Config) *Agent {
	t.Helper()
	cfg.Profile = testProfile()
	cfg.Backend = backend
	if cfg.Speech == nil {
		cfg.Speech = &clipEngine{length: 40 * time.Millisecond}
	}
	if cfg.Player == nil {
		cfg.Player = audio.NewClockPlayer(nil)
	}
	cfg.Logger = log.New(io.Discard)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Backend: llmmock.New()}); !errors.Is(err, character.ErrInvalidProfile) {
		t.Errorf("New() with empty profile error = %v, want ErrInvalidProfile", err)
	}
	if _, err := New(Config{Profile: testProfile()}); err == nil {
		t.Error("New() without backend should fail")
	}
}

func TestGenerateTurn(t *testing.T) {
	backend := llmmock.New("I am not convinced. *frowns* Show me the numbers.")
	engine := &clipEngine{length: 40 * time.Millisecond}
	a := newTestAgent(t, backend, Config{
		Speech:     engine,
		Classifier: fixedClassifier{label: emotion.Sad},
	})

	u, err := a.GenerateTurn(context.Background(), "Topic: budgets", "a meeting room")
	if err != nil {
		t.Fatalf("GenerateTurn() error = %v", err)
	}

	if u.SpeakerID != "mika" || u.SpeakerName != "Mika" {
		t.Errorf("speaker = %q/%q, want mika/Mika", u.SpeakerID, u.SpeakerName)
	}
	if u.Emotion != emotion.Sad {
		t.Errorf("Emotion = %q, want %q", u.Emotion, emotion.Sad)
	}
	want := emotion.DefaultTable().Entry(emotion.Sad)
	found := false
	for _, c := range want.Clips {
		if c == u.MotionID {
			found = true
		}
	}
	if !found {
		t.Errorf("MotionID = %q, want one of %v", u.MotionID, want.Clips)
	}
	if u.Expression != want.Expression {
		t.Errorf("Expression = %q, want %q", u.Expression, want.Expression)
	}
	if u.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}

	if len(engine.texts) != 1 || engine.texts[0] != "I am not convinced. Show me the numbers." {
		t.Errorf("spoken text = %q", engine.texts)
	}

	entries := a.Memory().Entries()
	if len(entries) != 2 {
		t.Fatalf("memory has %d entries, want 2", len(entries))
	}
	if entries[0] != (character.Entry{Role: character.RoleUser, Content: "Topic: budgets"}) {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Role != character.RoleAgent || entries[1].Content != u.Text {
		t.Errorf("entries[1] = %+v", entries[1])
	}

	f := a.Output().Current()
	if f.Speaking || f.Viseme != 0 || f.MotionID != "" {
		t.Errorf("frame after turn = %+v, want silent closed mouth", f)
	}
	if a.Busy() {
		t.Error("agent still busy after turn")
	}
}

func TestGenerateTurnSendsMemory(t *testing.T) {
	backend := llmmock.New("First.", "Second.")
	a := newTestAgent(t, backend, Config{})

	for _, prompt := range []string{"one", "two"} {
		if _, err := a.GenerateTurn(context.Background(), prompt, ""); err != nil {
			t.Fatalf("GenerateTurn(%q) error = %v", prompt, err)
		}
	}

	calls := backend.Calls()
	if len(calls) != 2 {
		t.Fatalf("backend called %d times, want 2", len(calls))
	}
	got := calls[1].History
	want := []llm.Message{
		{Role: llm.RoleUser, Content: "one"},
		{Role: llm.RoleAssistant, Content: "First."},
		{Role: llm.RoleUser, Content: "two"},
	}
	if len(got) != len(want) {
		t.Fatalf("history = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if calls[1].SystemPrompt == "" {
		t.Error("empty system prompt")
	}
}

func TestGenerateTurnLanguageModelFailure(t *testing.T) {
	backend := llmmock.New()
	backend.SetError(llm.StatusError("mock", 429, []byte("slow down")))
	engine := &clipEngine{length: 40 * time.Millisecond}
	a := newTestAgent(t, backend, Config{Speech: engine})

	_, err := a.GenerateTurn(context.Background(), "hello", "")

	var te *TurnError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TurnError", err)
	}
	if te.Stage != StageLanguageModel || te.Agent != "mika" {
		t.Errorf("TurnError = %+v", te)
	}
	if llm.KindOf(err) != llm.KindRateLimit {
		t.Errorf("KindOf = %v, want rate_limit", llm.KindOf(err))
	}
	if a.Memory().Len() != 0 {
		t.Errorf("memory changed on failure: %+v", a.Memory().Entries())
	}
	if len(engine.texts) != 0 {
		t.Error("synthesis ran after model failure")
	}
}

func TestGenerateTurnDegrades(t *testing.T) {
	tests := []struct {
		name       string
		classifier emotion.Classifier
		speechErr  error
		playErr    error
	}{
		{name: "classifier error", classifier: fixedClassifier{err: errors.New("boom")}},
		{name: "no classifier"},
		{name: "speech error", speechErr: errors.New("engine down")},
		{name: "player error", playErr: audio.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := audio.NewClockPlayer(nil)
			player.SetPlayError(tt.playErr)
			a := newTestAgent(t, llmmock.New("Ok"), Config{
				Classifier: tt.classifier,
				Speech:     &clipEngine{length: 40 * time.Millisecond, err: tt.speechErr},
				Player:     player,
			})

			u, err := a.GenerateTurn(context.Background(), "hi", "")
			if err != nil {
				t.Fatalf("GenerateTurn() error = %v", err)
			}
			if u.Emotion != emotion.Normal {
				t.Errorf("Emotion = %q, want normal", u.Emotion)
			}
			if a.Memory().Len() != 2 {
				t.Errorf("memory len = %d, want 2", a.Memory().Len())
			}
		})
	}
}

func TestGenerateTurnThroughChain(t *testing.T) {
	down := errors.New("engine down")
	tests := []struct {
		name      string
		secondary *clipEngine
		wantMode  viseme.Mode
	}{
		{"secondary speaks", &clipEngine{name: "secondary", length: 200 * time.Millisecond}, viseme.ModeAudio},
		{"silence", &clipEngine{name: "secondary", err: down}, viseme.ModePattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &clipEngine{name: "primary", err: down}
			chain := tts.NewChain([]tts.Engine{primary, tt.secondary}, tts.WithLogger(log.New(io.Discard)))
			a := newTestAgent(t, llmmock.New("Fine. Have it your way."), Config{
				Speech: chain,
				FPS:    200,
			})
			frames, unsubscribe := a.Output().Subscribe(4096)
			defer unsubscribe()

			u, err := a.GenerateTurn(context.Background(), "hi", "")
			if err != nil {
				t.Fatalf("GenerateTurn() error = %v", err)
			}
			if u.Text != "Fine. Have it your way." {
				t.Errorf("Text = %q, want the full line", u.Text)
			}
			if primary.calls() != 1 || tt.secondary.calls() != 1 {
				t.Errorf("engine calls = %d/%d, want 1/1", primary.calls(), tt.secondary.calls())
			}
			if got := a.VisemeMode(); got != tt.wantMode {
				t.Errorf("VisemeMode() = %v, want %v", got, tt.wantMode)
			}

			open := false
			for len(frames) > 0 {
				if f := <-frames; f.Viseme > 0 {
					open = true
				}
			}
			if !open {
				t.Error("mouth never opened during the line")
			}
			if f := a.Output().Current(); f.Viseme != 0 || f.Speaking {
				t.Errorf("frame after the line = %+v, want closed and silent", f)
			}
		})
	}
}

func TestGenerateTurnBusy(t *testing.T) {
	backend := llmmock.New("Slow answer.")
	backend.SetDelay(300 * time.Millisecond)
	a := newTestAgent(t, backend, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := a.GenerateTurn(context.Background(), "first", "")
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for !a.Busy() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if _, err := a.GenerateTurn(context.Background(), "second", ""); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent GenerateTurn() error = %v, want ErrBusy", err)
	}
	if err := <-done; err != nil {
		t.Errorf("first turn error = %v", err)
	}
	if got := len(backend.Calls()); got != 1 {
		t.Errorf("backend called %d times, want 1", got)
	}
}

func TestGenerateTurnCancelDuringPlayback(t *testing.T) {
	a := newTestAgent(t, llmmock.New("A very long line."), Config{
		Speech: &clipEngine{length: 5 * time.Second},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := a.GenerateTurn(ctx, "go", "")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("GenerateTurn returned after %v, want prompt cancel", elapsed)
	}

	var te *TurnError
	if !errors.As(err, &te) || te.Stage != StagePlayback {
		t.Fatalf("error = %v, want playback TurnError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if a.Memory().Len() != 0 {
		t.Error("memory changed on cancelled turn")
	}
	if f := a.Output().Current(); f.Speaking || f.Viseme != 0 {
		t.Errorf("frame after cancel = %+v", f)
	}
}

func TestGenerateTurnPublishesFrames(t *testing.T) {
	a := newTestAgent(t, llmmock.New("Loud and clear."), Config{
		Speech: &clipEngine{length: 200 * time.Millisecond},
	})
	frames, unsubscribe := a.Output().Subscribe(256)

	if _, err := a.GenerateTurn(context.Background(), "hi", ""); err != nil {
		t.Fatalf("GenerateTurn() error = %v", err)
	}
	unsubscribe()

	var speaking, opened bool
	var last Frame
	for f := range frames {
		if f.AgentID != "mika" {
			t.Fatalf("frame for %q", f.AgentID)
		}
		if f.Speaking {
			speaking = true
		}
		if f.Viseme > 0 {
			opened = true
		}
		last = f
	}
	if !speaking {
		t.Error("no speaking frame published")
	}
	if !opened {
		t.Error("mouth never opened")
	}
	if last.Speaking || last.Viseme != 0 {
		t.Errorf("last frame = %+v, want closed mouth", last)
	}
}

func TestUpdateAndSetEnabled(t *testing.T) {
	a := newTestAgent(t, llmmock.New(), Config{})

	a.SetEnabled(false)
	if a.Enabled() {
		t.Error("SetEnabled(false) had no effect")
	}

	p := testProfile()
	p.Personality = "Cheerful now."
	if err := a.Update(p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if a.Profile().Personality != "Cheerful now." {
		t.Error("Update did not replace the profile")
	}

	p.ID = "someone-else"
	if err := a.Update(p); err == nil {
		t.Error("Update with a different id should fail")
	}
	p = testProfile()
	p.Personality = ""
	if err := a.Update(p); !errors.Is(err, character.ErrInvalidProfile) {
		t.Errorf("Update invalid profile error = %v", err)
	}
}
