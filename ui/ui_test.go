package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/troupe/agent"
	"github.com/dgnsrekt/troupe/dialogue"
	"github.com/dgnsrekt/troupe/emotion"
)

type fakeSession struct {
	info    dialogue.Session
	history *dialogue.History
	bus     *dialogue.Bus
	pauses  int
	resumes int
	stops   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		info:    dialogue.Session{Topic: "tea", Running: true, State: dialogue.StateRunning, MaxTurns: 4},
		history: dialogue.NewHistory(0),
		bus:     dialogue.NewBus(),
	}
}

func (f *fakeSession) Session() dialogue.Session   { return f.info }
func (f *fakeSession) History() *dialogue.History  { return f.history }
func (f *fakeSession) Bus() *dialogue.Bus          { return f.bus }
func (f *fakeSession) Stop()                       { f.stops++; f.info.State = dialogue.StateStopped; f.info.Running = false }
func (f *fakeSession) Pause() bool {
	f.pauses++
	f.info.Paused, f.info.State = true, dialogue.StatePaused
	return true
}

func (f *fakeSession) Resume() bool {
	f.resumes++
	f.info.Paused, f.info.State = false, dialogue.StateRunning
	return true
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sizedModel(t *testing.T, s Session, voices []Voice) model {
	t.Helper()
	m := newModel(Config{GlamourEnabled: false}, s, voices)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(model)
}

func TestPauseResumeKeys(t *testing.T) {
	s := newFakeSession()
	m := sizedModel(t, s, nil)

	next, _ := m.Update(key("p"))
	m = next.(model)
	if s.pauses != 1 {
		t.Fatalf("expected pause, got %d", s.pauses)
	}
	if m.statusMessage != "Paused" {
		t.Errorf("status message = %q", m.statusMessage)
	}

	next, _ = m.Update(key("p"))
	m = next.(model)
	if s.resumes != 1 {
		t.Fatalf("expected resume, got %d", s.resumes)
	}
	if m.info.State != dialogue.StateRunning {
		t.Errorf("state = %v", m.info.State)
	}
}

func TestStopKey(t *testing.T) {
	s := newFakeSession()
	m := sizedModel(t, s, nil)

	next, _ := m.Update(key("s"))
	m = next.(model)
	if s.stops != 1 {
		t.Fatalf("expected stop, got %d", s.stops)
	}
	if !strings.Contains(m.statusBarView(), "stopped") {
		t.Errorf("status bar does not show stopped state: %q", m.statusBarView())
	}
}

func TestQuitKey(t *testing.T) {
	m := sizedModel(t, newFakeSession(), nil)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestEvents(t *testing.T) {
	s := newFakeSession()
	s.info.CurrentSpeakerID = "alice"
	m := sizedModel(t, s, []Voice{{ID: "alice", Name: "Alice", Output: agent.NewOutput("alice")}})

	history := []agent.Utterance{{SpeakerID: "alice", SpeakerName: "Alice", Text: "Hello there."}}
	next, cmd := m.Update(eventMsg(dialogue.Event{Type: dialogue.EventLogUpdate, History: history}))
	m = next.(model)
	if len(m.history) != 1 {
		t.Fatalf("expected history to be updated, got %d entries", len(m.history))
	}
	if cmd == nil {
		t.Fatal("expected follow-up commands")
	}

	next, _ = m.Update(eventMsg(dialogue.Event{Type: dialogue.EventTurnFailed, SpeakerID: "alice", Error: "rate limited"}))
	m = next.(model)
	if m.lastError != "Alice: rate limited" {
		t.Errorf("lastError = %q", m.lastError)
	}
	if !strings.Contains(m.statusBarView(), "Alice is speaking") {
		t.Errorf("status bar = %q", m.statusBarView())
	}

	next, _ = m.Update(contentRenderedMsg("rendered transcript"))
	m = next.(model)
	if !strings.Contains(m.View(), "rendered transcript") {
		t.Error("viewport does not show rendered content")
	}
}

func TestFrameTick(t *testing.T) {
	out := agent.NewOutput("bob")
	out.SetViseme(0.8)
	m := sizedModel(t, newFakeSession(), []Voice{{ID: "bob", Name: "Bob", Output: out}})

	next, cmd := m.Update(frameTickMsg(time.Now()))
	m = next.(model)
	if cmd == nil {
		t.Error("expected next tick")
	}
	if m.frames[0].Viseme != 0.8 {
		t.Errorf("viseme = %v", m.frames[0].Viseme)
	}
	if !strings.Contains(m.metersView(), "Bob") {
		t.Errorf("meters = %q", m.metersView())
	}
}

func TestTranscript(t *testing.T) {
	got := Transcript("Weather", []agent.Utterance{
		{SpeakerID: "a", SpeakerName: "Ann", Text: "Sunny.", Emotion: emotion.Normal},
		{SpeakerID: "b", Text: "Rain!", Emotion: emotion.Happy},
	})
	want := "# Weather\n\n**Ann**: Sunny.\n\n**b** _(happy)_: Rain!\n\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMeter(t *testing.T) {
	tests := []struct {
		name  string
		frame agent.Frame
		bars  int
	}{
		{"closed", agent.Frame{}, 0},
		{"half", agent.Frame{Viseme: 0.5, Speaking: true}, 5},
		{"clamped", agent.Frame{Viseme: 3, Speaking: true}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Count(meter("A very long character name", tt.frame), "█")
			if got != tt.bars {
				t.Errorf("got %d bars, want %d", got, tt.bars)
			}
		})
	}
}
