package tts

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// fakeEngine fails while err is set and counts calls.
type fakeEngine struct {
	name  string
	err   error
	nilOK bool
	calls int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.nilOK {
		return nil, nil
	}
	return NewPCM16(make([]byte, 4410), 22050, 1), nil
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestChainFallbackOrder(t *testing.T) {
	primary := &fakeEngine{name: "primary", err: errors.New("down")}
	secondary := &fakeEngine{name: "secondary"}
	c := NewChain([]Engine{primary, nil, secondary}, WithLogger(quietLogger()))

	audio, err := c.Synthesize(context.Background(), "hello there", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !audio.Analyzable {
		t.Error("expected secondary audio")
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls primary=%d secondary=%d", primary.calls, secondary.calls)
	}
	if c.Name() != "primary>secondary>silent" {
		t.Errorf("Name = %s", c.Name())
	}
}

func TestChainNeverFails(t *testing.T) {
	tests := []struct {
		name    string
		engines []Engine
	}{
		{"no engines", nil},
		{"all fail", []Engine{&fakeEngine{name: "a", err: errors.New("x")}, &fakeEngine{name: "b", err: errors.New("y")}}},
		{"nil audio", []Engine{&fakeEngine{name: "a", nilOK: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChain(tt.engines, WithLogger(quietLogger()))
			audio, err := c.Synthesize(context.Background(), "one two three four", "")
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if audio == nil || audio.Analyzable || audio.Duration <= 0 {
				t.Errorf("expected silent audio with duration, got %+v", audio)
			}
		})
	}
}

func TestChainSkipsEnginesAfterCancel(t *testing.T) {
	e := &fakeEngine{name: "a"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	audio, _ := NewChain([]Engine{e}, WithLogger(quietLogger())).Synthesize(ctx, "hi", "")
	if e.calls != 0 {
		t.Errorf("engine called %d times after cancel", e.calls)
	}
	if audio == nil {
		t.Fatal("expected silent audio")
	}
}

func TestChainBenchesFailingEngine(t *testing.T) {
	now := time.Unix(0, 0)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

	primary := &fakeEngine{name: "primary", err: errors.New("down")}
	c := NewChain([]Engine{primary}, WithLogger(quietLogger()), WithBenching(2, time.Minute), WithClock(clock))
	ctx := context.Background()

	c.Synthesize(ctx, "a", "")
	c.Synthesize(ctx, "a", "")
	c.Synthesize(ctx, "a", "")
	if primary.calls != 2 {
		t.Fatalf("benched engine was called: calls=%d", primary.calls)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	primary.err = nil

	audio, _ := c.Synthesize(ctx, "a", "")
	if primary.calls != 3 || !audio.Analyzable {
		t.Errorf("engine not retried after cooldown: calls=%d", primary.calls)
	}
}

type mapStore struct{ m map[string][]byte }

func (s *mapStore) Get(k string) ([]byte, bool)  { v, ok := s.m[k]; return v, ok }
func (s *mapStore) Put(k string, v []byte) error { s.m[k] = v; return nil }

func TestCached(t *testing.T) {
	e := &fakeEngine{name: "fake"}
	store := &mapStore{m: map[string][]byte{}}
	c := NewCached(e, store, quietLogger())

	first, err := c.Synthesize(context.Background(), "line", "v1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Synthesize(context.Background(), "line", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if e.calls != 1 {
		t.Errorf("engine called %d times, want 1", e.calls)
	}
	if second.SampleRate != first.SampleRate || second.Duration != first.Duration || len(second.Data) != len(first.Data) {
		t.Errorf("cached audio differs: %+v vs %+v", second, first)
	}

	c.Synthesize(context.Background(), "line", "v2")
	if e.calls != 2 {
		t.Errorf("voice should be part of the key, calls = %d", e.calls)
	}
}

func TestCachedSkipsSilence(t *testing.T) {
	store := &mapStore{m: map[string][]byte{}}
	c := NewCached(Silent{}, store, quietLogger())
	c.Synthesize(context.Background(), "hello", "")
	if len(store.m) != 0 {
		t.Error("non-analyzable audio should not be cached")
	}
}

func TestDecodeAudioRejectsGarbage(t *testing.T) {
	if _, err := decodeAudio([]byte("nope")); err == nil {
		t.Error("expected error")
	}
}

func TestNewPCM16Duration(t *testing.T) {
	a := NewPCM16(make([]byte, 48000*2*2), 48000, 2)
	if a.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", a.Duration)
	}
	if !a.Analyzable {
		t.Error("expected analyzable")
	}
	if NewPCM16(nil, 22050, 1).Analyzable {
		t.Error("empty audio should not be analyzable")
	}
}

func TestEstimateDuration(t *testing.T) {
	if EstimateDuration("   ") != 0 {
		t.Error("blank text should take no time")
	}
	if d := EstimateDuration("Hi"); d != minEstimate {
		t.Errorf("short text = %v, want %v", d, minEstimate)
	}
	long := EstimateDuration("This is a considerably longer sentence with many more words in it. And another one!")
	if long <= minEstimate {
		t.Errorf("long text = %v", long)
	}
}

func TestRegistry(t *testing.T) {
	e, err := NewEngine(EngineConfig{Name: SilentName})
	if err != nil {
		t.Fatal(err)
	}
	if e.Name() != SilentName {
		t.Errorf("Name = %s", e.Name())
	}
	if _, err := NewEngine(EngineConfig{Name: "nope"}); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("err = %v", err)
	}
}
