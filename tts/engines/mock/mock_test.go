package mock

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/troupe/tts"
)

func TestSynthesize(t *testing.T) {
	e := New()
	audio, err := e.Synthesize(context.Background(), "A few words to say out loud.", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !audio.Analyzable || audio.SampleRate != SampleRate {
		t.Errorf("audio = %+v", audio)
	}
	want := tts.EstimateDuration("A few words to say out loud.")
	if diff := audio.Duration - want; diff > time.Millisecond || diff < -time.Millisecond {
		t.Errorf("duration = %v, want ~%v", audio.Duration, want)
	}
	if e.CallCount() != 1 || e.Texts()[0] == "" {
		t.Errorf("calls = %d", e.CallCount())
	}
}

func TestToneIsNotSilent(t *testing.T) {
	buf := Tone(500*time.Millisecond, 200)
	var peak int16
	for i := 0; i+1 < len(buf); i += 2 {
		v := int16(binary.LittleEndian.Uint16(buf[i:]))
		if v > peak {
			peak = v
		}
	}
	if peak < 1000 {
		t.Errorf("peak = %d, expected audible tone", peak)
	}
}

func TestFailureInjection(t *testing.T) {
	e := New()
	boom := errors.New("boom")
	e.SetFailure(boom)
	if _, err := e.Synthesize(context.Background(), "hi", ""); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	e.ClearFailure()
	if _, err := e.Synthesize(context.Background(), "hi", ""); err != nil {
		t.Errorf("err after clear = %v", err)
	}
}

func TestDelayRespectsContext(t *testing.T) {
	e := New()
	e.SetDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := e.Synthesize(ctx, "hi", ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}
