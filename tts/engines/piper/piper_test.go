package piper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/dgnsrekt/troupe/tts"
)

// fakePiper writes a shell script standing in for the piper binary.
func fakePiper(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "piper")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSynthesize(t *testing.T) {
	bin := fakePiper(t, "cat > /dev/null\nhead -c 44100 /dev/zero\n")
	e, err := New(Config{Binary: bin, Model: "voice.onnx"})
	if err != nil {
		t.Fatal(err)
	}

	audio, err := e.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if audio.SampleRate != SampleRate || audio.Channels != 1 {
		t.Errorf("format = %d Hz x%d", audio.SampleRate, audio.Channels)
	}
	if audio.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", audio.Duration)
	}
}

func TestSynthesizeFailures(t *testing.T) {
	tests := []struct {
		name   string
		script string
		model  string
		text   string
		want   error
	}{
		{"empty text", "", "m.onnx", "  ", tts.ErrEmptyText},
		{"no model", "", "", "hi", tts.ErrUnavailable},
		{"no output", "cat > /dev/null\n", "m.onnx", "hi", tts.ErrBadAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(Config{Binary: fakePiper(t, tt.script), Model: tt.model})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := e.Synthesize(context.Background(), tt.text, ""); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSynthesizeProcessError(t *testing.T) {
	e, _ := New(Config{Binary: fakePiper(t, "echo bad model >&2\nexit 3\n"), Model: "m.onnx"})
	if _, err := e.Synthesize(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestSynthesizeTimeout(t *testing.T) {
	e, _ := New(Config{Binary: fakePiper(t, "exec sleep 5\n"), Model: "m.onnx", Timeout: 50 * time.Millisecond})
	start := time.Now()
	if _, err := e.Synthesize(context.Background(), "hi", ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout was not enforced")
	}
}

func TestNewWithoutBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	if FindBinary() != "" {
		t.Skip("piper installed in a system location")
	}
	if _, err := New(Config{}); !errors.Is(err, tts.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
