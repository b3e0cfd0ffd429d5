package audio

import (
	"math"
	"testing"
)

func TestPCMRoundTrip(t *testing.T) {
	in := []float64{0, 0.5, -0.5, 1, -1}
	out := DecodePCM16Mono(EncodePCM16(in), 1)
	if len(out) != len(in) {
		t.Fatalf("len = %d", len(out))
	}
	for i := range in {
		if math.Abs(out[i]-in[i]) > 1e-3 {
			t.Errorf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeStereoAverages(t *testing.T) {
	stereo := EncodePCM16([]float64{0.5, -0.5, 1, 0})
	mono := DecodePCM16Mono(stereo, 2)
	if len(mono) != 2 {
		t.Fatalf("len = %d", len(mono))
	}
	if math.Abs(mono[0]) > 1e-3 || math.Abs(mono[1]-0.5) > 1e-3 {
		t.Errorf("mono = %v", mono)
	}
}

func TestEncodeClamps(t *testing.T) {
	out := DecodePCM16Mono(EncodePCM16([]float64{3, -3}), 1)
	if out[0] < 0.99 || out[1] > -0.99 {
		t.Errorf("not clamped: %v", out)
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		inLen    int
		wantLen  int
	}{
		{"identity", 16000, 16000, 100, 100},
		{"up", 24000, 48000, 100, 200},
		{"down", 48000, 16000, 300, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float64, tt.inLen)
			for i := range in {
				in[i] = float64(i) / float64(tt.inLen)
			}
			out := Resample(in, tt.from, tt.to)
			if len(out) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(out), tt.wantLen)
			}
			for i := 1; i < len(out); i++ {
				if out[i] < out[i-1] {
					t.Fatalf("ramp not monotonic at %d", i)
				}
			}
		})
	}
}
