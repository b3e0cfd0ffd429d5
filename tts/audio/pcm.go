package audio

import (
	"encoding/binary"
	"math"
)

// DecodePCM16Mono converts 16-bit little-endian PCM to floats in [-1, 1],
// averaging interleaved channels.
func DecodePCM16Mono(data []byte, channels int) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frame := 2 * channels
	n := len(data) / frame
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := i*frame + c*2
			sum += float64(int16(binary.LittleEndian.Uint16(data[off:])))
		}
		out[i] = sum / float64(channels) / 32768
	}
	return out
}

// EncodePCM16 converts floats to 16-bit little-endian PCM, clamping to
// [-1, 1].
func EncodePCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(math.Round(s*32767))))
	}
	return out
}

// Resample converts samples between rates by linear interpolation.
func Resample(samples []float64, from, to int) []float64 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]float64, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}
