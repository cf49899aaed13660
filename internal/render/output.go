package render

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/simd/f64"
)

// Output preparation constants.
const (
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0

	// DefaultPeak is the normalization target used when callers request
	// normalization without a level, leaving ~0.8 dB of headroom.
	DefaultPeak = 0.91
)

// Errors reported while preparing output samples.
var (
	// ErrClipping indicates unnormalized samples exceeding the
	// representable range.
	ErrClipping = errors.New("output exceeds representable range")

	// ErrUnsupportedBitDepth indicates a bit depth other than 16/24/32.
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
)

// Mix sums per-source contributions into one signal, scaling each by its
// gain. Shorter contributions are treated as zero-padded to the longest.
func Mix(contributions [][]float64, gains []float64) []float64 {
	maxLen := 0
	for _, c := range contributions {
		if len(c) > maxLen {
			maxLen = len(c)
		}
	}
	if maxLen == 0 {
		return nil
	}

	out := make([]float64, maxLen)
	for i, c := range contributions {
		gain := 1.0
		if i < len(gains) && gains[i] != 0 {
			gain = gains[i]
		}
		for n, v := range c {
			out[n] += gain * v
		}
	}
	return out
}

// Peak returns the largest absolute sample value.
func Peak(samples []float64) float64 {
	var peak float64
	for _, v := range samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// Normalize scales samples in place so the peak equals target. A silent
// signal is returned unchanged. target <= 0 uses DefaultPeak.
func Normalize(samples []float64, target float64) {
	if target <= 0 {
		target = DefaultPeak
	}
	peak := Peak(samples)
	if peak == 0 {
		return
	}
	f64.Scale(samples, samples, target/peak)
}

// Quantize converts float samples in [-1, 1] to integer PCM at the given
// bit depth. When normalization was skipped, samples outside the
// representable range fail with ErrClipping, naming the first offender.
func Quantize(samples []float64, bitDepth int) ([]int, error) {
	var maxVal float64
	switch bitDepth {
	case bitsPerSample16:
		maxVal = maxInt16
	case bitsPerSample24:
		maxVal = maxInt24
	case bitsPerSample32:
		maxVal = maxInt32
	default:
		return nil, fmt.Errorf("%w: %d bits (supported: 16, 24, 32)", ErrUnsupportedBitDepth, bitDepth)
	}

	out := make([]int, len(samples))
	for i, v := range samples {
		if v > 1.0 || v < -1.0 {
			return nil, fmt.Errorf("%w: sample %d is %.4f (enable normalization or reduce gain)",
				ErrClipping, i, v)
		}
		out[i] = int(math.Round(v * maxVal))
	}
	return out, nil
}

// UnitImpulse returns the canonical probe signal: a single full-scale
// sample. Convolving it with an impulse response reproduces the response.
func UnitImpulse() []float64 {
	return []float64{1}
}
