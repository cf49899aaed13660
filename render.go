package roomsim

import (
	"fmt"

	"github.com/tphakala/go-room-acoustics/internal/render"
)

// DefaultNormalizePeak is the target amplitude for normalized renders,
// leaving headroom below full scale.
const DefaultNormalizePeak = render.DefaultPeak

// RenderOptions controls auralization output.
type RenderOptions struct {
	// Normalize scales every channel by one common factor so the loudest
	// sample across channels hits Peak. Relative channel levels are
	// preserved.
	Normalize bool

	// Peak is the normalization target in (0, 1]. 0 uses
	// DefaultNormalizePeak.
	Peak float64

	// BitDepth selects PCM quantization for RenderPCM: 16, 24 or 32.
	// 0 means 16.
	BitDepth int
}

// Convolve returns the full linear convolution of signal with kernel,
// length len(signal)+len(kernel)-1. Large kernels run through an FFT
// overlap-save path, small ones directly; both produce the same result.
func Convolve(signal, kernel []float64) []float64 {
	return render.Convolve(signal, kernel)
}

// Render auralizes a simulation: for every microphone it convolves each
// source's signal with the corresponding impulse response, applies the
// source gain, and mixes the contributions. Sources with nil signals
// contribute their impulse response directly, scaled by gain.
//
// The result has one channel per microphone, all of equal length.
func Render(room *Room, result *Result, opts RenderOptions) ([][]float64, error) {
	if result == nil || len(result.Responses) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrSceneIncomplete)
	}
	if opts.Peak < 0 || opts.Peak > 1 {
		return nil, fmt.Errorf("%w: normalization peak %v must be in (0, 1]", ErrInvalidConfig, opts.Peak)
	}

	channels := make([][]float64, result.numMics)
	for mi := 0; mi < result.numMics; mi++ {
		contributions := make([][]float64, result.numSources)
		gains := make([]float64, result.numSources)
		for si := 0; si < result.numSources; si++ {
			ir := result.IR(si, mi)
			signal := room.sources[si].Signal
			if len(signal) == 0 {
				signal = render.UnitImpulse()
			}
			contributions[si] = render.Convolve(signal, ir.Samples)
			gains[si] = room.sources[si].Gain
		}
		channels[mi] = render.Mix(contributions, gains)
	}

	if opts.Normalize {
		peak := opts.Peak
		if peak == 0 {
			peak = DefaultNormalizePeak
		}
		var maxPeak float64
		for _, ch := range channels {
			if p := render.Peak(ch); p > maxPeak {
				maxPeak = p
			}
		}
		if maxPeak > 0 {
			scale := peak / maxPeak
			for _, ch := range channels {
				for i := range ch {
					ch[i] *= scale
				}
			}
		}
	}

	return channels, nil
}

// RenderPCM is Render followed by integer quantization at
// opts.BitDepth. Without normalization, any sample outside [-1, 1] fails
// with ErrClipping naming the first offending sample; enable
// opts.Normalize to guarantee headroom.
func RenderPCM(room *Room, result *Result, opts RenderOptions) ([][]int, error) {
	channels, err := Render(room, result, opts)
	if err != nil {
		return nil, err
	}

	bitDepth := opts.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}

	pcm := make([][]int, len(channels))
	for i, ch := range channels {
		q, err := render.Quantize(ch, bitDepth)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}
		pcm[i] = q
	}
	return pcm, nil
}
