// Package synth merges the deterministic image-source paths and the
// stochastic ray-tracing histogram into one sampled room impulse response.
//
// Image-source arrivals are placed at their exact (fractional) sample
// positions with a Kaiser-windowed sinc interpolation kernel. The ray
// histogram is reconstructed into an amplitude envelope by noise shaping:
// each time bin is filled with seeded gaussian noise scaled so the bin's
// sample energy matches the histogram energy. The two parts are joined by
// an equal-power raised-cosine crossfade centered on the crossover time,
// which keeps the energy envelope continuous across the boundary.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tphakala/go-room-acoustics/internal/imagesource"
	"github.com/tphakala/go-room-acoustics/internal/material"
	"github.com/tphakala/go-room-acoustics/internal/mathutil"
	"github.com/tphakala/go-room-acoustics/internal/raytracer"
)

// Synthesis constants.
const (
	// kernelHalfWidth is the one-sided length of the fractional-delay
	// kernel in samples. 40 taps per side gives a :sinc accurate to well
	// beyond 16-bit noise floors for in-band arrivals.
	kernelHalfWidth = 40

	// kernelAttenuation is the Kaiser design attenuation for the kernel
	// window in dB.
	kernelAttenuation = 80.0

	// crossfadeWidth is the width of the equal-power crossover ramp in
	// seconds.
	crossfadeWidth = 0.010

	// tailMargin extends the response past the last arrival so decaying
	// kernel tails are not truncated, in seconds.
	tailMargin = 0.02

	// noiseStreamSalt separates the noise-shaping PRNG stream from the
	// ray tracer's streams derived from the same simulation seed.
	noiseStreamSalt = 0xa24baed4963ee407
)

// ErrInvalidParams indicates out-of-range synthesis parameters.
var ErrInvalidParams = errors.New("invalid synthesis parameters")

// airAbsorption holds per-band atmospheric energy attenuation coefficients
// in 1/m, for 20°C and ~50% relative humidity. Amplitude decays as
// exp(-m*d/2) over a path of length d.
var airAbsorption = [material.NumBands]float64{
	0.0001, 0.0003, 0.0006, 0.0010, 0.0019, 0.0058,
}

// Params configures one synthesis pass.
type Params struct {
	// SampleRate of the output response in Hz.
	SampleRate int

	// SpeedOfSound in meters per second.
	SpeedOfSound float64

	// CrossoverTime is the boundary between the image-source part and the
	// ray-traced part in seconds. Arrivals are crossfaded around it.
	// Zero disables the ray-traced part entirely when no histogram is
	// supplied, otherwise it must be positive.
	CrossoverTime float64

	// AirAbsorption enables distance-proportional per-band air damping.
	AirAbsorption bool

	// Seed drives the noise-shaping PRNG. Equal seeds give bit-identical
	// output for identical inputs.
	Seed uint64
}

// Validate checks parameter ranges.
func (p *Params) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidParams, p.SampleRate)
	}
	if p.SpeedOfSound <= 0 {
		return fmt.Errorf("%w: speed of sound %v must be positive", ErrInvalidParams, p.SpeedOfSound)
	}
	if p.CrossoverTime < 0 {
		return fmt.Errorf("%w: crossover time %v must not be negative", ErrInvalidParams, p.CrossoverTime)
	}
	return nil
}

// Synthesize builds the sampled impulse response for one source-microphone
// pair. hist may be nil, in which case only the image-source part is
// rendered and the crossover is ignored.
func Synthesize(paths []imagesource.Path, hist *raytracer.Histogram, p Params) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	fs := float64(p.SampleRate)

	length := responseLength(paths, hist, p, fs)
	if length == 0 {
		return []float64{}, nil
	}
	ir := make([]float64, length)

	fade := crossfade{center: p.CrossoverTime, width: crossfadeWidth, enabled: hist != nil && p.CrossoverTime > 0}
	kernel := newFractionalKernel(kernelHalfWidth, kernelAttenuation)

	for i := range paths {
		addImagePath(ir, &paths[i], kernel, fade, p, fs)
	}

	if hist != nil {
		addNoiseShapedTail(ir, hist, fade, p, fs)
	}

	return ir, nil
}

// responseLength sizes the output to cover the last arrival plus kernel
// and margin.
func responseLength(paths []imagesource.Path, hist *raytracer.Histogram, p Params, fs float64) int {
	lastTime := imagesource.MaxDistance(paths) / p.SpeedOfSound

	if hist != nil {
		if last := hist.LastActiveBin(); last >= 0 {
			if end := float64(last+1) * hist.BinWidth; end > lastTime {
				lastTime = end
			}
		}
	}

	if lastTime == 0 {
		return 0
	}

	return int(math.Ceil((lastTime+tailMargin)*fs)) + kernelHalfWidth + 1
}

// addImagePath places one arrival at its fractional-delay position.
func addImagePath(ir []float64, path *imagesource.Path, kernel *fractionalKernel, fade crossfade, p Params, fs float64) {
	arrival := path.Distance / p.SpeedOfSound

	gain := fade.earlyGain(arrival)
	if gain == 0 {
		return
	}

	// Broadband amplitude: inverse-distance spreading times the band-mean
	// reflection (and optionally air) attenuation. The band mean assumes a
	// flat source spectrum; per-band filter-bank synthesis is out of scope
	// here and recorded as such in the design notes.
	var atten float64
	for band, a := range path.Attenuation {
		if p.AirAbsorption {
			a *= math.Exp(-airAbsorption[band] * path.Distance / 2)
		}
		atten += a
	}
	atten /= material.NumBands

	amp := gain * atten / path.Distance
	if amp == 0 {
		return
	}

	kernel.addImpulse(ir, arrival*fs, amp)
}

// addNoiseShapedTail reconstructs the late reverberation from the energy
// histogram: each bin contributes gaussian noise whose sample energy sums
// to the bin's (band-summed, optionally air-damped) energy.
func addNoiseShapedTail(ir []float64, hist *raytracer.Histogram, fade crossfade, p Params, fs float64) {
	src := rand.NewPCG(p.Seed, noiseStreamSalt)
	gauss := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	binSamples := hist.BinWidth * fs

	for bin := range hist.Bins {
		binStart := float64(bin) * hist.BinWidth
		binCenter := binStart + hist.BinWidth/2

		var energy float64
		for band, e := range hist.Bins[bin] {
			if p.AirAbsorption {
				// Arrival time maps back to distance travelled.
				e *= math.Exp(-airAbsorption[band] * binCenter * p.SpeedOfSound)
			}
			energy += e
		}
		if energy <= 0 {
			continue
		}

		// Per-sample RMS amplitude that reproduces the bin energy.
		rms := math.Sqrt(energy / binSamples)

		first := int(math.Ceil(binStart * fs))
		last := int(math.Ceil((binStart + hist.BinWidth) * fs))
		for n := first; n < last && n < len(ir); n++ {
			if n < 0 {
				continue
			}
			t := float64(n) / fs
			gain := fade.lateGain(t)
			// The PRNG stream must advance for every tail sample even
			// when the gain is zero, so the crossover time does not
			// change the noise realization after it.
			noise := gauss.Rand()
			if gain != 0 {
				ir[n] += gain * rms * noise
			}
		}
	}
}

// crossfade implements an equal-power raised-cosine split around the
// crossover time: earlyGain²+lateGain² = 1 everywhere, so the summed
// energy envelope stays continuous across the boundary.
type crossfade struct {
	center  float64
	width   float64
	enabled bool
}

func (c crossfade) earlyGain(t float64) float64 {
	if !c.enabled {
		return 1
	}
	lo, hi := c.center-c.width/2, c.center+c.width/2
	switch {
	case t <= lo:
		return 1
	case t >= hi:
		return 0
	default:
		return math.Cos(math.Pi / 2 * (t - lo) / c.width)
	}
}

func (c crossfade) lateGain(t float64) float64 {
	if !c.enabled {
		return 1
	}
	lo, hi := c.center-c.width/2, c.center+c.width/2
	switch {
	case t <= lo:
		return 0
	case t >= hi:
		return 1
	default:
		return math.Sin(math.Pi / 2 * (t - lo) / c.width)
	}
}

// fractionalKernel is a Kaiser-windowed sinc interpolator used to place
// impulses at sub-sample positions. For integer delays it degenerates to a
// single unit tap, so exact-sample arrivals are placed exactly.
type fractionalKernel struct {
	halfWidth int
	beta      float64
	i0Beta    float64
}

func newFractionalKernel(halfWidth int, attenuation float64) *fractionalKernel {
	beta := mathutil.KaiserBeta(attenuation)
	return &fractionalKernel{
		halfWidth: halfWidth,
		beta:      beta,
		i0Beta:    mathutil.BesselI0(beta),
	}
}

// addImpulse adds amp * sinc(n - delay) * w(n - delay) into ir around the
// fractional sample position delay.
func (k *fractionalKernel) addImpulse(ir []float64, delay, amp float64) {
	center := int(math.Round(delay))

	for j := -k.halfWidth; j <= k.halfWidth; j++ {
		n := center + j
		if n < 0 || n >= len(ir) {
			continue
		}

		x := float64(n) - delay
		ir[n] += amp * sinc(x) * k.window(x)
	}
}

// window evaluates the continuous Kaiser window at offset x samples from
// the kernel center.
func (k *fractionalKernel) window(x float64) float64 {
	r := x / float64(k.halfWidth)
	arg := 1 - r*r
	if arg <= 0 {
		return 0
	}
	return mathutil.BesselI0(k.beta*math.Sqrt(arg)) / k.i0Beta
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
