package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-room-acoustics/internal/imagesource"
	"github.com/tphakala/go-room-acoustics/internal/material"
	"github.com/tphakala/go-room-acoustics/internal/raytracer"
	"github.com/tphakala/go-room-acoustics/internal/testutil"
)

const (
	testSampleRate   = 16000
	testSpeedOfSound = 343.0
	testSeed         = 42

	ampTolerance = 1e-9
)

func testParamsEarly() Params {
	return Params{
		SampleRate:   testSampleRate,
		SpeedOfSound: testSpeedOfSound,
		Seed:         testSeed,
	}
}

func unitAttenuation() [material.NumBands]float64 {
	var a [material.NumBands]float64
	for band := range a {
		a[band] = 1
	}
	return a
}

// integerDelayDistance returns a distance whose arrival lands exactly on a
// sample, so the fractional kernel degenerates to a single tap.
func integerDelayDistance(sampleIndex int) float64 {
	return float64(sampleIndex) / testSampleRate * testSpeedOfSound
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"zero_sample_rate", func(p *Params) { p.SampleRate = 0 }},
		{"zero_speed", func(p *Params) { p.SpeedOfSound = 0 }},
		{"negative_crossover", func(p *Params) { p.CrossoverTime = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParamsEarly()
			tt.modify(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestSynthesize_Empty(t *testing.T) {
	ir, err := Synthesize(nil, nil, testParamsEarly())
	require.NoError(t, err)
	assert.Empty(t, ir)
}

func TestSynthesize_DirectPathAmplitude(t *testing.T) {
	const sampleIndex = 200
	dist := integerDelayDistance(sampleIndex)

	paths := []imagesource.Path{{
		Order:       0,
		Distance:    dist,
		Attenuation: unitAttenuation(),
	}}

	ir, err := Synthesize(paths, nil, testParamsEarly())
	require.NoError(t, err)
	require.Greater(t, len(ir), sampleIndex)

	// Unattenuated direct arrival: amplitude 1/d exactly at its sample.
	assert.InDelta(t, 1.0/dist, ir[sampleIndex], ampTolerance)
	assert.Equal(t, sampleIndex, testutil.PeakIndex(ir))
	testutil.AssertNoNaNOrInf(t, ir)

	// An integer delay leaves the neighboring samples untouched.
	assert.InDelta(t, 0.0, ir[sampleIndex-1], ampTolerance)
	assert.InDelta(t, 0.0, ir[sampleIndex+1], ampTolerance)
}

func TestSynthesize_AttenuationScalesAmplitude(t *testing.T) {
	const sampleIndex = 150
	dist := integerDelayDistance(sampleIndex)

	atten := unitAttenuation()
	for band := range atten {
		atten[band] = 0.5
	}
	paths := []imagesource.Path{{Order: 1, Distance: dist, Attenuation: atten, Walls: []int{0}}}

	ir, err := Synthesize(paths, nil, testParamsEarly())
	require.NoError(t, err)

	assert.InDelta(t, 0.5/dist, ir[sampleIndex], ampTolerance)
}

func TestSynthesize_FractionalDelayPreservesEnergy(t *testing.T) {
	const sampleIndex = 150
	dist := integerDelayDistance(sampleIndex) * 1.0000203 // push off the sample grid

	paths := []imagesource.Path{{Distance: dist, Attenuation: unitAttenuation()}}

	ir, err := Synthesize(paths, nil, testParamsEarly())
	require.NoError(t, err)

	// A band-limited impulse between two samples spreads over the kernel
	// but keeps its energy close to the on-grid value.
	expected := (1.0 / dist) * (1.0 / dist)
	testutil.AssertRelativeError(t, expected, testutil.Energy(ir), 1e-3)
}

func TestSynthesize_AirAbsorptionReducesAmplitude(t *testing.T) {
	const sampleIndex = 400
	dist := integerDelayDistance(sampleIndex)
	paths := []imagesource.Path{{Distance: dist, Attenuation: unitAttenuation()}}

	dry := testParamsEarly()
	humid := testParamsEarly()
	humid.AirAbsorption = true

	irDry, err := Synthesize(paths, nil, dry)
	require.NoError(t, err)
	irHumid, err := Synthesize(paths, nil, humid)
	require.NoError(t, err)

	assert.Less(t, math.Abs(irHumid[sampleIndex]), math.Abs(irDry[sampleIndex]))
	assert.Positive(t, irHumid[sampleIndex])
}

func testHistogram(binWidth float64, bins int, energyPerBin float64) *raytracer.Histogram {
	h := raytracer.NewHistogram(binWidth, binWidth*float64(bins))
	var e [material.NumBands]float64
	for band := range e {
		e[band] = energyPerBin / material.NumBands
	}
	for i := 0; i < bins; i++ {
		h.Add((float64(i)+0.5)*binWidth, e)
	}
	return h
}

func TestSynthesize_TailEnergyMatchesHistogram(t *testing.T) {
	const (
		binWidth     = 0.004
		bins         = 50
		energyPerBin = 1e-4
	)
	hist := testHistogram(binWidth, bins, energyPerBin)

	p := testParamsEarly()
	// Crossover at zero-ish so the tail is fully late.
	p.CrossoverTime = 0.001

	ir, err := Synthesize(nil, hist, p)
	require.NoError(t, err)
	require.NotEmpty(t, ir)
	testutil.AssertNoNaNOrInf(t, ir)

	// Gaussian noise shaping reproduces the histogram energy in
	// expectation; 50 bins keep the realization within a loose bound.
	total := testutil.Energy(ir)
	testutil.AssertRelativeError(t, float64(bins)*energyPerBin, total, 0.3)
}

func TestSynthesize_TailDeterministicForSeed(t *testing.T) {
	hist := testHistogram(0.004, 20, 1e-4)
	p := testParamsEarly()
	p.CrossoverTime = 0.001

	a, err := Synthesize(nil, hist, p)
	require.NoError(t, err)
	b, err := Synthesize(nil, hist, p)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i], "sample %d", i)
	}
}

func TestSynthesize_EarlyPartIndependentOfSeed(t *testing.T) {
	const sampleIndex = 100
	dist := integerDelayDistance(sampleIndex)
	paths := []imagesource.Path{{Distance: dist, Attenuation: unitAttenuation()}}
	hist := testHistogram(0.004, 40, 1e-4)

	p1 := testParamsEarly()
	p1.CrossoverTime = 0.05
	p2 := p1
	p2.Seed = testSeed + 99

	a, err := Synthesize(paths, hist, p1)
	require.NoError(t, err)
	b, err := Synthesize(paths, hist, p2)
	require.NoError(t, err)

	// Before the crossfade starts, only the deterministic part contributes.
	fadeStart := int((p1.CrossoverTime - crossfadeWidth/2) * testSampleRate)
	for i := 0; i < fadeStart; i++ {
		assert.Equal(t, a[i], b[i], "sample %d precedes the crossover", i)
	}
}

func TestSynthesize_CrossoverSuppressesLateImages(t *testing.T) {
	p := testParamsEarly()
	p.CrossoverTime = 0.02

	// Arrival well past crossover + fade width is fully faded out.
	lateDist := (p.CrossoverTime + crossfadeWidth) * testSpeedOfSound * 1.5
	paths := []imagesource.Path{{Distance: lateDist, Attenuation: unitAttenuation()}}
	hist := testHistogram(0.004, 1, 0) // enables the fade, carries no energy

	ir, err := Synthesize(paths, hist, p)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, testutil.Energy(ir), 1e-15,
		"image arrivals beyond the crossover are removed by the fade")
}

func TestCrossfade_EqualPower(t *testing.T) {
	c := crossfade{center: 0.05, width: 0.01, enabled: true}

	for _, tt := range []struct {
		name string
		t    float64
	}{
		{"before", 0.01},
		{"fade_start", 0.045},
		{"center", 0.05},
		{"late_fade", 0.053},
		{"after", 0.2},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := c.earlyGain(tt.t)
			l := c.lateGain(tt.t)
			assert.InDelta(t, 1.0, e*e+l*l, 1e-12, "energy continuity at t=%v", tt.t)
		})
	}

	assert.InDelta(t, 1.0, c.earlyGain(0.0), 1e-12)
	assert.InDelta(t, 0.0, c.lateGain(0.0), 1e-12)
	assert.InDelta(t, 0.0, c.earlyGain(0.1), 1e-12)
	assert.InDelta(t, 1.0, c.lateGain(0.1), 1e-12)
}

func TestCrossfade_DisabledPassesBoth(t *testing.T) {
	c := crossfade{enabled: false}
	assert.InDelta(t, 1.0, c.earlyGain(0.5), 1e-12)
	assert.InDelta(t, 1.0, c.lateGain(0.5), 1e-12)
}

func TestFractionalKernel_IntegerDelayIsExact(t *testing.T) {
	k := newFractionalKernel(kernelHalfWidth, kernelAttenuation)
	ir := make([]float64, 256)

	k.addImpulse(ir, 128, 0.75)

	assert.InDelta(t, 0.75, ir[128], ampTolerance)
	for i, v := range ir {
		if i == 128 {
			continue
		}
		assert.InDelta(t, 0.0, v, ampTolerance, "sample %d", i)
	}
}

func TestFractionalKernel_HalfSampleDelaySymmetric(t *testing.T) {
	k := newFractionalKernel(kernelHalfWidth, kernelAttenuation)
	ir := make([]float64, 256)

	k.addImpulse(ir, 128.5, 1.0)

	// The two nearest taps straddle the delay symmetrically.
	assert.InDelta(t, ir[128], ir[129], ampTolerance)
	assert.Greater(t, ir[128], 0.5, "nearest taps carry most of the impulse")
	testutil.AssertNoNaNOrInf(t, ir)
}
