// Package raytracer implements the stochastic late-reverberation stage of
// the hybrid simulator.
//
// Rays are emitted from the source with directions drawn uniformly from
// the sphere, bounced off walls with per-band energy attenuation and a
// scattering-driven specular/diffuse split, and recorded into a time-binned
// per-band energy histogram whenever they pass within the receiver radius
// of the microphone.
//
// The tracer is deterministic for a given seed: rays are processed in
// fixed-size chunks, every ray derives its own PRNG stream from the seed
// and its global ray index, and chunk histograms are merged in chunk
// order. Worker count therefore never changes the result.
package raytracer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tphakala/go-room-acoustics/internal/geom"
	"github.com/tphakala/go-room-acoustics/internal/material"
)

// Tracing defaults and limits.
const (
	// DefaultBinWidth is the histogram time resolution in seconds.
	DefaultBinWidth = 0.004

	// DefaultMaxBounces terminates runaway rays in nearly lossless rooms.
	DefaultMaxBounces = 1000

	// DefaultMaxTime is the travel-time cutoff in seconds.
	DefaultMaxTime = 4.0

	// DefaultEnergyThreshold terminates a ray once every band has decayed
	// below this fraction of its initial energy.
	DefaultEnergyThreshold = 1e-7

	// chunkSize is the fixed ray-chunk granularity. It is part of the
	// determinism contract: changing it changes floating-point merge
	// order, so it is a constant rather than a parameter.
	chunkSize = 1024

	// seedStreamSalt separates per-ray PRNG streams from other consumers
	// of the simulation seed.
	seedStreamSalt = 0x9e3779b97f4a7c15
)

// ErrInvalidParams indicates out-of-range tracing parameters.
var ErrInvalidParams = errors.New("invalid ray tracing parameters")

// Params configures one tracing run.
type Params struct {
	// RayCount is the number of rays emitted from the source.
	RayCount int

	// ReceiverRadius is the capture-sphere radius around the microphone
	// in meters.
	ReceiverRadius float64

	// Seed selects the PRNG streams. Equal seeds give bit-identical
	// histograms.
	Seed uint64

	// SpeedOfSound in meters per second.
	SpeedOfSound float64

	// BinWidth is the histogram resolution in seconds. 0 uses
	// DefaultBinWidth.
	BinWidth float64

	// MaxBounces, MaxTime and EnergyThreshold are termination bounds;
	// zero values use the package defaults.
	MaxBounces      int
	MaxTime         float64
	EnergyThreshold float64

	// Workers caps tracing goroutines. 0 uses GOMAXPROCS.
	Workers int
}

// Validate checks parameter ranges eagerly.
func (p *Params) Validate() error {
	if p.RayCount <= 0 {
		return fmt.Errorf("%w: ray count %d must be positive", ErrInvalidParams, p.RayCount)
	}
	if p.ReceiverRadius <= 0 {
		return fmt.Errorf("%w: receiver radius %v must be positive", ErrInvalidParams, p.ReceiverRadius)
	}
	if p.SpeedOfSound <= 0 {
		return fmt.Errorf("%w: speed of sound %v must be positive", ErrInvalidParams, p.SpeedOfSound)
	}
	if p.BinWidth < 0 || p.MaxTime < 0 || p.EnergyThreshold < 0 || p.MaxBounces < 0 {
		return fmt.Errorf("%w: negative bound", ErrInvalidParams)
	}
	return nil
}

func (p *Params) withDefaults() Params {
	q := *p
	if q.BinWidth == 0 {
		q.BinWidth = DefaultBinWidth
	}
	if q.MaxBounces == 0 {
		q.MaxBounces = DefaultMaxBounces
	}
	if q.MaxTime == 0 {
		q.MaxTime = DefaultMaxTime
	}
	if q.EnergyThreshold == 0 {
		q.EnergyThreshold = DefaultEnergyThreshold
	}
	if q.Workers == 0 {
		q.Workers = runtime.GOMAXPROCS(0)
	}
	return q
}

// Histogram accumulates captured ray energy per time bin and frequency
// band. Bin i covers [i*BinWidth, (i+1)*BinWidth).
type Histogram struct {
	BinWidth float64
	Bins     [][material.NumBands]float64
}

// NewHistogram creates a histogram covering maxTime at the given
// resolution.
func NewHistogram(binWidth, maxTime float64) *Histogram {
	n := int(math.Ceil(maxTime/binWidth)) + 1
	return &Histogram{
		BinWidth: binWidth,
		Bins:     make([][material.NumBands]float64, n),
	}
}

// Add deposits per-band energy at the given arrival time. Arrivals past
// the histogram end are dropped; the tracer's MaxTime cutoff makes this a
// boundary case, not a data path.
func (h *Histogram) Add(t float64, energy [material.NumBands]float64) {
	idx := int(t / h.BinWidth)
	if idx < 0 || idx >= len(h.Bins) {
		return
	}
	for band := range energy {
		h.Bins[idx][band] += energy[band]
	}
}

// merge adds other into h bin by bin. Both must share BinWidth and length.
func (h *Histogram) merge(other *Histogram) {
	for i := range other.Bins {
		for band := range other.Bins[i] {
			h.Bins[i][band] += other.Bins[i][band]
		}
	}
}

// TotalEnergy sums all bins and bands.
func (h *Histogram) TotalEnergy() float64 {
	var sum float64
	for i := range h.Bins {
		for _, e := range h.Bins[i] {
			sum += e
		}
	}
	return sum
}

// LastActiveBin returns the index of the last bin holding any energy,
// or -1 when the histogram is empty.
func (h *Histogram) LastActiveBin() int {
	for i := len(h.Bins) - 1; i >= 0; i-- {
		for _, e := range h.Bins[i] {
			if e > 0 {
				return i
			}
		}
	}
	return -1
}

// Trace runs the stochastic simulation and returns the receiver energy
// histogram. materials must hold one entry per room wall.
func Trace(room *geom.Room, materials []material.Material, source, mic r3.Vec, params Params) (*Histogram, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := params.withDefaults()

	numChunks := (p.RayCount + chunkSize - 1) / chunkSize
	chunks := make([]*Histogram, numChunks)

	workers := p.Workers
	if workers > numChunks {
		workers = numChunks
	}

	var wg sync.WaitGroup
	chunkCh := make(chan int)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunkCh {
				hist := NewHistogram(p.BinWidth, p.MaxTime)
				first := c * chunkSize
				last := min(first+chunkSize, p.RayCount)
				for ray := first; ray < last; ray++ {
					traceRay(room, materials, source, mic, &p, uint64(ray), hist)
				}
				chunks[c] = hist
			}
		}()
	}

	for c := range numChunks {
		chunkCh <- c
	}
	close(chunkCh)
	wg.Wait()

	// Chunk-ordered merge keeps floating-point summation order fixed.
	total := NewHistogram(p.BinWidth, p.MaxTime)
	for _, hist := range chunks {
		total.merge(hist)
	}

	return total, nil
}

// traceRay follows a single ray until it decays, escapes the time budget
// or exceeds the bounce limit.
func traceRay(room *geom.Room, materials []material.Material, source, mic r3.Vec, p *Params, rayIndex uint64, hist *Histogram) {
	src := rand.NewPCG(p.Seed, splitmix64(rayIndex^seedStreamSalt))
	rng := rand.New(src)
	gauss := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	origin := source
	dir := sphereDirection(gauss)

	// Each ray carries 1/RayCount of the source's unit energy, so the
	// histogram estimates absolute energy density once capture events are
	// weighted by the receiver cross-section.
	var energy [material.NumBands]float64
	initial := 1.0 / float64(p.RayCount)
	for band := range energy {
		energy[band] = initial
	}

	captureWeight := 1.0 / (math.Pi * p.ReceiverRadius * p.ReceiverRadius)
	threshold := initial * p.EnergyThreshold
	travelled := 0.0

	for bounce := 0; bounce <= p.MaxBounces; bounce++ {
		wallIdx, t, ok := room.NearestHit(origin, dir)
		if !ok {
			return // numerically escaped the enclosure
		}

		segLen := t * r3.Norm(dir)
		hit := r3.Add(origin, r3.Scale(t, dir))

		// Receiver capture: record when the segment passes through the
		// capture sphere. The ray itself is not consumed.
		if along, dist, inside := closestApproach(origin, dir, segLen, mic); inside && dist < p.ReceiverRadius {
			arrival := (travelled + along) / p.SpeedOfSound
			if arrival <= p.MaxTime {
				var captured [material.NumBands]float64
				for band := range energy {
					captured[band] = energy[band] * captureWeight
				}
				hist.Add(arrival, captured)
			}
		}

		travelled += segLen
		if travelled/p.SpeedOfSound > p.MaxTime {
			return
		}

		// Wall interaction: per-band energy absorption, then a
		// scattering-weighted choice between the specular direction and a
		// diffuse lobe. The probabilistic split preserves the expected
		// specular/diffuse energy ratio without spawning extra rays.
		mat := &materials[wallIdx]
		alive := false
		for band := range energy {
			energy[band] *= 1 - mat.Absorption[band]
			if energy[band] >= threshold {
				alive = true
			}
		}
		if !alive {
			return
		}

		wall := &room.Walls[wallIdx]
		if rng.Float64() < mat.Scattering {
			dir = diffuseDirection(gauss, r3.Scale(-1, wall.Normal))
		} else {
			dir = wall.ReflectDir(dir)
		}

		origin = hit
	}
}

// sphereDirection draws a uniform direction on the unit sphere by
// normalizing an isotropic gaussian triple.
func sphereDirection(gauss distuv.Normal) r3.Vec {
	for {
		v := r3.Vec{X: gauss.Rand(), Y: gauss.Rand(), Z: gauss.Rand()}
		n := r3.Norm(v)
		if n > 1e-12 {
			return r3.Scale(1/n, v)
		}
	}
}

// diffuseDirection draws a cosine-weighted direction in the hemisphere
// around the interior-facing normal, the standard Lambertian lobe.
func diffuseDirection(gauss distuv.Normal, inward r3.Vec) r3.Vec {
	for {
		v := r3.Add(inward, sphereDirection(gauss))
		n := r3.Norm(v)
		if n > 1e-6 {
			return r3.Scale(1/n, v)
		}
	}
}

// closestApproach returns the distance along the segment at which the ray
// passes closest to p, the closest distance itself, and whether that
// closest point lies within the segment.
func closestApproach(origin, dir r3.Vec, segLen float64, p r3.Vec) (along, dist float64, inside bool) {
	unit := r3.Scale(1/r3.Norm(dir), dir)
	rel := r3.Sub(p, origin)
	along = r3.Dot(rel, unit)
	if along < 0 || along > segLen {
		return along, 0, false
	}
	closest := r3.Add(origin, r3.Scale(along, unit))
	return along, r3.Norm(r3.Sub(p, closest)), true
}

// splitmix64 decorrelates sequential ray indices into seed material.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
