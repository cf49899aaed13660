package roomsim

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/tphakala/go-room-acoustics/internal/imagesource"
	"github.com/tphakala/go-room-acoustics/internal/raytracer"
	"github.com/tphakala/go-room-acoustics/internal/synth"
)

// Per-pair seed stream salts. Each source-microphone pair derives its own
// PRNG streams from Config.Seed so that adding a microphone never changes
// the response at another one.
const pairSeedSalt = 0xd1342543de82ef95

// ImpulseResponse is the simulated pressure response at one microphone to
// a unit impulse at one source, sampled at SampleRate.
type ImpulseResponse struct {
	SourceIndex int
	MicIndex    int
	SampleRate  int
	Samples     []float64

	// NumImagePaths is the count of visible image-source arrivals that
	// contributed to the early part.
	NumImagePaths int

	// TailEnergy is the total ray energy captured for the late part,
	// summed over bands. Zero when ray tracing is disabled.
	TailEnergy float64
}

// Duration returns the response length in seconds.
func (ir *ImpulseResponse) Duration() float64 {
	return float64(len(ir.Samples)) / float64(ir.SampleRate)
}

// Result holds one impulse response per source-microphone pair, plus the
// resolved parameters the run actually used.
type Result struct {
	Responses []*ImpulseResponse

	// CrossoverTime and MaxTime are the resolved values, informative when
	// the config left them automatic.
	CrossoverTime float64
	MaxTime       float64

	numSources int
	numMics    int
}

// IR returns the response for the given source and microphone indices.
func (r *Result) IR(source, mic int) *ImpulseResponse {
	if source < 0 || source >= r.numSources || mic < 0 || mic >= r.numMics {
		return nil
	}
	return r.Responses[source*r.numMics+mic]
}

// Simulate computes the impulse response for every source-microphone pair
// in the room. The scene must have materials assigned and at least one
// source and one microphone.
//
// The hybrid model runs two stages per pair. The image-source stage
// deterministically enumerates specular reflection paths up to
// Config.MaxOrder and places each arrival at its exact fractional sample
// position. The ray-tracing stage, when enabled, emits Config.RayCount
// stochastic rays and accumulates captured energy into a time-band
// histogram that is reconstructed as a noise-shaped tail. Both stages of
// a pair run concurrently; pairs run sequentially so memory stays bounded
// by one histogram.
//
// Equal seeds give bit-identical results regardless of Config.Workers.
func Simulate(room *Room, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := room.ready(); err != nil {
		return nil, err
	}

	maxTime := cfg.maxTimeFor(room)
	crossover := cfg.crossoverFor(room)

	result := &Result{
		Responses:     make([]*ImpulseResponse, 0, len(room.sources)*len(room.mics)),
		CrossoverTime: crossover,
		MaxTime:       maxTime,
		numSources:    len(room.sources),
		numMics:       len(room.mics),
	}

	for si, src := range room.sources {
		for mi, mic := range room.mics {
			ir, err := simulatePair(room, cfg, si, mi, src.Position, mic.Position, crossover, maxTime)
			if err != nil {
				return nil, fmt.Errorf("source %d microphone %d: %w", si, mi, err)
			}
			result.Responses = append(result.Responses, ir)
		}
	}

	return result, nil
}

func simulatePair(room *Room, cfg *Config, sourceIdx, micIdx int, src, mic r3.Vec, crossover, maxTime float64) (*ImpulseResponse, error) {
	threshold := cfg.EnergyThreshold
	if threshold == 0 {
		threshold = imagesource.DefaultEnergyThreshold
	}

	var (
		wg       sync.WaitGroup
		paths    []imagesource.Path
		hist     *raytracer.Histogram
		traceErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		paths = imagesource.Generate(room.geo, room.materials, src, mic, cfg.MaxOrder, threshold)
	}()

	if cfg.RayTracing {
		params := raytracer.Params{
			RayCount:        cfg.RayCount,
			ReceiverRadius:  cfg.ReceiverRadius,
			Seed:            pairSeed(cfg.Seed, sourceIdx, micIdx),
			SpeedOfSound:    SpeedOfSound,
			MaxBounces:      cfg.MaxBounces,
			MaxTime:         maxTime,
			EnergyThreshold: cfg.EnergyThreshold,
			Workers:         cfg.Workers,
		}
		hist, traceErr = raytracer.Trace(room.geo, room.materials, src, mic, params)
	}

	wg.Wait()
	if traceErr != nil {
		return nil, traceErr
	}

	samples, err := synth.Synthesize(paths, hist, synth.Params{
		SampleRate:    cfg.SampleRate,
		SpeedOfSound:  SpeedOfSound,
		CrossoverTime: crossover,
		AirAbsorption: cfg.AirAbsorption,
		Seed:          pairSeed(cfg.Seed, sourceIdx, micIdx),
	})
	if err != nil {
		return nil, err
	}

	ir := &ImpulseResponse{
		SourceIndex:   sourceIdx,
		MicIndex:      micIdx,
		SampleRate:    cfg.SampleRate,
		Samples:       samples,
		NumImagePaths: len(paths),
	}
	if hist != nil {
		ir.TailEnergy = hist.TotalEnergy()
	}
	return ir, nil
}

// pairSeed derives a per-pair seed from the run seed with a splitmix64
// step, so pair streams never collide for distinct (source, mic) indices.
func pairSeed(seed uint64, sourceIdx, micIdx int) uint64 {
	x := seed ^ pairSeedSalt ^ (uint64(sourceIdx)<<32 | uint64(uint32(micIdx)))
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
