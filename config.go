package roomsim

import (
	"fmt"
)

// Configuration defaults and bounds.
const (
	// DefaultSampleRate for synthesized impulse responses in Hz.
	DefaultSampleRate = 16000

	// DefaultMaxOrder is the image-source reflection order. Image counts
	// grow combinatorially with this value; 0-10 is the practical range.
	DefaultMaxOrder = 3

	// DefaultRayCount balances tail variance against runtime.
	DefaultRayCount = 10000

	// DefaultReceiverRadius is the ray-capture sphere radius in meters.
	DefaultReceiverRadius = 0.25

	// SpeedOfSound in air at 20°C, meters per second.
	SpeedOfSound = 343.0

	// maxOrderLimit caps the combinatorial image expansion. The cost
	// cliff is documented on Config.MaxOrder.
	maxOrderLimit = 12

	// Automatic time-budget bounds in seconds.
	minAutoMaxTime = 0.5
	maxAutoMaxTime = 10.0

	// autoMaxTimeFactor scales the Sabine estimate into a time budget.
	autoMaxTimeFactor = 1.5

	// sabineConstant in RT60 = 0.161 * V / A.
	sabineConstant = 0.161
)

// Config is the simulation parameter surface. The zero value is not
// usable; start from DefaultConfig and override fields.
type Config struct {
	// SampleRate of the synthesized impulse response in Hz.
	SampleRate int

	// MaxOrder is the maximum image-source reflection order. 0 computes
	// only the direct path. Runtime grows combinatorially with MaxOrder
	// and wall count; keep it small (0-10) and let ray tracing carry the
	// late tail.
	MaxOrder int

	// RayTracing enables the stochastic late-reverberation stage.
	RayTracing bool

	// RayCount is the number of rays emitted per source-microphone pair.
	// Tail variance shrinks roughly as 1/√RayCount.
	RayCount int

	// ReceiverRadius is the ray capture sphere radius in meters.
	ReceiverRadius float64

	// AirAbsorption enables distance-proportional per-band atmospheric
	// damping.
	AirAbsorption bool

	// Seed drives every stochastic stage. Runs with equal seeds are
	// bit-identical; tail noise is a variance property, not an error.
	Seed uint64

	// CrossoverTime is the boundary in seconds between the image-source
	// part and the ray-traced part of the response. 0 picks a heuristic
	// based on the mean free path and MaxOrder.
	CrossoverTime float64

	// MaxTime bounds ray travel time and response length in seconds.
	// 0 derives a budget from the room's Sabine estimate.
	MaxTime float64

	// EnergyThreshold prunes image paths and terminates rays whose
	// energy fraction falls below it. 0 uses the engine defaults.
	EnergyThreshold float64

	// MaxBounces bounds ray reflections. 0 uses the engine default.
	MaxBounces int

	// Workers caps tracing goroutines. 0 uses GOMAXPROCS. The worker
	// count never affects results, only wall-clock time.
	Workers int
}

// DefaultConfig returns the documented defaults: 16 kHz output, third
// order images, 10k rays with a 0.25 m receiver, air absorption off,
// seed 0, automatic crossover and time budget.
func DefaultConfig() *Config {
	return &Config{
		SampleRate:     DefaultSampleRate,
		MaxOrder:       DefaultMaxOrder,
		RayTracing:     true,
		RayCount:       DefaultRayCount,
		ReceiverRadius: DefaultReceiverRadius,
	}
}

// Validate checks all parameter ranges eagerly.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidConfig, c.SampleRate)
	}

	if c.MaxOrder < 0 {
		return fmt.Errorf("%w: max order %d must not be negative", ErrInvalidConfig, c.MaxOrder)
	}

	if c.MaxOrder > maxOrderLimit {
		return fmt.Errorf("%w: max order %d exceeds limit %d (image counts grow combinatorially)",
			ErrInvalidConfig, c.MaxOrder, maxOrderLimit)
	}

	if c.RayTracing {
		if c.RayCount <= 0 {
			return fmt.Errorf("%w: ray count %d must be positive when ray tracing is enabled",
				ErrInvalidConfig, c.RayCount)
		}
		if c.ReceiverRadius <= 0 {
			return fmt.Errorf("%w: receiver radius %v must be positive when ray tracing is enabled",
				ErrInvalidConfig, c.ReceiverRadius)
		}
	}

	if c.CrossoverTime < 0 {
		return fmt.Errorf("%w: crossover time %v must not be negative", ErrInvalidConfig, c.CrossoverTime)
	}

	if c.MaxTime < 0 {
		return fmt.Errorf("%w: max time %v must not be negative", ErrInvalidConfig, c.MaxTime)
	}

	if c.EnergyThreshold < 0 || c.EnergyThreshold >= 1 {
		return fmt.Errorf("%w: energy threshold %v must be in [0, 1)", ErrInvalidConfig, c.EnergyThreshold)
	}

	if c.MaxBounces < 0 || c.Workers < 0 {
		return fmt.Errorf("%w: negative bound", ErrInvalidConfig)
	}

	return nil
}

// maxTimeFor resolves the time budget, deriving it from the Sabine
// reverberation estimate when unset.
func (c *Config) maxTimeFor(room *Room) float64 {
	if c.MaxTime > 0 {
		return c.MaxTime
	}

	est := autoMaxTimeFactor * room.SabineRT60()
	if est < minAutoMaxTime {
		return minAutoMaxTime
	}
	if est > maxAutoMaxTime {
		return maxAutoMaxTime
	}
	return est
}

// crossoverFor resolves the ISM/ray-tracing boundary. The heuristic
// places it one mean-free-path travel time past the expected arrival of
// order-MaxOrder reflections, so the deterministic part covers everything
// the image expansion can resolve.
func (c *Config) crossoverFor(room *Room) float64 {
	if !c.RayTracing {
		return 0
	}
	if c.CrossoverTime > 0 {
		return c.CrossoverTime
	}

	meanFreeTime := room.meanFreePath() / SpeedOfSound
	return float64(c.MaxOrder+1) * meanFreeTime
}
