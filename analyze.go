package roomsim

import (
	"github.com/tphakala/go-room-acoustics/internal/analysis"
)

// RT60 estimates the reverberation time of an impulse response in
// seconds: the time for the Schroeder decay curve to fall 60 dB,
// extrapolated from a linear fit of the -5 to -25 dB region. It fails
// with ErrInsufficientDecayRange when the response never decays far
// enough for a meaningful fit.
func RT60(ir *ImpulseResponse) (float64, error) {
	return analysis.RT60(ir.Samples, ir.SampleRate)
}

// DecayCurve returns the Schroeder backward-integrated energy decay of an
// impulse response in dB, normalized so the curve starts at 0. One value
// per input sample.
func DecayCurve(ir *ImpulseResponse) []float64 {
	return analysis.DecayCurve(ir.Samples)
}
