// Package analysis estimates reverberation metrics from a sampled impulse
// response using Schroeder backward integration.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Decay estimation constants.
const (
	// fitUpperDB and fitLowerDB delimit the preferred decay region for
	// the linear fit, per ISO 3382 T20 practice.
	fitUpperDB = -5.0
	fitLowerDB = -25.0

	// minUsableRangeDB is the narrowest decay span the fit accepts before
	// reporting an insufficient decay range.
	minUsableRangeDB = 10.0

	// minFitPoints guards the regression against near-empty regions.
	minFitPoints = 8

	// rt60TargetDB is the decay the fit slope is extrapolated to.
	rt60TargetDB = 60.0

	// silenceFloorDB clamps log conversion of empty bins.
	silenceFloorDB = -200.0
)

// ErrInsufficientDecayRange indicates the response is too short or too
// noisy for a trustworthy RT60 estimate.
var ErrInsufficientDecayRange = errors.New("insufficient decay range")

// DecayCurve returns the Schroeder backward-integrated energy decay of the
// impulse response in decibels, normalized so the curve starts at 0 dB.
func DecayCurve(ir []float64) []float64 {
	curve := make([]float64, len(ir))
	if len(ir) == 0 {
		return curve
	}

	// Backward integration: remaining energy from sample n to the end.
	var acc float64
	for n := len(ir) - 1; n >= 0; n-- {
		acc += ir[n] * ir[n]
		curve[n] = acc
	}

	total := curve[0]
	if total <= 0 {
		for n := range curve {
			curve[n] = silenceFloorDB
		}
		return curve
	}

	for n := range curve {
		if curve[n] <= 0 {
			curve[n] = silenceFloorDB
			continue
		}
		db := 10 * math.Log10(curve[n]/total)
		if db < silenceFloorDB {
			db = silenceFloorDB
		}
		curve[n] = db
	}

	return curve
}

// RT60 estimates the 60 dB reverberation time in seconds.
//
// The decay curve is fit by linear regression over the -5 dB to -25 dB
// region, or over the widest clean region available when the response does
// not decay that far, and the slope is extrapolated to -60 dB. It fails
// with ErrInsufficientDecayRange when fewer than 10 dB of clean decay are
// available, rather than returning a silently wrong number.
func RT60(ir []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(ir) == 0 {
		return 0, fmt.Errorf("%w: empty impulse response", ErrInsufficientDecayRange)
	}

	curve := DecayCurve(ir)

	upper := firstBelow(curve, fitUpperDB)
	if upper < 0 {
		return 0, fmt.Errorf("%w: response never decays below %.0f dB", ErrInsufficientDecayRange, fitUpperDB)
	}

	// Prefer the -25 dB floor; fall back to the deepest clean decay when
	// the response is shorter. The last sample of a Schroeder curve is
	// always a cliff to the silence floor, so it is excluded from "clean".
	lowerDB := fitLowerDB
	lower := firstBelow(curve, lowerDB)
	if lower < 0 || lower >= len(curve)-1 {
		deepest := cleanMinimum(curve)
		lowerDB = deepest + 1 // stay above the noise cliff
		lower = firstBelow(curve, lowerDB)
	}

	if lower < 0 || lowerDB > fitUpperDB-minUsableRangeDB {
		return 0, fmt.Errorf("%w: usable decay span %.1f dB (need %.1f dB below %.0f dB)",
			ErrInsufficientDecayRange, fitUpperDB-lowerDB, minUsableRangeDB, fitUpperDB)
	}

	if lower-upper < minFitPoints {
		return 0, fmt.Errorf("%w: only %d samples between %.0f dB and %.1f dB",
			ErrInsufficientDecayRange, lower-upper, fitUpperDB, lowerDB)
	}

	times := make([]float64, lower-upper)
	levels := make([]float64, lower-upper)
	for i := range times {
		times[i] = float64(upper+i) / float64(sampleRate)
		levels[i] = curve[upper+i]
	}

	_, slope := stat.LinearRegression(times, levels, nil, false)
	if slope >= 0 || math.IsNaN(slope) {
		return 0, fmt.Errorf("%w: decay slope %.3f dB/s is not negative", ErrInsufficientDecayRange, slope)
	}

	return rt60TargetDB / -slope, nil
}

// firstBelow returns the first index whose level is at or below the
// threshold, or -1.
func firstBelow(curve []float64, db float64) int {
	for i, v := range curve {
		if v <= db {
			return i
		}
	}
	return -1
}

// cleanMinimum returns the deepest level reached before the terminal
// integration cliff.
func cleanMinimum(curve []float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	deepest := 0.0
	for _, v := range curve[:len(curve)-1] {
		if v < deepest && v > silenceFloorDB {
			deepest = v
		}
	}
	return deepest
}
