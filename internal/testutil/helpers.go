// Package testutil provides reusable helpers for acoustic simulation tests.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Default tolerances for numeric assertions.
const (
	DefaultTolerance = 1e-10
	EnergyTolerance  = 1e-6
)

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64) bool {
	t.Helper()
	for i, v := range s {
		if math.IsNaN(v) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(v, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertAllInRange verifies that all elements are within [minVal, maxVal].
func AssertAllInRange(t *testing.T, s []float64, minVal, maxVal float64) bool {
	t.Helper()
	for i, v := range s {
		if v < minVal || v > maxVal {
			return assert.Fail(t, "value out of range",
				"s[%d]=%f is outside range [%f, %f]", i, v, minVal, maxVal)
		}
	}
	return true
}

// AssertRelativeError verifies that the relative error between actual and
// expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}

// Energy returns the sum of squared samples.
func Energy(s []float64) float64 {
	var sum float64
	for _, v := range s {
		sum += v * v
	}
	return sum
}

// EnergyWindow returns the sum of squared samples in [from, to), clamped
// to the slice bounds.
func EnergyWindow(s []float64, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(s) {
		to = len(s)
	}
	var sum float64
	for _, v := range s[from:to] {
		sum += v * v
	}
	return sum
}

// PeakIndex returns the index of the largest absolute sample, or -1 for an
// empty slice.
func PeakIndex(s []float64) int {
	idx := -1
	var peak float64
	for i, v := range s {
		if a := math.Abs(v); a > peak {
			peak = a
			idx = i
		}
	}
	return idx
}
