// Package testutil provides reusable assertions and signal generators for
// sample-block tests.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance = 1e-12
	GridTolerance    = 1e-6
)

// Sine fills block with amp*sin(2*pi*(start+i)/period).
func Sine(block []float64, start int, period, amp float64) []float64 {
	for i := range block {
		block[i] = amp * math.Sin(2*math.Pi*float64(start+i)/period)
	}
	return block
}

// Constant returns a block of n copies of v.
func Constant(n int, v float64) []float64 {
	block := make([]float64, n)
	for i := range block {
		block[i] = v
	}
	return block
}

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64, msgAndArgs ...any) bool {
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

// AssertAllInRange verifies that all elements are within [min, max].
func AssertAllInRange(t *testing.T, s []float64, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v < minVal || v > maxVal {
			return assert.Fail(t, "value out of range",
				"s[%d]=%f is outside range [%f, %f]", i, v, minVal, maxVal)
		}
	}
	return true
}

// AssertAllEqual verifies that every element is within tolerance of want.
func AssertAllEqual(t *testing.T, s []float64, want, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if !assert.InDelta(t, want, v, tolerance, "s[%d]", i) {
			return false
		}
	}
	return true
}

// AssertOnGrid verifies that every element is an integer multiple of lsb.
func AssertOnGrid(t *testing.T, s []float64, lsb float64) bool {
	t.Helper()
	for i, v := range s {
		steps := v / lsb
		if !assert.InDelta(t, math.Round(steps), steps, GridTolerance, "s[%d]=%g is off the grid", i, v) {
			return false
		}
	}
	return true
}

// AssertWithin verifies that |got[i]-want[i]| <= bound for every i.
func AssertWithin(t *testing.T, want, got []float64, bound float64) bool {
	t.Helper()
	if !assert.Len(t, got, len(want)) {
		return false
	}
	for i := range want {
		if d := math.Abs(got[i] - want[i]); d > bound {
			return assert.Fail(t, "deviation too large",
				"s[%d]: |%g-%g|=%g exceeds %g", i, got[i], want[i], d, bound)
		}
	}
	return true
}
