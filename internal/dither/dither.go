// Package dither quantizes converter output to a fixed PCM word length,
// optionally with triangular-PDF dither noise.
package dither

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tphakala/go-audio-srcmanager/internal/simdops"
)

// DefaultBits is the word length of the I2S output.
const DefaultBits = 24

const (
	minBits = 2
	maxBits = 32
)

// Quantizer rounds a block of samples in place.
type Quantizer interface {
	Quantize(block []float64)
}

// None leaves samples untouched.
type None struct{}

// Quantize does nothing.
func (None) Quantize([]float64) {}

// TPDF adds triangular noise of +/-1 LSB and rounds to a bits-wide grid.
// A TPDF holds scratch space and must not be shared between goroutines.
type TPDF struct {
	bits    int
	scale   float64 // 2^(bits-1)
	inv     float64
	lo, hi  float64 // clamp range in LSBs
	noise   distuv.Triangle
	scratch []float64
	ops     *simdops.Ops
}

// NewTPDF creates a TPDF quantizer for the given word length.
func NewTPDF(bits int) (*TPDF, error) {
	if bits < minBits || bits > maxBits {
		return nil, fmt.Errorf("dither: word length %d out of range [%d, %d]", bits, minBits, maxBits)
	}

	scale := math.Ldexp(1, bits-1)
	return &TPDF{
		bits:  bits,
		scale: scale,
		inv:   1 / scale,
		lo:    -scale,
		hi:    scale - 1,
		noise: distuv.NewTriangle(-1, 1, 0, nil),
		ops:   simdops.Float64Ops(),
	}, nil
}

// Bits returns the word length.
func (q *TPDF) Bits() int {
	return q.bits
}

// LSB returns the size of one quantization step in full-scale units.
func (q *TPDF) LSB() float64 {
	return q.inv
}

// Quantize dithers and rounds block in place. Results are clamped to
// [-1, 1-LSB].
func (q *TPDF) Quantize(block []float64) {
	if len(block) == 0 {
		return
	}
	if cap(q.scratch) < len(block) {
		q.scratch = make([]float64, len(block))
	}
	lsbs := q.scratch[:len(block)]

	q.ops.Scale(lsbs, block, q.scale)
	for i, v := range lsbs {
		v = math.Round(v + q.noise.Rand())
		lsbs[i] = min(max(v, q.lo), q.hi)
	}
	q.ops.Scale(block, lsbs, q.inv)
}

// New returns a TPDF quantizer at bits when enabled, otherwise None.
func New(enabled bool, bits int) (Quantizer, error) {
	if !enabled {
		return None{}, nil
	}
	return NewTPDF(bits)
}
