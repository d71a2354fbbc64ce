package simdops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat64Ops(t *testing.T) {
	ops := Float64Ops()

	a := []float64{1, 2, 3, 4}
	b := []float64{0.5, 0.25, 0.125, 1}
	assert.InDelta(t, 0.5+0.5+0.375+4, ops.DotProductUnsafe(a, b), 1e-12)

	dst := make([]float64, 4)
	ops.Scale(dst, a, 2)
	assert.Equal(t, []float64{2, 4, 6, 8}, dst)
}

func TestDescribe(t *testing.T) {
	assert.NotEmpty(t, Describe())
}
