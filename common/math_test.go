package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp01(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{7, 1},
		{math.NaN(), 0},
		{math.Inf(1), 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Clamp01(c.in), "Clamp01(%v)", c.in)
	}
}

func TestLerp(t *testing.T) {
	assert.Equal(t, 1.0, Lerp(1, 0, 0))
	assert.Equal(t, 0.0, Lerp(1, 0, 1))
	assert.InDelta(t, 0.75, Lerp(1, 0, 0.25), 1e-12)
}
