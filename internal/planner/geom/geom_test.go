package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorLength(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 10.0, VectorLength([]float64{0, 0}, []float64{10, 0}), 1e-9)
	assert.InDelta(t, 5.0, VectorLength([]float64{0, 0}, []float64{3, 4}), 1e-9)
}

func TestUnitVector(t *testing.T) {
	t.Parallel()
	unit, length, ok := UnitVector([]float64{0, 0}, []float64{10, 0}, 1e-10)
	require.True(t, ok)
	assert.InDelta(t, 10.0, length, 1e-9)
	assert.InDelta(t, 1.0, unit[0], 1e-9)
	assert.InDelta(t, 0.0, unit[1], 1e-9)

	_, _, ok = UnitVector([]float64{0, 0}, []float64{0, 0}, 1e-10)
	assert.False(t, ok, "zero-length move has no unit vector")
}

func TestTargetLengthVelocityRoundTrip(t *testing.T) {
	t.Parallel()
	// spec.md §8 property 5: target_length(target_velocity(Ve,L,j),Ve,j) ≈ L within 1%.
	const ve, j = 0.0, 5e7
	for _, l := range []float64{1, 10, 100, 1000} {
		vt := TargetVelocity(ve, l, j)
		back := TargetLength(ve, vt, j)
		assert.InEpsilon(t, l, back, 0.01, "length round-trip at L=%v", l)
	}
}

func TestJunctionVmaxStraightThrough(t *testing.T) {
	t.Parallel()
	u := []float64{1, 0}
	dev := []float64{0.05, 0.05}
	got := JunctionVmax(u, u, dev, 2e5)
	assert.GreaterOrEqual(t, got, 1e6, "collinear corner must return the straight-through sentinel")
}

func TestJunctionVmaxReversal(t *testing.T) {
	t.Parallel()
	u := []float64{1, 0}
	neg := []float64{-1, 0}
	dev := []float64{0.05, 0.05}
	got := JunctionVmax(u, neg, dev, 2e5)
	assert.Zero(t, got, "full reversal must return zero")
}

func TestJunctionVmaxRightAngle(t *testing.T) {
	t.Parallel()
	a := []float64{1, 0}
	b := []float64{0, 1}
	dev := []float64{0.05, 0.05}
	got := JunctionVmax(a, b, dev, 2e5)
	require.Greater(t, got, 0.0)
	assert.Less(t, got, StraightThroughVelocity)

	// cross-check against the closed form directly: cosTheta=0, sin(theta/2)=sqrt(1/2).
	sinHalf := math.Sqrt(0.5)
	delta := math.Sqrt(0.05*0.05) // each axis-aligned vector contributes its own axis's 0.05
	r := delta * sinHalf / (1 - sinHalf)
	want := math.Sqrt(r * 2e5)
	assert.InDelta(t, want, got, 1e-6)
}
