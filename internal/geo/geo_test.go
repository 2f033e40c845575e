package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestPointInRing(t *testing.T) {
	square := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}

	tests := []struct {
		name string
		p    orb.Point
		want bool
	}{
		{"center", orb.Point{5, 5}, true},
		{"near corner inside", orb.Point{0.1, 0.1}, true},
		{"outside right", orb.Point{10.1, 5}, false},
		{"outside above", orb.Point{5, 10.1}, false},
		{"far away", orb.Point{100, 100}, false},
		{"negative outside", orb.Point{-1, 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PointInRing(tt.p, square))
		})
	}
}

func TestPointInRingConcave(t *testing.T) {
	// L-shape: the notch at the top right is outside.
	l := orb.Ring{{0, 0}, {10, 0}, {10, 5}, {5, 5}, {5, 10}, {0, 10}, {0, 0}}

	assert.True(t, PointInRing(orb.Point{2, 2}, l))
	assert.True(t, PointInRing(orb.Point{8, 2}, l))
	assert.True(t, PointInRing(orb.Point{2, 8}, l))
	assert.False(t, PointInRing(orb.Point{8, 8}, l), "notch is outside")
}

func TestPointInRingDegenerate(t *testing.T) {
	assert.False(t, PointInRing(orb.Point{0, 0}, orb.Ring{}))
	assert.False(t, PointInRing(orb.Point{0, 0}, orb.Ring{{0, 0}, {1, 1}}))
}

func TestClosestPointOnSegment(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{10, 0}

	tests := []struct {
		name string
		p    orb.Point
		want orb.Point
	}{
		{"projects onto middle", orb.Point{5, 3}, orb.Point{5, 0}},
		{"clamps to start", orb.Point{-5, 3}, orb.Point{0, 0}},
		{"clamps to end", orb.Point{15, -2}, orb.Point{10, 0}},
		{"on segment", orb.Point{7, 0}, orb.Point{7, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClosestPointOnSegment(tt.p, a, b)
			assert.InDelta(t, tt.want[0], got[0], 1e-12)
			assert.InDelta(t, tt.want[1], got[1], 1e-12)
		})
	}
}

func TestClosestPointOnSegmentDegenerate(t *testing.T) {
	a := orb.Point{3, 4}
	got := ClosestPointOnSegment(orb.Point{10, 10}, a, a)
	assert.Equal(t, a, got)
}

func TestSegmentNormal(t *testing.T) {
	n := SegmentNormal(orb.Point{0, 0}, orb.Point{10, 0})
	assert.InDelta(t, 1.0, math.Hypot(n[0], n[1]), 1e-12, "unit length")
	assert.InDelta(t, 0.0, n[0], 1e-12)

	zero := SegmentNormal(orb.Point{1, 1}, orb.Point{1, 1})
	assert.Equal(t, orb.Point{}, zero)
}

func TestMetersPerDegree(t *testing.T) {
	latM, lngM := MetersPerDegree(0)
	assert.Equal(t, MetersPerDegreeLat, latM)
	assert.InDelta(t, MetersPerDegreeLat, lngM, 1e-6, "longitude scale equals latitude scale at the equator")

	_, lngM60 := MetersPerDegree(60)
	assert.InDelta(t, MetersPerDegreeLat/2, lngM60, 1.0, "cos(60°) = 0.5")
}

func TestOffsetRoundTrip(t *testing.T) {
	origin := orb.Point{13.4, 52.52} // Berlin
	moved := OffsetByMeters(origin, 100, -50)
	local := ToLocalMeters(origin, moved)

	assert.InDelta(t, 100, local[0], 0.01)
	assert.InDelta(t, -50, local[1], 0.01)
}

func TestDistanceMeters(t *testing.T) {
	a := orb.Point{13.4, 52.52}
	b := OffsetByMeters(a, 300, 400)
	assert.InDelta(t, 500, DistanceMeters(a, b), 0.5)
}
