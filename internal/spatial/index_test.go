package spatial

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityroam/cityroam/internal/feature"
	"github.com/cityroam/cityroam/internal/geo"
)

// buildingAt creates a square building of side meters centered on center.
func buildingAt(center orb.Point, side float64, props map[string]interface{}) *feature.Feature {
	h := side / 2
	corners := []orb.Point{
		geo.OffsetByMeters(center, -h, -h),
		geo.OffsetByMeters(center, h, -h),
		geo.OffsetByMeters(center, h, h),
		geo.OffsetByMeters(center, -h, h),
	}
	ring := orb.Ring{corners[0], corners[1], corners[2], corners[3], corners[0]}
	f, ok := feature.New(orb.Polygon{ring}, props)
	if !ok {
		panic("buildingAt: invalid geometry")
	}
	return f
}

func loadIndex(t *testing.T, features ...*feature.Feature) *Index {
	t.Helper()
	idx := NewIndex()
	idx.Load(&feature.Collection{Features: features})
	return idx
}

var origin = orb.Point{13.40, 52.52}

func TestCheckCollisionInside(t *testing.T) {
	idx := loadIndex(t, buildingAt(origin, 20, nil))

	res := idx.CheckCollision(origin, 0.5, nil)
	require.True(t, res.Collides, "point inside footprint must collide")
	require.NotNil(t, res.Normal)
	assert.InDelta(t, 1.0, math.Hypot(res.Normal[0], res.Normal[1]), 1e-9, "normal is unit length")
}

func TestCheckCollisionNearEdge(t *testing.T) {
	idx := loadIndex(t, buildingAt(origin, 20, nil))

	// Wall is 10 m east of center. Standing 10.3 m east with radius 0.5
	// leaves 0.3 m clearance: collision.
	pos := geo.OffsetByMeters(origin, 10.3, 0)
	res := idx.CheckCollision(pos, 0.5, nil)
	require.True(t, res.Collides)
	require.NotNil(t, res.Normal)
	// Push-out direction points east, away from the wall.
	assert.Greater(t, res.Normal[0], 0.9)

	// At the boundary d == r there is no collision; the rule is strict
	// (nudged by a micron to stay off the float knife edge).
	clear := idx.CheckCollision(geo.OffsetByMeters(origin, 10.5+1e-6, 0), 0.5, nil)
	assert.False(t, clear.Collides)

	far := idx.CheckCollision(geo.OffsetByMeters(origin, 12, 0), 0.5, nil)
	assert.False(t, far.Collides)
}

func TestCheckCollisionAltitudeFilter(t *testing.T) {
	idx := loadIndex(t, buildingAt(origin, 20, map[string]interface{}{"height": 30, "elevation": 0}))

	ground := &AltitudeRange{Min: 0, Max: 1.8}
	assert.True(t, idx.CheckCollision(origin, 0.5, ground).Collides)

	above := &AltitudeRange{Min: 35, Max: 36.8}
	assert.False(t, idx.CheckCollision(origin, 0.5, above).Collides,
		"flier above the roof passes over the footprint")

	touching := &AltitudeRange{Min: 30, Max: 31.8}
	assert.False(t, idx.CheckCollision(origin, 0.5, touching).Collides,
		"vertical extents touching at the roof do not collide")
}

func TestCheckCollisionNonPositiveRadius(t *testing.T) {
	idx := loadIndex(t, buildingAt(origin, 20, nil))

	assert.False(t, idx.CheckCollision(origin, 0, nil).Collides,
		"zero radius collides with nothing under the strict rule")
	assert.False(t, idx.CheckCollision(origin, -1, nil).Collides)
}

func TestCheckCollisionEmptyIndex(t *testing.T) {
	idx := NewIndex()
	res := idx.CheckCollision(origin, 0.5, nil)
	assert.False(t, res.Collides, "query on empty index is a no-op")
	assert.Equal(t, origin, res.Position)
}

func TestNearbyOrdering(t *testing.T) {
	near := buildingAt(geo.OffsetByMeters(origin, 30, 0), 10, nil)
	mid := buildingAt(geo.OffsetByMeters(origin, 0, 80), 10, nil)
	far := buildingAt(geo.OffsetByMeters(origin, -150, 0), 10, nil)
	out := buildingAt(geo.OffsetByMeters(origin, 900, 0), 10, nil)
	idx := loadIndex(t, far, out, near, mid)

	got := idx.Nearby(origin, 500, 0)
	require.Len(t, got, 3, "building at 900 m is outside the radius")

	var prev float64
	for _, f := range got {
		d := geo.DistanceMeters(origin, f.Bound().Center())
		assert.GreaterOrEqual(t, d, prev, "distances non-decreasing")
		prev = d
	}

	limited := idx.Nearby(origin, 500, 2)
	require.Len(t, limited, 2)
	assert.InDelta(t, 30, geo.DistanceMeters(origin, limited[0].Bound().Center()), 1.0)
	assert.InDelta(t, 80, geo.DistanceMeters(origin, limited[1].Bound().Center()), 1.0)
}

func TestNearbyEmptyIndex(t *testing.T) {
	assert.Nil(t, NewIndex().Nearby(origin, 100, 0))
}

func TestNearbyNonPositiveRadius(t *testing.T) {
	idx := loadIndex(t, buildingAt(origin, 20, nil))
	assert.Nil(t, idx.Nearby(origin, 0, 0))
	assert.Nil(t, idx.Nearby(origin, -5, 0))
}

func TestSlideVelocity(t *testing.T) {
	tests := []struct {
		name     string
		velocity orb.Point
		normal   orb.Point
	}{
		{"head-on into east wall", orb.Point{3, 0}, orb.Point{-1, 0}},
		{"diagonal into north wall", orb.Point{2, 2}, orb.Point{0, -1}},
		{"angled normal", orb.Point{1, -4}, geo.Normalize(orb.Point{1, 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slid := SlideVelocity(tt.velocity, tt.normal)
			assert.InDelta(t, 0, geo.Dot(slid, tt.normal), 1e-9,
				"result orthogonal to the normal")
		})
	}
}

func TestSlideVelocityPreservesTangent(t *testing.T) {
	// Moving diagonally into a wall facing west keeps the northward part.
	slid := SlideVelocity(orb.Point{3, 4}, orb.Point{-1, 0})
	assert.InDelta(t, 0, slid[0], 1e-9)
	assert.InDelta(t, 4, math.Abs(slid[1]), 1e-9)
}

func TestWalkIntoWallConverges(t *testing.T) {
	idx := loadIndex(t, buildingAt(origin, 20, nil))

	const (
		radius = 0.5
		dt     = 1.0 / 60.0
	)
	// Start 5 m east of the east wall, walking west at 3 m/s.
	pos := geo.OffsetByMeters(origin, 15, 0)
	vel := orb.Point{-3, 0}

	for i := 0; i < 300; i++ {
		next := geo.OffsetByMeters(pos, vel[0]*dt, vel[1]*dt)
		res := idx.CheckCollision(next, radius, nil)
		if !res.Collides {
			pos = next
			continue
		}
		slid := SlideVelocity(vel, *res.Normal)
		retry := geo.OffsetByMeters(pos, slid[0]*dt, slid[1]*dt)
		if !idx.CheckCollision(retry, radius, nil).Collides {
			pos = retry
		}
	}

	// Wall sits 10 m east of the building center.
	dist := geo.ToLocalMeters(origin, pos)[0] - 10
	assert.GreaterOrEqual(t, dist+1e-9, radius,
		"player never penetrates closer than the collision radius")
	assert.Less(t, dist, 1.0, "player converged to the wall")
}

func BenchmarkCheckCollision(b *testing.B) {
	features := make([]*feature.Feature, 0, 1000)
	for i := 0; i < 1000; i++ {
		east := float64(i%50)*40 - 1000
		north := float64(i/50)*40 - 400
		features = append(features, buildingAt(geo.OffsetByMeters(origin, east, north), 15, nil))
	}
	idx := NewIndex()
	idx.Load(&feature.Collection{Features: features})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.CheckCollision(origin, 0.5, nil)
	}
}
