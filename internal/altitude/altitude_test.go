package altitude

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

// flatGround fakes terrain at a constant elevation.
type flatGround float64

func (g flatGround) ElevationOrDefault(orb.Point, float64) float64 { return float64(g) }

// noData always reports the caller's default.
type noData struct{}

func (noData) ElevationOrDefault(_ orb.Point, def float64) float64 { return def }

var pos = orb.Point{13.4, 52.52}

func TestMinAltitude(t *testing.T) {
	s := NewSystem(flatGround(34), 1.8, 500, 0)
	assert.Equal(t, 35.8, s.MinAltitude(pos))
}

func TestMinAltitudeNoTerrainData(t *testing.T) {
	s := NewSystem(noData{}, 1.8, 500, 12)
	assert.Equal(t, 13.8, s.MinAltitude(pos), "default ground plus eye height")
}

func TestClamp(t *testing.T) {
	s := NewSystem(flatGround(10), 1.8, 500, 0)

	tests := []struct {
		name string
		alt  float64
		want float64
	}{
		{"below ground", -1000, 11.8},
		{"at minimum", 11.8, 11.8},
		{"in range", 120, 120},
		{"above ceiling", 1e9, 500},
		{"negative infinity-ish", -math.MaxFloat64, 11.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Clamp(tt.alt, pos))
		})
	}
}

func TestApplyVerticalVelocity(t *testing.T) {
	s := NewSystem(flatGround(0), 1.8, 500, 0)

	alt := s.ApplyVerticalVelocity(100, 10, 0.5, pos)
	assert.Equal(t, 105.0, alt)

	// Descending into the ground clamps at min altitude.
	alt = s.ApplyVerticalVelocity(2, -50, 1, pos)
	assert.Equal(t, 1.8, alt)

	// Climbing past the ceiling clamps at max.
	alt = s.ApplyVerticalVelocity(499, 100, 1, pos)
	assert.Equal(t, 500.0, alt)
}

func TestSmoothToTerrain(t *testing.T) {
	s := NewSystem(flatGround(0), 2, 500, 0)

	// smoothFactor 0 snaps instantly.
	assert.Equal(t, 2.0, s.SmoothToTerrain(50, pos, 0))

	// smoothFactor 0.9 moves 10% of the way per call.
	alt := s.SmoothToTerrain(12, pos, 0.9)
	assert.InDelta(t, 11.0, alt, 1e-9)

	// Repeated smoothing converges to the terrain-follow altitude.
	alt = 100
	for i := 0; i < 500; i++ {
		alt = s.SmoothToTerrain(alt, pos, 0.9)
	}
	assert.InDelta(t, 2.0, alt, 1e-3)

	// Out-of-range factors are clamped rather than overshooting.
	assert.Equal(t, 2.0, s.SmoothToTerrain(50, pos, -1))
	assert.Equal(t, 50.0, s.SmoothToTerrain(50, pos, 2))
}

func TestIsOnTerrain(t *testing.T) {
	s := NewSystem(flatGround(30), 1.8, 500, 0)

	assert.True(t, s.IsOnTerrain(31.8, pos, 0.1))
	assert.True(t, s.IsOnTerrain(32.2, pos, 0.5))
	assert.False(t, s.IsOnTerrain(35, pos, 0.5))
	assert.True(t, s.IsOnTerrain(31.3, pos, 0.5), "tolerance applies below as well")
}
