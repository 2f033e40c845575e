// Package altitude is the single source of truth for vertical limits and
// transitions, decoupled from horizontal collision.
package altitude

import (
	"github.com/paulmach/orb"
)

// TerrainSource supplies ground elevation. Satisfied by terrain.Sampler.
type TerrainSource interface {
	ElevationOrDefault(p orb.Point, def float64) float64
}

// System computes allowed altitudes and smooths vertical transitions
// between terrain-follow and free flight.
type System struct {
	terrain TerrainSource

	// EyeHeightM is the offset of the player's eyes above the ground.
	EyeHeightM float64
	// MaxAltitudeM is the flight ceiling in meters above sea level.
	MaxAltitudeM float64
	// DefaultGroundM is assumed where the terrain has no data.
	DefaultGroundM float64
}

// NewSystem wires a System to a terrain source.
func NewSystem(terrain TerrainSource, eyeHeightM, maxAltitudeM, defaultGroundM float64) *System {
	return &System{
		terrain:        terrain,
		EyeHeightM:     eyeHeightM,
		MaxAltitudeM:   maxAltitudeM,
		DefaultGroundM: defaultGroundM,
	}
}

// MinAltitude returns the lowest allowed altitude at pos: ground plus eye
// height.
func (s *System) MinAltitude(pos orb.Point) float64 {
	return s.terrain.ElevationOrDefault(pos, s.DefaultGroundM) + s.EyeHeightM
}

// MaxAltitude returns the configured ceiling.
func (s *System) MaxAltitude() float64 { return s.MaxAltitudeM }

// Clamp bounds alt between MinAltitude(pos) and the ceiling.
func (s *System) Clamp(alt float64, pos orb.Point) float64 {
	if min := s.MinAltitude(pos); alt < min {
		return min
	}
	if alt > s.MaxAltitudeM {
		return s.MaxAltitudeM
	}
	return alt
}

// ApplyVerticalVelocity integrates vz over dt and clamps. Used while
// flying.
func (s *System) ApplyVerticalVelocity(alt, vz, dt float64, pos orb.Point) float64 {
	return s.Clamp(alt+vz*dt, pos)
}

// SmoothToTerrain eases alt toward the terrain-follow altitude with
// interpolation factor t = 1 − smoothFactor: a factor near 1 eases slowly,
// 0 snaps instantly. Avoids altitude popping across terrain
// discontinuities.
func (s *System) SmoothToTerrain(alt float64, pos orb.Point, smoothFactor float64) float64 {
	target := s.MinAltitude(pos)
	t := 1 - smoothFactor
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return alt + (target-alt)*t
}

// IsOnTerrain reports whether alt is within tolerance of the
// terrain-follow altitude at pos.
func (s *System) IsOnTerrain(alt float64, pos orb.Point, tolerance float64) bool {
	diff := alt - s.MinAltitude(pos)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
