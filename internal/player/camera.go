package player

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/cityroam/cityroam/internal/geo"
)

// Pose is the external-facing player state, passed by value through each
// frame stage and never aliased.
type Pose struct {
	Longitude float64
	Latitude  float64
	// Altitude in meters above sea level.
	Altitude float64
	// Bearing in degrees, 0 = north, wrapped to [0, 360).
	Bearing float64
	// Pitch in degrees, clamped to the camera's limits.
	Pitch float64
}

// Position returns the pose's horizontal coordinate.
func (p Pose) Position() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// SetPosition returns a copy with the horizontal coordinate replaced. Used
// by collision resolution to override the integrated position.
func (p Pose) SetPosition(pt orb.Point) Pose {
	p.Longitude = pt[0]
	p.Latitude = pt[1]
	return p
}

// SetAltitude returns a copy with the altitude replaced. Used by the
// terrain policy to override the integrated altitude.
func (p Pose) SetAltitude(alt float64) Pose {
	p.Altitude = alt
	return p
}

// Camera applies mouse-look and velocity integration to a pose. Pure: it
// holds tuning only, no per-frame state.
type Camera struct {
	// SensitivityDeg is degrees of rotation per pixel of mouse movement.
	SensitivityDeg float64
	PitchMinDeg    float64
	PitchMaxDeg    float64
}

// ApplyMouseLook scales the mouse delta by sensitivity, adds it to bearing
// (wrapped) and pitch (clamped).
func (c Camera) ApplyMouseLook(p Pose, delta MouseDelta) Pose {
	p.Bearing = wrapBearing(p.Bearing + delta.X*c.SensitivityDeg)

	pitch := p.Pitch + delta.Y*c.SensitivityDeg
	if pitch < c.PitchMinDeg {
		pitch = c.PitchMinDeg
	} else if pitch > c.PitchMaxDeg {
		pitch = c.PitchMaxDeg
	}
	p.Pitch = pitch
	return p
}

// ApplyVelocity integrates a horizontal velocity (east, north m/s) and a
// vertical velocity (m/s) over dt seconds, converting meters to degrees
// with the flat-earth factors at the pose's latitude.
func (c Camera) ApplyVelocity(p Pose, velocity orb.Point, vz, dt float64) Pose {
	moved := geo.OffsetByMeters(p.Position(), velocity[0]*dt, velocity[1]*dt)
	p.Longitude = moved[0]
	p.Latitude = moved[1]
	p.Altitude += vz * dt
	return p
}

func wrapBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
