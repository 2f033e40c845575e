// Package player converts raw frame input (keyboard, mouse, dt) into pose
// changes. Everything here is pure: the pose flows by value through each
// stage so no reader observes a half-updated pose mid-frame.
package player

import (
	"math"

	"github.com/paulmach/orb"
)

// Keyboard is the boolean input state for one frame.
type Keyboard struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
	Up       bool
	Down     bool
	Run      bool
}

// MouseDelta is the pointer movement for one frame, in pixels.
type MouseDelta struct {
	X float64
	Y float64
}

// Movement turns keyboard intent plus bearing into a world-space velocity.
type Movement struct {
	// WalkSpeedM is the base speed in m/s; Run multiplies it.
	WalkSpeedM    float64
	RunMultiplier float64
	// ClimbSpeedM is the vertical speed while flying, m/s.
	ClimbSpeedM float64
	// AltitudeScaleM controls the height speed bonus: the multiplier grows
	// by 1 per AltitudeScaleM meters above ground, capped at
	// MaxAltitudeMultiplier. Fast traversal when flying high.
	AltitudeScaleM        float64
	MaxAltitudeMultiplier float64
}

// CalculateVelocity combines WASD axes into a bearing-rotated world-space
// velocity (east, north) in m/s. Returns the zero vector when no movement
// key is held.
func (m Movement) CalculateVelocity(kb Keyboard, bearingDeg, altitude, groundElevation float64) orb.Point {
	var right, forward float64
	if kb.Forward {
		forward++
	}
	if kb.Backward {
		forward--
	}
	if kb.Right {
		right++
	}
	if kb.Left {
		right--
	}
	if right == 0 && forward == 0 {
		return orb.Point{}
	}

	// Diagonal movement is normalized so it is not faster than straight.
	length := math.Hypot(right, forward)
	right /= length
	forward /= length

	speed := m.WalkSpeedM
	if kb.Run {
		speed *= m.RunMultiplier
	}
	speed *= m.altitudeMultiplier(altitude, groundElevation)

	// Bearing: 0 = north, 90 = east.
	rad := bearingDeg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	east := (right*cos + forward*sin) * speed
	north := (forward*cos - right*sin) * speed
	return orb.Point{east, north}
}

// VerticalVelocity returns the climb rate for the frame's up/down input,
// m/s. Zero when neither or both keys are held.
func (m Movement) VerticalVelocity(kb Keyboard) float64 {
	var v float64
	if kb.Up {
		v += m.ClimbSpeedM
	}
	if kb.Down {
		v -= m.ClimbSpeedM
	}
	return v
}

func (m Movement) altitudeMultiplier(altitude, groundElevation float64) float64 {
	if m.AltitudeScaleM <= 0 {
		return 1
	}
	mult := 1 + (altitude-groundElevation)/m.AltitudeScaleM
	if mult < 1 {
		return 1
	}
	if m.MaxAltitudeMultiplier > 0 && mult > m.MaxAltitudeMultiplier {
		return m.MaxAltitudeMultiplier
	}
	return mult
}
