// Package geo holds the pure planar geometry and the flat-earth
// meters/degrees conversion used by every other package. The conversion is
// defined here exactly once so collision, chunking and movement all agree on
// what a meter is.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// MetersPerDegreeLat is the length of one degree of latitude in meters.
// Treated as constant at city scale.
const MetersPerDegreeLat = 111320.0

// MetersPerDegree returns the flat-earth scale factors (meters per degree of
// latitude, meters per degree of longitude) at the given latitude.
func MetersPerDegree(lat float64) (latM, lngM float64) {
	return MetersPerDegreeLat, MetersPerDegreeLat * math.Cos(lat*math.Pi/180)
}

// ToLocalMeters converts a geographic point to east/north meters relative to
// origin, using the scale factors at the origin's latitude.
func ToLocalMeters(origin, p orb.Point) orb.Point {
	latM, lngM := MetersPerDegree(origin[1])
	return orb.Point{(p[0] - origin[0]) * lngM, (p[1] - origin[1]) * latM}
}

// OffsetByMeters moves a geographic point by (east, north) meters.
func OffsetByMeters(p orb.Point, east, north float64) orb.Point {
	latM, lngM := MetersPerDegree(p[1])
	return orb.Point{p[0] + east/lngM, p[1] + north/latM}
}

// DistanceMeters returns the flat-earth distance between two geographic
// points in meters.
func DistanceMeters(a, b orb.Point) float64 {
	d := ToLocalMeters(a, b)
	return math.Hypot(d[0], d[1])
}

// PointInRing reports whether p lies inside the ring using a ray cast
// against each edge. Points exactly on an edge may land on either side;
// callers needing a strict boundary rule handle it with the edge-distance
// test instead.
func PointInRing(p orb.Point, ring orb.Ring) bool {
	inside := false
	n := len(ring)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > p[1]) != (yj > p[1]) &&
			p[0] < (xj-xi)*(p[1]-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// ClosestPointOnSegment returns the point on segment [a,b] closest to p.
// Works in any planar coordinate space.
func ClosestPointOnSegment(p, a, b orb.Point) orb.Point {
	abx, aby := b[0]-a[0], b[1]-a[1]
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return a
	}
	t := ((p[0]-a[0])*abx + (p[1]-a[1])*aby) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return orb.Point{a[0] + t*abx, a[1] + t*aby}
}

// SegmentNormal returns a unit vector perpendicular to segment [a,b].
// Zero-length segments yield the zero vector.
func SegmentNormal(a, b orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return orb.Point{}
	}
	return orb.Point{-dy / length, dx / length}
}

// Normalize returns v scaled to unit length, or the zero vector.
func Normalize(v orb.Point) orb.Point {
	length := math.Hypot(v[0], v[1])
	if length == 0 {
		return orb.Point{}
	}
	return orb.Point{v[0] / length, v[1] / length}
}

// Dot returns the planar dot product.
func Dot(a, b orb.Point) float64 {
	return a[0]*b[0] + a[1]*b[1]
}
