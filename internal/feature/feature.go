// Package feature defines the read-only geospatial records the engine
// indexes: building footprints (polygons) and street furniture (points),
// decoded from GeoJSON.
package feature

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Property defaults applied when a feature omits the field.
const (
	DefaultHeightM       = 10.0
	DefaultBaseElevation = 0.0
)

// Feature is a single geospatial record. Geometry and properties are never
// mutated after decode; indexes hold references to the same Feature values.
type Feature struct {
	// ID is the upstream identifier, empty when the source had none.
	ID string

	Geometry   orb.Geometry
	Properties geojson.Properties

	// bound is computed once at decode time and encloses every part of a
	// multi-part geometry, holes included.
	bound orb.Bound

	// repr is the representative point used for grid bucketing: the
	// coordinate itself for points, the bound center for polygons.
	repr orb.Point
}

// Bound returns the feature's precomputed bounding box.
func (f *Feature) Bound() orb.Bound { return f.bound }

// RepresentativePoint returns the point used for cell assignment and
// coarse distance ordering.
func (f *Feature) RepresentativePoint() orb.Point { return f.repr }

// Height returns the feature's height in meters, falling back to
// DefaultHeightM when the property is missing or non-numeric.
func (f *Feature) Height() float64 {
	return f.floatProp("height", DefaultHeightM)
}

// BaseElevation returns the elevation of the feature's base in meters above
// sea level, defaulting to DefaultBaseElevation.
func (f *Feature) BaseElevation() float64 {
	return f.floatProp("elevation", DefaultBaseElevation)
}

// Top returns the elevation of the feature's top: base + height.
func (f *Feature) Top() float64 {
	return f.BaseElevation() + f.Height()
}

func (f *Feature) floatProp(key string, def float64) float64 {
	v, ok := f.Properties[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

// Polygons returns the feature's polygons: one for a Polygon geometry, all
// parts for a MultiPolygon, nil for anything else.
func (f *Feature) Polygons() []orb.Polygon {
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return g
	default:
		return nil
	}
}

// IsPoint reports whether the feature is a point record.
func (f *Feature) IsPoint() bool {
	_, ok := f.Geometry.(orb.Point)
	return ok
}

// Collection is an immutable set of features decoded from one source
// (a session load or a single tile).
type Collection struct {
	Features []*Feature
}

// Decode parses a GeoJSON FeatureCollection. Features with degenerate
// geometry (outer ring with fewer than 3 vertices, empty coordinates) are
// skipped here so query code never sees them.
func Decode(data []byte) (*Collection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding feature collection: %w", err)
	}

	out := make([]*Feature, 0, len(fc.Features))
	skipped := 0
	for _, gf := range fc.Features {
		f, ok := New(gf.Geometry, gf.Properties)
		if !ok {
			skipped++
			continue
		}
		if gf.ID != nil {
			f.ID = fmt.Sprint(gf.ID)
		}
		out = append(out, f)
	}
	if skipped > 0 {
		slog.Debug("skipped degenerate features", "count", skipped)
	}
	return &Collection{Features: out}, nil
}

// Merge concatenates collections into one. Feature values are shared, not
// copied.
func Merge(cols ...*Collection) *Collection {
	total := 0
	for _, c := range cols {
		total += len(c.Features)
	}
	merged := make([]*Feature, 0, total)
	for _, c := range cols {
		merged = append(merged, c.Features...)
	}
	return &Collection{Features: merged}
}

// New builds a Feature from a geometry and properties, computing the bound
// and representative point once. Returns false for unsupported or
// degenerate geometry.
func New(geom orb.Geometry, props geojson.Properties) (*Feature, bool) {
	if geom == nil {
		return nil, false
	}

	var repr orb.Point
	switch g := geom.(type) {
	case orb.Point:
		repr = g
	case orb.Polygon:
		if !validPolygon(g) {
			return nil, false
		}
		repr = g.Bound().Center()
	case orb.MultiPolygon:
		if len(g) == 0 {
			return nil, false
		}
		for _, part := range g {
			if !validPolygon(part) {
				return nil, false
			}
		}
		repr = g.Bound().Center()
	default:
		return nil, false
	}

	return &Feature{
		Geometry:   geom,
		Properties: props,
		bound:      geom.Bound(),
		repr:       repr,
	}, true
}

// validPolygon requires a closed-ish outer ring with at least 3 vertices.
// Holes are not validated; a bad hole degrades the exactness of the
// point-in-polygon test but cannot crash it.
func validPolygon(p orb.Polygon) bool {
	return len(p) > 0 && len(p[0]) >= 3
}
