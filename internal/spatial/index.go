// Package spatial provides the two query structures of the engine: an
// R-tree over building footprints for exact collision, and a grid partition
// over point features for cheap proximity queries.
package spatial

import (
	"log/slog"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/cityroam/cityroam/internal/feature"
	"github.com/cityroam/cityroam/internal/geo"
)

// rtree node fan-out. Bulk load is O(n log n) and happens once per
// feature-set version.
const (
	treeMinChildren = 25
	treeMaxChildren = 50

	// minRectExtent pads degenerate bounding boxes so rtreego accepts them.
	minRectExtent = 1e-9
)

// AltitudeRange is the vertical extent of the player's body, compared
// against a building's [base, base+height] extent.
type AltitudeRange struct {
	Min float64
	Max float64
}

// overlaps reports whether the range intersects the building's vertical
// extent. Touching at exactly roof or base height does not collide, so a
// flier skimming a roof passes over it.
func (r AltitudeRange) overlaps(f *feature.Feature) bool {
	return r.Min < f.Top() && r.Max > f.BaseElevation()
}

// CollisionResult is recomputed on every query. Normal, when present, is a
// unit vector in east/north meters pointing out of the obstacle.
type CollisionResult struct {
	Collides bool
	Position orb.Point
	Normal   *orb.Point
	Feature  *feature.Feature
}

type indexEntry struct {
	f    *feature.Feature
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *indexEntry) Bounds() rtreego.Rect { return e.rect }

// Index is a bulk-loaded bounding-box tree over building polygons.
// Immutable after Load; a changed feature set requires a full reload.
// Queries against an empty index return "no collision" / empty results.
type Index struct {
	tree  *rtreego.Rtree
	count int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Load replaces the index contents with the polygonal features of the
// collection. Point features are ignored here; they belong to the
// ChunkManager. Degenerate geometry was already dropped at decode time.
func (x *Index) Load(col *feature.Collection) {
	entries := make([]rtreego.Spatial, 0, len(col.Features))
	for _, f := range col.Features {
		if f.IsPoint() {
			continue
		}
		entries = append(entries, &indexEntry{f: f, rect: boundToRect(f.Bound())})
	}

	x.tree = rtreego.NewTree(2, treeMinChildren, treeMaxChildren, entries...)
	x.count = len(entries)
	slog.Debug("spatial index loaded", "buildings", x.count)
}

// Size returns the number of indexed buildings.
func (x *Index) Size() int { return x.count }

func boundToRect(b orb.Bound) rtreego.Rect {
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < minRectExtent {
		w = minRectExtent
	}
	if h < minRectExtent {
		h = minRectExtent
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
	return rect
}

// searchRect builds the degree-space query box for a circle of radiusM
// meters around pos.
func searchRect(pos orb.Point, radiusM float64) rtreego.Rect {
	latM, lngM := geo.MetersPerDegree(pos[1])
	dLng := radiusM / lngM
	dLat := radiusM / latM
	rect, _ := rtreego.NewRect(
		rtreego.Point{pos[0] - dLng, pos[1] - dLat},
		[]float64{2 * dLng, 2 * dLat},
	)
	return rect
}

// CheckCollision tests a circle of radiusM meters at pos against the
// indexed buildings. When altRange is non-nil, buildings whose vertical
// extent does not overlap it are skipped. The first colliding candidate in
// tree-iteration order wins; residual penetration is resolved over
// subsequent frames. A non-positive radius collides with nothing, per the
// strict d < r rule.
func (x *Index) CheckCollision(pos orb.Point, radiusM float64, altRange *AltitudeRange) CollisionResult {
	res := CollisionResult{Position: pos}
	if x.tree == nil || x.count == 0 || radiusM <= 0 {
		return res
	}

	for _, hit := range x.tree.SearchIntersect(searchRect(pos, radiusM)) {
		e := hit.(*indexEntry)
		if altRange != nil && !altRange.overlaps(e.f) {
			continue
		}
		for _, poly := range e.f.Polygons() {
			if normal, ok := collidePolygon(pos, radiusM, poly); ok {
				res.Collides = true
				res.Normal = &normal
				res.Feature = e.f
				return res
			}
		}
	}
	return res
}

// collidePolygon runs the exact tests in local meters around pos: a ray
// cast against the outer ring, then circle-vs-edge distance on every ring.
// Boundary rule: an edge collides iff its distance is strictly below
// radiusM.
func collidePolygon(pos orb.Point, radiusM float64, poly orb.Polygon) (orb.Point, bool) {
	outer := toLocalRing(pos, poly[0])
	center := orb.Point{}

	if geo.PointInRing(center, outer) {
		// Inside the footprint: certain collision, push out through the
		// closest outer edge.
		cp, a, b := closestEdgePoint(center, outer)
		normal := geo.Normalize(cp)
		if normal == (orb.Point{}) {
			normal = geo.SegmentNormal(a, b)
		}
		return normal, true
	}

	best := math.Inf(1)
	var bestNormal orb.Point
	for _, ring := range poly {
		local := toLocalRing(pos, ring)
		for i := 0; i+1 < len(local); i++ {
			cp := geo.ClosestPointOnSegment(center, local[i], local[i+1])
			d := math.Hypot(cp[0], cp[1])
			if d < radiusM && d < best {
				best = d
				if d == 0 {
					bestNormal = geo.SegmentNormal(local[i], local[i+1])
				} else {
					// Direction from the closest edge point to the center.
					bestNormal = orb.Point{-cp[0] / d, -cp[1] / d}
				}
			}
		}
	}
	if math.IsInf(best, 1) {
		return orb.Point{}, false
	}
	return bestNormal, true
}

// toLocalRing converts ring vertices to east/north meters relative to pos.
// Rings from the decoder are closed (first == last vertex).
func toLocalRing(pos orb.Point, ring orb.Ring) []orb.Point {
	latM, lngM := geo.MetersPerDegree(pos[1])
	local := make([]orb.Point, len(ring))
	for i, v := range ring {
		local[i] = orb.Point{(v[0] - pos[0]) * lngM, (v[1] - pos[1]) * latM}
	}
	return local
}

// closestEdgePoint returns the closest point on the ring's edges to p,
// along with the edge that produced it.
func closestEdgePoint(p orb.Point, ring []orb.Point) (cp, a, b orb.Point) {
	best := math.Inf(1)
	for i := 0; i+1 < len(ring); i++ {
		c := geo.ClosestPointOnSegment(p, ring[i], ring[i+1])
		d := math.Hypot(c[0]-p[0], c[1]-p[1])
		if d < best {
			best = d
			cp, a, b = c, ring[i], ring[i+1]
		}
	}
	return cp, a, b
}

// Nearby returns the buildings whose bounding-box center lies within
// radiusM meters of pos, sorted ascending by that distance. A coarse
// ordering only: bound-center distance, not true polygon distance. limit
// <= 0 means no truncation; a non-positive radius matches nothing.
func (x *Index) Nearby(pos orb.Point, radiusM float64, limit int) []*feature.Feature {
	if x.tree == nil || x.count == 0 || radiusM <= 0 {
		return nil
	}

	type scored struct {
		f *feature.Feature
		d float64
	}
	var candidates []scored
	for _, hit := range x.tree.SearchIntersect(searchRect(pos, radiusM)) {
		e := hit.(*indexEntry)
		d := geo.DistanceMeters(pos, e.f.Bound().Center())
		if d <= radiusM {
			candidates = append(candidates, scored{e.f, d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].d < candidates[j].d })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]*feature.Feature, len(candidates))
	for i, c := range candidates {
		out[i] = c.f
	}
	return out
}

// SlideVelocity projects velocity (east/north m/s) onto the tangent of a
// unit collision normal, removing the into-wall component so motion
// continues parallel to the face.
func SlideVelocity(velocity, normal orb.Point) orb.Point {
	tangent := orb.Point{-normal[1], normal[0]}
	along := geo.Dot(velocity, tangent)
	return orb.Point{tangent[0] * along, tangent[1] * along}
}
