package spatial

import (
	"log/slog"
	"math"

	"github.com/paulmach/orb"

	"github.com/cityroam/cityroam/internal/feature"
	"github.com/cityroam/cityroam/internal/geo"
)

type cellKey struct {
	X int
	Y int
}

// ChunkManager partitions point features into a fixed-size degree grid for
// O(k) radius queries. Cell membership is fixed at load time; a moved
// feature is not re-bucketed without a fresh Load.
type ChunkManager struct {
	cellSizeM  float64
	cellLngDeg float64
	cellLatDeg float64
	cells      map[cellKey][]*feature.Feature
	count      int

	// Position-snapped memo: a repeat query within half a cell width of the
	// cached position with an equal radius returns the cached slice
	// unchanged, absorbing small player jitter.
	lastPos    orb.Point
	lastRadius float64
	lastResult []*feature.Feature
	hasCache   bool
}

// NewChunkManager builds an empty grid. cellSizeM is the cell edge in
// meters; originLat fixes the meters-to-degrees conversion for the whole
// grid (flat-earth, city scale).
func NewChunkManager(cellSizeM, originLat float64) *ChunkManager {
	latM, lngM := geo.MetersPerDegree(originLat)
	return &ChunkManager{
		cellSizeM:  cellSizeM,
		cellLngDeg: cellSizeM / lngM,
		cellLatDeg: cellSizeM / latM,
		cells:      map[cellKey][]*feature.Feature{},
	}
}

func (m *ChunkManager) keyFor(p orb.Point) cellKey {
	return cellKey{
		X: int(math.Floor(p[0] / m.cellLngDeg)),
		Y: int(math.Floor(p[1] / m.cellLatDeg)),
	}
}

// Load replaces the grid contents, bucketing every feature by its
// representative point. One feature lands in exactly one cell.
func (m *ChunkManager) Load(col *feature.Collection) {
	cells := make(map[cellKey][]*feature.Feature, len(col.Features)/4+1)
	for _, f := range col.Features {
		k := m.keyFor(f.RepresentativePoint())
		cells[k] = append(cells[k], f)
	}
	m.cells = cells
	m.count = len(col.Features)
	m.hasCache = false
	slog.Debug("chunk grid loaded", "features", m.count, "cells", len(cells))
}

// Size returns the number of bucketed features.
func (m *ChunkManager) Size() int { return m.count }

// QueryRadius returns the features within radiusM meters of (lng, lat),
// unsorted. Only the cells covering a square of side 2×radius are visited;
// each candidate is exact-filtered by flat-earth distance.
func (m *ChunkManager) QueryRadius(lng, lat, radiusM float64) []*feature.Feature {
	pos := orb.Point{lng, lat}

	if m.hasCache && radiusM == m.lastRadius &&
		geo.DistanceMeters(pos, m.lastPos) <= m.cellSizeM/2 {
		return m.lastResult
	}

	minKey := m.keyFor(geo.OffsetByMeters(pos, -radiusM, -radiusM))
	maxKey := m.keyFor(geo.OffsetByMeters(pos, radiusM, radiusM))

	var result []*feature.Feature
	for cx := minKey.X; cx <= maxKey.X; cx++ {
		for cy := minKey.Y; cy <= maxKey.Y; cy++ {
			for _, f := range m.cells[cellKey{cx, cy}] {
				if geo.DistanceMeters(pos, f.RepresentativePoint()) <= radiusM {
					result = append(result, f)
				}
			}
		}
	}

	m.lastPos = pos
	m.lastRadius = radiusM
	m.lastResult = result
	m.hasCache = true
	return result
}
