// Package tile streams per-tile building files in and out around the
// player, bounding memory when the full dataset cannot be resident.
package tile

import (
	"encoding/json"
	"fmt"
	"math"
)

// Ref describes one tile in the index document.
type Ref struct {
	// File is the source-specific reference: a filename for FileSource,
	// reused as the row key for PGSource.
	File         string     `json:"file"`
	FeatureCount int        `json:"featureCount"`
	Bounds       [4]float64 `json:"bounds"` // minLng, minLat, maxLng, maxLat
}

// Index maps tile keys "x,y" to tile references. Loaded once per session.
type Index struct {
	// TileSizeDeg is the tile edge length in degrees.
	TileSizeDeg float64        `json:"tileSize"`
	Tiles       map[string]Ref `json:"tiles"`
}

// ParseIndex decodes the tile index document.
func ParseIndex(data []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decoding tile index: %w", err)
	}
	if idx.TileSizeDeg <= 0 {
		return nil, fmt.Errorf("tile index: tileSize must be positive, got %v", idx.TileSizeDeg)
	}
	return &idx, nil
}

// Key identifies a tile by its grid cell.
type Key struct {
	X int
	Y int
}

// String renders the key the way the index document spells it: "x,y".
func (k Key) String() string {
	return fmt.Sprintf("%d,%d", k.X, k.Y)
}

// KeyFor returns the tile containing the coordinate.
func (ix *Index) KeyFor(lng, lat float64) Key {
	return Key{
		X: int(math.Floor(lng / ix.TileSizeDeg)),
		Y: int(math.Floor(lat / ix.TileSizeDeg)),
	}
}
