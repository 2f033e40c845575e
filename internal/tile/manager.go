package tile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cityroam/cityroam/internal/feature"
)

// Default load/unload radii in tiles. The unload radius is deliberately
// wider than the load radius: the gap is hysteresis that prevents
// load/unload thrashing when the player hovers at a tile boundary.
const (
	DefaultLoadRadius   = 2
	DefaultUnloadRadius = 4
)

// Stats is a snapshot of the manager's streaming state.
type Stats struct {
	LoadedTiles   int
	LoadingTiles  int
	TotalFeatures int
}

type loadedTile struct {
	col      *feature.Collection
	loadedAt time.Time
}

// Manager progressively loads and unloads tiles around the player. Safe
// for concurrent use: the frame loop drives UpdateForPosition while other
// goroutines (stats logging) call Stats. Every request for a missing tile
// goes through a singleflight group, so however many times a tile is
// re-requested while its fetch is in flight, the source is hit once; a
// finished flight installs its collection under the lock, and the next
// UpdateForPosition reports the change.
type Manager struct {
	index        *Index
	source       Source
	loadRadius   int
	unloadRadius int

	mu      sync.Mutex
	loaded  map[Key]loadedTile
	loading map[Key]struct{}
	center  Key
	dirty   bool

	group singleflight.Group
}

// NewManager builds a manager over a parsed index. An unload radius below
// the load radius would make tiles thrash, so it is raised to match.
func NewManager(index *Index, source Source, loadRadius, unloadRadius int) *Manager {
	if loadRadius <= 0 {
		loadRadius = DefaultLoadRadius
	}
	if unloadRadius < loadRadius {
		slog.Warn("unload radius below load radius, raising",
			"load_radius", loadRadius, "unload_radius", unloadRadius)
		unloadRadius = loadRadius
	}
	return &Manager{
		index:        index,
		source:       source,
		loadRadius:   loadRadius,
		unloadRadius: unloadRadius,
		loaded:       map[Key]loadedTile{},
		loading:      map[Key]struct{}{},
	}
}

// UpdateForPosition starts fetches for indexed tiles within the load
// radius, evicts tiles outside the unload radius, and returns the union of
// all currently loaded tiles' features. changed is true when the returned
// set differs from the previous call's.
func (m *Manager) UpdateForPosition(ctx context.Context, lng, lat float64) (col *feature.Collection, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed = m.dirty
	m.dirty = false

	m.center = m.index.KeyFor(lng, lat)

	// Request every missing tile in the load radius. Re-requesting a tile
	// whose fetch is still in flight is cheap: the goroutine coalesces
	// onto the running flight and exits.
	for dx := -m.loadRadius; dx <= m.loadRadius; dx++ {
		for dy := -m.loadRadius; dy <= m.loadRadius; dy++ {
			key := Key{m.center.X + dx, m.center.Y + dy}
			ref, ok := m.index.Tiles[key.String()]
			if !ok {
				continue
			}
			if _, done := m.loaded[key]; done {
				continue
			}
			m.loading[key] = struct{}{}
			go m.fetch(ctx, key, ref)
		}
	}

	// Evict loaded tiles outside the unload radius. A stale in-flight
	// fetch is not cancelled; its result lands later and is evicted here
	// on a subsequent call, keeping the loaded set bounded regardless.
	for key, lt := range m.loaded {
		if abs(key.X-m.center.X) > m.unloadRadius || abs(key.Y-m.center.Y) > m.unloadRadius {
			delete(m.loaded, key)
			changed = true
			slog.Debug("tile unloaded", "key", key.String(), "features", len(lt.col.Features))
		}
	}

	return m.union(), changed
}

// fetch runs on its own goroutine. The singleflight group is the dedupe
// mechanism: concurrent requests for one key share a single flight, and
// the flight itself re-checks residency so a request that lands after the
// tile loaded (or after the player moved away) never hits the source.
func (m *Manager) fetch(ctx context.Context, key Key, ref Ref) {
	m.group.Do(key.String(), func() (interface{}, error) {
		m.mu.Lock()
		_, done := m.loaded[key]
		wanted := abs(key.X-m.center.X) <= m.unloadRadius && abs(key.Y-m.center.Y) <= m.unloadRadius
		m.mu.Unlock()
		if done || !wanted {
			m.mu.Lock()
			delete(m.loading, key)
			m.mu.Unlock()
			return nil, nil
		}

		col, err := m.source.FetchTile(ctx, ref.File)

		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.loading, key)
		if err != nil {
			// Left unloaded; the next update retries if still in radius.
			slog.Warn("tile load failed", "key", key.String(), "err", err)
			return nil, err
		}
		m.loaded[key] = loadedTile{col: col, loadedAt: time.Now()}
		m.dirty = true
		slog.Debug("tile loaded", "key", key.String(), "features", len(col.Features))
		return col, nil
	})
}

// union builds the merged feature set of all loaded tiles. Callers hold
// m.mu.
func (m *Manager) union() *feature.Collection {
	cols := make([]*feature.Collection, 0, len(m.loaded))
	for _, lt := range m.loaded {
		cols = append(cols, lt.col)
	}
	return feature.Merge(cols...)
}

// Stats returns the current streaming counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, lt := range m.loaded {
		total += len(lt.col.Features)
	}
	return Stats{
		LoadedTiles:   len(m.loaded),
		LoadingTiles:  len(m.loading),
		TotalFeatures: total,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
