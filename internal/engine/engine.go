// Package engine owns the per-frame control loop: input → mouse-look →
// velocity → horizontal integration → collision resolution → vertical
// policy → committed pose. The ordering is fixed; each stage consumes the
// previous stage's output.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/cityroam/cityroam/internal/altitude"
	"github.com/cityroam/cityroam/internal/feature"
	"github.com/cityroam/cityroam/internal/player"
	"github.com/cityroam/cityroam/internal/spatial"
	"github.com/cityroam/cityroam/internal/tile"
)

// Input is one frame's raw input.
type Input struct {
	Keyboard player.Keyboard
	Mouse    player.MouseDelta
}

// InputSource supplies the frame loop with input. The demo binary scripts
// one; a real frontend forwards device events.
type InputSource interface {
	Poll() Input
}

// Params are the engine's frame-loop tunables.
type Params struct {
	// CollisionRadiusM is the player's horizontal collision radius.
	CollisionRadiusM float64
	// BodyHeightM is the player's vertical extent, measured down from the
	// pose altitude (eye level).
	BodyHeightM float64
	// SmoothFactor eases terrain-follow altitude changes; near 1 is slow.
	SmoothFactor float64
	// TerrainToleranceM decides walking vs hovering.
	TerrainToleranceM float64
	// TickHz drives Run's frame clock.
	TickHz float64
	// TileInterval is how often Run refreshes tile streaming.
	TileInterval time.Duration
}

// Engine wires the subsystems together. Step and the streaming refresh run
// on one goroutine; the committed pose is published under a lock so other
// goroutines (stats logging) can observe it between frames.
type Engine struct {
	params   Params
	camera   player.Camera
	movement player.Movement

	index  *spatial.Index
	chunks *spatial.ChunkManager
	alt    *altitude.System
	tiles  *tile.Manager // nil when the whole dataset is resident

	mu   sync.RWMutex
	pose player.Pose
}

// New assembles an engine. tiles may be nil when streaming is disabled.
func New(params Params, camera player.Camera, movement player.Movement,
	index *spatial.Index, chunks *spatial.ChunkManager, alt *altitude.System,
	tiles *tile.Manager, start player.Pose) *Engine {
	return &Engine{
		params:   params,
		camera:   camera,
		movement: movement,
		index:    index,
		chunks:   chunks,
		alt:      alt,
		tiles:    tiles,
		pose:     start,
	}
}

// Pose returns the current player pose.
func (e *Engine) Pose() player.Pose {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pose
}

// SetPose overrides the pose, e.g. for teleports.
func (e *Engine) SetPose(p player.Pose) {
	e.mu.Lock()
	e.pose = p
	e.mu.Unlock()
}

// Step advances the simulation by dt seconds and returns the committed
// pose. No failure in any subsystem aborts the frame.
func (e *Engine) Step(in Input, dt float64) player.Pose {
	pose := e.camera.ApplyMouseLook(e.Pose(), in.Mouse)

	ground := e.alt.MinAltitude(pose.Position()) - e.alt.EyeHeightM
	velocity := e.movement.CalculateVelocity(in.Keyboard, pose.Bearing, pose.Altitude, ground)

	if velocity != (orb.Point{}) {
		pose = e.moveHorizontal(pose, velocity, dt)
	}

	pose = e.applyVerticalPolicy(pose, in.Keyboard, dt)

	e.SetPose(pose)
	return pose
}

// moveHorizontal attempts the full displacement; on collision it slides
// along the wall normal and re-tests once before giving up on the frame's
// horizontal motion.
func (e *Engine) moveHorizontal(pose player.Pose, velocity orb.Point, dt float64) player.Pose {
	body := e.bodyRange(pose.Altitude)

	candidate := e.camera.ApplyVelocity(pose, velocity, 0, dt)
	res := e.index.CheckCollision(candidate.Position(), e.params.CollisionRadiusM, &body)
	if !res.Collides {
		return candidate
	}

	slid := spatial.SlideVelocity(velocity, *res.Normal)
	retry := e.camera.ApplyVelocity(pose, slid, 0, dt)
	if !e.index.CheckCollision(retry.Position(), e.params.CollisionRadiusM, &body).Collides {
		return retry
	}

	// Both attempts blocked: keep the previous position for this frame.
	return pose
}

// applyVerticalPolicy is the three-way branch that makes walking feel
// grounded while still allowing free flight: vertical input flies,
// near-ground smooths to terrain, otherwise the altitude holds (hover).
func (e *Engine) applyVerticalPolicy(pose player.Pose, kb player.Keyboard, dt float64) player.Pose {
	pos := pose.Position()
	vz := e.movement.VerticalVelocity(kb)

	switch {
	case vz != 0:
		return pose.SetAltitude(e.alt.ApplyVerticalVelocity(pose.Altitude, vz, dt, pos))
	case e.alt.IsOnTerrain(pose.Altitude, pos, e.params.TerrainToleranceM):
		return pose.SetAltitude(e.alt.SmoothToTerrain(pose.Altitude, pos, e.params.SmoothFactor))
	default:
		// Hover: hold altitude, still bounded by terrain and ceiling.
		return pose.SetAltitude(e.alt.Clamp(pose.Altitude, pos))
	}
}

func (e *Engine) bodyRange(alt float64) spatial.AltitudeRange {
	return spatial.AltitudeRange{Min: alt - e.params.BodyHeightM, Max: alt}
}

// RefreshStreaming advances the tile manager for the current position and,
// when the loaded set changed, rebuilds the spatial indexes from the new
// union. Buildings feed the R-tree; point features feed the chunk grid.
func (e *Engine) RefreshStreaming(ctx context.Context) {
	if e.tiles == nil {
		return
	}

	pose := e.Pose()
	col, changed := e.tiles.UpdateForPosition(ctx, pose.Longitude, pose.Latitude)
	if !changed {
		return
	}

	points := &feature.Collection{}
	for _, f := range col.Features {
		if f.IsPoint() {
			points.Features = append(points.Features, f)
		}
	}

	e.index.Load(col)
	e.chunks.Load(points)

	stats := e.tiles.Stats()
	slog.Info("streaming state changed",
		"loaded_tiles", stats.LoadedTiles,
		"loading_tiles", stats.LoadingTiles,
		"features", stats.TotalFeatures)
}

// Run drives the frame loop from a wall-clock ticker until the context is
// cancelled. A slow frame simply yields a larger dt; there is no frame
// queuing or catch-up.
func (e *Engine) Run(ctx context.Context, input InputSource) error {
	tickHz := e.params.TickHz
	if tickHz <= 0 {
		tickHz = 60
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / tickHz))
	defer ticker.Stop()

	interval := e.params.TileInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	e.RefreshStreaming(ctx)
	last := time.Now()
	lastTiles := last

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			e.Step(input.Poll(), dt)

			if now.Sub(lastTiles) >= interval {
				e.RefreshStreaming(ctx)
				lastTiles = now
			}
		}
	}
}
