// Package config loads the engine configuration from YAML with sensible
// defaults for every field.
package config

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// Engine holds all configuration for the walkthrough engine.
type Engine struct {
	LogLevel string `yaml:"log_level"`

	// Start pose
	StartLng      float64 `yaml:"start_lng"`
	StartLat      float64 `yaml:"start_lat"`
	StartAltitude float64 `yaml:"start_altitude"`
	StartBearing  float64 `yaml:"start_bearing"`

	// Frame loop
	TickHz             float64 `yaml:"tick_hz"`
	TileUpdateInterval int     `yaml:"tile_update_interval_ms"`

	// Player
	CollisionRadius  float64 `yaml:"collision_radius"` // meters
	BodyHeight       float64 `yaml:"body_height"`      // meters
	EyeHeight        float64 `yaml:"eye_height"`       // meters
	WalkSpeed        float64 `yaml:"walk_speed"`       // m/s
	RunMultiplier    float64 `yaml:"run_multiplier"`
	ClimbSpeed       float64 `yaml:"climb_speed"`       // m/s
	MouseSensitivity float64 `yaml:"mouse_sensitivity"` // degrees per pixel
	PitchMin         float64 `yaml:"pitch_min"`
	PitchMax         float64 `yaml:"pitch_max"`

	// Altitude policy
	MaxAltitude      float64 `yaml:"max_altitude"` // meters ASL
	AltitudeScale    float64 `yaml:"altitude_scale"`
	MaxSpeedMult     float64 `yaml:"max_speed_multiplier"`
	SmoothFactor     float64 `yaml:"smooth_factor"`
	TerrainTolerance float64 `yaml:"terrain_tolerance"` // meters

	// Proximity grid
	ChunkCellSize float64 `yaml:"chunk_cell_size"` // meters

	// Tile streaming
	TileDir      string `yaml:"tile_dir"`
	TileIndex    string `yaml:"tile_index"`
	LoadRadius   int    `yaml:"load_radius"`   // tiles
	UnloadRadius int    `yaml:"unload_radius"` // tiles
	// TileSource selects "file" or "postgres".
	TileSource string `yaml:"tile_source"`
	// FetchRateLimit caps tile fetches per second; 0 disables the limiter.
	FetchRateLimit float64 `yaml:"fetch_rate_limit"`

	// Heightmap
	Heightmap Heightmap `yaml:"heightmap"`

	// Database, used when tile_source is "postgres".
	Database DatabaseConfig `yaml:"database"`
}

// Heightmap describes the terrain raster and its geographic placement.
type Heightmap struct {
	Path         string  `yaml:"path"`
	MinLng       float64 `yaml:"min_lng"`
	MinLat       float64 `yaml:"min_lat"`
	MaxLng       float64 `yaml:"max_lng"`
	MaxLat       float64 `yaml:"max_lat"`
	MinElevation float64 `yaml:"min_elevation"`
	MaxElevation float64 `yaml:"max_elevation"`
	DefaultElev  float64 `yaml:"default_elevation"`
}

// Bounds returns the heightmap's geographic rectangle.
func (h Heightmap) Bounds() orb.Bound {
	return orb.Bound{
		Min: orb.Point{h.MinLng, h.MinLat},
		Max: orb.Point{h.MaxLng, h.MaxLat},
	}
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultEngine returns an Engine config with sensible defaults, centered
// on Berlin Mitte.
func DefaultEngine() Engine {
	return Engine{
		LogLevel:           "info",
		StartLng:           13.404954,
		StartLat:           52.520008,
		StartAltitude:      36.0,
		TickHz:             60,
		TileUpdateInterval: 250,

		CollisionRadius:  0.5,
		BodyHeight:       1.8,
		EyeHeight:        1.7,
		WalkSpeed:        3.0,
		RunMultiplier:    2.5,
		ClimbSpeed:       8.0,
		MouseSensitivity: 0.1,
		PitchMin:         -85,
		PitchMax:         85,

		MaxAltitude:      1500,
		AltitudeScale:    100,
		MaxSpeedMult:     20,
		SmoothFactor:     0.85,
		TerrainTolerance: 0.5,

		ChunkCellSize: 100,

		TileDir:      "data/tiles",
		TileIndex:    "data/tiles/index.json",
		LoadRadius:   2,
		UnloadRadius: 4,
		TileSource:   "file",

		Heightmap: Heightmap{
			Path:         "data/heightmap.png",
			MinLng:       13.2,
			MinLat:       52.4,
			MaxLng:       13.6,
			MaxLat:       52.65,
			MinElevation: 20,
			MaxElevation: 120,
			DefaultElev:  34,
		},

		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "cityroam",
			Password: "cityroam",
			DBName:   "cityroam",
			SSLMode:  "disable",
		},
	}
}

// LoadEngine loads engine config from a YAML file. A missing file returns
// defaults.
func LoadEngine(path string) (Engine, error) {
	cfg := DefaultEngine()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.UnloadRadius < cfg.LoadRadius {
		return cfg, fmt.Errorf("config %s: unload_radius (%d) must be >= load_radius (%d)",
			path, cfg.UnloadRadius, cfg.LoadRadius)
	}

	return cfg, nil
}
