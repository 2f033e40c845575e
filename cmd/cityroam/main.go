package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cityroam/cityroam/internal/altitude"
	"github.com/cityroam/cityroam/internal/config"
	"github.com/cityroam/cityroam/internal/db"
	"github.com/cityroam/cityroam/internal/engine"
	"github.com/cityroam/cityroam/internal/player"
	"github.com/cityroam/cityroam/internal/spatial"
	"github.com/cityroam/cityroam/internal/terrain"
	"github.com/cityroam/cityroam/internal/tile"
)

const DefaultConfigPath = "config/engine.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil && err != context.Canceled {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// .env overrides are optional; a missing file is fine.
	_ = godotenv.Load()

	cfgPath := DefaultConfigPath
	if p := os.Getenv("CITYROAM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadEngine(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("cityroam starting", "log_level", cfg.LogLevel,
		"start_lng", cfg.StartLng, "start_lat", cfg.StartLat)

	// Terrain: a failed heightmap load degrades to flat ground at the
	// default elevation rather than blocking interaction.
	sampler := terrain.NewSampler(terrain.Config{
		Bounds:           cfg.Heightmap.Bounds(),
		MinElevation:     cfg.Heightmap.MinElevation,
		MaxElevation:     cfg.Heightmap.MaxElevation,
		DefaultElevation: cfg.Heightmap.DefaultElev,
	})
	if f, err := os.Open(cfg.Heightmap.Path); err != nil {
		slog.Warn("heightmap unavailable, using flat ground", "path", cfg.Heightmap.Path, "err", err)
	} else {
		if err := sampler.Load(f); err != nil {
			slog.Warn("heightmap decode failed, using flat ground", "path", cfg.Heightmap.Path, "err", err)
		}
		f.Close()
	}

	tiles, database, err := buildTileManager(ctx, cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	index := spatial.NewIndex()
	chunks := spatial.NewChunkManager(cfg.ChunkCellSize, cfg.StartLat)
	alt := altitude.NewSystem(sampler, cfg.EyeHeight, cfg.MaxAltitude, cfg.Heightmap.DefaultElev)

	camera := player.Camera{
		SensitivityDeg: cfg.MouseSensitivity,
		PitchMinDeg:    cfg.PitchMin,
		PitchMaxDeg:    cfg.PitchMax,
	}
	movement := player.Movement{
		WalkSpeedM:            cfg.WalkSpeed,
		RunMultiplier:         cfg.RunMultiplier,
		ClimbSpeedM:           cfg.ClimbSpeed,
		AltitudeScaleM:        cfg.AltitudeScale,
		MaxAltitudeMultiplier: cfg.MaxSpeedMult,
	}
	params := engine.Params{
		CollisionRadiusM:  cfg.CollisionRadius,
		BodyHeightM:       cfg.BodyHeight,
		SmoothFactor:      cfg.SmoothFactor,
		TerrainToleranceM: cfg.TerrainTolerance,
		TickHz:            cfg.TickHz,
		TileInterval:      time.Duration(cfg.TileUpdateInterval) * time.Millisecond,
	}
	start := player.Pose{
		Longitude: cfg.StartLng,
		Latitude:  cfg.StartLat,
		Altitude:  cfg.StartAltitude,
		Bearing:   cfg.StartBearing,
	}

	eng := engine.New(params, camera, movement, index, chunks, alt, tiles, start)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("frame loop starting", "tick_hz", cfg.TickHz)
		return eng.Run(gctx, newDemoInput())
	})

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				pose := eng.Pose()
				attrs := []any{
					"lng", fmt.Sprintf("%.6f", pose.Longitude),
					"lat", fmt.Sprintf("%.6f", pose.Latitude),
					"alt", fmt.Sprintf("%.1f", pose.Altitude),
					"bearing", fmt.Sprintf("%.0f", pose.Bearing),
				}
				if tiles != nil {
					stats := tiles.Stats()
					attrs = append(attrs,
						"loaded_tiles", stats.LoadedTiles,
						"loading_tiles", stats.LoadingTiles,
						"features", stats.TotalFeatures)
				}
				slog.Info("pose", attrs...)
			}
		}
	})

	return g.Wait()
}

// buildTileManager wires the configured tile source. A missing tile index
// disables streaming entirely; the engine then runs over whatever data is
// resident.
func buildTileManager(ctx context.Context, cfg config.Engine) (*tile.Manager, *db.DB, error) {
	data, err := os.ReadFile(cfg.TileIndex)
	if err != nil {
		slog.Warn("tile index unavailable, streaming disabled", "path", cfg.TileIndex, "err", err)
		return nil, nil, nil
	}
	index, err := tile.ParseIndex(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing tile index: %w", err)
	}

	var source tile.Source
	var database *db.DB
	switch cfg.TileSource {
	case "postgres":
		database, err = db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connecting tile store: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("migrating tile store: %w", err)
		}
		source = &tile.PGSource{Pool: database.Pool()}
		slog.Info("tile source: postgres", "host", cfg.Database.Host)
	default:
		fs := &tile.FileSource{Dir: cfg.TileDir}
		if cfg.FetchRateLimit > 0 {
			fs.Limiter = rate.NewLimiter(rate.Limit(cfg.FetchRateLimit), 1)
		}
		source = fs
		slog.Info("tile source: files", "dir", cfg.TileDir)
	}

	return tile.NewManager(index, source, cfg.LoadRadius, cfg.UnloadRadius), database, nil
}

// parseLogLevel converts a string log level to slog.Level, defaulting to
// Info.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
