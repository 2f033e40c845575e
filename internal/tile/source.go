package tile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"

	"github.com/cityroam/cityroam/internal/feature"
)

// Source fetches a tile's feature payload. Implementations must be safe
// for concurrent use; the manager fetches tiles from separate goroutines.
type Source interface {
	FetchTile(ctx context.Context, ref string) (*feature.Collection, error)
}

// FileSource reads GeoJSON tile files from a directory. Files ending in
// .zst are transparently zstd-decoded. An optional rate limiter caps fetch
// throughput against slow media.
type FileSource struct {
	Dir     string
	Limiter *rate.Limiter
}

// FetchTile implements Source.
func (s *FileSource) FetchTile(ctx context.Context, ref string) (*feature.Collection, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for fetch slot: %w", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(s.Dir, ref))
	if err != nil {
		return nil, fmt.Errorf("reading tile %s: %w", ref, err)
	}

	if strings.HasSuffix(ref, ".zst") {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing tile %s: %w", ref, err)
		}
	}

	col, err := feature.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing tile %s: %w", ref, err)
	}
	return col, nil
}

// PGSource fetches tile payloads from a Postgres tiles table, keyed by the
// same reference string the index carries.
type PGSource struct {
	Pool *pgxpool.Pool
}

// FetchTile implements Source.
func (s *PGSource) FetchTile(ctx context.Context, ref string) (*feature.Collection, error) {
	var payload []byte
	err := s.Pool.QueryRow(ctx,
		`SELECT payload FROM tiles WHERE key = $1`, ref,
	).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("tile %s not found", ref)
		}
		return nil, fmt.Errorf("querying tile %s: %w", ref, err)
	}

	col, err := feature.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("parsing tile %s: %w", ref, err)
	}
	return col, nil
}
