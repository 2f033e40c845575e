// Package terrain samples ground elevation from a raster heightmap.
// Elevation is decoded from the red channel only, linearly remapped to the
// configured elevation range, and queried with bilinear interpolation.
package terrain

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"

	_ "image/jpeg"
	_ "image/png"

	"github.com/paulmach/orb"
)

// Config describes the geographic placement of the heightmap.
type Config struct {
	// Bounds is the geographic rectangle the image covers.
	Bounds orb.Bound
	// MinElevation and MaxElevation remap the red channel [0,255].
	MinElevation float64
	MaxElevation float64
	// DefaultElevation is reported for out-of-bounds samples.
	DefaultElevation float64
}

// Sampler answers elevation queries. Zero value (or a Sampler that never
// loaded) treats every query as out of bounds, so callers need not guard on
// load completion.
type Sampler struct {
	cfg Config

	// Row-major elevation samples; row 0 is the image's top row, which maps
	// to the NORTH edge of Bounds.
	samples []float64
	width   int
	height  int
}

// NewSampler returns an unloaded sampler with the given placement.
func NewSampler(cfg Config) *Sampler {
	return &Sampler{cfg: cfg}
}

// Load decodes the heightmap image and converts its red channel into the
// flat elevation array. Replaces any previously loaded data wholesale.
func (s *Sampler) Load(r io.Reader) error {
	img, format, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("decoding heightmap: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	samples := make([]float64, w*h)
	span := s.cfg.MaxElevation - s.cfg.MinElevation

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r16, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			red := float64(r16 >> 8) // 16-bit premultiplied back to 8-bit
			samples[y*w+x] = s.cfg.MinElevation + red/255*span
		}
	}

	s.samples = samples
	s.width = w
	s.height = h
	slog.Info("heightmap loaded", "format", format, "width", w, "height", h,
		"min_elev", s.cfg.MinElevation, "max_elev", s.cfg.MaxElevation)
	return nil
}

// Loaded reports whether elevation data is available.
func (s *Sampler) Loaded() bool { return s.width > 0 && s.height > 0 }

// ElevationAt returns the bilinearly interpolated elevation at the point.
// inBounds is false (with the configured default elevation) outside the
// heightmap's geographic bounds or before Load completes.
func (s *Sampler) ElevationAt(p orb.Point) (elevation float64, inBounds bool) {
	if !s.Loaded() || !s.cfg.Bounds.Contains(p) {
		return s.cfg.DefaultElevation, false
	}

	min, max := s.cfg.Bounds.Min, s.cfg.Bounds.Max
	fx := (p[0] - min[0]) / (max[0] - min[0]) * float64(s.width-1)
	// Latitude increases northward but image rows grow downward: flip.
	fy := (max[1] - p[1]) / (max[1] - min[1]) * float64(s.height-1)

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= s.width {
		x1 = s.width - 1
	}
	if y1 >= s.height {
		y1 = s.height - 1
	}
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	top := s.samples[y0*s.width+x0]*(1-tx) + s.samples[y0*s.width+x1]*tx
	bottom := s.samples[y1*s.width+x0]*(1-tx) + s.samples[y1*s.width+x1]*tx
	return top*(1-ty) + bottom*ty, true
}

// ElevationOrDefault collapses ElevationAt to a plain number, substituting
// the caller's fallback when the point is out of bounds.
func (s *Sampler) ElevationOrDefault(p orb.Point, def float64) float64 {
	if elev, ok := s.ElevationAt(p); ok {
		return elev
	}
	return def
}
