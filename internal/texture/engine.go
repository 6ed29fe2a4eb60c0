// Package texture renders procedural RGB textures: grayscale gradient
// noise, triple-channel fractal noise, Voronoi partitions and
// checkerboards.
package texture

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MeKo-Tech/proctex/internal/noise"
	"github.com/MeKo-Tech/proctex/internal/raster"
	"github.com/MeKo-Tech/proctex/internal/voronoi"
)

var (
	// ErrInvalidDimensions is returned when width or height is not positive.
	ErrInvalidDimensions = raster.ErrInvalidDimensions
	// ErrInvalidScale is returned when scale is not a finite positive number.
	ErrInvalidScale = errors.New("scale must be a finite number > 0")
	// ErrInvalidSeedCount is returned when a Voronoi request has no seeds.
	ErrInvalidSeedCount = errors.New("number of seeds must be > 0")
	// ErrInvalidCellSize is returned when a checkerboard cell is not positive.
	ErrInvalidCellSize = errors.New("cell size must be > 0")
)

// Engine renders textures. It holds only immutable options, so a single
// Engine may serve concurrent callers.
type Engine struct {
	source  voronoi.Source
	logger  *slog.Logger
	kind    noise.Kind
	octaves noise.Octaves
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithOctaves overrides the fractal octave parameters.
func WithOctaves(o noise.Octaves) Option {
	return func(e *Engine) { e.octaves = o }
}

// WithSampler selects the noise backend.
func WithSampler(kind noise.Kind) Option {
	return func(e *Engine) { e.kind = kind }
}

// WithWorkers sets the number of goroutines used per render.
// n <= 0 means runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithSource replaces the random source used for Voronoi sites.
func WithSource(src voronoi.Source) Option {
	return func(e *Engine) { e.source = src }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New builds an engine with the default simplex sampler and octaves.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		kind:    noise.KindSimplex,
		octaves: noise.DefaultOctaves,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.octaves.Validate(); err != nil {
		return nil, err
	}
	kind, err := noise.ParseKind(string(e.kind))
	if err != nil {
		return nil, err
	}
	e.kind = kind
	if e.source == nil {
		e.source = voronoi.NewProcessSource()
	}
	return e, nil
}

// Octaves returns the fractal parameters in use.
func (e *Engine) Octaves() noise.Octaves { return e.octaves }

// Sampler returns the noise backend in use.
func (e *Engine) Sampler() noise.Kind { return e.kind }

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

func validateScale(scale float64) error {
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidScale, scale)
	}
	return nil
}

// SimplexNoiseRGB renders a single noise layer as grayscale: all three
// channels of a pixel carry the same normalized byte.
func (e *Engine) SimplexNoiseRGB(width, height int, scale float64, seed uint32) (*raster.Buffer, error) {
	if err := raster.ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	if err := validateScale(scale); err != nil {
		return nil, err
	}
	sampler, err := noise.New(e.kind, seed)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	buf, err := raster.New(width, height)
	if err != nil {
		return nil, err
	}
	raster.Fill(buf, e.workers, func(x, y int) (uint8, uint8, uint8) {
		v := raster.NormalizeByte(sampler.Sample(float64(x)/scale, float64(y)/scale))
		return v, v, v
	})

	e.log().Debug("noise texture rendered",
		"sampler", e.kind, "width", width, "height", height, "scale", scale, "seed", seed,
		"ms", time.Since(start).Milliseconds())
	return buf, nil
}

// FractalNoiseRGB renders three independent FBM fields, one per channel,
// seeded with seed, seed+1 and seed+2 (wrapping).
func (e *Engine) FractalNoiseRGB(width, height int, scale float64, seed uint32) (*raster.Buffer, error) {
	if err := raster.ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	if err := validateScale(scale); err != nil {
		return nil, err
	}

	var channels [3]noise.Sampler
	for i := range channels {
		s, err := noise.New(e.kind, seed+uint32(i))
		if err != nil {
			return nil, err
		}
		channels[i] = s
	}

	start := time.Now()
	buf, err := raster.New(width, height)
	if err != nil {
		return nil, err
	}
	o := e.octaves
	raster.Fill(buf, e.workers, func(x, y int) (uint8, uint8, uint8) {
		nx := float64(x) / scale
		ny := float64(y) / scale
		r := raster.NormalizeByte(noise.FBM(channels[0], nx, ny, o))
		g := raster.NormalizeByte(noise.FBM(channels[1], nx, ny, o))
		b := raster.NormalizeByte(noise.FBM(channels[2], nx, ny, o))
		return r, g, b
	})

	e.log().Debug("fractal texture rendered",
		"sampler", e.kind, "width", width, "height", height, "scale", scale, "seed", seed,
		"octaves", o.Count, "ms", time.Since(start).Milliseconds())
	return buf, nil
}

// VoronoiRGB scatters numSeeds random sites with random colors and fills
// each pixel with the color of its nearest site. Sites come from the
// engine's random source, so output varies between calls unless a fixed
// source was injected.
func (e *Engine) VoronoiRGB(width, height, numSeeds int) (*raster.Buffer, error) {
	if err := raster.ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	if numSeeds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSeedCount, numSeeds)
	}

	start := time.Now()
	buf, err := raster.New(width, height)
	if err != nil {
		return nil, err
	}
	sites := voronoi.GenerateSites(e.source, numSeeds, width, height)
	voronoi.Rasterize(buf, sites, e.workers)

	e.log().Debug("voronoi texture rendered",
		"width", width, "height", height, "seeds", numSeeds,
		"ms", time.Since(start).Milliseconds())
	return buf, nil
}

// CheckerboardRGB renders alternating black and white squares of cell
// pixels. The top-left cell is black.
func (e *Engine) CheckerboardRGB(width, height, cell int) (*raster.Buffer, error) {
	if err := raster.ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	if cell <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCellSize, cell)
	}

	buf, err := raster.New(width, height)
	if err != nil {
		return nil, err
	}
	raster.Fill(buf, e.workers, func(x, y int) (uint8, uint8, uint8) {
		if (x/cell+y/cell)%2 == 0 {
			return 0, 0, 0
		}
		return 255, 255, 255
	})
	return buf, nil
}
