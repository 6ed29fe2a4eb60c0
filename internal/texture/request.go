package texture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/MeKo-Tech/proctex/internal/raster"
)

// ErrUnknownMode is returned for an unrecognised generation mode.
var ErrUnknownMode = errors.New("unknown texture mode")

// Mode selects a generation operation.
type Mode string

const (
	ModeNoise   Mode = "noise"
	ModeFBM     Mode = "fbm"
	ModeVoronoi Mode = "voronoi"
	ModeChecker Mode = "checker"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeNoise, ModeFBM, ModeVoronoi, ModeChecker}

// ParseMode resolves a mode name. "simplex" is accepted for noise and
// "fractal" for fbm.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noise", "simplex":
		return ModeNoise, nil
	case "fbm", "fractal":
		return ModeFBM, nil
	case "voronoi":
		return ModeVoronoi, nil
	case "checker", "checkerboard":
		return ModeChecker, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Request describes one texture. Fields that do not apply to Mode are
// ignored.
type Request struct {
	Mode   Mode    `json:"mode" mapstructure:"mode"`
	Width  int     `json:"width" mapstructure:"width"`
	Height int     `json:"height" mapstructure:"height"`
	Scale  float64 `json:"scale,omitempty" mapstructure:"scale"`
	Seed   uint32  `json:"seed,omitempty" mapstructure:"seed"`
	Seeds  int     `json:"seeds,omitempty" mapstructure:"seeds"`
	Cell   int     `json:"cell,omitempty" mapstructure:"cell"`
}

// Key is a stable, filename-safe identifier for the request,
// e.g. "fbm_512x512_s8_seed7".
func (r Request) Key() string {
	size := fmt.Sprintf("%dx%d", r.Width, r.Height)
	switch r.Mode {
	case ModeNoise, ModeFBM:
		return fmt.Sprintf("%s_%s_s%s_seed%d", r.Mode, size, formatScale(r.Scale), r.Seed)
	case ModeVoronoi:
		return fmt.Sprintf("%s_%s_n%d", r.Mode, size, r.Seeds)
	case ModeChecker:
		return fmt.Sprintf("%s_%s_c%d", r.Mode, size, r.Cell)
	default:
		return fmt.Sprintf("%s_%s", r.Mode, size)
	}
}

// Deterministic reports whether repeating the request yields the same
// bytes. Voronoi draws fresh sites on every call.
func (r Request) Deterministic() bool {
	return r.Mode != ModeVoronoi
}

func formatScale(s float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(s, 'g', -1, 64), ".", "p")
}

// Generate dispatches r to the matching operation.
func (e *Engine) Generate(r Request) (*raster.Buffer, error) {
	switch r.Mode {
	case ModeNoise:
		return e.SimplexNoiseRGB(r.Width, r.Height, r.Scale, r.Seed)
	case ModeFBM:
		return e.FractalNoiseRGB(r.Width, r.Height, r.Scale, r.Seed)
	case ModeVoronoi:
		return e.VoronoiRGB(r.Width, r.Height, r.Seeds)
	case ModeChecker:
		return e.CheckerboardRGB(r.Width, r.Height, r.Cell)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, string(r.Mode))
	}
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

func getDefault() *Engine {
	defaultOnce.Do(func() {
		// Default options always validate.
		defaultEngine, _ = New()
	})
	return defaultEngine
}

// SimplexNoiseRGB renders grayscale noise with the default engine and
// returns the raw width*height*3 bytes.
func SimplexNoiseRGB(width, height int, scale float64, seed uint32) ([]byte, error) {
	buf, err := getDefault().SimplexNoiseRGB(width, height, scale, seed)
	if err != nil {
		return nil, err
	}
	return buf.Pix, nil
}

// FractalNoiseRGB renders triple-channel FBM with the default engine.
func FractalNoiseRGB(width, height int, scale float64, seed uint32) ([]byte, error) {
	buf, err := getDefault().FractalNoiseRGB(width, height, scale, seed)
	if err != nil {
		return nil, err
	}
	return buf.Pix, nil
}

// VoronoiRGB renders a random Voronoi partition with the default engine.
func VoronoiRGB(width, height, numSeeds int) ([]byte, error) {
	buf, err := getDefault().VoronoiRGB(width, height, numSeeds)
	if err != nil {
		return nil, err
	}
	return buf.Pix, nil
}
