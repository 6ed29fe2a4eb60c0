// Package imageio encodes, saves and post-processes rendered textures.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// ParseCompression maps a compression name (default, speed, best, none)
// to a PNG compression level.
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed", "fast":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none", "no":
		return png.NoCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("invalid png compression %q: must be default, speed, best or none", name)
	}
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image, compression string) ([]byte, error) {
	level, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes img to path, choosing the format from the extension
// (png, jpg, gif, tif, bmp). Parent directories are created.
func Save(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// Open decodes an image file of any format imaging supports.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return img, nil
}

// Blur applies a Gaussian blur with the given sigma.
func Blur(img image.Image, sigma float32) *image.RGBA {
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// Upscale enlarges img by an integer factor with nearest-neighbor
// sampling, keeping hard Voronoi and checkerboard edges crisp.
func Upscale(img image.Image, factor int) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Postprocess describes optional filters applied after rendering.
type Postprocess struct {
	BlurSigma float32 `mapstructure:"blur" json:"blur,omitempty"`
	Upscale   int     `mapstructure:"upscale" json:"upscale,omitempty"`
}

// MaxBlurSigma bounds the Gaussian kernel, which spans 2*ceil(3*sigma)+1
// taps.
const MaxBlurSigma = 100

// Validate rejects negative or non-finite parameters and blur sigmas above
// MaxBlurSigma.
func (p Postprocess) Validate() error {
	sigma := float64(p.BlurSigma)
	if math.IsNaN(sigma) || sigma < 0 || sigma > MaxBlurSigma {
		return fmt.Errorf("blur sigma must be in [0, %d], got %v", MaxBlurSigma, p.BlurSigma)
	}
	if p.Upscale < 0 {
		return fmt.Errorf("upscale factor must be >= 0, got %d", p.Upscale)
	}
	return nil
}

// Apply runs the configured filters in order: blur, then upscale.
// A zero Postprocess returns img unchanged.
func (p Postprocess) Apply(img image.Image) image.Image {
	if p.BlurSigma > 0 {
		img = Blur(img, p.BlurSigma)
	}
	if p.Upscale > 1 {
		img = Upscale(img, p.Upscale)
	}
	return img
}

// WriteFile writes img to path. PNG output is encoded with the given
// compression; other extensions go through Save.
func WriteFile(path string, img image.Image, compression string) error {
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		return Save(path, img)
	}
	data, err := EncodePNG(img, compression)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
