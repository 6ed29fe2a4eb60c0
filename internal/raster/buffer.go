// Package raster assembles interleaved RGB pixel buffers.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// ErrInvalidDimensions is returned when a buffer is requested with a
// non-positive width or height, or one whose byte size overflows int.
var ErrInvalidDimensions = errors.New("width and height must be > 0")

// Channels is the number of bytes per pixel (R, G, B).
const Channels = 3

// Buffer is a row-major RGB byte buffer. Each pixel owns the three bytes
// starting at (y*Width+x)*3.
type Buffer struct {
	Pix    []byte
	Width  int
	Height int
}

// New allocates a zeroed buffer of width*height*3 bytes.
func New(width, height int) (*Buffer, error) {
	if err := ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*Channels),
	}, nil
}

// ValidateDimensions reports ErrInvalidDimensions for width or height <= 0
// and for sizes where width*height*Channels does not fit in an int.
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, width, height)
	}
	if width > math.MaxInt/height/Channels {
		return fmt.Errorf("%w: %dx%d is too large", ErrInvalidDimensions, width, height)
	}
	return nil
}

// Offset returns the index of the red byte of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// SetRGB writes one pixel.
func (b *Buffer) SetRGB(x, y int, r, g, bl uint8) {
	i := b.Offset(x, y)
	b.Pix[i] = r
	b.Pix[i+1] = g
	b.Pix[i+2] = bl
}

// RGBAt reads one pixel.
func (b *Buffer) RGBAt(x, y int) (r, g, bl uint8) {
	i := b.Offset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Bytes returns the underlying pixel slice. The caller owns it.
func (b *Buffer) Bytes() []byte { return b.Pix }

// ToImage converts the buffer into an opaque *image.RGBA.
func (b *Buffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Width; x++ {
			src := b.Offset(x, y)
			dst := x * 4
			row[dst] = b.Pix[src]
			row[dst+1] = b.Pix[src+1]
			row[dst+2] = b.Pix[src+2]
			row[dst+3] = 255
		}
	}
	return img
}

// FromImage flattens any image into an RGB buffer, dropping alpha.
func FromImage(img image.Image) (*Buffer, error) {
	bounds := img.Bounds()
	buf, err := New(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			buf.SetRGB(x-bounds.Min.X, y-bounds.Min.Y, c.R, c.G, c.B)
		}
	}
	return buf, nil
}

// NormalizeByte maps a noise value from roughly [-1,1] onto [0,255].
// Out-of-range values clamp silently; the clamp runs before the narrowing
// conversion so large fbm sums can never wrap.
func NormalizeByte(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	scaled := math.Round((v + 1.0) * 0.5 * 255.0)
	if scaled <= 0 {
		return 0
	}
	if scaled >= 255 {
		return 255
	}
	return uint8(scaled)
}
