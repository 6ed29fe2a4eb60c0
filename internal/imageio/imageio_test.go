package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(0)
			if (x+y)%2 == 1 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]png.CompressionLevel{
		"":        png.DefaultCompression,
		"default": png.DefaultCompression,
		"speed":   png.BestSpeed,
		"best":    png.BestCompression,
		"none":    png.NoCompression,
	} {
		got, err := ParseCompression(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseCompression("ultra")
	assert.Error(t, err)
}

func TestEncodePNG_Decodes(t *testing.T) {
	src := checker(8)
	data, err := EncodePNG(src, "best")
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), decoded.Bounds())

	r, _, _, _ := decoded.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"tex.png", "nested/tex.bmp", "tex.jpg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, checker(6)), name)

		img, err := Open(path)
		require.NoError(t, err, name)
		assert.Equal(t, 6, img.Bounds().Dx(), name)
	}

	assert.Error(t, Save(filepath.Join(dir, "tex.unknown"), checker(2)))
}

func TestBlurSoftensEdges(t *testing.T) {
	blurred := Blur(checker(16), 1.5)
	c := blurred.RGBAAt(8, 8)
	assert.Greater(t, c.R, uint8(40))
	assert.Less(t, c.R, uint8(215))
}

func TestUpscale(t *testing.T) {
	up := Upscale(checker(4), 3)
	assert.Equal(t, 12, up.Bounds().Dx())
	assert.Equal(t, up.RGBAAt(0, 0), up.RGBAAt(2, 2))
	assert.Equal(t, uint8(255), up.RGBAAt(3, 0).R)
}

func TestPostprocess(t *testing.T) {
	src := checker(4)
	assert.Same(t, image.Image(src), Postprocess{}.Apply(src))

	out := Postprocess{BlurSigma: 0.8, Upscale: 2}.Apply(src)
	assert.Equal(t, 8, out.Bounds().Dx())

	assert.Error(t, Postprocess{BlurSigma: -1}.Validate())
	assert.Error(t, Postprocess{Upscale: -1}.Validate())
	assert.NoError(t, Postprocess{Upscale: 2}.Validate())
}

func TestPostprocess_BlurSigmaBounds(t *testing.T) {
	for _, sigma := range []float32{
		float32(math.NaN()),
		float32(math.Inf(1)),
		float32(math.Inf(-1)),
		MaxBlurSigma + 0.5,
		1e9,
	} {
		assert.Error(t, Postprocess{BlurSigma: sigma}.Validate(), "sigma %v", sigma)
	}
	assert.NoError(t, Postprocess{BlurSigma: MaxBlurSigma}.Validate())
	assert.NoError(t, Postprocess{BlurSigma: 0}.Validate())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "a", "tex.PNG")
	require.NoError(t, WriteFile(pngPath, checker(4), "none"))
	img, err := Open(pngPath)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dy())

	bmpPath := filepath.Join(dir, "tex.bmp")
	require.NoError(t, WriteFile(bmpPath, checker(4), "ignored"))
	_, err = Open(bmpPath)
	require.NoError(t, err)

	assert.Error(t, WriteFile(filepath.Join(dir, "bad.png"), checker(2), "ultra"))
}
