package texture

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/MeKo-Tech/proctex/internal/noise"
	"github.com/MeKo-Tech/proctex/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func TestEngine_BufferLength(t *testing.T) {
	e := newTestEngine(t)
	sizes := [][2]int{{1, 1}, {2, 1}, {7, 5}, {32, 17}}

	for _, sz := range sizes {
		w, h := sz[0], sz[1]
		want := w * h * 3

		buf, err := e.SimplexNoiseRGB(w, h, 4, 1)
		require.NoError(t, err)
		assert.Len(t, buf.Pix, want)

		buf, err = e.FractalNoiseRGB(w, h, 4, 1)
		require.NoError(t, err)
		assert.Len(t, buf.Pix, want)

		buf, err = e.VoronoiRGB(w, h, 3)
		require.NoError(t, err)
		assert.Len(t, buf.Pix, want)

		buf, err = e.CheckerboardRGB(w, h, 2)
		require.NoError(t, err)
		assert.Len(t, buf.Pix, want)
	}
}

func TestEngine_ValidationFailures(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		name string
		run  func() (*raster.Buffer, error)
		want error
	}{
		{"noise zero width", func() (*raster.Buffer, error) { return e.SimplexNoiseRGB(0, 4, 1, 0) }, ErrInvalidDimensions},
		{"noise zero height", func() (*raster.Buffer, error) { return e.SimplexNoiseRGB(4, 0, 1, 0) }, ErrInvalidDimensions},
		{"fbm zero width", func() (*raster.Buffer, error) { return e.FractalNoiseRGB(0, 4, 1, 0) }, ErrInvalidDimensions},
		{"fbm zero height", func() (*raster.Buffer, error) { return e.FractalNoiseRGB(4, 0, 1, 0) }, ErrInvalidDimensions},
		{"voronoi zero width", func() (*raster.Buffer, error) { return e.VoronoiRGB(0, 4, 2) }, ErrInvalidDimensions},
		{"voronoi zero height", func() (*raster.Buffer, error) { return e.VoronoiRGB(4, 0, 2) }, ErrInvalidDimensions},
		{"voronoi zero seeds", func() (*raster.Buffer, error) { return e.VoronoiRGB(4, 4, 0) }, ErrInvalidSeedCount},
		{"noise zero scale", func() (*raster.Buffer, error) { return e.SimplexNoiseRGB(4, 4, 0, 0) }, ErrInvalidScale},
		{"fbm negative scale", func() (*raster.Buffer, error) { return e.FractalNoiseRGB(4, 4, -2, 0) }, ErrInvalidScale},
		{"noise NaN scale", func() (*raster.Buffer, error) { return e.SimplexNoiseRGB(4, 4, math.NaN(), 0) }, ErrInvalidScale},
		{"checker zero cell", func() (*raster.Buffer, error) { return e.CheckerboardRGB(4, 4, 0) }, ErrInvalidCellSize},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := tc.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Nil(t, buf)
		})
	}
}

func TestEngine_OverflowingDimensions(t *testing.T) {
	e := newTestEngine(t, WithWorkers(4))

	buf, err := e.FractalNoiseRGB(1<<62, 4, 4, 1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	assert.Nil(t, buf)

	buf, err = e.VoronoiRGB(4, math.MaxInt/2, 3)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	assert.Nil(t, buf)
}

func TestEngine_Deterministic(t *testing.T) {
	for _, kind := range noise.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			a := newTestEngine(t, WithSampler(kind))
			b := newTestEngine(t, WithSampler(kind), WithWorkers(1))

			n1, err := a.SimplexNoiseRGB(24, 16, 5.5, 99)
			require.NoError(t, err)
			n2, err := b.SimplexNoiseRGB(24, 16, 5.5, 99)
			require.NoError(t, err)
			assert.Equal(t, n1.Pix, n2.Pix)

			f1, err := a.FractalNoiseRGB(24, 16, 5.5, 99)
			require.NoError(t, err)
			f2, err := b.FractalNoiseRGB(24, 16, 5.5, 99)
			require.NoError(t, err)
			assert.Equal(t, f1.Pix, f2.Pix)
		})
	}
}

func TestEngine_SeedSensitivity(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.SimplexNoiseRGB(32, 32, 6, 1)
	require.NoError(t, err)
	b, err := e.SimplexNoiseRGB(32, 32, 6, 2)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a.Pix, b.Pix))

	fa, err := e.FractalNoiseRGB(32, 32, 6, 1)
	require.NoError(t, err)
	fb, err := e.FractalNoiseRGB(32, 32, 6, 2)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(fa.Pix, fb.Pix))
}

func TestEngine_Grayscale(t *testing.T) {
	e := newTestEngine(t)
	buf, err := e.SimplexNoiseRGB(19, 11, 3.3, 8)
	require.NoError(t, err)

	for i := 0; i < len(buf.Pix); i += 3 {
		assert.Equal(t, buf.Pix[i], buf.Pix[i+1])
		assert.Equal(t, buf.Pix[i], buf.Pix[i+2])
	}
}

func TestSimplexNoiseRGB_TwoPixelScenario(t *testing.T) {
	pix, err := SimplexNoiseRGB(2, 1, 1.0, 0)
	require.NoError(t, err)
	require.Len(t, pix, 6)

	for p := 0; p < 2; p++ {
		assert.Equal(t, pix[p*3], pix[p*3+1], "pixel %d", p)
		assert.Equal(t, pix[p*3], pix[p*3+2], "pixel %d", p)
	}
}

func TestFractalNoiseRGB_ClampsLargeSums(t *testing.T) {
	o := noise.Octaves{Count: 6, Lacunarity: 2, Gain: 1.5}
	require.Greater(t, o.MaxAmplitude(), 1.0)

	e := newTestEngine(t, WithOctaves(o))
	const w, h, scale, seed = 48, 48, 7.0, 3
	buf, err := e.FractalNoiseRGB(w, h, scale, seed)
	require.NoError(t, err)

	red, err := noise.New(noise.KindSimplex, seed)
	require.NoError(t, err)

	over, under := 0, 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			raw := noise.FBM(red, float64(x)/scale, float64(y)/scale, o)
			got, _, _ := buf.RGBAt(x, y)
			switch {
			case raw > 1:
				over++
				assert.Equal(t, uint8(255), got, "raw %v at (%d,%d) must clamp high", raw, x, y)
			case raw < -1:
				under++
				assert.Equal(t, uint8(0), got, "raw %v at (%d,%d) must clamp low", raw, x, y)
			default:
				assert.Equal(t, raster.NormalizeByte(raw), got)
			}
		}
	}
	assert.Greater(t, over+under, 0, "expected at least one out-of-range fbm sum")
}

func TestFractalNoiseRGB_ChannelSeeds(t *testing.T) {
	e := newTestEngine(t)
	const scale = 4.0
	buf, err := e.FractalNoiseRGB(8, 8, scale, math.MaxUint32)
	require.NoError(t, err)

	// seed+1 and seed+2 wrap to 0 and 1.
	green, err := noise.New(noise.KindSimplex, 0)
	require.NoError(t, err)
	blue, err := noise.New(noise.KindSimplex, 1)
	require.NoError(t, err)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			_, g, b := buf.RGBAt(x, y)
			nx, ny := float64(x)/scale, float64(y)/scale
			assert.Equal(t, raster.NormalizeByte(noise.FBM(green, nx, ny, noise.DefaultOctaves)), g)
			assert.Equal(t, raster.NormalizeByte(noise.FBM(blue, nx, ny, noise.DefaultOctaves)), b)
		}
	}
}

func TestFractalNoiseRGB_ZeroOctavesIsMidGray(t *testing.T) {
	e := newTestEngine(t, WithOctaves(noise.Octaves{Count: 0, Lacunarity: 2, Gain: 0.5}))
	buf, err := e.FractalNoiseRGB(5, 5, 2, 1)
	require.NoError(t, err)
	for _, b := range buf.Pix {
		assert.Equal(t, uint8(128), b)
	}
}

func TestVoronoiRGB_FixedSourceReproducible(t *testing.T) {
	a := newTestEngine(t, WithSource(rand.New(rand.NewSource(4))))
	b := newTestEngine(t, WithSource(rand.New(rand.NewSource(4))))

	va, err := a.VoronoiRGB(30, 20, 6)
	require.NoError(t, err)
	vb, err := b.VoronoiRGB(30, 20, 6)
	require.NoError(t, err)
	assert.Equal(t, va.Pix, vb.Pix)
}

func TestVoronoiRGB_SingleSeedIsFlat(t *testing.T) {
	e := newTestEngine(t)
	buf, err := e.VoronoiRGB(9, 9, 1)
	require.NoError(t, err)
	r0, g0, b0 := buf.RGBAt(0, 0)
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			r, g, b := buf.RGBAt(x, y)
			assert.Equal(t, [3]uint8{r0, g0, b0}, [3]uint8{r, g, b})
		}
	}
}

func TestCheckerboardRGB(t *testing.T) {
	e := newTestEngine(t)
	buf, err := e.CheckerboardRGB(20, 20, 10)
	require.NoError(t, err)

	r, _, _ := buf.RGBAt(0, 0)
	assert.Equal(t, uint8(0), r)
	r, _, _ = buf.RGBAt(10, 0)
	assert.Equal(t, uint8(255), r)
	r, _, _ = buf.RGBAt(10, 10)
	assert.Equal(t, uint8(0), r)
	r, _, _ = buf.RGBAt(9, 19)
	assert.Equal(t, uint8(255), r)
}

func TestNew_RejectsBadOptions(t *testing.T) {
	_, err := New(WithOctaves(noise.Octaves{Count: -2}))
	assert.True(t, errors.Is(err, noise.ErrInvalidOctaves))

	_, err = New(WithSampler("value"))
	assert.True(t, errors.Is(err, noise.ErrUnknownKind))
}
