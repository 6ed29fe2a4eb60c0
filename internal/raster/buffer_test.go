package raster

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidDimensions(t *testing.T) {
	cases := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 4},
		{"zero height", 4, 0},
		{"negative", -1, 3},
		{"pixel product wraps", 1 << 62, 4},
		{"byte size overflows", math.MaxInt / 2, 1},
		{"tall overflow", 2, math.MaxInt / 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := New(tc.width, tc.height)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDimensions))
			assert.Nil(t, buf)
		})
	}
}

func TestValidateDimensions_LargestFit(t *testing.T) {
	assert.NoError(t, ValidateDimensions(math.MaxInt/Channels, 1))
	assert.ErrorIs(t, ValidateDimensions(math.MaxInt/Channels+1, 1), ErrInvalidDimensions)
}

func TestNew_Length(t *testing.T) {
	buf, err := New(7, 3)
	require.NoError(t, err)
	assert.Len(t, buf.Pix, 7*3*3)
}

func TestNormalizeByte(t *testing.T) {
	cases := []struct {
		in   float64
		want uint8
	}{
		{-1, 0},
		{1, 255},
		{0, 128}, // 127.5 rounds half away from zero
		{-5, 0},
		{3.75, 255},
		{math.Inf(1), 255},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeByte(tc.in), "NormalizeByte(%v)", tc.in)
	}
}

func TestSetRGBOffsets(t *testing.T) {
	buf, err := New(3, 2)
	require.NoError(t, err)

	buf.SetRGB(2, 1, 10, 20, 30)
	assert.Equal(t, []byte{10, 20, 30}, buf.Pix[(1*3+2)*3:(1*3+2)*3+3])

	r, g, b := buf.RGBAt(2, 1)
	assert.Equal(t, [3]uint8{10, 20, 30}, [3]uint8{r, g, b})
}

func TestImageRoundTrip(t *testing.T) {
	buf, err := New(4, 3)
	require.NoError(t, err)
	Fill(buf, 1, func(x, y int) (uint8, uint8, uint8) {
		return uint8(x * 40), uint8(y * 60), 200
	})

	img := buf.ToImage()
	assert.Equal(t, uint8(255), img.RGBAAt(1, 1).A)

	back, err := FromImage(img)
	require.NoError(t, err)
	assert.Equal(t, buf.Pix, back.Pix)
}

func TestFill_WorkerCountIndependent(t *testing.T) {
	fn := func(x, y int) (uint8, uint8, uint8) {
		return uint8(x ^ y), uint8(x + y), uint8(x * y)
	}

	serial, err := New(37, 23)
	require.NoError(t, err)
	Fill(serial, 1, fn)

	for _, workers := range []int{0, 2, 5, 64} {
		parallel, err := New(37, 23)
		require.NoError(t, err)
		Fill(parallel, workers, fn)
		assert.Equal(t, serial.Pix, parallel.Pix, "workers=%d", workers)
	}
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 3, Workers(8, 3))
	assert.Equal(t, 2, Workers(2, 100))
	assert.GreaterOrEqual(t, Workers(0, 100), 1)
	assert.Equal(t, 1, Workers(4, 0))
}
