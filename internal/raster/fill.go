package raster

import (
	"runtime"
	"sync"
)

// PixelFunc computes the color of a single pixel.
type PixelFunc func(x, y int) (r, g, b uint8)

// RowFunc computes every pixel of row y in place. row is the slice of the
// buffer that belongs to that row (Width*3 bytes).
type RowFunc func(y int, row []byte)

// Fill evaluates fn for every pixel of buf. Rows are handed out to
// workers goroutines; workers <= 0 uses runtime.NumCPU(). The result is
// independent of the worker count.
func Fill(buf *Buffer, workers int, fn PixelFunc) {
	FillRows(buf, workers, func(y int, row []byte) {
		for x := 0; x < buf.Width; x++ {
			i := x * Channels
			row[i], row[i+1], row[i+2] = fn(x, y)
		}
	})
}

// FillRows is Fill at row granularity, for callers that keep per-row
// scratch state.
func FillRows(buf *Buffer, workers int, fn RowFunc) {
	workers = Workers(workers, buf.Height)
	stride := buf.Width * Channels

	if workers == 1 {
		for y := 0; y < buf.Height; y++ {
			fn(y, buf.Pix[y*stride:(y+1)*stride])
		}
		return
	}

	rows := make(chan int, buf.Height)
	for y := 0; y < buf.Height; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				fn(y, buf.Pix[y*stride:(y+1)*stride])
			}
		}()
	}
	wg.Wait()
}

// Workers resolves a requested worker count against the number of rows.
func Workers(requested, rows int) int {
	if requested <= 0 {
		requested = runtime.NumCPU()
	}
	if requested > rows {
		requested = rows
	}
	if requested < 1 {
		requested = 1
	}
	return requested
}
