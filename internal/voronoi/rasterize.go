package voronoi

import (
	"math"

	"github.com/MeKo-Tech/proctex/internal/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Nearest returns the index of the site closest to p by Euclidean
// distance. Sites are scanned in ascending order and only a strictly
// smaller distance replaces the current best, so equidistant sites
// resolve to the lowest index. It returns -1 for an empty slice.
func Nearest(p orb.Point, sites []Site) int {
	best := -1
	bestDist := math.Inf(1)
	for i := range sites {
		d := planar.Distance(p, sites[i].Pos)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Rasterize writes the color of the nearest site into every pixel of buf.
// Pixel (x, y) is measured at the integer coordinate (x, y). Rows are
// processed by workers goroutines; sites is only read.
func Rasterize(buf *raster.Buffer, sites []Site, workers int) {
	if len(sites) == 0 {
		return
	}
	raster.FillRows(buf, workers, func(y int, row []byte) {
		fy := float64(y)
		for x := 0; x < buf.Width; x++ {
			c := sites[Nearest(orb.Point{float64(x), fy}, sites)].Color
			i := x * raster.Channels
			row[i], row[i+1], row[i+2] = c[0], c[1], c[2]
		}
	})
}
