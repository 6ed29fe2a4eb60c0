// Package voronoi generates random seed sites and rasterizes the
// nearest-site partition of an image.
package voronoi

import (
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/paulmach/orb"
)

// Source is the random source consumed by GenerateSites. *rand.Rand
// satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// Site is a seed point with its fill color.
type Site struct {
	Pos   orb.Point
	Color [3]uint8
}

// lockedSource serialises access to a shared *rand.Rand.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewProcessSource returns a goroutine-safe source seeded from the clock
// and pid. Output differs from run to run.
func NewProcessSource() Source {
	seed := time.Now().UnixNano() ^ int64(os.Getpid())<<32
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

// NewSeededSource returns a goroutine-safe source with a fixed seed.
func NewSeededSource(seed int64) Source {
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// GenerateSites draws n sites inside the width x height rectangle.
// Positions are drawn first (x then y for each site), then colors
// (r, g, b for each site), so a fixed source always yields the same set.
func GenerateSites(src Source, n, width, height int) []Site {
	if n <= 0 {
		return nil
	}
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(width), float64(height)}}
	sites := make([]Site, n)
	for i := range sites {
		x := src.Float64() * bound.Max.X()
		y := src.Float64() * bound.Max.Y()
		sites[i].Pos = clampToBound(orb.Point{x, y}, bound)
	}
	for i := range sites {
		sites[i].Color = [3]uint8{
			uint8(src.Intn(256)),
			uint8(src.Intn(256)),
			uint8(src.Intn(256)),
		}
	}
	return sites
}

// clampToBound keeps a point inside the half-open rectangle even if the
// source returns exactly 1.0.
func clampToBound(p orb.Point, b orb.Bound) orb.Point {
	if p[0] >= b.Max.X() {
		p[0] = math.Nextafter(b.Max.X(), math.Inf(-1))
	}
	if p[1] >= b.Max.Y() {
		p[1] = math.Nextafter(b.Max.Y(), math.Inf(-1))
	}
	if p[0] < b.Min.X() {
		p[0] = b.Min.X()
	}
	if p[1] < b.Min.Y() {
		p[1] = b.Min.Y()
	}
	return p
}
