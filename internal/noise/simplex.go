package noise

import "math/rand"

var grad2 = [12][2]float64{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
	{1, 0}, {-1, 0}, {1, 0}, {-1, 0},
	{0, 1}, {0, -1}, {0, 1}, {0, -1},
}

const (
	skewF2   = 0.36602540378443864676 // (sqrt(3)-1)/2
	unskewG2 = 0.21132486540518711775 // (3-sqrt(3))/6
)

// Simplex is 2D simplex noise over a seed-shuffled permutation table.
// Output lies roughly within [-1, 1] and is not clamped.
type Simplex struct {
	perm [512]uint8
}

// NewSimplex builds the permutation table for seed.
func NewSimplex(seed uint32) *Simplex {
	s := &Simplex{}
	r := rand.New(rand.NewSource(int64(seed)))
	p := make([]uint8, 256)
	for i := 0; i < 256; i++ {
		p[i] = uint8(i)
	}
	for i := 255; i > 0; i-- {
		j := r.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	for i := 0; i < 512; i++ {
		s.perm[i] = p[i&255]
	}
	return s
}

func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}

func dot2(g [2]float64, x, y float64) float64 {
	return g[0]*x + g[1]*y
}

// Sample evaluates the noise field at (x, y).
func (s *Simplex) Sample(x, y float64) float64 {
	t := (x + y) * skewF2
	i := fastFloor(x + t)
	j := fastFloor(y + t)

	t0 := float64(i+j) * unskewG2
	x0 := x - (float64(i) - t0)
	y0 := y - (float64(j) - t0)

	// Lower or upper triangle of the skewed cell.
	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}

	x1 := x0 - float64(i1) + unskewG2
	y1 := y0 - float64(j1) + unskewG2
	x2 := x0 - 1.0 + 2.0*unskewG2
	y2 := y0 - 1.0 + 2.0*unskewG2

	ii := i & 255
	jj := j & 255
	gi0 := s.perm[ii+int(s.perm[jj])] % 12
	gi1 := s.perm[ii+i1+int(s.perm[jj+j1])] % 12
	gi2 := s.perm[ii+1+int(s.perm[jj+1])] % 12

	n0, n1, n2 := 0.0, 0.0, 0.0

	t0c := 0.5 - x0*x0 - y0*y0
	if t0c > 0 {
		t0c *= t0c
		n0 = t0c * t0c * dot2(grad2[gi0], x0, y0)
	}
	t1c := 0.5 - x1*x1 - y1*y1
	if t1c > 0 {
		t1c *= t1c
		n1 = t1c * t1c * dot2(grad2[gi1], x1, y1)
	}
	t2c := 0.5 - x2*x2 - y2*y2
	if t2c > 0 {
		t2c *= t2c
		n2 = t2c * t2c * dot2(grad2[gi2], x2, y2)
	}

	return 70.0 * (n0 + n1 + n2)
}
