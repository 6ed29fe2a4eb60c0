// Package noise provides seeded coherent-noise samplers and fractal
// Brownian motion over them.
package noise

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// ErrUnknownKind is returned for an unrecognised sampler backend name.
var ErrUnknownKind = errors.New("unknown noise kind")

// Sampler returns a continuous pseudo-random value for a 2D coordinate.
// Implementations are deterministic for a fixed seed and safe for
// concurrent use once constructed.
type Sampler interface {
	Sample(x, y float64) float64
}

// Kind selects a Sampler backend.
type Kind string

const (
	KindSimplex     Kind = "simplex"
	KindOpenSimplex Kind = "opensimplex"
	KindPerlin      Kind = "perlin"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindSimplex, KindOpenSimplex, KindPerlin}

// ParseKind resolves a backend name. The empty string selects simplex.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindSimplex:
		return KindSimplex, nil
	case KindOpenSimplex:
		return KindOpenSimplex, nil
	case KindPerlin:
		return KindPerlin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// New builds a sampler of the given kind for seed.
func New(kind Kind, seed uint32) (Sampler, error) {
	switch kind {
	case "", KindSimplex:
		return NewSimplex(seed), nil
	case KindOpenSimplex:
		return openSimplexSampler{n: opensimplex.New(int64(seed))}, nil
	case KindPerlin:
		// A single octave: layering is FBM's job.
		return perlinSampler{p: perlin.NewPerlin(2.0, 2.0, 1, int64(seed))}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}
}

type openSimplexSampler struct {
	n opensimplex.Noise
}

func (s openSimplexSampler) Sample(x, y float64) float64 { return s.n.Eval2(x, y) }

type perlinSampler struct {
	p *perlin.Perlin
}

func (s perlinSampler) Sample(x, y float64) float64 { return s.p.Noise2D(x, y) }

// SamplerFunc adapts a plain function to Sampler.
type SamplerFunc func(x, y float64) float64

func (f SamplerFunc) Sample(x, y float64) float64 { return f(x, y) }
