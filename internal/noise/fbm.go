package noise

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidOctaves is returned by Octaves.Validate.
var ErrInvalidOctaves = errors.New("invalid octave parameters")

// Octaves parameterises an FBM composition.
type Octaves struct {
	Count      int     // number of layers
	Lacunarity float64 // frequency multiplier per layer
	Gain       float64 // amplitude multiplier per layer
}

// DefaultOctaves are the constants used by the fractal texture mode.
var DefaultOctaves = Octaves{Count: 4, Lacunarity: 2.0, Gain: 0.5}

// Validate rejects a negative count and non-finite multipliers.
func (o Octaves) Validate() error {
	if o.Count < 0 {
		return fmt.Errorf("%w: count %d", ErrInvalidOctaves, o.Count)
	}
	if math.IsNaN(o.Lacunarity) || math.IsInf(o.Lacunarity, 0) {
		return fmt.Errorf("%w: lacunarity %v", ErrInvalidOctaves, o.Lacunarity)
	}
	if math.IsNaN(o.Gain) || math.IsInf(o.Gain, 0) {
		return fmt.Errorf("%w: gain %v", ErrInvalidOctaves, o.Gain)
	}
	return nil
}

// MaxAmplitude is the sum of the layer amplitudes, i.e. the bound on
// |FBM| for a sampler bounded by 1.
func (o Octaves) MaxAmplitude() float64 {
	total, amp := 0.0, 1.0
	for i := 0; i < o.Count; i++ {
		total += amp
		amp *= o.Gain
	}
	return total
}

// FBM sums o.Count layers of s, starting at frequency 1 and amplitude 1.
// Layers are accumulated in ascending order, always exactly o.Count
// calls to s; a count of zero yields 0. The sum is not normalised.
func FBM(s Sampler, x, y float64, o Octaves) float64 {
	total := 0.0
	frequency := 1.0
	amplitude := 1.0
	for i := 0; i < o.Count; i++ {
		total += s.Sample(x*frequency, y*frequency) * amplitude
		frequency *= o.Lacunarity
		amplitude *= o.Gain
	}
	return total
}
