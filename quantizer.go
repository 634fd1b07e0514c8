package adcsim

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// MaxResolutionBits is the widest ADC code that fits a Sample channel value.
const MaxResolutionBits = 16

// Evaluator is anything that has an analog value at a time in seconds.
type Evaluator interface {
	Value(t float64) float64
}

// NoiseSource supplies uniform random numbers in [0,1). A *rand.Rand satisfies it,
// so tests can inject a seeded generator and get a repeatable noise sequence.
type NoiseSource interface {
	Float64() float64
}

// globalNoise draws from the math/rand/v2 top-level generator, which is randomly
// seeded and safe for concurrent use.
type globalNoise struct{}

func (globalNoise) Float64() float64 { return rand.Float64() }

// Quantizer models one ADC channel: it maps an analog value, plus uniform noise,
// into an integer code of a fixed bit resolution.
type Quantizer struct {
	resolutionBits int
	referenceV     float64
	noise          float64
	maxValue       uint16
	scale          float64 // codes per volt, centered at maxValue/2
	rng            NoiseSource
}

// QuantizerOption modifies a Quantizer as it is constructed.
type QuantizerOption func(*Quantizer)

// WithNoiseSource makes the Quantizer draw its noise from src.
func WithNoiseSource(src NoiseSource) QuantizerOption {
	return func(q *Quantizer) {
		if src != nil {
			q.rng = src
		}
	}
}

// NewQuantizer creates a Quantizer with the given resolution in bits (1 to 16),
// reference voltage (the analog peak that maps to full scale), and noise
// coefficient in [0,1] (the noise half-range as a fraction of the reference).
func NewQuantizer(resolutionBits int, referenceV, noise float64, opts ...QuantizerOption) (*Quantizer, error) {
	if resolutionBits <= 0 || resolutionBits > MaxResolutionBits {
		return nil, fmt.Errorf("%w: resolution %d bits must be in [1, %d]", ErrInvalidParameter,
			resolutionBits, MaxResolutionBits)
	}
	if !(referenceV > 0) || math.IsInf(referenceV, 0) {
		return nil, fmt.Errorf("%w: reference voltage %v must be positive and finite", ErrInvalidParameter, referenceV)
	}
	if !(noise >= 0 && noise <= 1) {
		return nil, fmt.Errorf("%w: noise coefficient %v must be in [0,1]", ErrInvalidParameter, noise)
	}
	maxValue := uint16((1 << resolutionBits) - 1)
	q := &Quantizer{
		resolutionBits: resolutionBits,
		referenceV:     referenceV,
		noise:          noise,
		maxValue:       maxValue,
		scale:          (float64(maxValue) / 2) / referenceV,
		rng:            globalNoise{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// MaxValue returns the largest code, 2^bits - 1.
func (q *Quantizer) MaxValue() uint16 { return q.maxValue }

// Scale returns the number of codes per volt.
func (q *Quantizer) Scale() float64 { return q.scale }

// Quantize samples sig at time t (seconds) and returns the ADC code.
// Noise is added before rounding. Values beyond the reference voltage saturate
// at 0 or MaxValue, and a NaN input reads as the midpoint code.
func (q *Quantizer) Quantize(sig Evaluator, t float64) uint16 {
	raw := sig.Value(t)
	if q.noise > 0 {
		raw += q.noise * (2*q.rng.Float64() - 1) * q.referenceV
	}
	half := float64(q.maxValue) / 2
	code := math.Round(raw*q.scale + half)
	switch {
	case math.IsNaN(code):
		return uint16(math.Round(half))
	case code <= 0:
		return 0
	case code >= float64(q.maxValue):
		return q.maxValue
	}
	return uint16(code)
}
