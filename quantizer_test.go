package adcsim

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantizerNoiseless(t *testing.T) {
	q, err := NewQuantizer(12, 240, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(4095), q.MaxValue())
	assert.InDelta(t, 2047.5/240, q.Scale(), 1e-12)

	sig, err := NewAnalogSignal(50, 240, 0, Sine)
	require.NoError(t, err)
	if code := q.Quantize(sig, 0); code != 2048 {
		t.Errorf("Quantize at zero crossing = %d, want 2048", code)
	}
	if code := q.Quantize(sig, 1.0/200); code != 4095 {
		t.Errorf("Quantize at positive peak = %d, want 4095", code)
	}
	if code := q.Quantize(sig, 3.0/200); code != 0 {
		t.Errorf("Quantize at negative peak = %d, want 0", code)
	}
}

func TestQuantizerSaturates(t *testing.T) {
	q, err := NewQuantizer(8, 1, 0)
	require.NoError(t, err)
	big, _ := NewAnalogSignal(1, 100, 0, Square)
	assert.Equal(t, uint16(255), q.Quantize(big, 0.25))
	assert.Equal(t, uint16(0), q.Quantize(big, 0.75))
	assert.Equal(t, uint16(128), q.Quantize(nanSignal{}, 0))
}

type nanSignal struct{}

func (nanSignal) Value(float64) float64 { return math.NaN() }

func TestQuantizerNoiseInRange(t *testing.T) {
	for _, bits := range []int{1, 4, 12, 16} {
		q, err := NewQuantizer(bits, 240, 1, WithNoiseSource(rand.New(rand.NewPCG(1, uint64(bits)))))
		require.NoError(t, err)
		sig, _ := NewAnalogSignal(49.5, 240, 0, Sine)
		seen := make(map[uint16]bool)
		for i := range 5000 {
			code := q.Quantize(sig, float64(i)/1200)
			if code > q.MaxValue() {
				t.Fatalf("%d-bit code %d exceeds max %d", bits, code, q.MaxValue())
			}
			seen[code] = true
		}
		assert.Greater(t, len(seen), 1, "noise should spread %d-bit codes", bits)
	}
}

func TestQuantizerNoiseRepeatable(t *testing.T) {
	sig, _ := NewAnalogSignal(50, 100, 0, Sine)
	q1, _ := NewQuantizer(12, 240, 0.1, WithNoiseSource(rand.New(rand.NewPCG(42, 43))))
	q2, _ := NewQuantizer(12, 240, 0.1, WithNoiseSource(rand.New(rand.NewPCG(42, 43))))
	for i := range 100 {
		tm := float64(i) / 1000
		assert.Equal(t, q1.Quantize(sig, tm), q2.Quantize(sig, tm))
	}
}

func TestQuantizerNoiseBounded(t *testing.T) {
	// Noise of 0.1·vref moves a code by at most 0.1·(max/2), plus rounding.
	q, _ := NewQuantizer(12, 240, 0.1, WithNoiseSource(rand.New(rand.NewPCG(7, 8))))
	flat, _ := NewAnalogSignal(50, 0, 0, Sine)
	for range 1000 {
		code := float64(q.Quantize(flat, 0))
		assert.InDelta(t, 2047.5, code, 0.1*2047.5+1)
	}
}

func TestQuantizerInvalid(t *testing.T) {
	tests := []struct {
		bits  int
		vref  float64
		noise float64
	}{
		{0, 1, 0},
		{17, 1, 0},
		{12, 0, 0},
		{12, -5, 0},
		{12, math.Inf(1), 0},
		{12, math.NaN(), 0},
		{12, 1, -0.1},
		{12, 1, 1.5},
		{12, 1, math.NaN()},
	}
	for _, tt := range tests {
		_, err := NewQuantizer(tt.bits, tt.vref, tt.noise)
		assert.ErrorIs(t, err, ErrInvalidParameter, "NewQuantizer(%d, %v, %v)", tt.bits, tt.vref, tt.noise)
	}
}
