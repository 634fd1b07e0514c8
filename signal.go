package adcsim

import (
	"fmt"
	"math"
	"strings"
)

// Waveform selects the shape of an AnalogSignal.
type Waveform int

// Names for the possible values of Waveform
const (
	Sine   Waveform = iota // A·sin(2πft+φ)
	Square                 // A·sign(sin(2πft+φ))
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	}
	return fmt.Sprintf("Waveform(%d)", int(w))
}

// ParseWaveform converts "sine" or "square" (any case) to a Waveform.
func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine", "sin", "":
		return Sine, nil
	case "square", "sq":
		return Square, nil
	}
	return Sine, fmt.Errorf("%w: waveform %q is not sine or square", ErrInvalidParameter, name)
}

// AnalogSignal is a periodic analog quantity (a voltage or a current) with fixed
// frequency, amplitude, and initial phase. It is a pure function of time.
type AnalogSignal struct {
	frequencyHz float64
	amplitude   float64
	phaseRad    float64
	waveform    Waveform
}

// NewAnalogSignal creates an AnalogSignal. The frequency must be positive and
// the amplitude non-negative; the phase may be any finite number of radians.
func NewAnalogSignal(frequencyHz, amplitude, phaseRad float64, waveform Waveform) (AnalogSignal, error) {
	switch {
	case !(frequencyHz > 0) || math.IsInf(frequencyHz, 0):
		return AnalogSignal{}, fmt.Errorf("%w: frequency %v Hz must be positive and finite", ErrInvalidParameter, frequencyHz)
	case !(amplitude >= 0) || math.IsInf(amplitude, 0):
		return AnalogSignal{}, fmt.Errorf("%w: amplitude %v must be non-negative and finite", ErrInvalidParameter, amplitude)
	case math.IsNaN(phaseRad) || math.IsInf(phaseRad, 0):
		return AnalogSignal{}, fmt.Errorf("%w: phase %v rad must be finite", ErrInvalidParameter, phaseRad)
	case waveform != Sine && waveform != Square:
		return AnalogSignal{}, fmt.Errorf("%w: unknown waveform %v", ErrInvalidParameter, waveform)
	}
	return AnalogSignal{
		frequencyHz: frequencyHz,
		amplitude:   amplitude,
		phaseRad:    phaseRad,
		waveform:    waveform,
	}, nil
}

// Value returns the instantaneous value of the signal at time t (seconds).
func (s AnalogSignal) Value(t float64) float64 {
	x := math.Sin(2*math.Pi*s.frequencyHz*t + s.phaseRad)
	if s.waveform == Square {
		return s.amplitude * math.Copysign(1, x)
	}
	return s.amplitude * x
}

// Frequency returns the signal frequency in Hz.
func (s AnalogSignal) Frequency() float64 { return s.frequencyHz }

// Amplitude returns the peak value of the signal.
func (s AnalogSignal) Amplitude() float64 { return s.amplitude }

// Phase returns the initial phase in radians.
func (s AnalogSignal) Phase() float64 { return s.phaseRad }

// Waveform returns the shape of the signal.
func (s AnalogSignal) Waveform() Waveform { return s.waveform }

func (s AnalogSignal) String() string {
	return fmt.Sprintf("%s %.3f Hz, amplitude %.3f, phase %.1f°", s.waveform, s.frequencyHz,
		s.amplitude, s.phaseRad*180/math.Pi)
}
