package adcsim

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/viper"
)

// NumChannels is the number of ADC channels: 3 voltage phases then 3 current phases.
const NumChannels = 6

// ChannelNames labels the channels in order.
var ChannelNames = [NumChannels]string{"VA", "VB", "VC", "IA", "IB", "IC"}

// Channel pairs an analog signal with the noise coefficient of its ADC input.
type Channel struct {
	Signal AnalogSignal
	Noise  float64 // noise half-range as a fraction of the reference voltage, in [0,1]
}

// ADCConfig holds everything needed to build a live Streamer.
type ADCConfig struct {
	ResolutionBits    int
	SamplingRateHz    int
	ReferenceVoltageV float64
	Channels          [NumChannels]Channel
	InitialSequence   uint64
}

// Validate checks all parameters, returning an error wrapping ErrInvalidParameter.
func (c ADCConfig) Validate() error {
	if c.SamplingRateHz <= 0 {
		return fmt.Errorf("%w: sampling rate %d Hz must be positive", ErrInvalidParameter, c.SamplingRateHz)
	}
	for i, ch := range c.Channels {
		if _, err := NewQuantizer(c.ResolutionBits, c.ReferenceVoltageV, ch.Noise); err != nil {
			return fmt.Errorf("channel %d (%s): %w", i, ChannelNames[i], err)
		}
		if ch.Signal.Frequency() <= 0 {
			return fmt.Errorf("%w: channel %d (%s) has no signal", ErrInvalidParameter, i, ChannelNames[i])
		}
	}
	return nil
}

// MaxValue returns the largest ADC code, 2^bits - 1.
func (c ADCConfig) MaxValue() uint16 {
	if c.ResolutionBits <= 0 || c.ResolutionBits > MaxResolutionBits {
		return 0
	}
	return uint16((1 << c.ResolutionBits) - 1)
}

// SamplingPeriod returns 1/SamplingRateHz.
func (c ADCConfig) SamplingPeriod() time.Duration {
	if c.SamplingRateHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.SamplingRateHz)
}

// ThreePhaseChannels returns balanced three-phase voltages VA, VB, VC at 0°, 120°, 240°
// and currents IA, IB, IC shifted by +phaseDiffDeg from them. All channels
// share the same noise coefficient.
func ThreePhaseChannels(frequencyHz, voltage, current, phaseDiffDeg, noise float64, wf Waveform) ([NumChannels]Channel, error) {
	var chans [NumChannels]Channel
	for i := range NumChannels {
		amplitude := voltage
		phaseDeg := float64(120 * (i % 3))
		if i >= 3 {
			amplitude = current
			phaseDeg += phaseDiffDeg
		}
		sig, err := NewAnalogSignal(frequencyHz, amplitude, phaseDeg*math.Pi/180, wf)
		if err != nil {
			return chans, fmt.Errorf("channel %s: %w", ChannelNames[i], err)
		}
		chans[i] = Channel{Signal: sig, Noise: noise}
	}
	return chans, nil
}

// SetConfigDefaults installs the default value of every configuration key on v.
func SetConfigDefaults(v *viper.Viper) {
	v.SetDefault("Verbose", false)
	v.SetDefault("sampling_rate", 1200)
	v.SetDefault("bits", 12)
	v.SetDefault("noise", 0.1)
	v.SetDefault("frequency", 49.5)
	v.SetDefault("voltage", 240.0)
	v.SetDefault("current", 0.0)           // 0 means "same as voltage": currents reach the ADC as voltages
	v.SetDefault("reference_voltage", 0.0) // 0 means "same as voltage"
	v.SetDefault("phase_diff", 15.0)
	v.SetDefault("waveform", "sine")
	v.SetDefault("initial_sequence", 0)
	v.SetDefault("sleep_fraction", 1.0)
	v.SetDefault("presampled", "")
	v.SetDefault("update_every", 12000)
	v.SetDefault("sink.type", "stdout")
	v.SetDefault("sink.encoding", "text")
	v.SetDefault("sink.endpoint", "")
	v.SetDefault("sink.path", "")
	v.SetDefault("sink.pipe_size", 1<<20)
	v.SetDefault("sink.batch_size", 1200)
	v.SetDefault("sink.database", "adcsim")
}

// ADCConfigFromViper builds a three-phase ADCConfig from the keys set on v.
func ADCConfigFromViper(v *viper.Viper) (ADCConfig, error) {
	voltage := v.GetFloat64("voltage")
	current := v.GetFloat64("current")
	if current == 0 {
		current = voltage
	}
	vref := v.GetFloat64("reference_voltage")
	if vref == 0 {
		vref = max(voltage, current)
	}
	wf, err := ParseWaveform(v.GetString("waveform"))
	if err != nil {
		return ADCConfig{}, err
	}
	chans, err := ThreePhaseChannels(v.GetFloat64("frequency"), voltage, current,
		v.GetFloat64("phase_diff"), v.GetFloat64("noise"), wf)
	if err != nil {
		return ADCConfig{}, err
	}
	cfg := ADCConfig{
		ResolutionBits:    v.GetInt("bits"),
		SamplingRateHz:    v.GetInt("sampling_rate"),
		ReferenceVoltageV: vref,
		Channels:          chans,
		InitialSequence:   v.GetUint64("initial_sequence"),
	}
	return cfg, cfg.Validate()
}
