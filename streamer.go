package adcsim

import (
	"context"
	"fmt"
	"time"
)

// Streamer is the live-mode ADC. Each call to Next waits one sampling period,
// reads the clock, quantizes all six channels at that instant, and returns the
// resulting Sample. The stream is infinite and cannot be restarted; make a new
// Streamer for a fresh sequence.
//
// A Streamer is not safe for concurrent use.
type Streamer struct {
	cfg        ADCConfig
	clock      Clock
	sleep      time.Duration
	quantizers [NumChannels]*Quantizer

	// State owned by the sampling loop
	started  bool
	seq      uint64
	prevUsec uint64
}

// NewStreamer validates cfg and creates a Streamer for it.
func NewStreamer(cfg ADCConfig, opts ...Option) (*Streamer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Streamer{
		cfg:   cfg,
		clock: o.clock,
		sleep: time.Duration(o.sleepFraction * float64(cfg.SamplingPeriod())),
		seq:   cfg.InitialSequence,
	}
	for i, ch := range cfg.Channels {
		var qopts []QuantizerOption
		if o.noise != nil {
			qopts = append(qopts, WithNoiseSource(o.noise(i)))
		}
		q, err := NewQuantizer(cfg.ResolutionBits, cfg.ReferenceVoltageV, ch.Noise, qopts...)
		if err != nil {
			return nil, fmt.Errorf("channel %d (%s): %w", i, ChannelNames[i], err)
		}
		s.quantizers[i] = q
	}
	return s, nil
}

// Config returns the configuration the Streamer was built with.
func (s *Streamer) Config() ADCConfig { return s.cfg }

// Next blocks for one sampling period and returns the next Sample. The first
// call starts the stream; its time delta is measured from that moment.
// If ctx is done first, Next returns ctx.Err() and no Sample is consumed.
func (s *Streamer) Next(ctx context.Context) (Sample, error) {
	if !s.started {
		s.prevUsec = unixMicro(s.clock.Now())
		s.started = true
	}
	if err := s.clock.Sleep(ctx, s.sleep); err != nil {
		return Sample{}, err
	}

	nowUsec := unixMicro(s.clock.Now())
	t := float64(nowUsec) / 1e6
	smp := Sample{
		SequenceNumber: s.seq,
		TimestampUsec:  nowUsec,
		TimeDeltaUsec:  elapsedMicros(s.prevUsec, nowUsec),
	}
	for i, q := range s.quantizers {
		smp.Channels[i] = q.Quantize(s.cfg.Channels[i].Signal, t)
	}

	s.seq++
	s.prevUsec = nowUsec
	return smp, nil
}
