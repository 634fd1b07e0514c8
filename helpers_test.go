package adcsim

import (
	"context"
	"sync"
	"time"
)

// fakeClock is a simulated Clock: Sleep advances Now by exactly d.
type fakeClock struct {
	sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

// memorySink keeps every sample written to it.
type memorySink struct {
	samples []Sample
	closed  bool
}

func (m *memorySink) Write(s Sample) error {
	m.samples = append(m.samples, s)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

// twoRowDataset alternates two rows with recorded deltas 1000 and 2000 µs.
func twoRowDataset() []PresampledRow {
	return []PresampledRow{
		{Channels: [NumChannels]uint16{1, 2, 3, 4, 5, 6}, TimeDeltaUsec: 1000},
		{Channels: [NumChannels]uint16{6, 5, 4, 3, 2, 1}, TimeDeltaUsec: 2000},
	}
}

// testConfig is a noiseless 12-bit, 1 kHz three-phase configuration.
func testConfig() ADCConfig {
	chans, err := ThreePhaseChannels(50, 240, 240, 15, 0, Sine)
	if err != nil {
		panic(err)
	}
	return ADCConfig{
		ResolutionBits:    12,
		SamplingRateHz:    1000,
		ReferenceVoltageV: 240,
		Channels:          chans,
	}
}
