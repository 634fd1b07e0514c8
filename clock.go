package adcsim

import (
	"context"
	"math"
	"time"
)

// Clock is the time base of a streamer: it tells the time and it waits.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// WallClock is the system real-time clock.
var WallClock Clock = wallClock{}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// unixMicro converts t to microseconds since the Unix epoch, saturating at 0.
func unixMicro(t time.Time) uint64 {
	us := t.UnixMicro()
	if us < 0 {
		return 0
	}
	return uint64(us)
}

// MaxDeltaUsec is the longest delta, in microseconds, that a time.Duration can hold.
const MaxDeltaUsec = uint64(math.MaxInt64 / int64(time.Microsecond))

// microsDuration converts us to a Duration, saturating at MaxDeltaUsec.
func microsDuration(us uint64) time.Duration {
	return time.Duration(min(us, MaxDeltaUsec)) * time.Microsecond
}

// elapsedMicros returns now-prev, or 0 if the clock stepped backwards.
func elapsedMicros(prev, now uint64) uint64 {
	if now < prev {
		return 0
	}
	return now - prev
}

// options holds settings shared by Streamer and PlaybackStreamer.
type options struct {
	clock         Clock
	noise         func(channel int) NoiseSource
	sleepFraction float64
}

func defaultOptions() options {
	return options{clock: WallClock, sleepFraction: 1.0}
}

// Option configures a Streamer or a PlaybackStreamer.
type Option func(*options)

// WithClock replaces the wall clock, typically with a simulated one in tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithNoise supplies a noise generator for each channel index 0-5.
// It is ignored in playback mode.
func WithNoise(factory func(channel int) NoiseSource) Option {
	return func(o *options) { o.noise = factory }
}

// WithSleepFraction sets the fraction of the sampling period a live Streamer
// sleeps between samples. Values below 1 compensate for per-sample overhead;
// the default is 1.
func WithSleepFraction(f float64) Option {
	return func(o *options) {
		if f > 0 {
			o.sleepFraction = f
		}
	}
}
