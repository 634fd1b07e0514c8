package adcsim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"
	"github.com/usnistgov/adcsim/internal/streamstats"
)

// Source produces an endless series of Samples. Both *Streamer and
// *PlaybackStreamer are Sources.
type Source interface {
	Next(ctx context.Context) (Sample, error)
}

// Sink consumes Samples, typically by encoding them onto some transport.
type Sink interface {
	Write(s Sample) error
	Close() error
}

// Interrupter is implemented by sinks whose Write can block indefinitely
// (waiting for a receiver to connect, for instance). Run calls Interrupt when
// its context is done, and Write must then return promptly.
type Interrupter interface {
	Interrupt()
}

// RunOptions control a call to Run.
type RunOptions struct {
	RunID       string // identifies the run in log lines; NewRunID() if empty
	UpdateEvery int    // log a summary every this many samples; 0 means never
	Limit       uint64 // stop after this many samples; 0 means no limit
}

// NewRunID returns a fresh, time-ordered run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// Run moves samples from src to sink until ctx is done, the limit is reached,
// or either side fails. It returns the number of samples written. Cancellation
// is a normal stop and returns a nil error. Run does not close sink.
func Run(ctx context.Context, src Source, sink Sink, opts RunOptions) (uint64, error) {
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}
	if it, ok := sink.(Interrupter); ok {
		stop := context.AfterFunc(ctx, it.Interrupt)
		defer stop()
	}
	limit := opts.Limit
	if limit == 0 {
		limit = math.MaxUint64
	}

	var stats *streamstats.Accumulator
	if opts.UpdateEvery > 0 {
		stats = streamstats.New(NumChannels)
	}

	var nsent uint64
	for nsent < limit {
		smp, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nsent, nil
			}
			return nsent, fmt.Errorf("run %s: source: %w", opts.RunID, err)
		}
		if err := sink.Write(smp); err != nil {
			if ctx.Err() != nil {
				return nsent, nil
			}
			return nsent, fmt.Errorf("run %s: sink after %d samples: %w", opts.RunID, nsent, err)
		}
		nsent++

		if stats != nil {
			stats.Add(smp.SequenceNumber, smp.Channels[:], smp.TimeDeltaUsec)
			if stats.Count() >= opts.UpdateEvery {
				UpdateLogger.Printf("run %s: %s samples sent; %v", opts.RunID,
					humanize.Comma(int64(min(nsent, math.MaxInt64))), stats.Summary())
				stats.Reset()
			}
		}
	}
	return nsent, nil
}

// Samples runs src in its own goroutine and delivers its output on a channel
// with the given buffer depth. The sample channel is closed when ctx is done
// or src fails; in the latter case the error is sent first on the error
// channel, which has capacity 1.
func Samples(ctx context.Context, src Source, depth int) (<-chan Sample, <-chan error) {
	out := make(chan Sample, max(depth, 0))
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		for {
			smp, err := src.Next(ctx)
			if err != nil {
				if ctx.Err() == nil {
					errs <- err
				}
				return
			}
			select {
			case out <- smp:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errs
}
