package adcsim

import (
	"context"
	"fmt"
	"slices"
)

// PresampledRow is one row of a recorded dataset: six channel codes and the
// recorded time since the previous row.
type PresampledRow struct {
	Channels      [NumChannels]uint16
	TimeDeltaUsec uint64
}

// PlaybackStreamer replays a recorded dataset in place of synthetic signals.
// Rows are emitted in order and the dataset repeats forever. Each row is
// preceded by a sleep of its recorded delta; the emitted Sample carries the
// actual elapsed time, not the recorded one.
//
// A PlaybackStreamer is not safe for concurrent use.
type PlaybackStreamer struct {
	rows  []PresampledRow
	clock Clock

	started  bool
	cursor   int
	seq      uint64
	prevUsec uint64
}

// NewPlaybackStreamer copies rows and prepares them for replay. The first
// row's delta is replaced by the median of all recorded deltas, so that an
// outlier gap at the start of a recording does not set the pace.
func NewPlaybackStreamer(rows []PresampledRow, opts ...Option) (*PlaybackStreamer, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows to replay", ErrEmptyDataset)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	replay := slices.Clone(rows)
	replay[0].TimeDeltaUsec = medianDelta(rows)
	return &PlaybackStreamer{rows: replay, clock: o.clock}, nil
}

// medianDelta returns the median recorded delta. For an even number of rows
// it is the mean of the middle two, truncated to whole microseconds.
func medianDelta(rows []PresampledRow) uint64 {
	deltas := make([]uint64, len(rows))
	for i, r := range rows {
		deltas[i] = r.TimeDeltaUsec
	}
	slices.Sort(deltas)
	mid := len(deltas) / 2
	if len(deltas)%2 == 1 {
		return deltas[mid]
	}
	lo, hi := deltas[mid-1], deltas[mid]
	return lo + (hi-lo)/2
}

// Len returns the number of rows in one replay cycle.
func (p *PlaybackStreamer) Len() int { return len(p.rows) }

// Reset rewinds to the first row and sequence number 0. The next call to Next
// starts timing afresh.
func (p *PlaybackStreamer) Reset() {
	p.started = false
	p.cursor = 0
	p.seq = 0
}

// Next sleeps for the current row's replay delta and returns it as a Sample.
// If ctx is done first, Next returns ctx.Err() and the row is not consumed.
func (p *PlaybackStreamer) Next(ctx context.Context) (Sample, error) {
	if !p.started {
		p.prevUsec = unixMicro(p.clock.Now())
		p.started = true
	}
	row := p.rows[p.cursor]
	if err := p.clock.Sleep(ctx, microsDuration(row.TimeDeltaUsec)); err != nil {
		return Sample{}, err
	}

	nowUsec := unixMicro(p.clock.Now())
	smp := Sample{
		SequenceNumber: p.seq,
		Channels:       row.Channels,
		TimestampUsec:  nowUsec,
		TimeDeltaUsec:  elapsedMicros(p.prevUsec, nowUsec),
	}

	p.seq++
	p.prevUsec = nowUsec
	p.cursor++
	if p.cursor == len(p.rows) {
		p.cursor = 0
	}
	return smp, nil
}
