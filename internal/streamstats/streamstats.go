// Package streamstats summarizes a stream of multi-channel ADC samples:
// per-channel code statistics, sample spacing and jitter, and gaps in the
// sequence numbers.
package streamstats

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Accumulator collects samples until Summary is called. It is not safe for
// concurrent use.
type Accumulator struct {
	nchan    int
	codes    [][]float64 // codes[channel][i]
	deltas   []float64
	started  bool
	firstSeq uint64
	lastSeq  uint64
	gaps     uint64 // samples missing between consecutive sequence numbers
	restarts int    // times the sequence went backwards or repeated
}

// New makes an Accumulator for samples with nchan channels.
func New(nchan int) *Accumulator {
	return &Accumulator{
		nchan: nchan,
		codes: make([][]float64, nchan),
	}
}

// Add records one sample. Channels beyond the Accumulator's channel count are
// ignored.
func (a *Accumulator) Add(seq uint64, channels []uint16, deltaUsec uint64) {
	for i := range min(len(channels), a.nchan) {
		a.codes[i] = append(a.codes[i], float64(channels[i]))
	}
	a.deltas = append(a.deltas, float64(deltaUsec))
	if !a.started {
		a.started = true
		a.firstSeq = seq
	} else if seq > a.lastSeq {
		a.gaps += seq - a.lastSeq - 1
	} else {
		a.restarts++
	}
	a.lastSeq = seq
}

// Count returns the number of samples added since the last Reset.
func (a *Accumulator) Count() int { return len(a.deltas) }

// Reset discards all samples.
func (a *Accumulator) Reset() {
	for i := range a.codes {
		a.codes[i] = a.codes[i][:0]
	}
	a.deltas = a.deltas[:0]
	a.started = false
	a.gaps = 0
	a.restarts = 0
}

// ChannelSummary describes the codes seen on one channel.
type ChannelSummary struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summary describes everything added since the last Reset.
type Summary struct {
	Samples         int
	FirstSeq        uint64
	LastSeq         uint64
	Gaps            uint64
	Restarts        int
	Channels        []ChannelSummary
	DeltaMeanUsec   float64
	DeltaJitterUsec float64 // standard deviation of the deltas
	DeltaMinUsec    float64
	DeltaMaxUsec    float64
}

// Summary computes the statistics of the samples added so far.
func (a *Accumulator) Summary() Summary {
	s := Summary{
		Samples:  len(a.deltas),
		FirstSeq: a.firstSeq,
		LastSeq:  a.lastSeq,
		Gaps:     a.gaps,
		Restarts: a.restarts,
		Channels: make([]ChannelSummary, a.nchan),
	}
	if s.Samples == 0 {
		return s
	}
	for i, codes := range a.codes {
		if len(codes) == 0 {
			continue
		}
		mean, std := meanStdDev(codes)
		s.Channels[i] = ChannelSummary{
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(codes),
			Max:    floats.Max(codes),
		}
	}
	s.DeltaMeanUsec, s.DeltaJitterUsec = meanStdDev(a.deltas)
	s.DeltaMinUsec = floats.Min(a.deltas)
	s.DeltaMaxUsec = floats.Max(a.deltas)
	return s
}

// meanStdDev is stat.MeanStdDev, except that a single value has zero spread
// instead of NaN.
func meanStdDev(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}

// Rate returns the mean sample rate in Hz implied by the deltas, or 0.
func (s Summary) Rate() float64 {
	if s.DeltaMeanUsec <= 0 {
		return 0
	}
	return 1e6 / s.DeltaMeanUsec
}

func (s Summary) String() string {
	if s.Samples == 0 {
		return "no samples"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "seq %d-%d (%d samples, %d missing", s.FirstSeq, s.LastSeq, s.Samples, s.Gaps)
	if s.Restarts > 0 {
		fmt.Fprintf(&b, ", %d restarts", s.Restarts)
	}
	fmt.Fprintf(&b, "), delta %.1f±%.1f µs [%.0f, %.0f] (%.1f Hz)", s.DeltaMeanUsec, s.DeltaJitterUsec,
		s.DeltaMinUsec, s.DeltaMaxUsec, s.Rate())
	for i, c := range s.Channels {
		fmt.Fprintf(&b, "; ch%d %.1f±%.1f [%.0f, %.0f]", i, c.Mean, c.StdDev, c.Min, c.Max)
	}
	return b.String()
}
