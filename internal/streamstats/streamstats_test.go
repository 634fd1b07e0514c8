package streamstats

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary(t *testing.T) {
	a := New(2)
	a.Add(10, []uint16{100, 0}, 1000)
	a.Add(11, []uint16{200, 0}, 2000)
	a.Add(14, []uint16{300, 0}, 3000)
	assert.Equal(t, 3, a.Count())

	s := a.Summary()
	assert.Equal(t, 3, s.Samples)
	assert.Equal(t, uint64(10), s.FirstSeq)
	assert.Equal(t, uint64(14), s.LastSeq)
	if s.Gaps != 2 {
		t.Errorf("Summary().Gaps = %d, want 2", s.Gaps)
	}
	assert.InDelta(t, 200.0, s.Channels[0].Mean, 1e-9)
	assert.InDelta(t, 100.0, s.Channels[0].StdDev, 1e-9)
	assert.Equal(t, 100.0, s.Channels[0].Min)
	assert.Equal(t, 300.0, s.Channels[0].Max)
	assert.Equal(t, 0.0, s.Channels[1].StdDev)
	assert.InDelta(t, 2000.0, s.DeltaMeanUsec, 1e-9)
	assert.InDelta(t, 1000.0, s.DeltaJitterUsec, 1e-9)
	assert.InDelta(t, 500.0, s.Rate(), 1e-9)
	assert.True(t, strings.Contains(s.String(), "2 missing"), s.String())
}

func TestResetAndRestarts(t *testing.T) {
	a := New(1)
	a.Add(5, []uint16{1}, 10)
	a.Add(0, []uint16{1}, 10)
	s := a.Summary()
	assert.Equal(t, 1, s.Restarts)
	assert.Equal(t, uint64(0), s.Gaps)

	a.Reset()
	assert.Equal(t, 0, a.Count())
	assert.Equal(t, "no samples", a.Summary().String())

	a.Add(7, []uint16{42, 99}, 0)
	s = a.Summary()
	assert.Equal(t, uint64(7), s.FirstSeq)
	assert.Equal(t, 0.0, s.DeltaJitterUsec)
	assert.Equal(t, 0.0, s.Rate())
	assert.False(t, math.IsNaN(s.Channels[0].StdDev))
}
