package sampledb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/usnistgov/adcsim"
)

func TestConnection(t *testing.T) {
	v, err := PingServer(Options{Database: "default"})
	if err != nil {
		t.Skipf("no ClickHouse server: %v", err)
	}
	t.Logf("ClickHouse server is alive. Version: %s", v)
}

type recorder struct {
	batches [][]adcsim.Sample
	runs    []RunMessage
	closed  bool
	fail    error
}

func (r *recorder) flush(_ context.Context, samples []adcsim.Sample) error {
	r.batches = append(r.batches, append([]adcsim.Sample(nil), samples...))
	return r.fail
}

func (r *recorder) logRun(_ context.Context, run *RunMessage) error {
	r.runs = append(r.runs, *run)
	return nil
}

func (r *recorder) close() error {
	r.closed = true
	return nil
}

func TestBatching(t *testing.T) {
	rec := &recorder{}
	run := &RunMessage{ID: adcsim.NewRunID(), Start: time.Now()}
	s := newSink(run, 3, rec.flush, rec.logRun, rec.close)
	for i := range 7 {
		assert.NoError(t, s.Write(adcsim.Sample{SequenceNumber: uint64(i)}))
	}
	if len(rec.batches) != 2 {
		t.Errorf("after 7 samples, %d batches sent, want 2", len(rec.batches))
	}
	assert.NoError(t, s.Close())
	assert.Len(t, rec.batches, 3)
	assert.Len(t, rec.batches[2], 1)
	assert.Equal(t, uint64(6), rec.batches[2][0].SequenceNumber)
	assert.True(t, rec.closed)
	if assert.Len(t, rec.runs, 1) {
		assert.Equal(t, uint64(7), rec.runs[0].Samples)
		assert.False(t, rec.runs[0].End.IsZero())
	}
}

func TestFlushError(t *testing.T) {
	rec := &recorder{fail: errors.New("table is read-only")}
	s := newSink(&RunMessage{}, 2, rec.flush, rec.logRun, rec.close)
	assert.NoError(t, s.Write(adcsim.Sample{}))
	assert.ErrorContains(t, s.Write(adcsim.Sample{}), "read-only")
	assert.NoError(t, s.Flush(), "nothing left to flush")
}

func TestOptionDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, "localhost:9000", o.Addr)
	assert.Equal(t, DefaultDatabase, o.Database)
	assert.Equal(t, DefaultBatchSize, o.BatchSize)
}
