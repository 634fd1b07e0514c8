package sinks

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/usnistgov/adcsim"
	"github.com/usnistgov/adcsim/internal/asyncbufio"
)

// streamDepth is the number of encoded samples the asynchronous writer can hold.
const streamDepth = 4096

// flushInterval bounds how long a sample can sit in the stream buffer.
const flushInterval = 100 * time.Millisecond

// Stream writes encoded samples to any io.Writer through an asynchronous
// buffered writer.
type Stream struct {
	encoder
	w      *asyncbufio.Writer
	closer io.Closer // closed after the writer, if not nil

	interrupted atomic.Bool
}

// NewStream makes a Stream on w. Closing the Stream flushes but does not close w.
func NewStream(w io.Writer, enc adcsim.Encoding) *Stream {
	return &Stream{
		encoder: encoder{enc: enc},
		w:       asyncbufio.NewWriter(w, streamDepth, flushInterval),
	}
}

// newOwningStream makes a Stream that also closes f when closed.
func newOwningStream(f *os.File, enc adcsim.Encoding) *Stream {
	s := NewStream(f, enc)
	s.closer = f
	return s
}

// CreateFile creates or truncates path and streams samples into it.
func CreateFile(path string, enc adcsim.Encoding) (*Stream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return newOwningStream(f, enc), nil
}

// Write queues the encoded sample.
func (s *Stream) Write(smp adcsim.Sample) error {
	b, err := s.encode(smp)
	if err != nil {
		return err
	}
	_, err = s.w.Write(b)
	return err
}

// Flush writes all queued samples.
func (s *Stream) Flush() error {
	return s.w.Flush()
}

// Interrupt unblocks a Write stalled on a reader that stopped reading. The
// owned file, if pollable (a pipe or FIFO), gets an expired write deadline, and
// queued samples are abandoned. Every later Write fails.
func (s *Stream) Interrupt() {
	s.interrupted.Store(true)
	if f, ok := s.closer.(*os.File); ok {
		// Regular files cannot take deadlines; their writes do not stall.
		f.SetWriteDeadline(time.Now())
	}
	s.w.Abort()
}

// Close flushes and, for a Stream that owns its file, closes it. After
// Interrupt, unwritten samples are discarded without error.
func (s *Stream) Close() error {
	err := s.w.Close()
	if s.interrupted.Load() {
		err = nil
	}
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}
