package adcsim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Sample is one ADC output record: all six channel codes taken at a single
// instant, plus sequence and timing metadata.
type Sample struct {
	SequenceNumber uint64
	Channels       [NumChannels]uint16
	TimestampUsec  uint64 // microseconds since the Unix epoch
	TimeDeltaUsec  uint64 // microseconds since the previous sample
}

// SampleSize is the length of the binary record. The layout matches the C struct
//
//	struct { int64_t seq; uint16_t ch[6]; int64_t ts; int64_t delta; }
//
// on 64-bit Linux, always little-endian:
//
//	offset  0: sequence number, int64
//	offset  8: ch0..ch5, uint16 each
//	offset 20: 4 bytes of zero padding
//	offset 24: timestamp in µs, int64
//	offset 32: time delta in µs, int64
const SampleSize = 40

const (
	offsetSequence  = 0
	offsetChannels  = 8
	offsetPadding   = 20
	offsetTimestamp = 24
	offsetDelta     = 32
)

var byteOrder = binary.LittleEndian

// AppendBinary appends the 40-byte record for s to b.
func (s Sample) AppendBinary(b []byte) ([]byte, error) {
	if s.SequenceNumber > math.MaxInt64 || s.TimestampUsec > math.MaxInt64 || s.TimeDeltaUsec > math.MaxInt64 {
		return b, fmt.Errorf("%w: sample %d has a field too large for int64", ErrEncoding, s.SequenceNumber)
	}
	b = byteOrder.AppendUint64(b, s.SequenceNumber)
	for _, v := range s.Channels {
		b = byteOrder.AppendUint16(b, v)
	}
	b = append(b, 0, 0, 0, 0)
	b = byteOrder.AppendUint64(b, s.TimestampUsec)
	b = byteOrder.AppendUint64(b, s.TimeDeltaUsec)
	return b, nil
}

// MarshalBinary returns the 40-byte record for s.
func (s Sample) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, SampleSize))
}

// UnmarshalBinary decodes a 40-byte record. The padding bytes are ignored.
func (s *Sample) UnmarshalBinary(data []byte) error {
	if len(data) != SampleSize {
		return fmt.Errorf("%w: binary sample is %d bytes, want %d", ErrEncoding, len(data), SampleSize)
	}
	var out Sample
	fields := []struct {
		name string
		off  int
		dst  *uint64
	}{
		{"sequence number", offsetSequence, &out.SequenceNumber},
		{"timestamp", offsetTimestamp, &out.TimestampUsec},
		{"time delta", offsetDelta, &out.TimeDeltaUsec},
	}
	for _, f := range fields {
		v := int64(byteOrder.Uint64(data[f.off:]))
		if v < 0 {
			return fmt.Errorf("%w: negative %s %d", ErrEncoding, f.name, v)
		}
		*f.dst = uint64(v)
	}
	for i := range out.Channels {
		out.Channels[i] = byteOrder.Uint16(data[offsetChannels+2*i:])
	}
	*s = out
	return nil
}

// WriteTo writes the binary record for s to w.
func (s Sample) WriteTo(w io.Writer) (int64, error) {
	var buf [SampleSize]byte
	b, err := s.AppendBinary(buf[:0])
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// ReadSample reads one binary record from r. It returns io.EOF only when r is
// exhausted exactly at a record boundary.
func ReadSample(r io.Reader) (Sample, error) {
	var buf [SampleSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Sample{}, fmt.Errorf("%w: truncated binary sample: %v", ErrEncoding, err)
		}
		return Sample{}, err
	}
	var s Sample
	err := s.UnmarshalBinary(buf[:])
	return s, err
}
