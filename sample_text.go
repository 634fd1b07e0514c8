package adcsim

import (
	"fmt"
	"strconv"
	"strings"
)

// textKeys are the keys of the text form of a Sample, in their fixed order.
var textKeys = [...]string{"seq", "ch0", "ch1", "ch2", "ch3", "ch4", "ch5", "ts", "delta"}

// channelWidth pads channel codes to the width of the largest uint16.
const channelWidth = 5

// AppendText appends the one-line text form of s (without a newline), e.g.
//
//	seq=7,	ch0= 2048, ch1=  301, ch2= 3794, ch3= 2578, ch4=   15, ch5= 3503,	ts=1742713200000000,	delta=833
func (s Sample) AppendText(b []byte) ([]byte, error) {
	b = append(b, "seq="...)
	b = strconv.AppendUint(b, s.SequenceNumber, 10)
	b = append(b, ",\t"...)
	for i, v := range s.Channels {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = fmt.Appendf(b, "ch%d=%*d", i, channelWidth, v)
	}
	b = append(b, ",\tts="...)
	b = strconv.AppendUint(b, s.TimestampUsec, 10)
	b = append(b, ",\tdelta="...)
	b = strconv.AppendUint(b, s.TimeDeltaUsec, 10)
	return b, nil
}

// MarshalText returns the one-line text form of s.
func (s Sample) MarshalText() ([]byte, error) {
	return s.AppendText(make([]byte, 0, 128))
}

func (s Sample) String() string {
	b, _ := s.AppendText(nil)
	return string(b)
}

// UnmarshalText decodes the text form of a Sample. Whitespace around tokens,
// a trailing comma, and a trailing newline are all accepted; the keys must
// appear in the order seq, ch0..ch5, ts, delta.
func (s *Sample) UnmarshalText(text []byte) error {
	line := strings.TrimSpace(string(text))
	line = strings.TrimSuffix(line, ",")
	tokens := strings.Split(line, ",")
	if len(tokens) != len(textKeys) {
		return fmt.Errorf("%w: text sample has %d fields, want %d", ErrEncoding, len(tokens), len(textKeys))
	}

	var values [len(textKeys)]uint64
	for i, tok := range tokens {
		key, val, ok := strings.Cut(strings.TrimSpace(tok), "=")
		if !ok {
			return fmt.Errorf("%w: field %d %q is not key=value", ErrEncoding, i, tok)
		}
		if key = strings.TrimSpace(key); key != textKeys[i] {
			return fmt.Errorf("%w: field %d has key %q, want %q", ErrEncoding, i, key, textKeys[i])
		}
		bits := 64
		if strings.HasPrefix(key, "ch") {
			bits = 16
		}
		v, err := strconv.ParseUint(strings.TrimSpace(val), 10, bits)
		if err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrEncoding, key, err)
		}
		values[i] = v
	}

	var out Sample
	out.SequenceNumber = values[0]
	for i := range out.Channels {
		out.Channels[i] = uint16(values[1+i])
	}
	out.TimestampUsec = values[7]
	out.TimeDeltaUsec = values[8]
	*s = out
	return nil
}

// ParseSample decodes one text line into a Sample.
func ParseSample(line string) (Sample, error) {
	var s Sample
	err := s.UnmarshalText([]byte(line))
	return s, err
}
