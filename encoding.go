package adcsim

import (
	"fmt"
	"strings"
)

// Encoding selects the wire form in which samples leave the process.
type Encoding int

// Names for the possible values of Encoding
const (
	TextEncoding   Encoding = iota // one newline-terminated key=value line per sample
	BinaryEncoding                 // one fixed SampleSize-byte record per sample
)

func (e Encoding) String() string {
	if e == BinaryEncoding {
		return "binary"
	}
	return "text"
}

// ParseEncoding converts "text" or "binary" (any case) to an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return TextEncoding, nil
	case "binary", "bin":
		return BinaryEncoding, nil
	}
	return TextEncoding, fmt.Errorf("%w: encoding %q is not text or binary", ErrInvalidParameter, name)
}

// Append appends the encoded form of s to b. Text lines end with '\n'.
func (e Encoding) Append(b []byte, s Sample) ([]byte, error) {
	if e == BinaryEncoding {
		return s.AppendBinary(b)
	}
	b, err := s.AppendText(b)
	if err != nil {
		return b, err
	}
	return append(b, '\n'), nil
}

// Decode decodes one encoded sample (a record or a line).
func (e Encoding) Decode(data []byte) (Sample, error) {
	var s Sample
	var err error
	if e == BinaryEncoding {
		err = s.UnmarshalBinary(data)
	} else {
		err = s.UnmarshalText(data)
	}
	return s, err
}
