package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/dustin/go-humanize"
	"github.com/pebbe/zmq4"
	"github.com/usnistgov/adcsim"
	"github.com/usnistgov/adcsim/internal/streamstats"
)

// sampleReader yields decoded samples until io.EOF.
type sampleReader interface {
	next() (adcsim.Sample, error)
}

// streamReader decodes a byte stream: back-to-back binary records or text lines.
type streamReader struct {
	enc     adcsim.Encoding
	r       *bufio.Reader
	scanner *bufio.Scanner
	nbytes  uint64
}

func newStreamReader(r io.Reader, enc adcsim.Encoding) *streamReader {
	sr := &streamReader{enc: enc}
	if enc == adcsim.BinaryEncoding {
		sr.r = bufio.NewReader(r)
	} else {
		sr.scanner = bufio.NewScanner(r)
	}
	return sr
}

func (sr *streamReader) next() (adcsim.Sample, error) {
	if sr.enc == adcsim.BinaryEncoding {
		smp, err := adcsim.ReadSample(sr.r)
		if err == nil {
			sr.nbytes += adcsim.SampleSize
		}
		return smp, err
	}
	for sr.scanner.Scan() {
		line := sr.scanner.Bytes()
		sr.nbytes += uint64(len(line)) + 1
		if len(line) == 0 {
			continue
		}
		return sr.enc.Decode(line)
	}
	if err := sr.scanner.Err(); err != nil {
		return adcsim.Sample{}, err
	}
	return adcsim.Sample{}, io.EOF
}

// packetReader decodes one sample per UDP datagram.
type packetReader struct {
	enc    adcsim.Encoding
	conn   net.PacketConn
	buf    []byte
	nbytes uint64
}

func (pr *packetReader) next() (adcsim.Sample, error) {
	n, _, err := pr.conn.ReadFrom(pr.buf)
	if err != nil {
		return adcsim.Sample{}, err
	}
	pr.nbytes += uint64(n)
	return pr.enc.Decode(pr.buf[:n])
}

// zmqReader decodes the sample frame of each message from a ZMQ publisher.
type zmqReader struct {
	enc    adcsim.Encoding
	socket *zmq4.Socket
	nbytes uint64
}

func newZMQReader(endpoint, topic string, enc adcsim.Encoding) (*zmqReader, error) {
	socket, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, err
	}
	if err := socket.SetSubscribe(topic); err != nil {
		socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		socket.Close()
		return nil, err
	}
	return &zmqReader{enc: enc, socket: socket}, nil
}

func (zr *zmqReader) next() (adcsim.Sample, error) {
	msg, err := zr.socket.RecvMessageBytes(0)
	if err != nil {
		return adcsim.Sample{}, err
	}
	if len(msg) != 2 {
		return adcsim.Sample{}, fmt.Errorf("%w: message has %d frames, want 2", adcsim.ErrEncoding, len(msg))
	}
	zr.nbytes += uint64(len(msg[1]))
	return zr.enc.Decode(msg[1])
}

// bytesRead returns the number of encoded bytes sr has consumed.
func bytesRead(sr sampleReader) uint64 {
	switch r := sr.(type) {
	case *streamReader:
		return r.nbytes
	case *packetReader:
		return r.nbytes
	case *zmqReader:
		return r.nbytes
	}
	return 0
}

// dump prints the first nprint samples to out and accumulates statistics on up
// to limit samples (0 means until EOF). It returns the statistics of what
// was read, and an error other than io.EOF if reading stopped early.
func dump(sr sampleReader, out io.Writer, nprint, limit int) (streamstats.Summary, error) {
	stats := streamstats.New(adcsim.NumChannels)
	var err error
	for count := 0; limit <= 0 || count < limit; count++ {
		var smp adcsim.Sample
		smp, err = sr.next()
		if err != nil {
			break
		}
		if count < nprint {
			fmt.Fprintln(out, smp.String())
		}
		stats.Add(smp.SequenceNumber, smp.Channels[:], smp.TimeDeltaUsec)
	}
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return stats.Summary(), err
}

// report formats the closing summary.
func report(s streamstats.Summary, nbytes uint64) string {
	return fmt.Sprintf("%s samples (%s): %v", humanize.Comma(int64(s.Samples)), humanize.Bytes(nbytes), s)
}
