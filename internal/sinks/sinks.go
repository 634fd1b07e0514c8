// Package sinks delivers encoded samples to the outside world: standard
// output, files, named pipes, TCP, UDP, ZeroMQ, WebSocket, ClickHouse, or a
// replayable capture file. Exactly one sink is active per run.
package sinks

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/usnistgov/adcsim"
	"github.com/usnistgov/adcsim/internal/capture"
	"github.com/usnistgov/adcsim/internal/sampledb"
)

// Config selects and configures a sink. It mirrors the sink.* configuration keys.
type Config struct {
	Type      string // stdout, file, fifo, tcp, tcp-server, udp, zmq, websocket, clickhouse, capture
	Encoding  adcsim.Encoding
	Endpoint  string // host:port for network sinks, a ZMQ endpoint for zmq
	Path      string // file, fifo, or capture path
	PipeSize  int    // requested FIFO buffer size in bytes
	BatchSize int    // samples per ClickHouse insert or capture write
	Database  string // ClickHouse database name
}

// ConfigFromViper reads the sink.* keys.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	enc, err := adcsim.ParseEncoding(v.GetString("sink.encoding"))
	if err != nil {
		return Config{}, err
	}
	return Config{
		Type:      strings.ToLower(v.GetString("sink.type")),
		Encoding:  enc,
		Endpoint:  v.GetString("sink.endpoint"),
		Path:      v.GetString("sink.path"),
		PipeSize:  v.GetInt("sink.pipe_size"),
		BatchSize: v.GetInt("sink.batch_size"),
		Database:  v.GetString("sink.database"),
	}, nil
}

// RunInfo describes the run a sink is opened for. Only the database sink uses it.
type RunInfo struct {
	ID             string
	Mode           string
	SamplingRateHz int
	ResolutionBits int
}

// Open builds the sink described by cfg. It may block until ctx is done: a
// FIFO waits for its reader to attach.
func Open(ctx context.Context, cfg Config, run RunInfo) (adcsim.Sink, error) {
	need := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("%w: sink %q needs a %s", adcsim.ErrInvalidParameter, cfg.Type, field)
		}
		return nil
	}
	switch cfg.Type {
	case "", "stdout":
		return NewStream(os.Stdout, cfg.Encoding), nil

	case "file":
		if err := need("path", cfg.Path); err != nil {
			return nil, err
		}
		return CreateFile(cfg.Path, cfg.Encoding)

	case "fifo", "pipe":
		if err := need("path", cfg.Path); err != nil {
			return nil, err
		}
		return OpenFIFO(ctx, cfg.Path, cfg.PipeSize, cfg.Encoding)

	case "tcp", "tcp-client":
		if err := need("endpoint", cfg.Endpoint); err != nil {
			return nil, err
		}
		return DialTCP(cfg.Endpoint, cfg.Encoding)

	case "tcp-server", "server":
		if err := need("endpoint", cfg.Endpoint); err != nil {
			return nil, err
		}
		ln, err := net.Listen("tcp", cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		return NewTCPServer(ln, cfg.Encoding), nil

	case "udp":
		if err := need("endpoint", cfg.Endpoint); err != nil {
			return nil, err
		}
		return DialUDP(cfg.Endpoint, cfg.Encoding)

	case "zmq":
		if err := need("endpoint", cfg.Endpoint); err != nil {
			return nil, err
		}
		return NewZMQ(cfg.Endpoint, DefaultTopic, cfg.Encoding)

	case "websocket", "ws":
		if err := need("endpoint", cfg.Endpoint); err != nil {
			return nil, err
		}
		ln, err := net.Listen("tcp", cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		return NewWebSocket(ln, cfg.Encoding), nil

	case "clickhouse", "db":
		host, _ := os.Hostname()
		msg := &sampledb.RunMessage{
			ID:             run.ID,
			Hostname:       host,
			Githash:        adcsim.Build.Githash,
			Version:        adcsim.Build.Version,
			GoVersion:      runtime.Version(),
			Mode:           run.Mode,
			SamplingRateHz: run.SamplingRateHz,
			ResolutionBits: run.ResolutionBits,
			Start:          time.Now(),
		}
		return sampledb.NewSink(sampledb.Options{
			Addr:      cfg.Endpoint,
			Database:  cfg.Database,
			BatchSize: cfg.BatchSize,
		}, msg)

	case "capture":
		if err := need("path", cfg.Path); err != nil {
			return nil, err
		}
		w, err := capture.Create(cfg.Path)
		if err != nil {
			return nil, err
		}
		w.SetBatchSize(cfg.BatchSize)
		return w, nil
	}
	return nil, fmt.Errorf("%w: unknown sink type %q", adcsim.ErrInvalidParameter, cfg.Type)
}

// encoder holds the reusable output buffer of a sink.
type encoder struct {
	enc adcsim.Encoding
	buf []byte
}

// encode returns the wire form of s. The slice is valid until the next call.
func (e *encoder) encode(s adcsim.Sample) ([]byte, error) {
	var err error
	e.buf, err = e.enc.Append(e.buf[:0], s)
	return e.buf, err
}

// message is like encode but omits the newline after text, for sinks that
// frame each sample as its own message.
func (e *encoder) message(s adcsim.Sample) ([]byte, error) {
	b, err := e.encode(s)
	if err != nil {
		return nil, err
	}
	if e.enc == adcsim.TextEncoding {
		b = b[:len(b)-1]
	}
	return b, nil
}
