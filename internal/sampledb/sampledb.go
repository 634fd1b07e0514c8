// Package sampledb stores ADC sample streams in a ClickHouse database: one row
// per run in adcruns and one row per sample in adcsamples.
package sampledb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/usnistgov/adcsim"
)

// DefaultDatabase is the SQL name of the database
const DefaultDatabase = "adcsim"

// DefaultBatchSize is the number of samples sent per insert when Options leaves it zero.
const DefaultBatchSize = 1200

// Options locate the server and control batching. User and password come from
// the environment variables ADCSIM_DB_USER and ADCSIM_DB_PASSWORD.
type Options struct {
	Addr      string // host:port of the native protocol; default localhost:9000
	Database  string
	BatchSize int
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = "localhost:9000"
	}
	if o.Database == "" {
		o.Database = DefaultDatabase
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// Connect opens a connection to the server and pings it.
func Connect(opts Options) (clickhouse.Conn, error) {
	opts = opts.withDefaults()
	auth := clickhouse.Auth{
		Database: opts.Database,
		Username: os.Getenv("ADCSIM_DB_USER"),
		Password: os.Getenv("ADCSIM_DB_PASSWORD"),
	}
	client := clickhouse.ClientInfo{
		Products: []struct {
			Name    string
			Version string
		}{
			{Name: "adcsim", Version: adcsim.Build.Version},
		},
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr:        []string{opts.Addr},
		Auth:        auth,
		ClientInfo:  client,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	// Ping the server at the DB connection.
	if err = conn.Ping(context.Background()); err != nil {
		var exception *clickhouse.Exception
		if errors.As(err, &exception) {
			adcsim.ProblemLogger.Printf("ClickHouse exception [%d] %s\n%s", exception.Code, exception.Message,
				exception.StackTrace)
		}
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// PingServer reports the server version, or why it could not be reached.
func PingServer(opts Options) (string, error) {
	conn, err := Connect(opts)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	v, err := conn.ServerVersion()
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

var tableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS adcruns (
		id String,
		hostname String,
		githash String,
		version String,
		goversion String,
		mode String,
		sampling_rate UInt32,
		resolution_bits UInt8,
		samples UInt64,
		start DateTime64(6),
		end DateTime64(6)
	) ENGINE = ReplacingMergeTree ORDER BY id`,
	`CREATE TABLE IF NOT EXISTS adcsamples (
		run_id String,
		seq UInt64,
		ts DateTime64(6),
		delta_us UInt64,
		ch0 UInt16,
		ch1 UInt16,
		ch2 UInt16,
		ch3 UInt16,
		ch4 UInt16,
		ch5 UInt16
	) ENGINE = MergeTree ORDER BY (run_id, seq)`,
}

// CreateTables creates the adcruns and adcsamples tables if they are missing.
func CreateTables(ctx context.Context, conn clickhouse.Conn) error {
	for _, ddl := range tableDefinitions {
		if err := conn.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// Sink is an adcsim.Sink that inserts samples in batches. It is not safe for
// concurrent use.
type Sink struct {
	run       *RunMessage
	batchSize int
	pending   []adcsim.Sample
	flush     func(ctx context.Context, samples []adcsim.Sample) error
	logRun    func(ctx context.Context, run *RunMessage) error
	closeConn func() error
}

// NewSink connects, creates the tables if needed, and records the start of run.
func NewSink(opts Options, run *RunMessage) (*Sink, error) {
	opts = opts.withDefaults()
	conn, err := Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to ClickHouse at %s: %w", opts.Addr, err)
	}
	ctx := context.Background()
	if err := CreateTables(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	s := newSink(run, opts.BatchSize,
		func(ctx context.Context, samples []adcsim.Sample) error { return insertSamples(ctx, conn, run.ID, samples) },
		func(ctx context.Context, run *RunMessage) error { return insertRun(ctx, conn, run) },
		conn.Close,
	)
	if err := s.logRun(ctx, run); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func newSink(run *RunMessage, batchSize int, flush func(context.Context, []adcsim.Sample) error,
	logRun func(context.Context, *RunMessage) error, closeConn func() error) *Sink {
	return &Sink{
		run:       run,
		batchSize: batchSize,
		pending:   make([]adcsim.Sample, 0, batchSize),
		flush:     flush,
		logRun:    logRun,
		closeConn: closeConn,
	}
}

func insertRun(ctx context.Context, conn clickhouse.Conn, r *RunMessage) error {
	const nowait = false
	formattedStart := r.Start.Format(timeFormat)
	formattedEnd := r.End.Format(timeFormat)
	if err := conn.AsyncInsert(ctx, `INSERT INTO adcruns VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, nowait,
		r.ID, r.Hostname, r.Githash, r.Version, r.GoVersion, r.Mode,
		uint32(r.SamplingRateHz), uint8(r.ResolutionBits), r.Samples,
		formattedStart, formattedEnd,
	); err != nil {
		return fmt.Errorf("insert into adcruns: %w", err)
	}
	return nil
}

func insertSamples(ctx context.Context, conn clickhouse.Conn, runID string, samples []adcsim.Sample) error {
	batch, err := conn.PrepareBatch(ctx, "INSERT INTO adcsamples")
	if err != nil {
		return err
	}
	for _, s := range samples {
		c := s.Channels
		if err := batch.Append(runID, s.SequenceNumber, time.UnixMicro(int64(s.TimestampUsec)).UTC(),
			s.TimeDeltaUsec, c[0], c[1], c[2], c[3], c[4], c[5]); err != nil {
			batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// Write queues s, inserting the queue once it reaches the batch size.
func (s *Sink) Write(smp adcsim.Sample) error {
	s.pending = append(s.pending, smp)
	s.run.Samples++
	if len(s.pending) >= s.batchSize {
		return s.Flush()
	}
	return nil
}

// Flush inserts all queued samples.
func (s *Sink) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	err := s.flush(context.Background(), s.pending)
	s.pending = s.pending[:0]
	if err != nil {
		return fmt.Errorf("insert into adcsamples: %w", err)
	}
	return nil
}

// Close flushes, records the end of the run, and disconnects.
func (s *Sink) Close() error {
	err := s.Flush()
	s.run.End = time.Now()
	err = errors.Join(err, s.logRun(context.Background(), s.run), s.closeConn())
	return err
}
