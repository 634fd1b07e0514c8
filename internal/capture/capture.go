// Package capture records an emitted sample stream as a dataset that the
// playback streamer can replay: rows of time_delta, ch0..ch5 in CSV, NumPy
// .npy, or Parquet form.
package capture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
	"github.com/usnistgov/adcsim"
	"github.com/usnistgov/adcsim/internal/appendablenpy"
)

// Format is a dataset file format.
type Format int

// Names for the possible values of Format
const (
	CSV Format = iota
	NPY
	Parquet
)

func (f Format) String() string {
	return [...]string{"csv", "npy", "parquet"}[f]
}

// FormatFromPath chooses a Format from the file extension of path.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".npy":
		return NPY, nil
	case ".parquet", ".pq":
		return Parquet, nil
	}
	return CSV, fmt.Errorf("%w: capture file %s must end in .csv, .npy, or .parquet", adcsim.ErrInvalidParameter, path)
}

// DefaultBatchSize is how many rows are buffered between writes of NPY and
// Parquet captures.
const DefaultBatchSize = 1200

// Writer is an adcsim.Sink that appends every sample it receives to a dataset file.
type Writer struct {
	format    Format
	file      *os.File
	batchSize int
	rows      int

	csv     *csv.Writer
	npy     *appendablenpy.AppendableNPY
	npyRows [][]float64
	pq      *parquet.GenericWriter[adcsim.DatasetRecord]
	pqRows  []adcsim.DatasetRecord
}

// Create makes path (truncating any existing file) and writes the header for
// its format.
func Create(path string) (*Writer, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{format: format, batchSize: DefaultBatchSize}
	switch format {
	case NPY:
		w.npy, w.file, err = appendablenpy.CreateFloat64(path, len(adcsim.DatasetColumns))
		if err != nil {
			return nil, err
		}
	default:
		if w.file, err = os.Create(path); err != nil {
			return nil, err
		}
	}

	switch format {
	case CSV:
		w.csv = csv.NewWriter(w.file)
		if err := w.csv.Write(adcsim.DatasetColumns[:]); err != nil {
			w.file.Close()
			return nil, err
		}
	case Parquet:
		w.pq = parquet.NewGenericWriter[adcsim.DatasetRecord](w.file,
			parquet.KeyValueMetadata("generator", "adcsim "+adcsim.Build.Version),
		)
	}
	return w, nil
}

// SetBatchSize changes the number of rows buffered between writes.
func (w *Writer) SetBatchSize(n int) {
	if n > 0 {
		w.batchSize = n
	}
}

// Rows returns the number of samples written, including any still buffered.
func (w *Writer) Rows() int { return w.rows }

// Write records one sample as a dataset row.
func (w *Writer) Write(s adcsim.Sample) error {
	rec := adcsim.RecordFromSample(s)
	w.rows++
	switch w.format {
	case CSV:
		vals := rec.Values()
		fields := make([]string, len(vals))
		for i, v := range vals {
			fields[i] = strconv.FormatInt(v, 10)
		}
		return w.csv.Write(fields)

	case NPY:
		vals := rec.Values()
		row := make([]float64, len(vals))
		for i, v := range vals {
			row[i] = float64(v)
		}
		w.npyRows = append(w.npyRows, row)
		if len(w.npyRows) >= w.batchSize {
			return w.flush()
		}

	case Parquet:
		w.pqRows = append(w.pqRows, rec)
		if len(w.pqRows) >= w.batchSize {
			return w.flush()
		}
	}
	return nil
}

func (w *Writer) flush() error {
	switch w.format {
	case CSV:
		w.csv.Flush()
		return w.csv.Error()
	case NPY:
		if len(w.npyRows) == 0 {
			return nil
		}
		err := w.npy.WriteFloat64Rows(w.npyRows)
		w.npyRows = w.npyRows[:0]
		return err
	case Parquet:
		if len(w.pqRows) == 0 {
			return nil
		}
		_, err := w.pq.Write(w.pqRows)
		w.pqRows = w.pqRows[:0]
		return err
	}
	return nil
}

// Close writes any buffered rows, finishes the file, and closes it.
func (w *Writer) Close() error {
	err := w.flush()
	if w.pq != nil {
		err = errors.Join(err, w.pq.Close())
	}
	return errors.Join(err, w.file.Close())
}
