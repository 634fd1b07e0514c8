package adcsim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
	"github.com/segmentio/parquet-go"
	"gonum.org/v1/gonum/mat"
)

// DatasetColumns names the columns of a recorded dataset, in file order.
var DatasetColumns = [NumChannels + 1]string{"time_delta", "ch0", "ch1", "ch2", "ch3", "ch4", "ch5"}

// DatasetRecord is the Parquet schema of a recorded dataset row.
type DatasetRecord struct {
	TimeDelta int64 `parquet:"time_delta"`
	Ch0       int32 `parquet:"ch0"`
	Ch1       int32 `parquet:"ch1"`
	Ch2       int32 `parquet:"ch2"`
	Ch3       int32 `parquet:"ch3"`
	Ch4       int32 `parquet:"ch4"`
	Ch5       int32 `parquet:"ch5"`
}

// RecordFromSample makes the dataset row that replays s.
func RecordFromSample(s Sample) DatasetRecord {
	return DatasetRecord{
		TimeDelta: int64(min(s.TimeDeltaUsec, math.MaxInt64)),
		Ch0:       int32(s.Channels[0]),
		Ch1:       int32(s.Channels[1]),
		Ch2:       int32(s.Channels[2]),
		Ch3:       int32(s.Channels[3]),
		Ch4:       int32(s.Channels[4]),
		Ch5:       int32(s.Channels[5]),
	}
}

// Values returns the record as time_delta, ch0..ch5.
func (r DatasetRecord) Values() [NumChannels + 1]int64 {
	return [...]int64{r.TimeDelta, int64(r.Ch0), int64(r.Ch1), int64(r.Ch2), int64(r.Ch3), int64(r.Ch4), int64(r.Ch5)}
}

// rowFromValues checks a time_delta, ch0..ch5 tuple and converts it.
func rowFromValues(vals [NumChannels + 1]int64) (PresampledRow, error) {
	var row PresampledRow
	if vals[0] < 0 {
		return row, fmt.Errorf("%w: negative time_delta %d", ErrEncoding, vals[0])
	}
	if uint64(vals[0]) > MaxDeltaUsec {
		return row, fmt.Errorf("%w: time_delta %d exceeds %d", ErrEncoding, vals[0], MaxDeltaUsec)
	}
	row.TimeDeltaUsec = uint64(vals[0])
	for i := range row.Channels {
		v := vals[i+1]
		if v < 0 || v > math.MaxUint16 {
			return row, fmt.Errorf("%w: %s value %d outside [0, %d]", ErrEncoding, DatasetColumns[i+1], v, math.MaxUint16)
		}
		row.Channels[i] = uint16(v)
	}
	return row, nil
}

// LoadDataset reads a recorded dataset, choosing the format by file extension:
// .csv (with a header row), .npy (float64 N×7 matrix), or .parquet.
// A dataset with no rows is an error wrapping ErrEmptyDataset.
func LoadDataset(path string) ([]PresampledRow, error) {
	var rows []PresampledRow
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readFileWith(path, ReadCSVDataset)
	case ".npy":
		rows, err = readFileWith(path, ReadNPYDataset)
	case ".parquet", ".pq":
		rows, err = ReadParquetDataset(path)
	default:
		return nil, fmt.Errorf("%w: dataset %s has unknown extension %q", ErrInvalidParameter, path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", path, ErrEmptyDataset)
	}
	return rows, nil
}

func readFileWith(path string, read func(io.Reader) ([]PresampledRow, error)) ([]PresampledRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return read(f)
}

// ReadCSVDataset reads CSV with a header naming at least the columns
// time_delta and ch0..ch5, in any order. Other columns are ignored.
func ReadCSVDataset(r io.Reader) ([]PresampledRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	var colIndex [NumChannels + 1]int
	for i, name := range DatasetColumns {
		colIndex[i] = -1
		for j, h := range header {
			if strings.TrimSpace(h) == name {
				colIndex[i] = j
				break
			}
		}
		if colIndex[i] < 0 {
			return nil, fmt.Errorf("%w: CSV header lacks column %q", ErrEncoding, name)
		}
	}

	var rows []PresampledRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		line, _ := cr.FieldPos(0)
		var vals [NumChannels + 1]int64
		for i, j := range colIndex {
			v, err := strconv.ParseInt(strings.TrimSpace(rec[j]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", ErrEncoding, line, DatasetColumns[i], err)
			}
			vals[i] = v
		}
		row, err := rowFromValues(vals)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadNPYDataset reads a NumPy float64 array of shape (N, 7), with columns
// time_delta, ch0..ch5. Every value must be a non-negative integer.
func ReadNPYDataset(r io.Reader) ([]PresampledRow, error) {
	var m mat.Dense
	if err := npyio.Read(r, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	nrows, ncols := m.Dims()
	if ncols != len(DatasetColumns) {
		return nil, fmt.Errorf("%w: npy array has %d columns, want %d", ErrEncoding, ncols, len(DatasetColumns))
	}
	rows := make([]PresampledRow, 0, nrows)
	for i := range nrows {
		var vals [NumChannels + 1]int64
		for j, x := range m.RawRowView(i) {
			if x != math.Trunc(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: row %d column %s value %v is not an integer", ErrEncoding, i,
					DatasetColumns[j], x)
			}
			vals[j] = int64(x)
		}
		row, err := rowFromValues(vals)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadParquetDataset reads a Parquet file whose schema matches DatasetRecord.
func ReadParquetDataset(path string) ([]PresampledRow, error) {
	records, err := parquet.ReadFile[DatasetRecord](path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	rows := make([]PresampledRow, 0, len(records))
	for i, rec := range records {
		row, err := rowFromValues(rec.Values())
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
