package adcsim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const twoRowCSV = `time_delta,ch0,ch1,ch2,ch3,ch4,ch5
1000,1,2,3,4,5,6
2000,6,5,4,3,2,1
`

func TestReadCSVDataset(t *testing.T) {
	rows, err := ReadCSVDataset(strings.NewReader(twoRowCSV))
	require.NoError(t, err)
	assert.Equal(t, twoRowDataset(), rows)

	// Columns may come in any order, with extras.
	shuffled := "ch5, ch4, ch3, ch2, ch1, ch0, time_delta, note\n6, 5, 4, 3, 2, 1, 1000, x\n"
	rows, err = ReadCSVDataset(strings.NewReader(shuffled))
	require.NoError(t, err)
	assert.Equal(t, twoRowDataset()[:1], rows)
}

func TestReadCSVDatasetErrors(t *testing.T) {
	bad := []string{
		"time_delta,ch0,ch1,ch2,ch3,ch4\n1,1,1,1,1,1\n",
		"time_delta,ch0,ch1,ch2,ch3,ch4,ch5\n-1,1,1,1,1,1,1\n",
		"time_delta,ch0,ch1,ch2,ch3,ch4,ch5\n1,70000,1,1,1,1,1\n",
		"time_delta,ch0,ch1,ch2,ch3,ch4,ch5\n1,1.5,1,1,1,1,1\n",
		"time_delta,ch0,ch1,ch2,ch3,ch4,ch5\n1,1,1\n",
		"time_delta,ch0,ch1,ch2,ch3,ch4,ch5\n9223372036854776,1,1,1,1,1,1\n",
	}
	for _, text := range bad {
		_, err := ReadCSVDataset(strings.NewReader(text))
		assert.ErrorIs(t, err, ErrEncoding, text)
	}
}

func TestLoadDatasetCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.csv")
	require.NoError(t, os.WriteFile(path, []byte(twoRowCSV), 0644))
	rows, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, twoRowDataset(), rows)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("time_delta,ch0,ch1,ch2,ch3,ch4,ch5\n"), 0644))
	_, err = LoadDataset(empty)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = LoadDataset(filepath.Join(dir, "rec.json"))
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = LoadDataset(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDatasetNPY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.npy")
	m := mat.NewDense(2, 7, []float64{
		1000, 1, 2, 3, 4, 5, 6,
		2000, 6, 5, 4, 3, 2, 1,
	})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npyio.Write(f, m))
	require.NoError(t, f.Close())

	rows, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, twoRowDataset(), rows)

	// Non-integral codes are rejected.
	m.Set(1, 3, 4.5)
	f, err = os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npyio.Write(f, m))
	require.NoError(t, f.Close())
	_, err = LoadDataset(path)
	assert.ErrorIs(t, err, ErrEncoding)

	// So are arrays of the wrong shape.
	f, err = os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npyio.Write(f, mat.NewDense(1, 3, []float64{1, 2, 3})))
	require.NoError(t, f.Close())
	_, err = LoadDataset(path)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestLoadDatasetParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.parquet")
	var records []DatasetRecord
	for _, row := range twoRowDataset() {
		records = append(records, RecordFromSample(Sample{Channels: row.Channels, TimeDeltaUsec: row.TimeDeltaUsec}))
	}
	require.NoError(t, parquet.WriteFile(path, records))

	rows, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, twoRowDataset(), rows)
}
