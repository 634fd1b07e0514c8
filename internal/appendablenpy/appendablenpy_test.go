package appendablenpy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestWrite(t *testing.T) {
	file := filepath.Join(t.TempDir(), "rows.npy")
	npy, fp, err := CreateFloat64(file, 7)
	require.NoError(t, err)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	if len(data) != npy.HeaderSize() {
		t.Errorf("len(data) is %d, want %d", len(data), npy.HeaderSize())
	}
	if npy.HeaderSize()%headerUnits != 0 {
		t.Errorf("header size %d is not a multiple of %d", npy.HeaderSize(), headerUnits)
	}

	rows := [][]float64{
		{1000, 1, 2, 3, 4, 5, 6},
		{2000, 6, 5, 4, 3, 2, 1},
	}
	require.NoError(t, npy.WriteFloat64Rows(rows))
	require.NoError(t, npy.WriteFloat64Rows(rows[:1]))
	assert.Equal(t, 3, npy.Rows())
	require.NoError(t, fp.Close())

	data, err = os.ReadFile(file)
	require.NoError(t, err)
	want := npy.HeaderSize() + 3*7*8
	if len(data) != want {
		t.Errorf("len(data) is %d, want %d", len(data), want)
	}

	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()
	var m mat.Dense
	require.NoError(t, npyio.Read(f, &m))
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 7, c)
	assert.Equal(t, rows[1], m.RawRowView(1))
	assert.Equal(t, rows[0], m.RawRowView(2))
}

func TestWrongRowSize(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.npy")
	npy, fp, err := CreateFloat64(file, 2)
	require.NoError(t, err)
	defer fp.Close()
	assert.Error(t, npy.Write([][]byte{make([]byte, 15)}))
	assert.Equal(t, 0, npy.Rows())
	assert.Error(t, npy.WriteFloat64Rows([][]float64{{1, 2, 3}}))
}
