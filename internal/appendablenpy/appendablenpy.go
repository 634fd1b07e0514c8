// Package appendablenpy writes numpy's *.npy format incrementally. The header
// is rewritten in place after each batch of rows, so the file is a valid array
// at every batch boundary even if the writer never gets to close it.
package appendablenpy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// npy file header must be a multiple of 64 bytes
const headerUnits = 64

// preheaderSize covers the magic string, the version, and the header length.
const preheaderSize = 10

// maxShapeDigits reserves room in the header for a row count this wide.
const maxShapeDigits = 20

var magic = []byte{0x93, 'N', 'U', 'M', 'P', 'Y', 0x01, 0x00}

// AppendableNPY writes a C-order array of fixed-width rows, growing along the
// first axis.
type AppendableNPY struct {
	writer      io.WriteSeeker
	descr       string
	ncols       int // 0 for a 1-D array of records
	rowBytes    int
	headerSize  int // total bytes before the data, a multiple of headerUnits
	rowsWritten int
}

// OpenAppendableNPY writes an empty-array header to ws and returns a writer for
// rows of the numpy dtype descr. With ncols > 0 the array has shape (N, ncols)
// and each row is ncols elements of rowBytes/ncols bytes; with ncols == 0 the
// array is 1-D with shape (N,).
func OpenAppendableNPY(ws io.WriteSeeker, descr string, ncols, rowBytes int) (*AppendableNPY, error) {
	if rowBytes <= 0 || ncols < 0 {
		return nil, fmt.Errorf("appendablenpy: invalid row layout ncols=%d rowBytes=%d", ncols, rowBytes)
	}
	an := &AppendableNPY{
		writer:   ws,
		descr:    descr,
		ncols:    ncols,
		rowBytes: rowBytes,
	}
	dict := an.dict(strings.Repeat("9", maxShapeDigits))
	nunits := (preheaderSize + len(dict) + 1 + headerUnits - 1) / headerUnits
	an.headerSize = nunits * headerUnits
	if err := an.writeHeader(); err != nil {
		return nil, err
	}
	return an, nil
}

// CreateFloat64 creates path holding a (N, ncols) array of little-endian float64.
func CreateFloat64(path string, ncols int) (*AppendableNPY, *os.File, error) {
	if ncols <= 0 {
		return nil, nil, fmt.Errorf("appendablenpy: need at least one column, have %d", ncols)
	}
	fp, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	an, err := OpenAppendableNPY(fp, "<f8", ncols, 8*ncols)
	if err != nil {
		fp.Close()
		return nil, nil, err
	}
	return an, fp, nil
}

func (an *AppendableNPY) dict(nrows string) string {
	shape := fmt.Sprintf("(%s,)", nrows)
	if an.ncols > 0 {
		shape = fmt.Sprintf("(%s, %d)", nrows, an.ncols)
	}
	return fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", an.descr, shape)
}

// writeHeader writes the full header for the current row count at offset 0,
// then leaves the file positioned at the end of the data.
func (an *AppendableNPY) writeHeader() error {
	dict := an.dict(strconv.Itoa(an.rowsWritten))
	header := make([]byte, 0, an.headerSize)
	header = append(header, magic...)
	header = binary.LittleEndian.AppendUint16(header, uint16(an.headerSize-preheaderSize))
	header = append(header, dict...)
	// Pad header with spaces plus one newline to the promised size
	for len(header) < an.headerSize-1 {
		header = append(header, ' ')
	}
	header = append(header, '\n')

	if _, err := an.writer.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := an.writer.Write(header); err != nil {
		return err
	}
	_, err := an.writer.Seek(0, io.SeekEnd)
	return err
}

// Write appends rows, each exactly one row of bytes, then updates the header.
func (an *AppendableNPY) Write(data [][]byte) error {
	for _, d := range data {
		if len(d) != an.rowBytes {
			return fmt.Errorf("appendablenpy: row of %d bytes, want %d", len(d), an.rowBytes)
		}
	}
	for _, d := range data {
		if _, err := an.writer.Write(d); err != nil {
			return err
		}
		an.rowsWritten++
	}
	return an.writeHeader()
}

// WriteFloat64Rows appends rows of float64 values. It is valid only for a
// writer made by CreateFloat64 or opened with descr "<f8".
func (an *AppendableNPY) WriteFloat64Rows(rows [][]float64) error {
	if an.descr != "<f8" || an.ncols == 0 {
		return errors.New("appendablenpy: not a 2-D float64 array")
	}
	data := make([][]byte, len(rows))
	for i, row := range rows {
		b := make([]byte, 0, an.rowBytes)
		for _, x := range row {
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(x))
		}
		data[i] = b
	}
	return an.Write(data)
}

// Rows returns the number of rows written so far.
func (an *AppendableNPY) Rows() int { return an.rowsWritten }

// HeaderSize returns the number of bytes before the array data.
func (an *AppendableNPY) HeaderSize() int { return an.headerSize }
