// Package objfile reads and writes crashvm binary images.
//
// An image is a flat sequence of cells, each stored as 4 little-endian
// bytes. There is no header; the first cell is loaded at address 0.
package objfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ezrec/crashvm/cell"
)

// CellBytes is the encoded size of a single cell.
const CellBytes = cell.Bits / 8

// Encode returns the image bytes of the cells.
func Encode(cells []cell.Cell) []byte {
	data := make([]byte, len(cells)*CellBytes)
	for n, c := range cells {
		binary.LittleEndian.PutUint32(data[n*CellBytes:], c.Uint())
	}
	return data
}

// Decode returns the cells of an image.
func Decode(data []byte) ([]cell.Cell, error) {
	if len(data)%CellBytes != 0 {
		return nil, errors.Errorf("image size %d is not a multiple of %d", len(data), CellBytes)
	}
	cells := make([]cell.Cell, len(data)/CellBytes)
	for n := range cells {
		cells[n] = cell.Cell(int32(binary.LittleEndian.Uint32(data[n*CellBytes:])))
	}
	return cells, nil
}

// Read reads an image from r until end of file.
func Read(r io.Reader) ([]cell.Cell, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "image read failed")
	}
	cells, err := Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "image decode failed")
	}
	return cells, nil
}

// Write writes an image to w.
func Write(w io.Writer, cells []cell.Cell) error {
	_, err := w.Write(Encode(cells))
	return errors.Wrap(err, "image write failed")
}

// Load loads an image from the file fileName.
func Load(fileName string) ([]cell.Cell, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "open failed")
	}
	defer f.Close()
	cells, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "%v: load failed", fileName)
	}
	return cells, nil
}

// Save saves cells to the image file fileName. A partially written file is
// removed.
func Save(fileName string, cells []cell.Cell) (err error) {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "create failed")
	}
	w := bufio.NewWriter(f)
	defer func() {
		if ferr := w.Flush(); err == nil && ferr != nil {
			err = errors.Wrap(ferr, "flush failed")
		}
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close failed")
		}
		// delete file on error
		if err != nil {
			os.Remove(fileName)
		}
	}()
	return Write(w, cells)
}
