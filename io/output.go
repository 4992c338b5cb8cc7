package io

import (
	"iter"
	"maps"
	"slices"

	"github.com/ezrec/crashvm/cell"
)

// Output collects every cell written to it, keyed by offset.
// The last write to an offset wins.
type Output struct {
	Data map[int]cell.Cell
}

var _ Peripheral = (*Output)(nil)
var _ Peeker = (*Output)(nil)

// Reset forgets all recorded cells.
func (out *Output) Reset() {
	clear(out.Data)
}

// Read always fails, the output is write-only.
func (out *Output) Read(offset int) (value cell.Cell, err error) {
	err = fault(ErrWriteOnly)
	return
}

// Write records the cell at the offset.
func (out *Output) Write(offset int, value cell.Cell) (err error) {
	if out.Data == nil {
		out.Data = make(map[int]cell.Cell)
	}
	out.Data[offset] = value
	return
}

// Peek returns the cell recorded at the offset, or 0 if none was written.
func (out *Output) Peek(offset int) (value cell.Cell, err error) {
	value = out.Data[offset]
	return
}

// Get returns the cell recorded at an offset, if any.
func (out *Output) Get(offset int) (value cell.Cell, ok bool) {
	value, ok = out.Data[offset]
	return
}

// Len returns the number of recorded offsets.
func (out *Output) Len() int {
	return len(out.Data)
}

// Entries returns the recorded (offset, cell) pairs in offset order.
func (out *Output) Entries() iter.Seq2[int, cell.Cell] {
	return func(yield func(offset int, value cell.Cell) bool) {
		for _, offset := range slices.Sorted(maps.Keys(out.Data)) {
			if !yield(offset, out.Data[offset]) {
				return
			}
		}
	}
}
