package io

import (
	"github.com/ezrec/crashvm/cell"
)

// Argument is a read-only list of cells, typically the program's inputs.
type Argument struct {
	Data []cell.Cell
}

var _ Peripheral = (*Argument)(nil)
var _ Peeker = (*Argument)(nil)

// NewArgument creates an argument list from raw values.
func NewArgument(values ...int64) (arg *Argument) {
	arg = &Argument{Data: make([]cell.Cell, len(values))}
	for n, value := range values {
		arg.Data[n] = cell.New(value)
	}

	return
}

// Read returns the offset-th argument.
func (arg *Argument) Read(offset int) (value cell.Cell, err error) {
	if offset < 0 || offset >= len(arg.Data) {
		err = fault(ErrOffset)
		return
	}

	value = arg.Data[offset]
	return
}

// Write always fails, arguments are read-only.
func (arg *Argument) Write(offset int, value cell.Cell) error {
	return fault(ErrReadOnly)
}

// Peek is Read, arguments have no read side effects.
func (arg *Argument) Peek(offset int) (value cell.Cell, err error) {
	return arg.Read(offset)
}
