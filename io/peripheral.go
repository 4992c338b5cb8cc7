// Package io provides the peripheral devices of the crashvm machine.
// Devices are mapped into windows of the address space and are accessed
// by their window relative offset. It includes read-only argument lists
// (Argument), write-only result collectors (Output), a byte and number
// console (Console), a FIFO (Queue) and persistent track storage (Drum).
package io

import (
	"github.com/ezrec/crashvm/cell"
)

// Peripheral defines the interface for all devices in the crashvm system.
// Offsets are relative to the start of the device window.
type Peripheral interface {
	// Read returns the cell at the offset.
	Read(offset int) (value cell.Cell, err error)
	// Write stores a cell at the offset.
	Write(offset int, value cell.Cell) (err error)
}

// Peeker is implemented by devices whose registers can be inspected
// without side effects.
type Peeker interface {
	Peek(offset int) (value cell.Cell, err error)
}

// Resetter is implemented by devices that can return to their power-on state.
type Resetter interface {
	Reset()
}
