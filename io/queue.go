package io

import (
	"github.com/ezrec/crashvm/cell"
)

const (
	QUEUE_DATA  = 0 // Push on write, pop on read.
	QUEUE_COUNT = 1 // Number of queued cells; writing clears the queue.
	QUEUE_SIZE  = 2 // Window size of a queue.

	QUEUE_DEFAULT_CAPACITY = 256
)

// Queue implements a circular buffer for temporary cell storage.
// It operates as a FIFO with a fixed capacity and separate read/write positions.
type Queue struct {
	Capacity int // Capacity in cells.

	ReadIndex  int
	WriteIndex int
	Size       int
	Data       []cell.Cell
}

var _ Peripheral = (*Queue)(nil)
var _ Peeker = (*Queue)(nil)

// Reset empties the queue, resetting indices and reinitializing the buffer.
func (q *Queue) Reset() {
	if q.Capacity <= 0 {
		q.Capacity = QUEUE_DEFAULT_CAPACITY
	}
	q.ReadIndex = 0
	q.WriteIndex = 0
	q.Size = 0
	q.Data = make([]cell.Cell, q.Capacity)
}

// Read pops the oldest cell at offset 0, or returns the count at offset 1.
// The buffer wraps around at the capacity boundary.
func (q *Queue) Read(offset int) (value cell.Cell, err error) {
	switch offset {
	case QUEUE_DATA:
		if q.Size == 0 {
			err = fault(ErrEmpty)
			return
		}
		value = q.Data[q.ReadIndex]
		q.ReadIndex++
		if q.ReadIndex == q.Capacity {
			q.ReadIndex = 0
		}
		q.Size--
	case QUEUE_COUNT:
		value = cell.Cell(q.Size)
	default:
		err = fault(ErrOffset)
	}

	return
}

// Peek returns the oldest cell at offset 0 without popping it, or the
// count at offset 1.
func (q *Queue) Peek(offset int) (value cell.Cell, err error) {
	switch offset {
	case QUEUE_DATA:
		if q.Size == 0 {
			err = fault(ErrEmpty)
			return
		}
		value = q.Data[q.ReadIndex]
	case QUEUE_COUNT:
		value = cell.Cell(q.Size)
	default:
		err = fault(ErrOffset)
	}

	return
}

// Write pushes a cell at offset 0, or clears the queue at offset 1.
// Returns ErrFull if the buffer has reached capacity.
func (q *Queue) Write(offset int, value cell.Cell) (err error) {
	if len(q.Data) != q.Capacity || q.Capacity == 0 {
		q.Reset()
	}

	switch offset {
	case QUEUE_DATA:
		if q.Size >= q.Capacity {
			err = fault(ErrFull)
			return
		}
		q.Data[q.WriteIndex] = value
		q.WriteIndex++
		if q.WriteIndex == q.Capacity {
			q.WriteIndex = 0
		}
		q.Size++
	case QUEUE_COUNT:
		q.Reset()
	default:
		err = fault(ErrOffset)
	}

	return
}
