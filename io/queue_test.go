package io

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/crashvm/cell"
)

func TestQueue_Reset(t *testing.T) {
	assert := assert.New(t)

	q := &Queue{}
	q.Reset()

	assert.Equal(QUEUE_DEFAULT_CAPACITY, q.Capacity)
	assert.Len(q.Data, QUEUE_DEFAULT_CAPACITY)
	assert.Equal(0, q.Size)
}

func TestQueue_Fifo(t *testing.T) {
	assert := assert.New(t)

	q := &Queue{Capacity: 3}

	_, err := q.Read(QUEUE_DATA)
	assert.True(errors.Is(err, ErrEmpty))

	for _, value := range []cell.Cell{1, 2, 3} {
		assert.NoError(q.Write(QUEUE_DATA, value))
	}

	err = q.Write(QUEUE_DATA, 4)
	assert.True(errors.Is(err, ErrPeripheral))
	assert.True(errors.Is(err, ErrFull))

	count, err := q.Read(QUEUE_COUNT)
	assert.NoError(err)
	assert.Equal(cell.Cell(3), count)

	value, err := q.Read(QUEUE_DATA)
	assert.NoError(err)
	assert.Equal(cell.Cell(1), value)

	// Wrap around the end of the buffer.
	assert.NoError(q.Write(QUEUE_DATA, 4))

	for _, expected := range []cell.Cell{2, 3, 4} {
		value, err = q.Read(QUEUE_DATA)
		assert.NoError(err)
		assert.Equal(expected, value)
	}

	_, err = q.Read(QUEUE_DATA)
	assert.True(errors.Is(err, ErrEmpty))
}

func TestQueue_Clear(t *testing.T) {
	assert := assert.New(t)

	q := &Queue{Capacity: 4}
	assert.NoError(q.Write(QUEUE_DATA, 9))
	assert.NoError(q.Write(QUEUE_DATA, 8))
	assert.NoError(q.Write(QUEUE_COUNT, 0))

	count, err := q.Read(QUEUE_COUNT)
	assert.NoError(err)
	assert.Equal(cell.Cell(0), count)

	_, err = q.Read(QUEUE_SIZE)
	assert.True(errors.Is(err, ErrOffset))
	err = q.Write(QUEUE_SIZE, 0)
	assert.True(errors.Is(err, ErrOffset))
}

func TestQueue_Peek(t *testing.T) {
	assert := assert.New(t)

	q := &Queue{Capacity: 2}

	_, err := q.Peek(QUEUE_DATA)
	assert.True(errors.Is(err, ErrEmpty))

	assert.NoError(q.Write(QUEUE_DATA, 5))
	assert.NoError(q.Write(QUEUE_DATA, 6))

	table := [](struct {
		offset int
		value  cell.Cell
	}){
		{QUEUE_DATA, 5},
		{QUEUE_DATA, 5},
		{QUEUE_COUNT, 2},
	}

	for _, entry := range table {
		value, err := q.Peek(entry.offset)
		assert.NoError(err)
		assert.Equal(entry.value, value)
	}
	assert.Equal(2, q.Size)

	_, err = q.Peek(QUEUE_SIZE)
	assert.True(errors.Is(err, ErrOffset))
}
