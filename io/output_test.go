package io

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/crashvm/cell"
)

func TestOutput_Write(t *testing.T) {
	assert := assert.New(t)

	out := &Output{}
	assert.Equal(0, out.Len())

	assert.NoError(out.Write(0, 10))
	assert.NoError(out.Write(3, 30))
	assert.NoError(out.Write(0, 11))

	value, ok := out.Get(0)
	assert.True(ok)
	assert.Equal(cell.Cell(11), value)

	_, ok = out.Get(1)
	assert.False(ok)

	assert.Equal(2, out.Len())

	var offsets []int
	var values []cell.Cell
	for offset, value := range out.Entries() {
		offsets = append(offsets, offset)
		values = append(values, value)
	}
	assert.Equal([]int{0, 3}, offsets)
	assert.Equal([]cell.Cell{11, 30}, values)
}

func TestOutput_Read(t *testing.T) {
	assert := assert.New(t)

	out := &Output{}
	assert.NoError(out.Write(0, 1))

	_, err := out.Read(0)
	assert.True(errors.Is(err, ErrPeripheral))
	assert.True(errors.Is(err, ErrWriteOnly))
}

func TestOutput_Reset(t *testing.T) {
	assert := assert.New(t)

	out := &Output{}
	assert.NoError(out.Write(2, 1))
	out.Reset()
	assert.Equal(0, out.Len())

	// Reset on an unused output is harmless.
	(&Output{}).Reset()
}

func TestOutput_Peek(t *testing.T) {
	assert := assert.New(t)

	out := &Output{}
	assert.NoError(out.Write(1, 8))

	value, err := out.Peek(1)
	assert.NoError(err)
	assert.Equal(cell.Cell(8), value)

	value, err = out.Peek(0)
	assert.NoError(err)
	assert.Equal(cell.Cell(0), value)
	assert.Equal(1, out.Len())
}
