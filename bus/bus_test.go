package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/crashvm/cell"
	"github.com/ezrec/crashvm/io"
)

func testBus(t *testing.T) (bus *Bus, arg *io.Argument, out *io.Output) {
	arg = io.NewArgument(7, 9, 11)
	out = &io.Output{}

	bus, err := NewBus(16,
		Window{Name: "ARGS", Size: 3, Device: arg},
		Window{Name: "OUT", Size: 4, Device: out},
	)
	if err != nil {
		t.Fatal(err)
	}

	return
}

func TestNewBus(t *testing.T) {
	assert := assert.New(t)

	bus, _, _ := testBus(t)

	assert.Equal(23, bus.Size())
	assert.Len(bus.Memory(), 16)

	regions := bus.Regions()
	assert.Len(regions, 3)
	assert.Equal(0, regions[0].Base)
	assert.Equal(16, regions[0].Size)
	assert.Nil(regions[0].Device)
	assert.Equal("ARGS", regions[1].Name)
	assert.Equal(16, regions[1].Base)
	assert.Equal("OUT", regions[2].Name)
	assert.Equal(19, regions[2].Base)
	assert.Equal(4, regions[2].Size)
}

func TestNewBus_Invalid(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		memory  int
		windows []Window
		err     error
	}){
		{"no memory", 0, nil, ErrMemorySize},
		{"negative memory", -4, nil, ErrMemorySize},
		{"empty window", 4, []Window{{Size: 0, Device: &io.Output{}}}, ErrWindowSize},
		{"no device", 4, []Window{{Size: 1}}, ErrWindowDevice},
		{"duplicate", 4, []Window{
			{Name: "A", Size: 1, Device: &io.Output{}},
			{Name: "A", Size: 1, Device: &io.Output{}},
		}, ErrWindowName},
	}

	for _, entry := range table {
		bus, err := NewBus(entry.memory, entry.windows...)
		assert.Nil(bus, entry.name)
		assert.ErrorIs(err, entry.err, entry.name)
	}

	// Unnamed windows may repeat.
	_, err := NewBus(4,
		Window{Size: 1, Device: &io.Output{}},
		Window{Size: 1, Device: &io.Output{}},
	)
	assert.NoError(err)
}

func TestBus_Memory(t *testing.T) {
	assert := assert.New(t)

	bus, _, _ := testBus(t)

	for addr := range 16 {
		value := cell.New(int64(addr*1000 - 3))
		assert.NoError(bus.Write(addr, value))
		got, err := bus.Read(addr)
		assert.NoError(err)
		assert.Equal(value, got)
	}

	assert.Equal(cell.Cell(-3), bus.Memory()[0])
}

func TestBus_Windows(t *testing.T) {
	assert := assert.New(t)

	bus, _, out := testBus(t)

	for n, expected := range []cell.Cell{7, 9, 11} {
		value, err := bus.Read(16 + n)
		assert.NoError(err)
		assert.Equal(expected, value)
	}

	err := bus.Write(16, 1)
	assert.True(errors.Is(err, io.ErrPeripheral))
	assert.True(errors.Is(err, io.ErrReadOnly))

	var access *ErrAccess
	assert.True(errors.As(err, &access))
	assert.Equal(16, access.Address)
	assert.True(access.Write)

	assert.NoError(bus.Write(21, 42))
	assert.NoError(bus.Write(21, 99))
	value, ok := out.Get(2)
	assert.True(ok)
	assert.Equal(cell.Cell(99), value)
	assert.Equal(1, out.Len())

	_, err = bus.Read(19)
	assert.True(errors.Is(err, io.ErrWriteOnly))
}

func TestBus_OutOfBounds(t *testing.T) {
	assert := assert.New(t)

	bus, _, _ := testBus(t)

	for _, addr := range []int{-1000, -1, 23, 24, 100, 1 << 30} {
		_, err := bus.Read(addr)
		assert.True(errors.Is(err, ErrOutOfBounds), "read %d", addr)

		err = bus.Write(addr, 1)
		assert.True(errors.Is(err, ErrOutOfBounds), "write %d", addr)
	}
}

func TestBus_Locate(t *testing.T) {
	assert := assert.New(t)

	bus, arg, _ := testBus(t)

	region, ok := bus.Locate(17)
	assert.True(ok)
	assert.Equal("ARGS", region.Name)
	assert.Equal(arg, region.Device)

	region, ok = bus.Locate(15)
	assert.True(ok)
	assert.Equal("MEMORY", region.Name)

	_, ok = bus.Locate(23)
	assert.False(ok)
}

func TestBus_Reset(t *testing.T) {
	assert := assert.New(t)

	bus, _, out := testBus(t)

	assert.NoError(bus.Write(3, 5))
	assert.NoError(bus.Write(19, 5))

	bus.Reset()

	assert.Equal(cell.Cell(0), bus.Memory()[3])
	assert.Equal(0, out.Len())
}

func TestBus_Peek(t *testing.T) {
	assert := assert.New(t)

	q := &io.Queue{Capacity: 4}
	con := &io.Console{}
	bus, err := NewBus(4,
		Window{Name: "FIFO", Size: io.QUEUE_SIZE, Device: q},
		Window{Name: "CON", Size: io.CONSOLE_SIZE, Device: con},
	)
	assert.NoError(err)

	assert.NoError(bus.Write(1, 12))
	assert.NoError(bus.Write(4, 42))
	assert.NoError(bus.Write(4, 43))

	value, err := bus.Peek(1)
	assert.NoError(err)
	assert.Equal(cell.Cell(12), value)

	// Inspecting the queue does not pop it.
	for range 3 {
		value, err = bus.Peek(4)
		assert.NoError(err)
		assert.Equal(cell.Cell(42), value)
	}
	value, err = bus.Peek(5)
	assert.NoError(err)
	assert.Equal(cell.Cell(2), value)
	assert.Equal(2, q.Size)

	_, err = bus.Peek(6)
	assert.True(errors.Is(err, ErrPeek))

	_, err = bus.Peek(8)
	assert.True(errors.Is(err, ErrOutOfBounds))
	_, err = bus.Peek(-1)
	assert.True(errors.Is(err, ErrOutOfBounds))
}
