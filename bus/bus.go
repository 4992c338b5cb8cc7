// Package bus implements the address space of the machine.
//
// The address space is a single contiguous range: a working memory region
// starting at address 0, followed by one window per peripheral, placed in
// registration order. Every valid address belongs to exactly one region.
package bus

import (
	"errors"

	"github.com/ezrec/crashvm/cell"
	"github.com/ezrec/crashvm/io"
	"github.com/ezrec/crashvm/translate"
)

var f = translate.From

var (
	ErrOutOfBounds  = errors.New(f("address out of bounds"))
	ErrMemorySize   = errors.New(f("memory size invalid"))
	ErrWindowSize   = errors.New(f("window size invalid"))
	ErrWindowDevice = errors.New(f("window device missing"))
	ErrWindowName   = errors.New(f("window name duplicated"))
	ErrPeek         = errors.New(f("device cannot be inspected"))
)

// ErrAccess reports a failed bus access.
type ErrAccess struct {
	Address int
	Write   bool
	Err     error
}

func (err *ErrAccess) Error() string {
	op := "read"
	if err.Write {
		op = "write"
	}
	return f("%v at address %v: %v", op, err.Address, err.Err)
}

func (err *ErrAccess) Unwrap() error {
	return err.Err
}

// Window describes a peripheral to be mapped into the address space.
type Window struct {
	Name   string        // Optional symbolic name.
	Size   int           // Number of addresses occupied.
	Device io.Peripheral // Device receiving the accesses.
}

// Region is a placed part of the address space. The memory region has a
// nil Device.
type Region struct {
	Name   string
	Base   int
	Size   int
	Device io.Peripheral
}

// Contains returns true if the address falls in the region.
func (r Region) Contains(addr int) bool {
	return addr >= r.Base && addr < r.Base+r.Size
}

// Bus is a working memory region followed by peripheral windows.
type Bus struct {
	memory  []cell.Cell
	regions []Region
	size    int
}

// NewBus creates an address space with memorySize cells of working memory,
// followed by the windows in order.
func NewBus(memorySize int, windows ...Window) (bus *Bus, err error) {
	if memorySize <= 0 {
		err = ErrMemorySize
		return
	}

	bus = &Bus{
		memory: make([]cell.Cell, memorySize),
	}
	bus.regions = append(bus.regions, Region{Name: "MEMORY", Base: 0, Size: memorySize})
	bus.size = memorySize

	names := map[string]bool{}
	for _, win := range windows {
		switch {
		case win.Size <= 0:
			err = ErrWindowSize
		case win.Device == nil:
			err = ErrWindowDevice
		case win.Name != "" && names[win.Name]:
			err = ErrWindowName
		}
		if err != nil {
			bus = nil
			return
		}
		names[win.Name] = true

		bus.regions = append(bus.regions, Region{
			Name:   win.Name,
			Base:   bus.size,
			Size:   win.Size,
			Device: win.Device,
		})
		bus.size += win.Size
	}

	return
}

// Size returns the total number of addresses.
func (bus *Bus) Size() int {
	return bus.size
}

// Memory returns the working memory. Changes made through the slice are
// visible to the machine.
func (bus *Bus) Memory() []cell.Cell {
	return bus.memory
}

// Regions returns the placed regions, memory first.
func (bus *Bus) Regions() []Region {
	return bus.regions
}

// Locate returns the region owning the address.
func (bus *Bus) Locate(addr int) (region Region, ok bool) {
	if addr < 0 || addr >= bus.size {
		return
	}

	for _, region = range bus.regions {
		if region.Contains(addr) {
			ok = true
			return
		}
	}

	region = Region{}
	return
}

// Read returns the cell at the address.
func (bus *Bus) Read(addr int) (value cell.Cell, err error) {
	region, ok := bus.Locate(addr)
	if !ok {
		err = &ErrAccess{Address: addr, Err: ErrOutOfBounds}
		return
	}

	if region.Device == nil {
		value = bus.memory[addr]
		return
	}

	value, err = region.Device.Read(addr - region.Base)
	if err != nil {
		err = &ErrAccess{Address: addr, Err: err}
	}

	return
}

// Write stores the cell at the address.
func (bus *Bus) Write(addr int, value cell.Cell) (err error) {
	region, ok := bus.Locate(addr)
	if !ok {
		return &ErrAccess{Address: addr, Write: true, Err: ErrOutOfBounds}
	}

	if region.Device == nil {
		bus.memory[addr] = value
		return
	}

	err = region.Device.Write(addr-region.Base, value)
	if err != nil {
		err = &ErrAccess{Address: addr, Write: true, Err: err}
	}

	return
}

// Peek returns the cell at the address without side effects. Devices that
// do not implement io.Peeker fail with ErrPeek.
func (bus *Bus) Peek(addr int) (value cell.Cell, err error) {
	region, ok := bus.Locate(addr)
	if !ok {
		err = &ErrAccess{Address: addr, Err: ErrOutOfBounds}
		return
	}

	if region.Device == nil {
		value = bus.memory[addr]
		return
	}

	peeker, ok := region.Device.(io.Peeker)
	if !ok {
		err = &ErrAccess{Address: addr, Err: ErrPeek}
		return
	}

	value, err = peeker.Peek(addr - region.Base)
	if err != nil {
		err = &ErrAccess{Address: addr, Err: err}
	}

	return
}

// Reset clears the working memory, and resets every device that supports it.
func (bus *Bus) Reset() {
	clear(bus.memory)
	for _, region := range bus.regions {
		if resetter, ok := region.Device.(io.Resetter); ok {
			resetter.Reset()
		}
	}
}
