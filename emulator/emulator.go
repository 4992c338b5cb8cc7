// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"strconv"

	"github.com/ezrec/crashvm/bus"
	"github.com/ezrec/crashvm/cell"
	"github.com/ezrec/crashvm/cpu"
	"github.com/ezrec/crashvm/internal"
	"github.com/ezrec/crashvm/objfile"
)

const DUMP_WIDTH = 16 // Cells per line of the memory dump.

// State of the emulator lifecycle.
type State int

//go:generate go tool stringer -type=State
const (
	READY   = State(iota) // Constructed, no program.
	LOADED                // Program present, ready to run.
	RUNNING               // Inside Run.
	HALTED                // Halted, or walked off the end of memory.
	FAULTED               // Stopped by a fault.
)

// Emulator state. CPU + address space + lifecycle.
type Emulator struct {
	Verbose   bool // If set, enables verbose logging.
	StepLimit int  // If positive, Run faults after this many instructions.

	*cpu.Cpu              // Reference to the CPU simulation.
	Bus      *bus.Bus     // Memory and peripheral windows.
	Program  *cpu.Program // Listing of the loaded program, if assembled.

	State State  // Lifecycle state.
	Fault *Fault // Fault which stopped the last run.
}

// NewEmulator creates a new emulator with memorySize cells of working
// memory, followed by the peripheral windows in order.
func NewEmulator(memorySize int, windows ...bus.Window) (emu *Emulator, err error) {
	bs, err := bus.NewBus(memorySize, windows...)
	if err != nil {
		return
	}

	emu = &Emulator{
		Cpu: &cpu.Cpu{Bus: bs},
		Bus: bs,
	}
	emu.Cpu.Reset(memorySize)

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	size := strconv.Itoa(len(emu.Bus.Memory()))
	memory := map[string]string{
		"MEMORY_SIZE": size,
		"STACK_TOP":   size,
	}

	windows := func(yield func(string, string) bool) {
		for _, region := range emu.Bus.Regions() {
			if region.Device == nil || region.Name == "" {
				continue
			}
			if !yield(region.Name, strconv.Itoa(region.Base)) {
				return
			}
			if !yield(region.Name+"_SIZE", strconv.Itoa(region.Size)) {
				return
			}
		}
	}

	return internal.IterSeq2Concat(maps.All(memory), windows)
}

// Assembler returns an assembler with the emulator defines predefined.
func (emu *Emulator) Assembler() (asm *cpu.Assembler) {
	asm = &cpu.Assembler{Verbose: emu.Verbose}
	for key, value := range emu.Defines() {
		asm.Predefine(key, value)
	}

	return
}

// LoadProgram loads an assembled program, keeping it for source line lookups.
func (emu *Emulator) LoadProgram(prog *cpu.Program) (err error) {
	return emu.load(prog.Words(), prog)
}

// LoadCode loads a program image.
func (emu *Emulator) LoadCode(code []cell.Cell) (err error) {
	return emu.load(code, nil)
}

// LoadBinary loads a program image from its binary encoding.
func (emu *Emulator) LoadBinary(data []byte) (err error) {
	code, err := objfile.Decode(data)
	if err != nil {
		return
	}

	return emu.load(code, nil)
}

// load copies the image to address 0, zeroes the rest of memory, and resets
// the CPU. Device state is left untouched.
func (emu *Emulator) load(code []cell.Cell, prog *cpu.Program) (err error) {
	if emu.State == RUNNING {
		return ErrRunning
	}

	memory := emu.Bus.Memory()
	if len(code) > len(memory) {
		return ErrProgramTooLarge
	}

	if emu.Verbose {
		log.Printf("emulator: load %d cells", len(code))
	}

	clear(memory)
	copy(memory, code)

	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Reset(len(memory))
	emu.Cpu.CodeSize = len(memory)
	emu.Program = prog
	emu.Fault = nil
	emu.State = LOADED

	return
}

// Reset clears memory and devices, and forgets the program.
func (emu *Emulator) Reset() (err error) {
	if emu.State == RUNNING {
		return ErrRunning
	}

	emu.Bus.Reset()
	emu.Cpu.Reset(len(emu.Bus.Memory()))
	emu.Cpu.CodeSize = 0
	emu.Program = nil
	emu.Fault = nil
	emu.State = READY

	return
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	if emu.Program == nil {
		return 0
	}

	dbg := emu.Program.Debug(emu.Cpu.Ip)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Read returns the cell at an address, for diagnostics. Devices are
// inspected without side effects; those which cannot be fail with
// bus.ErrPeek.
func (emu *Emulator) Read(addr int) (value cell.Cell, err error) {
	return emu.Bus.Peek(addr)
}

// step executes one instruction, converting device panics into errors.
func (emu *Emulator) step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(ErrPanic, fmt.Errorf("%v", r))
		}
	}()

	return emu.Cpu.Tick()
}

// fault records the fault, and stops the emulator.
func (emu *Emulator) fault(err error) *Fault {
	ft := &Fault{
		Ip:     emu.Cpu.Ip,
		LineNo: emu.LineNo(),
		Err:    err,
	}
	if code, cerr := emu.Cpu.FetchCode(); cerr == nil {
		ft.Code = code
	}

	if emu.Verbose {
		log.Printf("emulator: fault: %v", ft)
	}

	emu.Fault = ft
	emu.State = FAULTED

	return ft
}

// Tick performs a single tick of the emulator.
// A loaded program stays LOADED until it halts or faults.
func (emu *Emulator) Tick() (done bool, err error) {
	switch emu.State {
	case HALTED, FAULTED:
		done = true
		return
	case LOADED:
	default:
		err = ErrNotLoaded
		return
	}

	emu.Cpu.Verbose = emu.Verbose

	if emu.Cpu.Done() {
		emu.State = HALTED
		done = true
		return
	}

	err = emu.step()
	if err != nil {
		err = emu.fault(err)
		done = true
		return
	}

	if emu.Cpu.Done() {
		emu.State = HALTED
		done = true
	}

	return
}

// Run executes the loaded program until it halts or faults.
// The returned error is the retained *Fault, if any.
func (emu *Emulator) Run() (err error) {
	if emu.State != LOADED {
		return ErrNotLoaded
	}

	emu.Cpu.Verbose = emu.Verbose
	emu.State = RUNNING

	for steps := 0; !emu.Cpu.Done(); steps++ {
		if emu.StepLimit > 0 && steps >= emu.StepLimit {
			return emu.fault(ErrStepLimit)
		}

		err = emu.step()
		if err != nil {
			return emu.fault(err)
		}
	}

	if emu.Verbose {
		log.Printf("emulator: halted after %d ticks", emu.Cpu.Ticks)
	}

	emu.State = HALTED

	return
}

// String returns the emulator state and a dump of the working memory.
func (emu *Emulator) String() (text string) {
	text += fmt.Sprintf("% 5s: %v\n", "state", emu.State)
	text += emu.Cpu.String()
	if emu.Fault != nil {
		text += fmt.Sprintf("% 5s: %v\n", "fault", emu.Fault)
	}

	memory := emu.Bus.Memory()
	for base := 0; base < len(memory); base += DUMP_WIDTH {
		text += fmt.Sprintf("%04x:", base)
		for _, value := range memory[base:min(base+DUMP_WIDTH, len(memory))] {
			text += " " + value.Hex()
		}
		text += "\n"
	}

	return
}
