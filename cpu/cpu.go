package cpu

import (
	"errors"
	"fmt"
	"log"

	"github.com/ezrec/crashvm/cell"
)

// Bus is the address space seen by the CPU.
type Bus interface {
	Read(addr int) (value cell.Cell, err error)
	Write(addr int, value cell.Cell) (err error)
}

// Cpu is the simulation context for the accumulator CPU.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Bus      Bus // Address space for code and data.
	CodeSize int // Instructions are fetched below this address.

	Ip       int                  // Current instruction pointer.
	Register [REG_COUNT]cell.Cell // Register bank.
	Halted   bool                 // Set by the halt instruction.

	Ticks int // CPU ticks counter.
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("% 5s: %04x\n", "ip", cpu.Ip)
	text += fmt.Sprintf("% 5s: %v\n", "halt", cpu.Halted)
	for reg, val := range cpu.Register {
		text += fmt.Sprintf("% 5s: %v (%v)\n", CodeReg(reg), val.Hex(), val)
	}
	text += fmt.Sprintf("% 5s: %v\n", "ticks", cpu.Ticks)

	return
}

// Reset the CPU state.
// - Clears the registers and the halt flag.
// - Sets the stack pointer to stackTop.
// - Sets the IP to 0.
// - Zeros statistics counters.
func (cpu *Cpu) Reset(stackTop int) {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	cpu.Register[REG_SP] = cell.New(int64(stackTop))
	cpu.Ip = 0
	cpu.Halted = false
	cpu.Ticks = 0
}

// Done returns true when the CPU has halted, or the IP has left the code.
func (cpu *Cpu) Done() bool {
	return cpu.Halted || cpu.Ip >= cpu.CodeSize
}

// FetchCode fetches the instruction at the IP.
func (cpu *Cpu) FetchCode() (code Code, err error) {
	if cpu.Bus == nil {
		err = ErrBusMissing
		return
	}

	if cpu.Ip < 0 || cpu.Ip >= cpu.CodeSize {
		err = ErrIpInvalid
		return
	}

	word, err := cpu.Bus.Read(cpu.Ip)
	if err != nil {
		return
	}

	code, err = decode(word, func(n int) (value cell.Cell, err error) {
		if cpu.Ip+n >= cpu.CodeSize {
			err = ErrOpcodeTruncated
			return
		}
		return cpu.Bus.Read(cpu.Ip + n)
	})

	return
}

// Tick executes a single CPU instruction cycle.
func (cpu *Cpu) Tick() (err error) {
	code, err := cpu.FetchCode()
	if err != nil {
		return
	}

	err = cpu.Execute(code)
	if err != nil {
		return
	}

	return
}

// Execute executes a single decoded instruction.
func (cpu *Cpu) Execute(code Code) (err error) {
	err = code.Check()
	if err != nil {
		err = errors.Join(err, ErrOpcode(code))
		return
	}

	if cpu.Verbose {
		log.Printf("%04x: %v", cpu.Ip, code)
	}

	next_ip := cpu.Ip + code.Size()

	acc := &cpu.Register[REG_ACC]

	var value, result cell.Cell
	if code.Op().Operand() == OPERAND_VALUE {
		value, err = cpu.getValue(code)
		if err != nil {
			return
		}
	}

	switch code.Op() {
	case OP_HALT:
		cpu.Halted = true
		next_ip = cpu.Ip
	case OP_NOP:
		// pass
	case OP_LD:
		*acc = value
	case OP_ST:
		err = cpu.setValue(code, *acc)
	case OP_ADD:
		*acc = acc.Add(value)
	case OP_SUB:
		*acc = acc.Sub(value)
	case OP_MUL:
		*acc = acc.Mul(value)
	case OP_DIV:
		result, err = acc.Div(value)
	case OP_MOD:
		result, err = acc.Mod(value)
	case OP_AND:
		*acc = acc.And(value)
	case OP_OR:
		*acc = acc.Or(value)
	case OP_XOR:
		*acc = acc.Xor(value)
	case OP_SHL:
		*acc = acc.Shl(value)
	case OP_SHR:
		*acc = acc.Shr(value)
	case OP_SAR:
		*acc = acc.Sar(value)
	case OP_NEG:
		*acc = acc.Neg()
	case OP_INV:
		*acc = acc.Not()
	case OP_NOT:
		*acc = cell.FromBool(!acc.Bool())
	case OP_SQRT:
		result, err = acc.Sqrt()
	case OP_EQ:
		*acc = cell.FromBool(acc.Eq(value))
	case OP_GT:
		*acc = cell.FromBool(acc.Gt(value))
	case OP_LT:
		*acc = cell.FromBool(acc.Lt(value))
	case OP_JMP:
		next_ip = int(value.Value())
	case OP_JIF:
		if acc.Bool() {
			next_ip = int(value.Value())
		}
	case OP_JZ:
		if !acc.Bool() {
			next_ip = int(value.Value())
		}
	case OP_PUSH:
		err = cpu.push(*acc)
	case OP_POP:
		result, err = cpu.pop()
	case OP_CALL:
		err = cpu.push(cell.New(int64(next_ip)))
		next_ip = int(value.Value())
	case OP_RET:
		result, err = cpu.pop()
		next_ip = int(result.Value())
	case OP_BRK:
		log.Printf("cpu: break at %04x\n%v", cpu.Ip, cpu)
	default:
		err = errors.Join(ErrOpcodeInvalid, ErrOpcode(code))
	}

	if err != nil {
		return
	}

	switch code.Op() {
	case OP_DIV, OP_MOD, OP_SQRT, OP_POP:
		*acc = result
	}

	cpu.Ip = next_ip
	cpu.Ticks += 1

	return
}

// push decrements the stack pointer, and stores the value at the new top.
func (cpu *Cpu) push(value cell.Cell) (err error) {
	sp := cpu.Register[REG_SP].Sub(1)
	err = cpu.Bus.Write(int(sp.Value()), value)
	if err != nil {
		return
	}

	cpu.Register[REG_SP] = sp
	return
}

// pop loads the value at the top of the stack, and increments the stack pointer.
func (cpu *Cpu) pop() (value cell.Cell, err error) {
	sp := cpu.Register[REG_SP]
	value, err = cpu.Bus.Read(int(sp.Value()))
	if err != nil {
		return
	}

	cpu.Register[REG_SP] = sp.Add(1)
	return
}

// address returns the memory address of a direct or indexed operand.
func (cpu *Cpu) address(code Code) int {
	addr := code.Operand()
	if code.Mode() == MODE_INDEXED {
		addr = cpu.Register[code.Reg()].Add(addr)
	}
	return int(addr.Value())
}

// getValue gets the value specified by the operand of the code, based on
// CPU state or memory.
func (cpu *Cpu) getValue(code Code) (value cell.Cell, err error) {
	switch code.Mode() {
	case MODE_IMM:
		value = code.Operand()
	case MODE_REG:
		value = cpu.Register[code.Reg()]
	case MODE_DIRECT, MODE_INDEXED:
		value, err = cpu.Bus.Read(cpu.address(code))
	default:
		err = errors.Join(ErrOpcodeInvalid, ErrOpcode(code))
	}

	return
}

// setValue stores a value at the location specified by the operand of the code.
func (cpu *Cpu) setValue(code Code, value cell.Cell) (err error) {
	switch code.Mode() {
	case MODE_REG:
		cpu.Register[code.Reg()] = value
	case MODE_DIRECT, MODE_INDEXED:
		err = cpu.Bus.Write(cpu.address(code), value)
	default:
		err = errors.Join(ErrOpcodeInvalid, ErrOpcode(code))
	}

	return
}
