package cpu

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/crashvm/bus"
	"github.com/ezrec/crashvm/cell"
	"github.com/ezrec/crashvm/io"
)

// fuzzBus is 16 cells of memory, then ARGS [7 9 11] and a two cell OUT.
func fuzzBus(t *testing.T) (bs *bus.Bus) {
	bs, err := bus.NewBus(16,
		bus.Window{Name: "ARGS", Size: 3, Device: io.NewArgument(7, 9, 11)},
		bus.Window{Name: "OUT", Size: 2, Device: &io.Output{}},
	)
	if err != nil {
		t.Fatal(err)
	}

	for n := range bs.Memory() {
		bs.Memory()[n] = cell.Cell(n*3 + 1)
	}

	return
}

// peekValue returns the value operand of the code, without side effects.
func peekValue(bs *bus.Bus, cpu *Cpu, code Code) (value cell.Cell, err error) {
	switch code.Mode() {
	case MODE_IMM:
		value = code.Operand()
	case MODE_REG:
		value = cpu.Register[code.Reg()]
	default:
		value, err = bs.Peek(cpu.address(code))
	}

	return
}

func FuzzCpu(f *testing.F) {
	for op := range CodeOp(len(opTable)) {
		for mode := range MODE_INDEXED + 1 {
			for _, reg := range []CodeReg{REG_ACC, REG_X, REG_Y, REG_SP} {
				word := MakeCode(op, mode, reg).Word.Uint()
				f.Add(word, int32(0), int32(5))
				f.Add(word, int32(3), int32(-7))
				f.Add(word, int32(17), int32(0))
			}
		}
	}
	f.Add(uint32(0xffffffff), int32(-1), int32(-1))
	f.Add(uint32(0xf302), int32(1), int32(1))

	f.Fuzz(func(t *testing.T, word uint32, imm int32, acc int32) {
		assert := assert.New(t)

		bs := fuzzBus(t)

		cpu := &Cpu{Bus: bs, CodeSize: 16}
		cpu.Reset(16)
		cpu.Ip = 4
		cpu.Register = [REG_COUNT]cell.Cell{cell.Cell(acc), 1, 17, 8}

		code := Code{Word: cell.Cell(word)}
		if code.ImmediateNeed() > 0 {
			code.Immediates = []cell.Cell{cell.Cell(imm)}
		}

		pre := *cpu
		pre_memory := slices.Clone(bs.Memory())
		sp := int(pre.Register[REG_SP].Value())
		top := pre_memory[sp]

		var value cell.Cell
		if code.Check() == nil && code.Op().Operand() == OPERAND_VALUE {
			value, _ = peekValue(bs, &pre, code)
		}

		err := cpu.Execute(code)

		code_str := fmt.Sprintf("0x%08x (%v)\nimm: %v acc: %v\ncpu:%v", word, code, imm, acc, cpu.String())

		if err != nil {
			switch {
			case errors.Is(err, ErrOpcodeInvalid):
				assert.Error(code.Check(), code_str)
			case errors.Is(err, cell.ErrArithmetic):
				assert.Contains([]CodeOp{OP_DIV, OP_MOD, OP_SQRT}, code.Op(), code_str)
			case errors.Is(err, bus.ErrOutOfBounds):
			case errors.Is(err, io.ErrPeripheral):
			default:
				assert.NoError(err, code_str)
			}

			// Faults leave the machine untouched.
			assert.Equal(pre.Register, cpu.Register, code_str)
			assert.Equal(pre.Ip, cpu.Ip, code_str)
			assert.Equal(pre.Ticks, cpu.Ticks, code_str)
			assert.Equal(pre_memory, bs.Memory(), code_str)
			assert.False(cpu.Halted, code_str)
			return
		}

		assert.NoError(code.Check(), code_str)

		a := pre.Register[REG_ACC]
		expect := pre.Register
		next_ip := pre.Ip + code.Size()

		switch code.Op() {
		case OP_HALT:
			next_ip = pre.Ip
			assert.True(cpu.Halted, code_str)
		case OP_NOP, OP_BRK:
		case OP_LD:
			expect[REG_ACC] = value
		case OP_ST:
			if code.Mode() == MODE_REG {
				expect[code.Reg()] = a
			} else {
				stored, perr := bs.Peek(pre.address(code))
				assert.NoError(perr, code_str)
				assert.Equal(a, stored, code_str)
			}
		case OP_ADD:
			expect[REG_ACC] = a.Add(value)
		case OP_SUB:
			expect[REG_ACC] = a.Sub(value)
		case OP_MUL:
			expect[REG_ACC] = a.Mul(value)
		case OP_DIV:
			expect[REG_ACC], _ = a.Div(value)
		case OP_MOD:
			expect[REG_ACC], _ = a.Mod(value)
		case OP_AND:
			expect[REG_ACC] = a.And(value)
		case OP_OR:
			expect[REG_ACC] = a.Or(value)
		case OP_XOR:
			expect[REG_ACC] = a.Xor(value)
		case OP_SHL:
			expect[REG_ACC] = a.Shl(value)
		case OP_SHR:
			expect[REG_ACC] = a.Shr(value)
		case OP_SAR:
			expect[REG_ACC] = a.Sar(value)
		case OP_NEG:
			expect[REG_ACC] = a.Neg()
		case OP_INV:
			expect[REG_ACC] = a.Not()
		case OP_NOT:
			expect[REG_ACC] = cell.FromBool(!a.Bool())
		case OP_SQRT:
			expect[REG_ACC], _ = a.Sqrt()
		case OP_EQ:
			expect[REG_ACC] = cell.FromBool(a.Eq(value))
		case OP_GT:
			expect[REG_ACC] = cell.FromBool(a.Gt(value))
		case OP_LT:
			expect[REG_ACC] = cell.FromBool(a.Lt(value))
		case OP_JMP:
			next_ip = int(value.Value())
		case OP_JIF:
			if a.Bool() {
				next_ip = int(value.Value())
			}
		case OP_JZ:
			if !a.Bool() {
				next_ip = int(value.Value())
			}
		case OP_PUSH:
			expect[REG_SP] = cell.Cell(sp - 1)
			assert.Equal(a, bs.Memory()[sp-1], code_str)
		case OP_POP:
			expect[REG_ACC] = top
			expect[REG_SP] = cell.Cell(sp + 1)
		case OP_CALL:
			expect[REG_SP] = cell.Cell(sp - 1)
			assert.Equal(cell.Cell(pre.Ip+code.Size()), bs.Memory()[sp-1], code_str)
			next_ip = int(value.Value())
		case OP_RET:
			expect[REG_SP] = cell.Cell(sp + 1)
			next_ip = int(top.Value())
		default:
			assert.Fail("unexpected success", code_str)
		}

		assert.Equal(expect, cpu.Register, code_str)
		assert.Equal(next_ip, cpu.Ip, code_str)
		assert.Equal(pre.Ticks+1, cpu.Ticks, code_str)
	})
}
