package cpu

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/ezrec/crashvm/cell"
)

// CodeOp is an operation type.
type CodeOp int

const (
	OP_HALT = CodeOp(0)  // halt
	OP_NOP  = CodeOp(1)  // nop
	OP_LD   = CodeOp(2)  // ld
	OP_ST   = CodeOp(3)  // st
	OP_ADD  = CodeOp(4)  // add
	OP_SUB  = CodeOp(5)  // sub
	OP_MUL  = CodeOp(6)  // mul
	OP_DIV  = CodeOp(7)  // div
	OP_MOD  = CodeOp(8)  // mod
	OP_AND  = CodeOp(9)  // and
	OP_OR   = CodeOp(10) // or
	OP_XOR  = CodeOp(11) // xor
	OP_SHL  = CodeOp(12) // shl
	OP_SHR  = CodeOp(13) // shr
	OP_SAR  = CodeOp(14) // sar
	OP_NEG  = CodeOp(15) // neg
	OP_INV  = CodeOp(16) // inv
	OP_NOT  = CodeOp(17) // not
	OP_SQRT = CodeOp(18) // sqrt
	OP_EQ   = CodeOp(19) // eq
	OP_GT   = CodeOp(20) // gt
	OP_LT   = CodeOp(21) // lt
	OP_JMP  = CodeOp(22) // jmp
	OP_JIF  = CodeOp(23) // jif
	OP_JZ   = CodeOp(24) // jz
	OP_PUSH = CodeOp(25) // push
	OP_POP  = CodeOp(26) // pop
	OP_CALL = CodeOp(27) // call
	OP_RET  = CodeOp(28) // ret
	OP_BRK  = CodeOp(29) // brk
)

// CodeOperand is the kind of operand an operation accepts.
type CodeOperand int

const (
	OPERAND_NONE     = CodeOperand(0) // No operand word.
	OPERAND_VALUE    = CodeOperand(1) // Any readable operand.
	OPERAND_LOCATION = CodeOperand(2) // A writable operand (not an immediate).
)

var opTable = [...]struct {
	name    string
	operand CodeOperand
}{
	OP_HALT: {"halt", OPERAND_NONE},
	OP_NOP:  {"nop", OPERAND_NONE},
	OP_LD:   {"ld", OPERAND_VALUE},
	OP_ST:   {"st", OPERAND_LOCATION},
	OP_ADD:  {"add", OPERAND_VALUE},
	OP_SUB:  {"sub", OPERAND_VALUE},
	OP_MUL:  {"mul", OPERAND_VALUE},
	OP_DIV:  {"div", OPERAND_VALUE},
	OP_MOD:  {"mod", OPERAND_VALUE},
	OP_AND:  {"and", OPERAND_VALUE},
	OP_OR:   {"or", OPERAND_VALUE},
	OP_XOR:  {"xor", OPERAND_VALUE},
	OP_SHL:  {"shl", OPERAND_VALUE},
	OP_SHR:  {"shr", OPERAND_VALUE},
	OP_SAR:  {"sar", OPERAND_VALUE},
	OP_NEG:  {"neg", OPERAND_NONE},
	OP_INV:  {"inv", OPERAND_NONE},
	OP_NOT:  {"not", OPERAND_NONE},
	OP_SQRT: {"sqrt", OPERAND_NONE},
	OP_EQ:   {"eq", OPERAND_VALUE},
	OP_GT:   {"gt", OPERAND_VALUE},
	OP_LT:   {"lt", OPERAND_VALUE},
	OP_JMP:  {"jmp", OPERAND_VALUE},
	OP_JIF:  {"jif", OPERAND_VALUE},
	OP_JZ:   {"jz", OPERAND_VALUE},
	OP_PUSH: {"push", OPERAND_NONE},
	OP_POP:  {"pop", OPERAND_NONE},
	OP_CALL: {"call", OPERAND_VALUE},
	OP_RET:  {"ret", OPERAND_NONE},
	OP_BRK:  {"brk", OPERAND_NONE},
}

// opMap maps mnemonics, including aliases, to operations.
var opMap = map[string]CodeOp{
	"jnz": OP_JIF,
}

func init() {
	for op, info := range opTable {
		opMap[info.name] = CodeOp(op)
	}
}

// Valid returns true if the operation is defined.
func (op CodeOp) Valid() bool {
	return op >= 0 && int(op) < len(opTable)
}

// Operand returns the kind of operand the operation takes.
func (op CodeOp) Operand() CodeOperand {
	if !op.Valid() {
		return OPERAND_NONE
	}
	return opTable[op].operand
}

// Width returns the encoded size, in cells, of the operation.
func (op CodeOp) Width() int {
	if op.Operand() == OPERAND_NONE {
		return 1
	}
	return 2
}

func (op CodeOp) String() string {
	if !op.Valid() {
		return fmt.Sprintf("op%d", int(op))
	}
	return opTable[op].name
}

// CodeMode is an operand addressing mode.
type CodeMode int

const (
	MODE_NONE    = CodeMode(0) // No operand.
	MODE_IMM     = CodeMode(1) // Operand is the immediate.
	MODE_REG     = CodeMode(2) // Operand is the register.
	MODE_DIRECT  = CodeMode(3) // Operand is memory at the immediate.
	MODE_INDEXED = CodeMode(4) // Operand is memory at the register plus the immediate.
)

// CodeReg is a register index.
type CodeReg int

const (
	REG_ACC = CodeReg(0) // acc
	REG_X   = CodeReg(1) // x
	REG_Y   = CodeReg(2) // y
	REG_SP  = CodeReg(3) // sp

	REG_COUNT = 4
)

var regNames = [REG_COUNT]string{"acc", "x", "y", "sp"}

// regMap is a map of register names to register codes.
var regMap = map[string]CodeReg{
	"acc": REG_ACC,
	"x":   REG_X,
	"y":   REG_Y,
	"sp":  REG_SP,
}

func (reg CodeReg) String() string {
	if reg < 0 || reg >= REG_COUNT {
		return fmt.Sprintf("r%d", int(reg))
	}
	return regNames[reg]
}

// Opcode represents a line of assembled code with its source location and generated cells.
type Opcode struct {
	LineNo int
	Ip     int
	Words  []string
	Codes  []Code
	Data   []cell.Cell
	Links  []Link
}

// Link is a reference from a cell of an opcode to a label.
type Link struct {
	Index  int    // Index of the cell in the opcode.
	Label  string // Referenced label.
	Addend int64  // Constant added to the label address.
}

// Size returns the number of cells of the opcode.
func (op *Opcode) Size() (size int) {
	for _, code := range op.Codes {
		size += code.Size()
	}
	size += len(op.Data)
	return
}

// Cells returns the cells of the opcode, codes first.
func (op *Opcode) Cells() (cells []cell.Cell) {
	for _, code := range op.Codes {
		cells = append(cells, code.Word)
		cells = append(cells, code.Immediates...)
	}
	cells = append(cells, op.Data...)
	return
}

// patch adds the value to the index-th cell of the opcode.
func (op *Opcode) patch(index int, value cell.Cell) bool {
	for n := range op.Codes {
		code := &op.Codes[n]
		if index == 0 {
			return false
		}
		index--
		if index < len(code.Immediates) {
			code.Immediates[index] = code.Immediates[index].Add(value)
			return true
		}
		index -= len(code.Immediates)
	}

	if index < 0 || index >= len(op.Data) {
		return false
	}

	op.Data[index] = op.Data[index].Add(value)
	return true
}

// Code represents a single instruction word with optional immediate values.
type Code struct {
	Word       cell.Cell
	Immediates []cell.Cell
}

// MakeCode creates an instruction.
func MakeCode(op CodeOp, mode CodeMode, reg CodeReg, imms ...cell.Cell) Code {
	return Code{
		Word:       cell.Cell((int(op) & 0xff) | ((int(mode) & 0xf) << 8) | ((int(reg) & 0xf) << 12)),
		Immediates: imms,
	}
}

// Op returns the operation from the instruction word.
func (code Code) Op() CodeOp {
	return CodeOp(code.Word.Uint() & 0xff)
}

// Mode returns the operand mode from the instruction word.
func (code Code) Mode() CodeMode {
	return CodeMode((code.Word.Uint() >> 8) & 0xf)
}

// Reg returns the operand register from the instruction word.
func (code Code) Reg() CodeReg {
	return CodeReg((code.Word.Uint() >> 12) & 0xf)
}

// ImmediateNeed returns the number of immediate cells required by this instruction.
func (code Code) ImmediateNeed() int {
	return code.Op().Width() - 1
}

// Size returns the number of cells of the instruction.
func (code Code) Size() int {
	return 1 + len(code.Immediates)
}

// Operand returns the immediate cell, or 0 if there is none.
func (code Code) Operand() cell.Cell {
	if len(code.Immediates) == 0 {
		return 0
	}
	return code.Immediates[0]
}

// Check verifies the instruction word is a well formed instruction.
func (code Code) Check() (err error) {
	op := code.Op()
	mode := code.Mode()
	reg := code.Reg()

	switch {
	case (code.Word.Uint() >> 16) != 0:
		err = ErrOpcodeInvalid
	case !op.Valid():
		err = ErrOpcodeInvalid
	case op.Operand() == OPERAND_NONE && (mode != MODE_NONE || reg != 0):
		err = ErrOpcodeInvalid
	case op.Operand() != OPERAND_NONE && (mode < MODE_IMM || mode > MODE_INDEXED):
		err = ErrOpcodeInvalid
	case op.Operand() == OPERAND_LOCATION && mode == MODE_IMM:
		err = ErrOpcodeInvalid
	case (mode == MODE_IMM || mode == MODE_DIRECT) && reg != 0:
		err = ErrOpcodeInvalid
	case reg >= REG_COUNT:
		err = ErrOpcodeInvalid
	case len(code.Immediates) != code.ImmediateNeed():
		err = ErrOpcodeTruncated
	}

	return
}

// operandString returns the assembly language representation of the operand.
func (code Code) operandString() string {
	imm := code.Operand()

	switch code.Mode() {
	case MODE_IMM:
		return imm.String()
	case MODE_REG:
		return code.Reg().String()
	case MODE_DIRECT:
		return fmt.Sprintf("[%v]", imm)
	case MODE_INDEXED:
		switch {
		case imm == 0:
			return fmt.Sprintf("[%v]", code.Reg())
		case imm < 0:
			return fmt.Sprintf("[%v%v]", code.Reg(), imm)
		default:
			return fmt.Sprintf("[%v+%v]", code.Reg(), imm)
		}
	}

	return ""
}

// String returns the assembly language representation of this instruction.
func (code Code) String() (out string) {
	out = code.Op().String()
	if operand := code.operandString(); len(operand) > 0 {
		out += " " + operand
	}

	return
}

// decode assembles an instruction from its word, fetching immediates as needed.
func decode(word cell.Cell, fetch func(n int) (cell.Cell, error)) (code Code, err error) {
	code = Code{Word: word}
	need := code.ImmediateNeed()
	for n := range need {
		var imm cell.Cell
		imm, err = fetch(n + 1)
		if err != nil {
			err = ErrOpcodeTruncated
			return
		}
		code.Immediates = append(code.Immediates, imm)
	}

	err = code.Check()
	if err != nil {
		err = errors.Join(err, ErrOpcode(code))
	}

	return
}

// Decode decodes the instruction at ip of an image.
func Decode(cells []cell.Cell, ip int) (code Code, err error) {
	if ip < 0 || ip >= len(cells) {
		err = ErrIpInvalid
		return
	}

	return decode(cells[ip], func(n int) (value cell.Cell, err error) {
		if ip+n >= len(cells) {
			err = ErrOpcodeTruncated
			return
		}
		value = cells[ip+n]
		return
	})
}

// Disassemble returns the listing of an image, one line per instruction.
// Cells which do not decode are listed as data.
func Disassemble(cells []cell.Cell) iter.Seq2[int, string] {
	return func(yield func(ip int, text string) bool) {
		for ip := 0; ip < len(cells); {
			code, err := Decode(cells, ip)
			var text string
			size := 1
			if err != nil {
				text = fmt.Sprintf(".word %v", cells[ip])
			} else {
				text = code.String()
				size = code.Size()
			}
			if !yield(ip, text) {
				return
			}
			ip += size
		}
	}
}

// Mnemonic returns the operation for a mnemonic, ignoring case.
func Mnemonic(name string) (op CodeOp, ok bool) {
	op, ok = opMap[strings.ToLower(name)]
	return
}
