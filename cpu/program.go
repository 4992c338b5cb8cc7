package cpu

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/ezrec/crashvm/cell"
	"github.com/ezrec/crashvm/objfile"
)

// Program is an assembled program, loaded at address 0.
type Program struct {
	Opcodes []Opcode
	Labels  map[string]int
}

// Debug locates a cell of a program.
type Debug struct {
	*Opcode
	Index int // Index of the cell in the opcode.
}

// Debug returns the opcode which generated the cell at the address.
// The Opcode is nil if no opcode covers the address.
func (prog *Program) Debug(ip int) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if ip >= op.Ip && ip < op.Ip+op.Size() {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  ip - op.Ip,
			}
			break
		}
	}

	return
}

// Size returns the number of cells of the program image.
func (prog *Program) Size() (size int) {
	for _, op := range prog.Opcodes {
		size = max(size, op.Ip+op.Size())
	}

	return
}

// Words returns the program image.
func (prog *Program) Words() (words []cell.Cell) {
	words = make([]cell.Cell, prog.Size())
	for _, op := range prog.Opcodes {
		copy(words[op.Ip:], op.Cells())
	}

	return
}

// Binary returns the program image as bytes.
func (prog *Program) Binary() []byte {
	return objfile.Encode(prog.Words())
}

// Codes iterates over all instructions, by address.
func (prog *Program) Codes() iter.Seq2[int, Code] {
	return func(yield func(ip int, code Code) bool) {
		for _, op := range prog.Opcodes {
			ip := op.Ip
			for _, code := range op.Codes {
				if !yield(ip, code) {
					return
				}
				ip += code.Size()
			}
		}
	}
}

// Symbols iterates over the labels, by address.
func (prog *Program) Symbols() iter.Seq2[string, int] {
	return func(yield func(label string, ip int) bool) {
		names := slices.SortedFunc(maps.Keys(prog.Labels), func(a, b string) int {
			if prog.Labels[a] != prog.Labels[b] {
				return prog.Labels[a] - prog.Labels[b]
			}
			return strings.Compare(a, b)
		})
		for _, name := range names {
			if !yield(name, prog.Labels[name]) {
				return
			}
		}
	}
}
