// Package cpu implements the processor and assembler for the crashvm machine.
//
// The CPU is an accumulator machine with four 32-bit registers (acc, x, y
// and sp) and an instruction pointer. Each instruction is one opcode word,
// followed by one operand word for the operations which take an operand.
// An operand is an immediate, a register, a memory cell at a fixed address,
// or a memory cell at a register plus an offset. The stack grows down from
// the top of the working memory.
//
// The assembler provides the assembly language for the instruction set,
// supporting macros, labels, equates, and compile-time expression evaluation.
package cpu
