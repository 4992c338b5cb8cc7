package emulator

import (
	"errors"

	"github.com/ezrec/crashvm/cpu"
	"github.com/ezrec/crashvm/translate"
)

var f = translate.From

var (
	ErrNotLoaded       = errors.New(f("no program loaded"))
	ErrRunning         = errors.New(f("emulator is running"))
	ErrProgramTooLarge = errors.New(f("program too large for memory"))
	ErrStepLimit       = errors.New(f("step limit exceeded"))
	ErrPanic           = errors.New(f("device panic"))
)

// Fault records where and why execution stopped.
type Fault struct {
	Ip     int      // Instruction pointer of the faulting instruction.
	LineNo int      // Source line, if the program was assembled.
	Code   cpu.Code // Faulting instruction, if it could be decoded.
	Err    error
}

func (ft *Fault) Error() string {
	if ft.LineNo > 0 {
		return f("line %d: ip %04x: %v", ft.LineNo, ft.Ip, ft.Err)
	}
	return f("ip %04x: %v", ft.Ip, ft.Err)
}

func (ft *Fault) Unwrap() error {
	return ft.Err
}
