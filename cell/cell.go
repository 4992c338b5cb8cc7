// Package cell implements the machine word used for registers, memory and
// peripheral I/O.
//
// A Cell is a 32-bit two's complement integer. All arithmetic wraps modulo
// 2^32; the only partial operations are division by zero and the square root
// of a negative value, which report ErrArithmetic.
package cell

import (
	"errors"
	"fmt"
	"math"

	"github.com/ezrec/crashvm/translate"
)

var f = translate.From

// Bits is the width of a Cell.
const Bits = 32

var (
	ErrArithmetic = errors.New(f("arithmetic fault"))
	ErrDivide     = errors.New(f("division by zero"))
	ErrSqrt       = errors.New(f("square root of negative value"))
)

// Cell is a single machine word.
type Cell int32

// New wraps an arbitrary integer into a Cell, modulo 2^32.
func New(value int64) Cell {
	return Cell(int32(uint32(value)))
}

// Fits returns true if the literal can be stored in a Cell slot without
// losing bits, either as a signed or as an unsigned 32-bit pattern.
func Fits(value int64) bool {
	return value >= math.MinInt32 && value <= math.MaxUint32
}

// Value returns the signed value of the cell.
func (c Cell) Value() int64 {
	return int64(c)
}

// Uint returns the raw bit pattern of the cell.
func (c Cell) Uint() uint32 {
	return uint32(c)
}

// Bool returns true for any non-zero cell.
func (c Cell) Bool() bool {
	return c != 0
}

// FromBool converts a truth value to 1 or 0.
func FromBool(b bool) Cell {
	if b {
		return 1
	}
	return 0
}

func (c Cell) Add(o Cell) Cell { return c + o }
func (c Cell) Sub(o Cell) Cell { return c - o }
func (c Cell) Mul(o Cell) Cell { return c * o }
func (c Cell) Neg() Cell       { return -c }
func (c Cell) And(o Cell) Cell { return c & o }
func (c Cell) Or(o Cell) Cell  { return c | o }
func (c Cell) Xor(o Cell) Cell { return c ^ o }
func (c Cell) Not() Cell       { return ^c }

// Shl shifts left; the shift count is taken modulo the cell width.
func (c Cell) Shl(o Cell) Cell {
	return Cell(uint32(c) << (uint32(o) & (Bits - 1)))
}

// Shr is a logical right shift.
func (c Cell) Shr(o Cell) Cell {
	return Cell(uint32(c) >> (uint32(o) & (Bits - 1)))
}

// Sar is an arithmetic right shift.
func (c Cell) Sar(o Cell) Cell {
	return c >> (uint32(o) & (Bits - 1))
}

// Div divides, truncating toward zero.
// MinInt32 / -1 wraps back to MinInt32.
func (c Cell) Div(o Cell) (Cell, error) {
	if o == 0 {
		return 0, errors.Join(ErrArithmetic, ErrDivide)
	}
	if o == -1 {
		return -c, nil
	}
	return c / o, nil
}

// Mod returns the remainder of a truncated division.
func (c Cell) Mod(o Cell) (Cell, error) {
	if o == 0 {
		return 0, errors.Join(ErrArithmetic, ErrDivide)
	}
	if o == -1 {
		return 0, nil
	}
	return c % o, nil
}

// Sqrt returns the integer square root, rounded down.
func (c Cell) Sqrt() (Cell, error) {
	if c < 0 {
		return 0, errors.Join(ErrArithmetic, ErrSqrt)
	}
	root := int64(math.Sqrt(float64(c)))
	for root*root > int64(c) {
		root--
	}
	for (root+1)*(root+1) <= int64(c) {
		root++
	}
	return Cell(root), nil
}

func (c Cell) Eq(o Cell) bool { return c == o }
func (c Cell) Lt(o Cell) bool { return c < o }
func (c Cell) Gt(o Cell) bool { return c > o }

// String returns the signed decimal value.
func (c Cell) String() string {
	return fmt.Sprintf("%d", int32(c))
}

// Hex returns the cell as 8 hex digits.
func (c Cell) Hex() string {
	return fmt.Sprintf("%08x", uint32(c))
}
