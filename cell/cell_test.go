package cell

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		input int64
		value int64
	}){
		{"zero", 0, 0},
		{"positive", 42, 42},
		{"negative", -7, -7},
		{"unsigned max", 0xffffffff, -1},
		{"wrap above", 0x1_0000_0005, 5},
		{"min", math.MinInt32, math.MinInt32},
		{"wrap below", math.MinInt32 - 1, math.MaxInt32},
	}

	for _, entry := range table {
		assert.Equal(entry.value, New(entry.input).Value(), entry.name)
	}
}

func TestFits(t *testing.T) {
	assert := assert.New(t)

	assert.True(Fits(0))
	assert.True(Fits(math.MinInt32))
	assert.True(Fits(math.MaxUint32))
	assert.False(Fits(math.MaxUint32 + 1))
	assert.False(Fits(math.MinInt32 - 1))
}

func TestWraparound(t *testing.T) {
	assert := assert.New(t)

	max := Cell(math.MaxInt32)
	min := Cell(math.MinInt32)

	assert.Equal(min, max.Add(1))
	assert.Equal(max, min.Sub(1))
	assert.Equal(Cell(-2), max.Mul(2))
	assert.Equal(min, min.Neg())
	assert.Equal(uint32(0xffffffff), Cell(-1).Uint())
}

func TestBitwise(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Cell(0x0f), Cell(0xff).And(0x0f))
	assert.Equal(Cell(0xff), Cell(0xf0).Or(0x0f))
	assert.Equal(Cell(0xf0), Cell(0xff).Xor(0x0f))
	assert.Equal(Cell(-1), Cell(0).Not())
	assert.Equal(Cell(0x10), Cell(1).Shl(4))
	assert.Equal(Cell(2), Cell(1).Shl(33))
	assert.Equal(Cell(0x7fffffff), Cell(-1).Shr(1))
	assert.Equal(Cell(-1), Cell(-1).Sar(1))
	assert.Equal(Cell(-4), Cell(-8).Sar(1))
}

func TestDivide(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		a, b     Cell
		quotient Cell
		modulo   Cell
	}){
		{7, 2, 3, 1},
		{-7, 2, -3, -1},
		{7, -2, -3, 1},
		{-1, 2, 0, -1},
		{math.MinInt32, -1, math.MinInt32, 0},
	}

	for _, entry := range table {
		q, err := entry.a.Div(entry.b)
		assert.NoError(err)
		assert.Equal(entry.quotient, q, "%v / %v", entry.a, entry.b)

		m, err := entry.a.Mod(entry.b)
		assert.NoError(err)
		assert.Equal(entry.modulo, m, "%v %% %v", entry.a, entry.b)
	}

	_, err := Cell(1).Div(0)
	assert.True(errors.Is(err, ErrArithmetic))
	assert.True(errors.Is(err, ErrDivide))

	_, err = Cell(1).Mod(0)
	assert.True(errors.Is(err, ErrArithmetic))
}

func TestSqrt(t *testing.T) {
	assert := assert.New(t)

	for n, expected := range []Cell{0, 1, 1, 1, 2, 2, 2, 2, 2, 3} {
		root, err := Cell(n).Sqrt()
		assert.NoError(err)
		assert.Equal(expected, root, "sqrt(%d)", n)
	}

	root, err := Cell(math.MaxInt32).Sqrt()
	assert.NoError(err)
	assert.Equal(Cell(46340), root)

	_, err = Cell(-4).Sqrt()
	assert.True(errors.Is(err, ErrArithmetic))
	assert.True(errors.Is(err, ErrSqrt))
}

func TestCompare(t *testing.T) {
	assert := assert.New(t)

	assert.True(Cell(-1).Lt(0))
	assert.True(Cell(3).Gt(-3))
	assert.True(Cell(5).Eq(5))
	assert.Equal(Cell(1), FromBool(true))
	assert.Equal(Cell(0), FromBool(false))
	assert.True(Cell(-9).Bool())
	assert.False(Cell(0).Bool())
}

func TestString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("-1", Cell(-1).String())
	assert.Equal("ffffffff", Cell(-1).Hex())
	assert.Equal("0000002a", Cell(42).Hex())
}
