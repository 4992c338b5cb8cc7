package io

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode"

	"github.com/ezrec/crashvm/cell"
)

const (
	CONSOLE_BYTE   = 0 // Byte stream register.
	CONSOLE_NUMBER = 1 // Decimal number register.
	CONSOLE_SIZE   = 2 // Window size of a console.
)

// ErrNumber is reported when the input does not hold a decimal number.
var ErrNumber = errors.New(f("input is not a number"))

// Console provides sequential I/O over byte streams.
// It wraps an io.Reader for input and io.Writer for output; offset 0
// transfers single bytes, offset 1 transfers decimal numbers.
type Console struct {
	Input  io.Reader
	Output io.Writer

	reader *bufio.Reader
}

var _ Peripheral = (*Console)(nil)

// Reset drops any buffered input.
func (con *Console) Reset() {
	con.reader = nil
}

func (con *Console) input() *bufio.Reader {
	if con.reader == nil {
		input := con.Input
		if input == nil {
			input = eofReader{}
		}
		con.reader = bufio.NewReader(input)
	}
	return con.reader
}

// Read returns the next input byte (or -1 at end of input) at offset 0, and
// the next whitespace separated decimal number at offset 1.
func (con *Console) Read(offset int) (value cell.Cell, err error) {
	rd := con.input()

	switch offset {
	case CONSOLE_BYTE:
		var b byte
		b, err = rd.ReadByte()
		if err == io.EOF {
			value, err = -1, nil
			return
		}
		if err != nil {
			err = fault(err)
			return
		}
		value = cell.Cell(b)
	case CONSOLE_NUMBER:
		var word []byte
		for {
			var r rune
			r, _, err = rd.ReadRune()
			if err == io.EOF && len(word) > 0 {
				err = nil
				break
			}
			if err != nil {
				err = fault(errors.Join(ErrEmpty, err))
				return
			}
			if unicode.IsSpace(r) {
				if len(word) == 0 {
					continue
				}
				break
			}
			word = append(word, string(r)...)
		}
		var v64 int64
		v64, err = strconv.ParseInt(string(word), 0, 64)
		if err != nil || !cell.Fits(v64) {
			err = fault(ErrNumber)
			return
		}
		value = cell.New(v64)
	default:
		err = fault(ErrOffset)
	}

	return
}

// Write sends the low byte of the value at offset 0, or the value as a
// decimal line at offset 1.
func (con *Console) Write(offset int, value cell.Cell) (err error) {
	if con.Output == nil {
		return fault(ErrReadOnly)
	}

	switch offset {
	case CONSOLE_BYTE:
		_, err = con.Output.Write([]byte{byte(value)})
	case CONSOLE_NUMBER:
		_, err = fmt.Fprintf(con.Output, "%d\n", value.Value())
	default:
		return fault(ErrOffset)
	}

	if err != nil {
		err = fault(err)
	}

	return
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
