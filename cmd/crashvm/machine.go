package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ezrec/crashvm/cell"
	"github.com/ezrec/crashvm/config"
	"github.com/ezrec/crashvm/cpu"
	"github.com/ezrec/crashvm/emulator"
	"github.com/ezrec/crashvm/objfile"
)

// IMAGE_EXT marks program image files; anything else is assembly source.
const IMAGE_EXT = ".img"

// parseValues converts command line arguments to cell values.
func parseValues(args []string) (values []int64, err error) {
	for _, arg := range args {
		var value int64
		value, err = strconv.ParseInt(arg, 0, 64)
		if err != nil {
			return
		}
		if !cell.Fits(value) {
			err = fmt.Errorf("%v: %w", arg, cpu.ErrValueRange)
			return
		}
		values = append(values, value)
	}

	return
}

// machine returns the machine selected by the command line flags.
func machine(args []string) (mach *config.Machine, err error) {
	values, err := parseValues(args)
	if err != nil {
		return
	}

	if configPath == "" {
		mach = config.Default(memorySize, outSize, values...)
	} else {
		var inf *os.File
		inf, err = os.Open(configPath)
		if err != nil {
			return
		}
		defer inf.Close()

		mach, err = config.Load(inf)
		if err != nil {
			err = fmt.Errorf("%v: %w", configPath, err)
			return
		}

		if len(values) > 0 {
			err = mach.Arguments("ARGS", values...)
			if err != nil {
				return
			}
		}
	}

	if stepLimit > 0 {
		mach.StepLimit = stepLimit
	}
	mach.Verbose = mach.Verbose || verbose

	return
}

// compile assembles a source file.
func compile(asm *cpu.Assembler, path string) (prog *cpu.Program, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	return asm.Parse(inf)
}

// load loads an image or source file into the emulator.
func load(emu *emulator.Emulator, path string) (err error) {
	if filepath.Ext(path) == IMAGE_EXT {
		var code []cell.Cell
		code, err = objfile.Load(path)
		if err != nil {
			return
		}
		return emu.LoadCode(code)
	}

	prog, err := compile(emu.Assembler(), path)
	if err != nil {
		return
	}

	return emu.LoadProgram(prog)
}
