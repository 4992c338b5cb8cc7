package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ezrec/crashvm/bus"
	"github.com/ezrec/crashvm/config"
	"github.com/ezrec/crashvm/cpu"
	"github.com/ezrec/crashvm/emulator"
)

const (
	MONITOR_PROMPT = "crashvm> "
	MONITOR_CELLS  = 16 // Default cell count of mem.
	MONITOR_CODES  = 8  // Default instruction count of dis.
	MONITOR_ROW    = 8  // Cells per row of mem.
)

var errUsage = errors.New("usage")

const monitorHelp = `step [N]            execute N instructions (default 1)
run                 run until halt or fault
regs                show the machine state
mem ADDR [N]        show N cells from ADDR
dis [ADDR [N]]      disassemble N instructions from ADDR (default ip)
out                 show the output windows
reload              reload the program
quit                leave the monitor
`

// monitor is an interactive debugger for a loaded emulator.
type monitor struct {
	emu  *emulator.Emulator
	devs *config.Devices
	load func() error
	out  io.Writer
}

// address parses a number or a program label.
func (mon *monitor) address(word string) (addr int, err error) {
	if prog := mon.emu.Program; prog != nil {
		if ip, ok := prog.Labels[word]; ok {
			return ip, nil
		}
	}

	value, err := strconv.ParseInt(word, 0, 0)
	addr = int(value)
	return
}

// count parses an optional positive count argument.
func (mon *monitor) count(words []string, index int, def int) (n int, err error) {
	if len(words) <= index {
		return def, nil
	}

	n, err = strconv.Atoi(words[index])
	if err == nil && n <= 0 {
		err = errUsage
	}
	return
}

// where shows the next instruction and its source line.
func (mon *monitor) where() {
	emu := mon.emu
	code, err := emu.Cpu.FetchCode()
	text := code.String()
	if err != nil {
		text = err.Error()
	}

	if lineno := emu.LineNo(); lineno > 0 {
		fmt.Fprintf(mon.out, "%04x: %-20s line %d\n", emu.Cpu.Ip, text, lineno)
	} else {
		fmt.Fprintf(mon.out, "%04x: %s\n", emu.Cpu.Ip, text)
	}
}

// report shows how the machine stopped.
func (mon *monitor) report() {
	emu := mon.emu
	if emu.Fault != nil {
		fmt.Fprintf(mon.out, "%v: %v\n", emu.State, emu.Fault)
		return
	}
	fmt.Fprintf(mon.out, "%v after %d ticks\n", emu.State, emu.Cpu.Ticks)
}

// exec runs a single monitor command.
func (mon *monitor) exec(line string) (quit bool, err error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}

	emu := mon.emu

	switch strings.ToLower(words[0]) {
	case "step", "s":
		var n int
		n, err = mon.count(words, 1, 1)
		if err != nil {
			return
		}
		for range n {
			mon.where()
			var done bool
			done, err = emu.Tick()
			if err != nil || done {
				mon.report()
				err = nil
				break
			}
		}
	case "run", "r":
		err = emu.Run()
		if errors.Is(err, emulator.ErrNotLoaded) {
			return
		}
		mon.report()
		err = nil
	case "regs":
		fmt.Fprintf(mon.out, "% 5s: %v\n", "state", emu.State)
		fmt.Fprint(mon.out, emu.Cpu.String())
	case "mem", "m":
		if len(words) < 2 {
			err = errUsage
			return
		}
		var addr, n int
		addr, err = mon.address(words[1])
		if err != nil {
			return
		}
		n, err = mon.count(words, 2, MONITOR_CELLS)
		if err != nil {
			return
		}
		for offset := range n {
			if offset%MONITOR_ROW == 0 {
				if offset > 0 {
					fmt.Fprintln(mon.out)
				}
				fmt.Fprintf(mon.out, "%04x:", addr+offset)
			}
			value, rerr := emu.Read(addr + offset)
			if errors.Is(rerr, bus.ErrPeek) {
				fmt.Fprint(mon.out, " --------")
				continue
			}
			if rerr != nil {
				fmt.Fprintln(mon.out)
				return false, rerr
			}
			fmt.Fprintf(mon.out, " %s", value.Hex())
		}
		fmt.Fprintln(mon.out)
	case "dis", "d":
		addr := emu.Cpu.Ip
		if len(words) > 1 {
			addr, err = mon.address(words[1])
			if err != nil {
				return
			}
		}
		var n int
		n, err = mon.count(words, 2, MONITOR_CODES)
		if err != nil {
			return
		}
		memory := emu.Bus.Memory()
		for range n {
			if addr < 0 || addr >= len(memory) {
				break
			}
			code, derr := cpu.Decode(memory, addr)
			if derr != nil {
				fmt.Fprintf(mon.out, "%04x: .word %v\n", addr, memory[addr])
				addr++
				continue
			}
			fmt.Fprintf(mon.out, "%04x: %v\n", addr, code)
			addr += code.Size()
		}
	case "out", "o":
		printOutputs(mon.out, mon.devs)
	case "reload":
		err = mon.load()
		if err == nil {
			fmt.Fprintf(mon.out, "%v\n", emu.State)
		}
	case "help", "?":
		fmt.Fprint(mon.out, monitorHelp)
	case "quit", "q", "exit":
		quit = true
	default:
		err = fmt.Errorf("%v: unknown command", words[0])
	}

	return
}

// interact reads commands until quit or end of input.
func (mon *monitor) interact(input *os.File) {
	var prompt func() (string, error)

	if term.IsTerminal(int(input.Fd())) {
		ln := liner.NewLiner()
		defer ln.Close()
		ln.SetCtrlCAborts(true)
		prompt = func() (line string, err error) {
			line, err = ln.Prompt(MONITOR_PROMPT)
			if err == nil && strings.TrimSpace(line) != "" {
				ln.AppendHistory(line)
			}
			return
		}
	} else {
		scanner := bufio.NewScanner(input)
		prompt = func() (string, error) {
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return "", err
				}
				return "", io.EOF
			}
			return scanner.Text(), nil
		}
	}

	for {
		line, err := prompt()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
				log.Printf("monitor: %v", err)
			}
			return
		}

		quit, err := mon.exec(line)
		if errors.Is(err, errUsage) {
			fmt.Fprint(mon.out, monitorHelp)
		} else if err != nil {
			fmt.Fprintf(mon.out, "error: %v\n", err)
		}
		if quit {
			return
		}
	}
}

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor SOURCE|IMAGE [ARG...]",
	Short: "Debug a program interactively",
	Long: `Monitor loads SOURCE or IMAGE like run, then reads commands:

` + monitorHelp,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		mach, err := machine(args[1:])
		if err != nil {
			log.Fatalf("%v", err)
		}

		emu, devs, err := mach.Build(os.Stdin, os.Stdout)
		if err != nil {
			log.Fatalf("%v", err)
		}

		mon := &monitor{
			emu:  emu,
			devs: devs,
			load: func() error { return load(emu, path) },
			out:  os.Stdout,
		}

		err = mon.load()
		if err != nil {
			log.Fatalf("%v: %v", path, err)
		}
		mon.where()

		mon.interact(os.Stdin)

		err = devs.Save()
		if err != nil {
			log.Fatalf("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
