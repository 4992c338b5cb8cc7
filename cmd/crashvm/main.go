// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crashvm",
	Short: "Assembler, disassembler and emulator for the crashvm machine",
	Long: `Crashvm assembles programs for a small accumulator machine, and runs
them against working memory followed by memory mapped peripherals.

Without --config the machine has an ARGS argument window, holding the
command line arguments after the program, followed by an OUT output window.
Window names and sizes are predefined as assembler equates.
`,
	SilenceUsage: true,
}

var (
	verbose    bool
	memorySize int
	outSize    int
	configPath string
	stepLimit  int
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose mode")
	flags.IntVar(&memorySize, "memory", 256, "Working memory size, in cells")
	flags.IntVar(&outSize, "out", 16, "Output window size, in cells")
	flags.StringVar(&configPath, "config", "", "TOML machine description")
	flags.IntVar(&stepLimit, "steps", 0, "Instruction budget for a run (0 is unlimited)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
