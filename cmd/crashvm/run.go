package main

import (
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ezrec/crashvm/config"
)

var runDump bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run SOURCE|IMAGE [ARG...]",
	Short: "Run a program to completion",
	Long: `Run loads SOURCE or IMAGE, places the remaining arguments in the ARGS
window, and runs the program until it halts or faults. Every cell written
to an output window is printed afterwards. Exits non-zero on a fault.
`,
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

		err = load(emu, path)
		if err != nil {
			log.Fatalf("%v: %v", path, err)
		}

		fault := emu.Run()

		if runDump {
			fmt.Print(emu)
		}

		printOutputs(os.Stdout, devs)

		err = devs.Save()
		if err != nil {
			log.Fatalf("%v", err)
		}

		if fault != nil {
			log.Fatalf("%v: %v", path, fault)
		}
	},
}

// printOutputs lists the cells recorded by every output device.
func printOutputs(w io.Writer, devs *config.Devices) {
	for _, name := range slices.Sorted(maps.Keys(devs.Outputs)) {
		for offset, value := range devs.Outputs[name].Entries() {
			fmt.Fprintf(w, "%s[%d] = %v\n", name, offset, value)
		}
	}
}

func init() {
	runCmd.Flags().BoolVar(&runDump, "dump", false, "Print the machine state after the run")
	rootCmd.AddCommand(runCmd)
}
