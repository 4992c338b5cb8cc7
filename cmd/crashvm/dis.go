package main

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ezrec/crashvm/cell"
	"github.com/ezrec/crashvm/cpu"
	"github.com/ezrec/crashvm/objfile"
)

// disCmd represents the dis command
var disCmd = &cobra.Command{
	Use:   "dis IMAGE|SOURCE",
	Short: "Disassemble a program image or source file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		var words []cell.Cell
		labels := map[int][]string{}

		if filepath.Ext(path) == IMAGE_EXT {
			var err error
			words, err = objfile.Load(path)
			if err != nil {
				log.Fatalf("%v", err)
			}
		} else {
			mach, err := machine(nil)
			if err != nil {
				log.Fatalf("%v", err)
			}
			emu, _, err := mach.Build(nil, nil)
			if err != nil {
				log.Fatalf("%v", err)
			}
			prog, err := compile(emu.Assembler(), path)
			if err != nil {
				log.Fatalf("%v: %v", path, err)
			}
			words = prog.Words()
			for name, ip := range prog.Symbols() {
				labels[ip] = append(labels[ip], name)
			}
		}

		for ip, text := range cpu.Disassemble(words) {
			for _, name := range labels[ip] {
				fmt.Printf("%s:\n", name)
			}
			fmt.Printf("%04x:    %s\n", ip, text)
		}
	},
}

func init() {
	rootCmd.AddCommand(disCmd)
}
