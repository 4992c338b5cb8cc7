package main

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ezrec/crashvm/objfile"
)

var asmOutput string

// asmCmd represents the asm command
var asmCmd = &cobra.Command{
	Use:   "asm SOURCE",
	Short: "Assemble a source file to a program image",
	Long: `Asm assembles SOURCE with the equates of the configured machine, and
writes the program image to the -o file (SOURCE with an .img extension by
default). An image is a sequence of little-endian 32-bit cells.
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source := args[0]

		output := asmOutput
		if output == "" {
			output = strings.TrimSuffix(source, filepath.Ext(source)) + IMAGE_EXT
		}

		mach, err := machine(nil)
		if err != nil {
			log.Fatalf("%v", err)
		}

		emu, _, err := mach.Build(nil, nil)
		if err != nil {
			log.Fatalf("%v", err)
		}

		prog, err := compile(emu.Assembler(), source)
		if err != nil {
			log.Fatalf("%v: %v", source, err)
		}

		words := prog.Words()
		err = objfile.Save(output, words)
		if err != nil {
			log.Fatalf("%v", err)
		}

		if verbose {
			log.Printf("%v: %d cells", output, len(words))
		}
	},
}

func init() {
	asmCmd.Flags().StringVarP(&asmOutput, "output", "o", "", "Image file to write")
	rootCmd.AddCommand(asmCmd)
}
