package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fzipp/pl0-compiler/plp"
	"github.com/fzipp/pl0-compiler/plv"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] source_file",
	Short: "compile and execute a PL/0 program.",
	Long: `Compile a PL/0 source program and execute it on the stack machine.
	 Input for read statements is taken from stdin; write statements print
	 to stdout, one integer per line.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		tokens := scanFile(args[0])
		code, err := plp.Compile(tokens)
		if err != nil {
			fail(err)
		}
		if err := plv.New(code, os.Stdin, os.Stdout).Run(); err != nil {
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
