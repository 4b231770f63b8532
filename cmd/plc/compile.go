package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fzipp/pl0-compiler/plp"
	"github.com/fzipp/pl0-compiler/pls"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] source_file",
	Short: "compile a PL/0 program to stack machine code.",
	Long: `Compile a PL/0 source program to code for the abstract stack machine,
	 written as one instruction per line "op r l m".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		tokens := scanFile(args[0])
		out := os.Stdout
		if name := getString(cmd, "output"); name != "" {
			f, err := os.Create(name)
			if err != nil {
				fail(err)
			}
			defer f.Close()
			out = f
		}
		if err := plp.Generate(tokens, out); err != nil {
			fail(err)
		}
	},
}

// scanFile tokenizes one source file, failing on lexical errors.
func scanFile(name string) []pls.Token {
	f, err := os.Open(name)
	if err != nil {
		fail(err)
	}
	defer f.Close()
	tokens, err := pls.Tokenize(f, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr)
		fail(fmt.Errorf("%s: %w", name, err))
	}
	log.Debugf("%s: %d tokens", name, len(tokens))
	return tokens
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringP("output", "o", "", "write the instruction listing to this file instead of stdout")
}
