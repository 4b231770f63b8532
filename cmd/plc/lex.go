package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lexCmd = &cobra.Command{
	Use:   "lex [flags] source_file",
	Short: "print the token stream of a PL/0 program.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		for _, t := range scanFile(args[0]) {
			if t.Lexeme != "" {
				fmt.Printf("%s %s\n", t.Sym, t.Lexeme)
			} else {
				fmt.Println(t.Sym)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(lexCmd)
}
