// Command expensectl lists, summarizes and edits expenses from the terminal.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"expensedash/internal/cli"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Error("Error: "+err.Error()))
		os.Exit(1)
	}
}
