package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"expensedash/internal/chart"
	"expensedash/internal/cli"
)

var colorsCmd = &cobra.Command{
	Use:   "colors <n>",
	Short: "Print n evenly spaced chart colours",
	Args:  cobra.ExactArgs(1),
	RunE:  runColors,
}

func init() {
	rootCmd.AddCommand(colorsCmd)
}

func runColors(_ *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid count %q", args[0])
	}
	for i, hex := range chart.HexScale(n) {
		fmt.Printf("%3d  %s  %s\n", i, cli.Swatch(hex), hex)
	}
	return nil
}
