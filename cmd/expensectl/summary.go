package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"expensedash/internal/cli"
	"expensedash/internal/core"
)

var (
	flagMonth  int
	flagYear   int
	flagDateTo string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Per-category totals for one month",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().IntVar(&flagMonth, "month", 0, "Month 1-12 (default: current month)")
	summaryCmd.Flags().IntVar(&flagYear, "year", 0, "Year (default: current year)")
	summaryCmd.Flags().StringVar(&flagDateTo, "date-to", "", "Only count expenses up to this date, YYYY-MM-DD")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	dateTo, err := core.ParseDate(flagDateTo)
	if err != nil {
		return fmt.Errorf("--date-to: %w", err)
	}
	if cmd.Flags().Changed("month") {
		if err := core.ValidateMonth(flagMonth); err != nil {
			return err
		}
	}

	return withApp(func(ctx context.Context, a *app) error {
		today := a.dashboard.Today()
		year, month := today.Year(), today.Month()
		if flagYear != 0 {
			year = flagYear
		}
		if flagMonth != 0 {
			month = time.Month(flagMonth)
		}

		view, err := a.dashboard.Summary(ctx, year, month, dateTo)
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println(cli.RenderTitle(strings.ToUpper(view.Dashboard.Period.Start.Format("January 2006"))))
		fmt.Println()

		if len(view.Slices) == 0 {
			fmt.Println("  No expenses in this period.")
			return nil
		}

		rows := make([][]string, 0, len(view.Slices)+2)
		for _, sl := range view.Slices {
			rows = append(rows, []string{
				cli.Swatch(sl.Color) + " " + sl.Label,
				sl.AmountLabel,
				sl.PercentLabel,
				cli.Bar(sl.Percent/100, 20, sl.Color),
			})
		}
		rows = append(rows, []string{"---"}, []string{"Total", view.TotalLabel, "", ""})

		fmt.Print(cli.RenderTable(cli.Table{
			Headers:    []string{"Category", "Amount", "Share", ""},
			Rows:       rows,
			RightAlign: map[int]bool{1: true, 2: true},
		}))
		return nil
	})
}
