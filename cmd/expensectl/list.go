package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"expensedash/internal/cli"
	"expensedash/internal/core"
)

var (
	flagCategory    string
	flagDescription string
	flagFrom        string
	flagTo          string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&flagCategory, "category", "", "Only this category id")
	listCmd.Flags().StringVar(&flagDescription, "description", "", "Description contains (case-insensitive)")
	listCmd.Flags().StringVar(&flagFrom, "from", "", "Earliest date, YYYY-MM-DD")
	listCmd.Flags().StringVar(&flagTo, "to", "", "Latest date, YYYY-MM-DD")
	rootCmd.AddCommand(listCmd)
}

func runList(_ *cobra.Command, _ []string) error {
	from, err := core.ParseDate(flagFrom)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := core.ParseDate(flagTo)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	f := core.Filter{}.
		WithCategory(flagCategory).
		WithDescription(flagDescription).
		WithFrom(from).
		WithTo(to)

	return withApp(func(ctx context.Context, a *app) error {
		view, err := a.dashboard.View(ctx, f)
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println(cli.RenderTitle("EXPENSES"))
		fmt.Println()

		if len(view.Rows) == 0 {
			if view.HasActive {
				fmt.Println("  No expenses match the filters.")
			} else {
				fmt.Println("  No expenses yet.")
			}
			return nil
		}

		rows := make([][]string, 0, len(view.Rows)+3)
		for _, r := range view.Rows {
			rows = append(rows, []string{r.Date.String(), r.Category, r.Description, r.AmountLabel, cli.Muted(r.ID)})
		}
		rows = append(rows, []string{"---"})
		if view.HasActive {
			rows = append(rows, []string{"", "", "Filtered", view.FilteredTotalLabel, ""})
		}
		rows = append(rows, []string{"", "", "This month (" + view.Month.Start.Format("January 2006") + ")", view.MonthTotalLabel, ""})

		fmt.Print(cli.RenderTable(cli.Table{
			Headers:    []string{"Date", "Category", "Description", "Amount", "ID"},
			Rows:       rows,
			RightAlign: map[int]bool{3: true},
		}))
		return nil
	})
}
