package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"expensedash/internal/core"
)

var (
	flagAddDate     string
	flagAddCategory string
	flagAddDesc     string
	flagAddAmount   string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an expense",
	Args:  cobra.NoArgs,
	RunE:  runAdd,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an expense by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	addCmd.Flags().StringVar(&flagAddDate, "date", "", "Date, YYYY-MM-DD (default: today)")
	addCmd.Flags().StringVar(&flagAddCategory, "category", "", "Category id")
	addCmd.Flags().StringVar(&flagAddDesc, "description", "", "Description")
	addCmd.Flags().StringVar(&flagAddAmount, "amount", "", "Amount, e.g. 12.50 or 12,50")
	_ = addCmd.MarkFlagRequired("category")
	_ = addCmd.MarkFlagRequired("description")
	_ = addCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(addCmd, deleteCmd)
}

func runAdd(_ *cobra.Command, _ []string) error {
	cents, err := core.ParseDecimalToCents(flagAddAmount)
	if err != nil {
		return fmt.Errorf("--amount: %w", err)
	}
	date, err := core.ParseDate(flagAddDate)
	if err != nil {
		return fmt.Errorf("--date: %w", err)
	}

	return withApp(func(ctx context.Context, a *app) error {
		if date.IsEmpty() {
			date = a.dashboard.Today()
		}
		saved, err := a.expenses.Create(ctx, core.Expense{
			CategoryID:  flagAddCategory,
			Description: flagAddDesc,
			Amount:      core.Money{Cents: cents},
			Date:        date,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Expense saved: %s, %s on %s (id %s)\n",
			saved.Description, a.dashboard.FormatMoney(saved.Amount), saved.Date, saved.ID)
		return nil
	})
}

func runDelete(_ *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.expenses.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Expense %s deleted\n", args[0])
		return nil
	})
}
