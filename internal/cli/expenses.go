package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/budgetan/budgetan-cli/budgetan"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	expenseYear  int
	expenseMonth int

	addExpenseAmount   float64
	addExpenseCategory string
	addExpensePriority string
	addExpenseStatus   string
	addExpenseMood     string
	addExpenseNote     string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var expensesCmd = &cobra.Command{
	Use:   "expenses",
	Short: "Work with expense records",
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var expensesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses for a month",
	RunE:  runExpensesList,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var expensesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new expense",
	RunE:  runExpensesAdd,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var expensesDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete expenses by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExpensesDelete,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(expensesCmd)
	expensesCmd.AddCommand(expensesListCmd, expensesAddCmd, expensesDeleteCmd)

	now := time.Now()
	expensesListCmd.Flags().IntVar(&expenseYear, "year", now.Year(), "year to list")
	expensesListCmd.Flags().IntVar(&expenseMonth, "month", int(now.Month()), "month to list (1-12)")

	expensesAddCmd.Flags().Float64VarP(&addExpenseAmount, "amount", "a", 0, "amount spent (required)")
	expensesAddCmd.Flags().StringVarP(&addExpenseCategory, "category", "c", "", "category (required)")
	expensesAddCmd.Flags().StringVar(&addExpensePriority, "priority", "need", "priority: need, want")
	expensesAddCmd.Flags().StringVar(&addExpenseStatus, "status", "paid", "status: paid, pending")
	expensesAddCmd.Flags().StringVar(&addExpenseMood, "mood", "neutral", "mood when spending")
	expensesAddCmd.Flags().StringVar(&addExpenseNote, "note", "", "free-form note")

	_ = expensesAddCmd.MarkFlagRequired("amount")
	_ = expensesAddCmd.MarkFlagRequired("category")
}

func runExpensesList(cmd *cobra.Command, _ []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	expenses, err := svc.MonthlyExpenses(cmd.Context(), expenseYear, expenseMonth)
	if err != nil {
		return err
	}

	if len(expenses) == 0 {
		fmt.Printf("No expenses for %d-%02d.\n", expenseYear, expenseMonth)

		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tCATEGORY\tPRIORITY\tSTATUS\tNOTE")

	var total float64

	for _, e := range expenses {
		total += e.Amount

		fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			e.ID, e.Time.Format("2006-01-02"), e.Amount, e.Category, e.Priority, e.Status, e.Note)
	}

	fmt.Fprintf(w, "\t\t%.2f\ttotal\t\t\t\n", total)

	return w.Flush()
}

func runExpensesAdd(cmd *cobra.Command, _ []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	err := svc.AddExpense(cmd.Context(), budgetan.NewExpense{
		Amount:   addExpenseAmount,
		Category: addExpenseCategory,
		Priority: addExpensePriority,
		Status:   addExpenseStatus,
		Mood:     addExpenseMood,
		Note:     addExpenseNote,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Added expense of %.2f to %s.\n", addExpenseAmount, addExpenseCategory)

	return nil
}

func runExpensesDelete(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	if err := svc.DeleteExpenses(cmd.Context(), ids); err != nil {
		return err
	}

	fmt.Printf("Deleted %d expense(s).\n", len(ids))

	return nil
}

// parseIDs converts positional arguments to record ids.
func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))

	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", arg)
		}

		ids = append(ids, id)
	}

	return ids, nil
}
