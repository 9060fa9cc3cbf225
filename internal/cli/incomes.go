package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/budgetan/budgetan-cli/budgetan"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	incomeYear  int
	incomeMonth int

	addIncomeAmount float64
	addIncomeNote   string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var incomesCmd = &cobra.Command{
	Use:   "incomes",
	Short: "Work with income records",
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var incomesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incomes for a month",
	RunE:  runIncomesList,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var incomesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new income",
	RunE:  runIncomesAdd,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var incomesDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete incomes by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIncomesDelete,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(incomesCmd)
	incomesCmd.AddCommand(incomesListCmd, incomesAddCmd, incomesDeleteCmd)

	now := time.Now()
	incomesListCmd.Flags().IntVar(&incomeYear, "year", now.Year(), "year to list")
	incomesListCmd.Flags().IntVar(&incomeMonth, "month", int(now.Month()), "month to list (1-12)")

	incomesAddCmd.Flags().Float64VarP(&addIncomeAmount, "amount", "a", 0, "amount received (required)")
	incomesAddCmd.Flags().StringVar(&addIncomeNote, "note", "", "free-form note")

	_ = incomesAddCmd.MarkFlagRequired("amount")
}

func runIncomesList(cmd *cobra.Command, _ []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	incomes, err := svc.MonthlyIncomes(cmd.Context(), incomeYear, incomeMonth)
	if err != nil {
		return err
	}

	if len(incomes) == 0 {
		fmt.Printf("No incomes for %d-%02d.\n", incomeYear, incomeMonth)

		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tNOTE")

	var total float64

	for _, in := range incomes {
		total += in.Amount

		fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\n", in.ID, in.Time.Format("2006-01-02"), in.Amount, in.Note)
	}

	fmt.Fprintf(w, "\t\t%.2f\ttotal\n", total)

	return w.Flush()
}

func runIncomesAdd(cmd *cobra.Command, _ []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	err := svc.AddIncome(cmd.Context(), budgetan.NewIncome{
		Amount: addIncomeAmount,
		Note:   addIncomeNote,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Added income of %.2f.\n", addIncomeAmount)

	return nil
}

func runIncomesDelete(cmd *cobra.Command, args []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	if err := svc.DeleteIncomes(cmd.Context(), ids); err != nil {
		return err
	}

	fmt.Printf("Deleted %d income(s).\n", len(ids))

	return nil
}
