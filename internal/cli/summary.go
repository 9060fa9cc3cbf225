package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/budgetan/budgetan-cli/budgetan"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	summaryYear  int
	summaryMonth int
)

// summaryCmd fetches both record lists in parallel and prints the monthly
// balance.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the monthly balance",
	RunE:  runSummary,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(summaryCmd)

	now := time.Now()
	summaryCmd.Flags().IntVar(&summaryYear, "year", now.Year(), "year to summarize")
	summaryCmd.Flags().IntVar(&summaryMonth, "month", int(now.Month()), "month to summarize (1-12)")
}

func runSummary(cmd *cobra.Command, _ []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	// Refresh up front so the parallel fetches don't race to do it.
	if err := sess.EnsureFresh(cmd.Context()); err != nil {
		return err
	}

	var (
		expenses []budgetan.Expense
		incomes  []budgetan.Income
	)

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		var err error
		expenses, err = svc.MonthlyExpenses(ctx, summaryYear, summaryMonth)

		return err
	})

	g.Go(func() error {
		var err error
		incomes, err = svc.MonthlyIncomes(ctx, summaryYear, summaryMonth)

		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	var spent, earned float64

	for _, e := range expenses {
		spent += e.Amount
	}

	for _, in := range incomes {
		earned += in.Amount
	}

	fmt.Printf("Summary for %d-%02d\n", summaryYear, summaryMonth)
	fmt.Printf("  Income:   %10.2f  (%d records)\n", earned, len(incomes))
	fmt.Printf("  Expenses: %10.2f  (%d records)\n", spent, len(expenses))
	fmt.Printf("  Balance:  %10.2f\n", earned-spent)

	return nil
}
