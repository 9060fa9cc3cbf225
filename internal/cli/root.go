// Package cli implements the budgetan command-line interface.
//
// This package uses global variables to manage CLI state, which is the
// standard pattern for Cobra-based CLI applications. The globals are
// initialized in PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/budgetan/budgetan-cli/budgetan"
	"github.com/budgetan/budgetan-cli/internal/config"
	apperrors "github.com/budgetan/budgetan-cli/internal/errors"
	"github.com/budgetan/budgetan-cli/internal/keychain"
	"github.com/budgetan/budgetan-cli/internal/logging"
	"github.com/budgetan/budgetan-cli/internal/session"
)

// Global state initialized in PersistentPreRunE.
var (
	cfg    *config.Config
	logger *slog.Logger
	store  keychain.Store
	sess   *session.Session
	svc    *budgetan.Service
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "budgetan",
	Short: "Track expenses and incomes from the terminal",
	Long: `Budgetan is a terminal client for the Budgetan budgeting service.

It keeps you signed in between invocations: tokens live in the OS keyring
(or an encrypted file, see BUDGETAN_KEYCHAIN) and are refreshed
automatically when they near expiry.

Example:
  budgetan login --email you@example.com
  budgetan expenses add --amount 12.50 --category food
  budgetan summary --year 2026 --month 3`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd.Context())
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command. It returns the command error after
// printing it; the caller decides the exit code.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	return err
}

// initGlobals loads configuration and wires the credential store, session
// manager, and record service.
func initGlobals(ctx context.Context) error {
	var err error

	cfg, err = config.Load()
	if err != nil {
		return err
	}

	logger = logging.NewLogger(cfg.Environment)

	store, err = openStore(cfg)
	if err != nil {
		return err
	}

	client := budgetan.NewClient(nil, cfg.AuthBaseURL)
	sess = session.New(client, store, cfg.AuthBaseURL, logger)
	sess.Init(ctx)

	svc = budgetan.NewService(sess, budgetan.ServiceConfig{
		AuthBaseURL:    cfg.AuthBaseURL,
		ExpenseBaseURL: cfg.ExpenseBaseURL,
		IncomeBaseURL:  cfg.IncomeBaseURL,
	})

	return nil
}

// openStore selects the credential store backend from configuration.
func openStore(cfg *config.Config) (keychain.Store, error) {
	switch cfg.Keychain {
	case config.KeychainKeyring:
		return keychain.NewKeyring(), nil
	case config.KeychainFile:
		return keychain.OpenFile(cfg.StateDir, cfg.StorePassphrase)
	case config.KeychainMemory:
		return keychain.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown keychain backend %q", cfg.Keychain)
	}
}

// cleanup releases resources held by the credential store.
func cleanup() {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}

// requireAuth guards commands that need a signed-in session.
func requireAuth() error {
	if sess.Authenticated() {
		return nil
	}

	return fmt.Errorf("%w: run `budgetan login` first", apperrors.ErrNotAuthenticated)
}
