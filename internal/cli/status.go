package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/budgetan/budgetan-cli/internal/keychain"
	"github.com/budgetan/budgetan-cli/internal/session"
	"github.com/budgetan/budgetan-cli/internal/token"
)

// statusCmd reports the session state and access-token lifetime.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session state",
	Run:   runStatus,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) {
	fmt.Printf("Session:  %s\n", sessionState())
	fmt.Printf("Keychain: %s\n", cfg.Keychain)

	access, ok := store.Get(keychain.AccessToken)
	if !ok {
		return
	}

	exp, ok := token.ExpirationOf(access)
	if !ok {
		fmt.Println("Token:    undecodable (will refresh on next use)")

		return
	}

	remaining := time.Until(exp).Round(time.Second)

	switch {
	case remaining <= 0:
		fmt.Println("Token:    expired (will refresh on next use)")
	case remaining < session.ExpiryMargin:
		fmt.Printf("Token:    expiring at %s (will refresh on next use)\n", exp.Local().Format(time.RFC1123))
	default:
		fmt.Printf("Token:    valid until %s\n", exp.Local().Format(time.RFC1123))
	}
}

func sessionState() string {
	if sess.Authenticated() {
		return "authenticated"
	}

	return "unauthenticated"
}
