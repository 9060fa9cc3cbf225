package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var loginEmail string

// loginCmd signs in and persists the credential pair.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Budgetan",
	Long: `Authenticate with your email and password.

On success the access and refresh tokens are stored in the configured
keychain, so later commands run without prompting again.`,
	RunE: runLogin,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	email := loginEmail

	var err error

	if email == "" {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	if err := sess.Login(cmd.Context(), email, password); err != nil {
		return err
	}

	fmt.Println("Logged in.")

	return nil
}
