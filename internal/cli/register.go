package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	registerEmail string
	registerName  string
)

// registerCmd creates a new account. Both password entries travel to the
// server, which decides whether they match.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a Budgetan account",
	RunE:  runRegister,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "account email")
	registerCmd.Flags().StringVarP(&registerName, "name", "n", "", "profile name")
}

func runRegister(cmd *cobra.Command, _ []string) error {
	email := registerEmail

	var err error

	if email == "" {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}

	name := registerName
	if name == "" {
		name, err = promptLine("Profile name: ")
		if err != nil {
			return err
		}
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	repeat, err := promptPassword("Repeat password: ")
	if err != nil {
		return err
	}

	if err := sess.Register(cmd.Context(), email, name, password, repeat); err != nil {
		return err
	}

	fmt.Println("Account created. Run `budgetan login` to sign in.")

	return nil
}
