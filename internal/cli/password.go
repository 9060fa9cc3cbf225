package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// changePasswordCmd rotates the account password. The new password is
// confirmed locally before anything goes over the wire; the server
// re-checks the pair regardless.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the account password",
	RunE:  runChangePassword,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(changePasswordCmd)
}

func runChangePassword(cmd *cobra.Command, _ []string) error {
	if err := requireAuth(); err != nil {
		return err
	}

	current, err := promptPassword("Current password: ")
	if err != nil {
		return err
	}

	newPassword, err := promptPassword("New password: ")
	if err != nil {
		return err
	}

	repeat, err := promptPassword("Repeat new password: ")
	if err != nil {
		return err
	}

	if newPassword != repeat {
		return errors.New("new passwords do not match")
	}

	if err := sess.ChangePassword(cmd.Context(), current, newPassword, repeat); err != nil {
		return err
	}

	fmt.Println("Password changed.")

	return nil
}
