package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// logoutCmd ends the session and wipes stored credentials.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget stored credentials",
	Run: func(_ *cobra.Command, _ []string) {
		sess.Logout()
		fmt.Println("Logged out.")
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(logoutCmd)
}
