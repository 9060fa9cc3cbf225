package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// profileCmd fetches the signed-in account's profile.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the signed-in profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		p, err := svc.ProfileInfo(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Profile: %s\n", p.ProfileName)

		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(profileCmd)
}
