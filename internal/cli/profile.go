package cli

import (
	"fmt"

	"github.com/existflow/keepsession/internal/model"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View or edit the cached profile",
	RunE:  runProfileShow,
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields in the local session",
	Long: `Update profile fields. Changes are applied to the in-memory session
and written to both cache tiers.

Examples:
  keepsession profile set --name "Ada Lovelace"
  keepsession profile set --company "Analytical Engines" --phone "+44 20 7946 0000"`,
	RunE: runProfileSet,
}

var (
	profileName    string
	profilePhone   string
	profileCompany string
	profileEmails  bool
)

func init() {
	profileCmd.AddCommand(profileSetCmd)

	profileSetCmd.Flags().StringVar(&profileName, "name", "", "Display name")
	profileSetCmd.Flags().StringVar(&profilePhone, "phone", "", "Phone number")
	profileSetCmd.Flags().StringVar(&profileCompany, "company", "", "Company")
	profileSetCmd.Flags().BoolVar(&profileEmails, "email-notifications", true, "Receive email notifications")
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	st, err := requireSession(cmd, app)
	if err != nil {
		return err
	}
	printUser(cmd.OutOrStdout(), st.User)
	return nil
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	var patch model.UserUpdate
	flags := cmd.Flags()
	if flags.Changed("name") {
		patch.Name = &profileName
	}
	if flags.Changed("phone") {
		patch.Phone = &profilePhone
	}
	if flags.Changed("company") {
		patch.Company = &profileCompany
	}

	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	st, err := requireSession(cmd, app)
	if err != nil {
		return err
	}
	if flags.Changed("email-notifications") {
		n := st.User.Notifications
		n.Email = profileEmails
		patch.Notifications = &n
	}

	u, err := app.Session.UpdateUser(patch)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✅ Profile updated")
	printUser(cmd.OutOrStdout(), &u)
	return nil
}
