package cmd

import (
	"github.com/brk3/flux/pkg/flux"
	"github.com/spf13/cobra"
)

var (
	userName     string
	userTimezone string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Show or update your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()
		if err := a.signIn(cmd.Context()); err != nil {
			return err
		}

		var p flux.UserPatch
		if cmd.Flags().Changed("name") {
			p.DisplayName = &userName
		}
		if cmd.Flags().Changed("timezone") {
			p.Timezone = &userTimezone
		}
		if p.DisplayName != nil || p.Timezone != nil {
			if err := a.ctrl.PatchUser(cmd.Context(), p); err != nil {
				return err
			}
		}
		printUser(cmd, a.ctrl.View().User)
		return nil
	},
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Mark onboarding as complete",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()
		if err := a.signIn(cmd.Context()); err != nil {
			return err
		}
		if err := a.ctrl.CompleteOnboarding(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Onboarding complete")
		return nil
	},
}

func printUser(cmd *cobra.Command, u *flux.User) {
	if u == nil {
		cmd.Println("No user profile")
		return
	}
	cmd.Printf("ID:         %s\n", u.ID)
	cmd.Printf("Email:      %s\n", u.Email)
	cmd.Printf("Name:       %s\n", u.DisplayName)
	cmd.Printf("Timezone:   %s\n", u.Timezone)
	cmd.Printf("Onboarded:  %t\n", u.OnboardingComplete)
}

func init() {
	userCmd.Flags().StringVar(&userName, "name", "", "set the display name")
	userCmd.Flags().StringVar(&userTimezone, "timezone", "", "set the IANA timezone")
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(onboardCmd)
}
