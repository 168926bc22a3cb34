package cmd

import (
	"github.com/brk3/flux/internal/bootstrap"
	"github.com/brk3/flux/internal/normalize"
	"github.com/brk3/flux/pkg/micros"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the latest snapshot and show a summary",
	Long: `The "sync" command shows the cached snapshot right away (if any), then fetches
the authoritative one from the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()

		unsubscribe := a.ctrl.Subscribe(func(s bootstrap.State) {
			if s.FromCache && s.View != nil {
				cmd.Printf("(cached) earned %s, pending %s\n", micros.FormatMoney(s.View.Earned), micros.FormatMoney(s.View.Pending))
			}
		})
		defer unsubscribe()

		if err := a.signIn(cmd.Context()); err != nil {
			return err
		}
		printSummary(cmd, a.ctrl.View())
		return nil
	},
}

func printSummary(cmd *cobra.Command, v *normalize.View) {
	if v == nil {
		return
	}
	if v.User != nil {
		name := v.User.DisplayName
		if name == "" {
			name = v.User.Email
		}
		if name == "" {
			name = v.User.ID
		}
		cmd.Printf("User:        %s\n", name)
	}
	cmd.Printf("Habits:      %d\n", len(v.Habits))
	cmd.Printf("Earned:      %s\n", micros.FormatMoney(v.Earned))
	cmd.Printf("Transferred: %s\n", micros.FormatMoney(v.Transferred))
	cmd.Printf("Pending:     %s\n", micros.FormatMoney(v.Pending))
	cmd.Printf("Today:       %s\n", micros.FormatMoney(v.TodayEarned))
	cmd.Printf("This week:   %s\n", micros.FormatMoney(v.WeekEarned))
	cmd.Printf("Flux:        %.2f\n", v.Portfolio)
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
