package cmd

import (
	"fmt"

	"github.com/brk3/flux/pkg/flux"
	"github.com/brk3/flux/pkg/micros"
	"github.com/spf13/cobra"
)

var (
	logNotes    string
	logEarnings string
)

var logCmd = &cobra.Command{
	Use:   "log <habit> [units]",
	Short: "Log progress on a habit",
	Long: `The "log" command records progress on a habit, named by id, catalog id,
ticker or name. Units default to 1, e.g. "flux log run 5.2" logs 5.2 km.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()
		if err := a.signIn(cmd.Context()); err != nil {
			return err
		}

		h, err := resolveHabit(a.ctrl.View(), args[0])
		if err != nil {
			return err
		}
		units := "1"
		if len(args) == 2 {
			units = args[1]
		}
		nl := flux.NewLog{
			HabitID:     h.ID,
			UnitsMicros: micros.ToMicros(units),
			Notes:       logNotes,
		}
		if nl.UnitsMicros <= 0 {
			return fmt.Errorf("invalid units %q", units)
		}
		if logEarnings != "" {
			e, ok := micros.ParseMicros(logEarnings)
			if !ok || e < 0 {
				return fmt.Errorf("invalid earnings %q", logEarnings)
			}
			nl.CustomEarningsMicros = &e
		}

		before := a.ctrl.View().Earned
		if err := a.ctrl.CreateLog(cmd.Context(), nl); err != nil {
			return err
		}
		v := a.ctrl.View()
		cmd.Printf("Logged %s: +%s (today %s)\n", h.Name, micros.FormatMoney(v.Earned-before), micros.FormatMoney(v.TodayEarned))
		return nil
	},
}

func init() {
	logCmd.Flags().StringVar(&logNotes, "notes", "", "optional note")
	logCmd.Flags().StringVar(&logEarnings, "earnings", "", "override the earnings in dollars")
	rootCmd.AddCommand(logCmd)
}
