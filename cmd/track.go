package cmd

import (
	"fmt"

	"github.com/brk3/flux/pkg/flux"
	"github.com/brk3/flux/pkg/micros"
	"github.com/spf13/cobra"
)

var (
	trackRate       string
	trackGoal       float64
	trackGoalPeriod string
)

var trackCmd = &cobra.Command{
	Use:   "track <catalog-id>",
	Short: "Start tracking a habit from the catalog",
	Long: `The "track" command adds a habit from the catalog. The rate defaults to the
catalog's first option; set it with --rate in dollars, e.g. --rate 0.50.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()
		if err := a.signIn(cmd.Context()); err != nil {
			return err
		}

		entry, ok := a.ctrl.View().CatalogByID[args[0]]
		if !ok {
			return fmt.Errorf("no catalog entry %q", args[0])
		}
		nh := flux.NewHabit{
			LibraryID: entry.ID,
			RateType:  entry.RateType,
			Goal:      flux.Goal{Amount: trackGoal, Period: trackGoalPeriod},
		}
		if trackRate != "" {
			nh.RateMicros = micros.ToMicros(trackRate)
			if nh.RateMicros <= 0 {
				return fmt.Errorf("invalid rate %q", trackRate)
			}
		}

		if err := a.ctrl.CreateHabit(cmd.Context(), nh); err != nil {
			return err
		}
		v := a.ctrl.View()
		if len(v.Habits) == 0 {
			return fmt.Errorf("habit %q was not created", entry.ID)
		}
		h := v.Habits[len(v.Habits)-1]
		cmd.Printf("Tracking %s (%s) at %s/%s\n", h.Name, h.ID, micros.FormatMoney(h.Rate), unitOf(h))
		return nil
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackRate, "rate", "", "dollars per unit (or per completion)")
	trackCmd.Flags().Float64Var(&trackGoal, "goal", 1, "goal amount per period")
	trackCmd.Flags().StringVar(&trackGoalPeriod, "period", "day", "goal period")
	rootCmd.AddCommand(trackCmd)
}
