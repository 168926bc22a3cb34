package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brk3/flux/internal/normalize"
	"github.com/brk3/flux/pkg/flux"
	"github.com/brk3/flux/pkg/micros"
	"github.com/spf13/cobra"
)

var showCatalog bool

var habitsCmd = &cobra.Command{
	Use:   "habits",
	Short: "List your habits",
	Long: `The "habits" command lists your tracked habits with their rate, flux score and
whether they were logged today. With --catalog it lists the habits you can track.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()
		if err := a.signIn(cmd.Context()); err != nil {
			return err
		}
		v := a.ctrl.View()
		if showCatalog {
			printCatalog(cmd, v)
			return nil
		}
		printHabits(cmd, v, time.Now())
		return nil
	},
}

func printHabits(cmd *cobra.Command, v *normalize.View, now time.Time) {
	if len(v.Habits) == 0 {
		cmd.Println(`No habits yet. Run "flux habits --catalog" and "flux track <id>".`)
		return
	}
	today := v.Today(now)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHABIT\tRATE\tFLUX\tTODAY")
	for _, h := range v.Habits {
		done := "-"
		if v.LoggedOn(h.ID, today) {
			done = "done"
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s/%s\t%.0f\t%s\n", h.ID, h.Icon, h.Name, micros.FormatMoney(h.Rate), unitOf(h), h.Score, done)
	}
	w.Flush()
}

func printCatalog(cmd *cobra.Command, v *normalize.View) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTICKER\tHABIT\tTYPE\tRATES")
	for _, c := range v.Catalog {
		rates := make([]string, 0, len(c.RateOptionsMicros))
		for _, r := range c.RateOptionsMicros {
			rates = append(rates, micros.FormatMicros(r))
		}
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n", c.ID, c.Ticker, c.Icon, c.Name, c.RateType, strings.Join(rates, " "))
	}
	w.Flush()
}

func unitOf(h normalize.HabitView) string {
	switch {
	case h.RateType == flux.RateBinary:
		return "done"
	case h.Unit == "":
		return "unit"
	}
	return h.Unit
}

// resolveHabit finds a habit by id, catalog id, ticker or name.
func resolveHabit(v *normalize.View, ref string) (normalize.HabitView, error) {
	if h, ok := v.Habit(ref); ok {
		return h, nil
	}
	var found []normalize.HabitView
	for _, h := range v.Habits {
		if strings.EqualFold(h.LibraryID, ref) || strings.EqualFold(h.Ticker, ref) || strings.EqualFold(h.Name, ref) {
			found = append(found, h)
		}
	}
	switch len(found) {
	case 0:
		return normalize.HabitView{}, fmt.Errorf("no habit matches %q", ref)
	case 1:
		return found[0], nil
	}
	return normalize.HabitView{}, fmt.Errorf("%q matches %d habits; use the habit id", ref, len(found))
}

func init() {
	habitsCmd.Flags().BoolVar(&showCatalog, "catalog", false, "list the habit catalog instead")
	rootCmd.AddCommand(habitsCmd)
}
