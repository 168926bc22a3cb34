package cmd

import (
	"github.com/brk3/flux/pkg/micros"
	"github.com/spf13/cobra"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Transfer the pending balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()
		if err := a.signIn(cmd.Context()); err != nil {
			return err
		}

		pending := a.ctrl.View().Pending
		if err := a.ctrl.CreateTransfer(cmd.Context()); err != nil {
			return err
		}
		cmd.Printf("Transferred %s (total %s)\n", micros.FormatMoney(pending), micros.FormatMoney(a.ctrl.View().Transferred))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)
}
