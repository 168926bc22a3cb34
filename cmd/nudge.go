package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/brk3/flux/internal/apiclient"
	"github.com/brk3/flux/internal/nudge"
	"github.com/brk3/flux/internal/nudge/resend"
	"github.com/spf13/cobra"
)

var nudgeCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Email a reminder for habits not yet logged today",
	Long: `The "nudge" command emails a reminder through Resend when any habit has no
log today. Set nudge.resend_api_key (or FLUX_RESEND_API_KEY) and nudge.email.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Nudge.ResendAPIKey == "" {
			return fmt.Errorf("nudge.resend_api_key is not set")
		}
		if cfg.Nudge.Email == "" {
			return fmt.Errorf("nudge.email is not set")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentSession(cmd.Context())
		if err != nil {
			return err
		}
		n := &resend.ResendNotifier{
			ApiKey: cfg.Nudge.ResendAPIKey,
			Email:  cfg.Nudge.Email,
			From:   cfg.Nudge.From,
		}
		client := apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout)
		return runNudge(cmd, client, sess.AccessToken, n)
	},
}

func runNudge(cmd *cobra.Command, q nudge.Querier, token string, n nudge.Notifier) error {
	pending, err := nudge.Nudge(cmd.Context(), q, token, n, time.Now(), cfg.Location())
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Nothing to nudge about")
		return nil
	}
	cmd.Printf("Nudged about: %s\n", strings.Join(pending, ", "))
	return nil
}

func init() {
	rootCmd.AddCommand(nudgeCmd)
}
