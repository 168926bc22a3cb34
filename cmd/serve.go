package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/brk3/flux/internal/server"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	legacyKeys bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference backend",
	Long: `The "serve" command runs an in-memory backend that speaks the same API as the
hosted service. Any bearer token is accepted and names its own account.`,
	PersistentPreRunE: loadConfigOptional,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := cfg.Server
		if cmd.Flags().Changed("listen") {
			sc.ListenAddr = listenAddr
		}
		if cmd.Flags().Changed("legacy-keys") {
			sc.LegacyKeys = legacyKeys
		}

		srv, err := server.New(sc)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default server.listen_addr)")
	serveCmd.Flags().BoolVar(&legacyKeys, "legacy-keys", false, "emit upper camel root keys")
	rootCmd.AddCommand(serveCmd)
}
