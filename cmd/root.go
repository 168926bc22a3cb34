package cmd

import (
	"errors"
	"os"

	"github.com/brk3/flux/internal/config"
	"github.com/brk3/flux/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	tokenFlag string
	verbose   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "flux",
	Short: "Track habits and the money they earn",
	Long: `
	Flux pays you for your habits. Pick habits from the catalog, log progress as you
	go, and watch earnings build up until you transfer them out. The CLI keeps a local
	copy of your last snapshot so it has something to show while it syncs.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	setupLogging(cmd)
	return nil
}

// loadConfigOptional is for commands that work without a config file.
func loadConfigOptional(cmd *cobra.Command, args []string) error {
	err := loadConfig(cmd, args)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Defaults()
		setupLogging(cmd)
		return nil
	}
	return err
}

func setupLogging(cmd *cobra.Command) {
	if tokenFlag != "" {
		cfg.Token = tokenFlag
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger.Setup(cmd.ErrOrStderr(), cfg.LogFormat, level)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $FLUX_CONFIG or config.yaml)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "API token; skips the stored login session")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
