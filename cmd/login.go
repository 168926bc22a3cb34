package cmd

import (
	"errors"

	"github.com/brk3/flux/internal/auth"
	"github.com/brk3/flux/internal/bootstrap"
	"github.com/brk3/flux/internal/logger"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and remember the session",
	Long: `The "login" command signs in with your email and a password read from stdin.
The session is stored encrypted and refreshed automatically when it expires.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return login(cmd, args[0], false)
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup <email>",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return login(cmd, args[0], true)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session and cached data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logout(cmd)
	},
}

func login(cmd *cobra.Command, email string, create bool) error {
	ctx := cmd.Context()
	a, err := newAuthenticator(ctx)
	if err != nil {
		return err
	}
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	var sess *auth.Session
	if create {
		sess, err = a.SignUp(ctx, email, password)
	} else {
		sess, err = a.SignIn(ctx, email, password)
	}
	if err != nil {
		if msg := a.Message(); msg != "" {
			return errors.New(msg)
		}
		return err
	}
	cmd.Println()
	cmd.Printf("Signed in as %s\n", sess.Email)
	return nil
}

type prefixDeleter interface {
	DeletePrefix(prefix string) error
}

func logout(cmd *cobra.Command) error {
	store, err := auth.OpenSessionStore(sessionPath())
	if err != nil {
		return err
	}
	if err := store.Delete(); err != nil {
		return err
	}

	cache := openCache()
	defer cache.Close()
	if d, ok := cache.(prefixDeleter); ok {
		if err := d.DeletePrefix(bootstrap.CacheKey(cfg.CacheVersion, "")); err != nil {
			logger.Debug("Failed to clear cache", "error", err)
		}
	}
	cmd.Println("Signed out")
	return nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
}
