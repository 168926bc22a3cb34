package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brk3/flux/internal/apiclient"
	"github.com/brk3/flux/internal/auth"
	"github.com/brk3/flux/internal/bootstrap"
	"github.com/brk3/flux/internal/logger"
	"github.com/brk3/flux/internal/storage"
	"github.com/brk3/flux/internal/storage/bolt"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New(`not signed in: run "flux login" or pass --token`)

// app is what the sync commands share: an API client, the bootstrap
// controller and its side cache.
type app struct {
	client *apiclient.Client
	ctrl   *bootstrap.Controller
	cache  storage.Cache
}

func openApp() *app {
	client := apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout)
	cache := openCache()
	ctrl := bootstrap.New(client, bootstrap.Options{
		Cache:        cache,
		CacheVersion: cfg.CacheVersion,
		Timeout:      cfg.RequestTimeout,
		Location:     cfg.Location(),
	})
	return &app{client: client, ctrl: ctrl, cache: cache}
}

// openCache opens the bolt side cache at cache_path, falling back to an
// in-memory one when unset or unavailable.
func openCache() storage.Cache {
	if cfg.CachePath == "" {
		return storage.NewMemory()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0700); err != nil {
		logger.Debug("Cache directory unavailable", "path", cfg.CachePath, "error", err)
		return storage.NewMemory()
	}
	c, err := bolt.Open(cfg.CachePath)
	if err != nil {
		logger.Debug("Cache unavailable, continuing without it", "path", cfg.CachePath, "error", err)
		return storage.NewMemory()
	}
	return c
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		logger.Debug("Failed to close cache", "error", err)
	}
}

// signIn loads the session and hands it to the controller, which fetches
// the snapshot.
func (a *app) signIn(ctx context.Context) error {
	sess, err := currentSession(ctx)
	if err != nil {
		return err
	}
	return a.ctrl.SetSession(ctx, sess)
}

func sessionPath() string {
	if cfg.Auth.SessionPath != "" {
		return cfg.Auth.SessionPath
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "flux", "session")
}

// currentSession prefers a static token and otherwise uses the stored login,
// refreshing it through the identity provider when it has expired.
func currentSession(ctx context.Context) (*auth.Session, error) {
	if s := auth.StaticSession(cfg.Token); s != nil {
		return s, nil
	}

	store, err := auth.OpenSessionStore(sessionPath())
	if err != nil {
		return nil, err
	}
	sess, err := store.Load()
	if errors.Is(err, auth.ErrNoSession) {
		return nil, errNotSignedIn
	}
	if err != nil {
		return nil, err
	}
	if !sess.Expired(time.Now()) {
		return sess, nil
	}

	a, err := auth.New(ctx, cfg.Auth, store)
	if err != nil {
		return nil, err
	}
	sess, err = a.Current(ctx)
	if errors.Is(err, auth.ErrNoSession) {
		return nil, errNotSignedIn
	}
	return sess, err
}

func newAuthenticator(ctx context.Context) (*auth.Authenticator, error) {
	store, err := auth.OpenSessionStore(sessionPath())
	if err != nil {
		return nil, err
	}
	return auth.New(ctx, cfg.Auth, store)
}

// readPassword reads one line from the command's input.
func readPassword(cmd *cobra.Command) (string, error) {
	cmd.Print("Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
