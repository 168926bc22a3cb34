package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brk3/flux/internal/auth"
	"github.com/brk3/flux/internal/config"
	"github.com/brk3/flux/internal/logger"
	"github.com/brk3/flux/internal/normalize"
	"github.com/brk3/flux/internal/storage"
	"github.com/brk3/flux/pkg/flux"
)

var ErrNoSession = errors.New("bootstrap: no session")

// Backend is the server contract. *apiclient.Client satisfies it.
type Backend interface {
	Bootstrap(ctx context.Context, token string) (*flux.Snapshot, error)
	CreateHabit(ctx context.Context, token string, h flux.NewHabit) (*flux.Snapshot, error)
	CreateLog(ctx context.Context, token string, l flux.NewLog) (*flux.Snapshot, error)
	CreateTransfer(ctx context.Context, token string) (*flux.Snapshot, error)
	PatchUser(ctx context.Context, token string, p flux.UserPatch) (*flux.User, error)
	CompleteOnboarding(ctx context.Context, token string) (*flux.User, error)
}

type Options struct {
	// Cache is optional. Its failures never reach callers.
	Cache        storage.Cache
	CacheVersion string
	// Timeout bounds every backend call.
	Timeout  time.Duration
	Location *time.Location
	Now      func() time.Time
}

// State is what observers see. It is replaced wholesale, never edited.
type State struct {
	UserID   string
	Snapshot *flux.Snapshot
	View     *normalize.View
	// Loading is set while a call is in flight and nothing is displayed yet.
	Loading bool
	Err     error
	// FromCache marks a snapshot read from the side cache that the backend
	// has not confirmed yet.
	FromCache bool
}

// Controller owns the snapshot for the signed-in user. It is safe for
// concurrent use; responses are applied only if no later call was issued.
type Controller struct {
	backend Backend
	opts    Options
	seq     Sequencer

	mu      sync.Mutex
	session *auth.Session
	state   State

	notifyMu   sync.Mutex
	queue      []State
	delivering bool

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

func New(backend Backend, opts Options) *Controller {
	if opts.CacheVersion == "" {
		opts.CacheVersion = config.DefaultCacheVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		backend: backend,
		opts:    opts,
		subs:    map[int]func(State){},
	}
}

// SetSession switches the controller to sess. A nil session (or one without
// a token) clears all state at once, without touching the network, and
// orphans every call still in flight. Otherwise a cached snapshot for the
// user is shown first and a fresh one is fetched.
func (c *Controller) SetSession(ctx context.Context, sess *auth.Session) error {
	if sess == nil || sess.AccessToken == "" {
		c.mu.Lock()
		c.seq.Issue()
		c.session = nil
		c.state = State{}
		c.mu.Unlock()
		logger.Debug("Session cleared")
		c.publish()
		return nil
	}

	c.mu.Lock()
	changed := c.session == nil || c.session.UserID != sess.UserID
	c.session = sess
	if changed {
		c.seq.Issue()
		c.state = State{UserID: sess.UserID}
	}
	if changed || c.state.Snapshot == nil {
		if snap, ok := c.loadCached(sess.UserID); ok {
			c.state = c.stateFor(sess.UserID, snap)
			c.state.FromCache = true
		}
	}
	c.mu.Unlock()
	if changed {
		logger.Debug("Session set", "user_id", sess.UserID)
		c.publish()
	}

	return c.Refresh(ctx)
}

// Refresh fetches the authoritative snapshot.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.call(ctx, "bootstrap", func(ctx context.Context, token string) (outcome, error) {
		s, err := c.backend.Bootstrap(ctx, token)
		return outcome{snapshot: s}, err
	})
}

func (c *Controller) CreateHabit(ctx context.Context, h flux.NewHabit) error {
	return c.call(ctx, "create_habit", func(ctx context.Context, token string) (outcome, error) {
		s, err := c.backend.CreateHabit(ctx, token, h)
		return outcome{snapshot: s}, err
	})
}

func (c *Controller) CreateLog(ctx context.Context, l flux.NewLog) error {
	return c.call(ctx, "create_log", func(ctx context.Context, token string) (outcome, error) {
		s, err := c.backend.CreateLog(ctx, token, l)
		return outcome{snapshot: s}, err
	})
}

func (c *Controller) CreateTransfer(ctx context.Context) error {
	return c.call(ctx, "create_transfer", func(ctx context.Context, token string) (outcome, error) {
		s, err := c.backend.CreateTransfer(ctx, token)
		return outcome{snapshot: s}, err
	})
}

// PatchUser and CompleteOnboarding return only the user; it replaces the
// user in the current snapshot. With no confirmed snapshot held they also
// refresh.
func (c *Controller) PatchUser(ctx context.Context, p flux.UserPatch) error {
	return c.call(ctx, "patch_user", func(ctx context.Context, token string) (outcome, error) {
		u, err := c.backend.PatchUser(ctx, token, p)
		return outcome{user: u}, err
	})
}

func (c *Controller) CompleteOnboarding(ctx context.Context) error {
	return c.call(ctx, "complete_onboarding", func(ctx context.Context, token string) (outcome, error) {
		u, err := c.backend.CompleteOnboarding(ctx, token)
		return outcome{user: u}, err
	})
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View is the display projection of the current snapshot, or nil.
func (c *Controller) View() *normalize.View {
	return c.State().View
}

// Subscribe registers fn to receive every applied state. Calls are
// serialized and in order. fn may call back into the controller; states
// that produces are delivered after fn returns. The returned func
// unregisters fn.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

type outcome struct {
	snapshot *flux.Snapshot
	user     *flux.User
}

func (c *Controller) call(parent context.Context, kind string, fn func(context.Context, string) (outcome, error)) error {
	c.mu.Lock()
	sess := c.session
	if sess == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	tok := c.seq.Issue()
	startLoading := c.state.Snapshot == nil && !c.state.Loading
	if startLoading {
		c.state.Loading = true
	}
	c.mu.Unlock()
	if startLoading {
		c.publish()
	}

	ctx, cancel := context.WithTimeout(parent, c.opts.Timeout)
	defer cancel()

	start := c.opts.Now()
	out, err := fn(ctx, sess.AccessToken)
	if err == nil && out.snapshot == nil && out.user == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		syncRequestsTotal.WithLabelValues(kind, "error").Inc()
		logger.Debug("Backend call failed", "kind", kind, "user_id", sess.UserID, "token", tok, "error", err)
	} else {
		syncRequestsTotal.WithLabelValues(kind, "ok").Inc()
		logger.Debug("Backend call succeeded", "kind", kind, "user_id", sess.UserID, "token", tok, "duration", c.opts.Now().Sub(start))
	}

	c.mu.Lock()
	// Full snapshots are cached even when superseded, but never for a
	// session that has since been cleared or replaced by another user.
	if err == nil && out.snapshot != nil && c.session != nil && c.session.UserID == sess.UserID {
		c.storeCached(sess.UserID, out.snapshot)
	}
	if !Current(tok, c.seq.Latest()) {
		c.mu.Unlock()
		syncDiscardedTotal.WithLabelValues(kind).Inc()
		logger.Debug("Discarding superseded response", "kind", kind, "token", tok)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		return nil
	}

	changed, refresh := c.apply(sess.UserID, out, err)
	c.mu.Unlock()

	if changed {
		c.publish()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	if refresh {
		logger.Debug("Refreshing after user-only response", "kind", kind, "token", tok)
		return c.Refresh(parent)
	}
	return nil
}

// apply folds a current response into state; c.mu must be held. A user-only
// response has no snapshot of its own: with nothing displayed it changes
// nothing, and over a cached snapshot it is merged but stays unconfirmed.
// Both cases ask for a refresh, since this call superseded any bootstrap
// still in flight.
func (c *Controller) apply(userID string, out outcome, err error) (changed, refresh bool) {
	switch {
	case err != nil:
		next := c.state
		next.Loading = false
		next.Err = err
		c.state = next
	case out.snapshot != nil:
		c.state = c.stateFor(userID, out.snapshot)
	case c.state.Snapshot == nil:
		return false, true
	case c.state.FromCache:
		c.state = c.stateFor(userID, c.state.Snapshot.WithUser(out.user))
		c.state.FromCache = true
		return true, true
	default:
		merged := c.state.Snapshot.WithUser(out.user)
		c.storeCached(userID, merged)
		c.state = c.stateFor(userID, merged)
	}
	return true, false
}

func (c *Controller) stateFor(userID string, s *flux.Snapshot) State {
	return State{
		UserID:   userID,
		Snapshot: s,
		View:     normalize.Build(s, c.opts.Location),
	}
}

// publish queues the current state for subscribers. Whoever finds no
// delivery running drains the queue, calling subscribers outside any lock.
// A state published while a callback runs, from inside that callback or from
// another goroutine, is delivered in order after the callback returns.
func (c *Controller) publish() {
	c.notifyMu.Lock()
	c.queue = append(c.queue, c.State())
	if c.delivering {
		c.notifyMu.Unlock()
		return
	}
	c.delivering = true
	for len(c.queue) > 0 {
		st := c.queue[0]
		c.queue = c.queue[1:]
		c.notifyMu.Unlock()
		for _, fn := range c.subscribers() {
			fn(st)
		}
		c.notifyMu.Lock()
	}
	c.delivering = false
	c.notifyMu.Unlock()
}

func (c *Controller) subscribers() []func(State) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	return fns
}
