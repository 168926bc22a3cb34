package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brk3/flux/internal/auth"
	"github.com/brk3/flux/internal/storage"
	"github.com/brk3/flux/pkg/flux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotNamed(name string) *flux.Snapshot {
	return &flux.Snapshot{
		User:   &flux.User{ID: "u1"},
		Habits: []flux.Habit{{ID: name, LibraryID: "run", RateType: flux.RateCount, RateMicros: 1_000_000}},
		Totals: flux.Totals{EarnedMicros: 2_500_000},
	}
}

func habitID(s State) string {
	if s.Snapshot == nil || len(s.Snapshot.Habits) == 0 {
		return ""
	}
	return s.Snapshot.Habits[0].ID
}

type fakeBackend struct {
	calls     atomic.Int32
	bootstrap func(ctx context.Context, token string) (*flux.Snapshot, error)
	err       error
}

func (f *fakeBackend) Bootstrap(ctx context.Context, token string) (*flux.Snapshot, error) {
	f.calls.Add(1)
	if f.bootstrap != nil {
		return f.bootstrap(ctx, token)
	}
	if f.err != nil {
		return nil, f.err
	}
	return snapshotNamed("fresh"), nil
}

func (f *fakeBackend) CreateHabit(_ context.Context, _ string, h flux.NewHabit) (*flux.Snapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return snapshotNamed("habit-" + h.LibraryID), nil
}

func (f *fakeBackend) CreateLog(_ context.Context, _ string, l flux.NewLog) (*flux.Snapshot, error) {
	f.calls.Add(1)
	s := snapshotNamed("fresh")
	s.Logs = []flux.Log{{ID: "l1", HabitID: l.HabitID, UnitsMicros: l.UnitsMicros}}
	return s, f.err
}

func (f *fakeBackend) CreateTransfer(context.Context, string) (*flux.Snapshot, error) {
	f.calls.Add(1)
	s := snapshotNamed("fresh")
	s.Totals = flux.Totals{EarnedMicros: 2_500_000, TransferredMicros: 2_500_000}
	return s, f.err
}

func (f *fakeBackend) PatchUser(_ context.Context, _ string, p flux.UserPatch) (*flux.User, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	u := &flux.User{ID: "u1"}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	return u, nil
}

func (f *fakeBackend) CompleteOnboarding(context.Context, string) (*flux.User, error) {
	f.calls.Add(1)
	return &flux.User{ID: "u1", OnboardingComplete: true}, f.err
}

// gated makes the i-th Bootstrap call block until gates[i] is closed and
// then return snaps[i]. started receives i when call i begins.
func gated(snaps []*flux.Snapshot) (fn func(context.Context, string) (*flux.Snapshot, error), gates []chan struct{}, started chan int) {
	gates = make([]chan struct{}, len(snaps))
	for i := range gates {
		gates[i] = make(chan struct{})
	}
	started = make(chan int, len(snaps))
	var n atomic.Int32
	fn = func(ctx context.Context, _ string) (*flux.Snapshot, error) {
		i := int(n.Add(1)) - 1
		started <- i
		select {
		case <-gates[i]:
			return snaps[i], nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return fn, gates, started
}

func seedCache(t *testing.T, c storage.Cache, version, userID string, s *flux.Snapshot) {
	t.Helper()
	raw, err := json.Marshal(cacheEntry{Version: version, CapturedAt: 1, Snapshot: s})
	require.NoError(t, err)
	require.NoError(t, c.Store(CacheKey(version, userID), raw))
}

func session(userID string) *auth.Session {
	return &auth.Session{AccessToken: "tok-" + userID, UserID: userID}
}

func async(f func() error) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- f() }()
	return ch
}

func TestCurrent(t *testing.T) {
	var s Sequencer
	a := s.Issue()
	b := s.Issue()
	assert.Less(t, a, b)
	assert.False(t, Current(a, s.Latest()))
	assert.True(t, Current(b, s.Latest()))
}

func TestOutOfOrderResponsesKeepLatest(t *testing.T) {
	fn, gates, started := gated([]*flux.Snapshot{snapshotNamed("A"), snapshotNamed("B")})
	c := New(&fakeBackend{bootstrap: fn}, Options{})

	errA := async(func() error { return c.SetSession(context.Background(), session("u1")) })
	require.Equal(t, 0, <-started)
	errB := async(func() error { return c.Refresh(context.Background()) })
	require.Equal(t, 1, <-started)

	close(gates[1])
	require.NoError(t, <-errB)
	assert.Equal(t, "B", habitID(c.State()))

	close(gates[0])
	require.NoError(t, <-errA)
	assert.Equal(t, "B", habitID(c.State()), "superseded response must not be applied")
	assert.False(t, c.State().Loading)
}

func TestSignOutClearsWithoutNetwork(t *testing.T) {
	fb := &fakeBackend{}
	c := New(fb, Options{})
	require.NoError(t, c.SetSession(context.Background(), session("u1")))
	require.NotNil(t, c.State().Snapshot)
	calls := fb.calls.Load()

	require.NoError(t, c.SetSession(context.Background(), nil))
	assert.Equal(t, calls, fb.calls.Load())
	assert.Equal(t, State{}, c.State())
	assert.Nil(t, c.View())

	assert.ErrorIs(t, c.Refresh(context.Background()), ErrNoSession)
	assert.ErrorIs(t, c.CreateTransfer(context.Background()), ErrNoSession)
	assert.Equal(t, calls, fb.calls.Load())
}

func TestSignOutDiscardsInFlight(t *testing.T) {
	fn, gates, started := gated([]*flux.Snapshot{snapshotNamed("A")})
	c := New(&fakeBackend{bootstrap: fn}, Options{})

	errA := async(func() error { return c.SetSession(context.Background(), session("u1")) })
	<-started
	require.NoError(t, c.SetSession(context.Background(), &auth.Session{UserID: "u1"}))

	close(gates[0])
	require.NoError(t, <-errA)
	assert.Nil(t, c.State().Snapshot)
}

func TestCacheHitThenFetch(t *testing.T) {
	cache := storage.NewMemory()
	seedCache(t, cache, "v1", "u1", snapshotNamed("cached"))

	fn, gates, started := gated([]*flux.Snapshot{snapshotNamed("fresh")})
	c := New(&fakeBackend{bootstrap: fn}, Options{Cache: cache, CacheVersion: "v1"})

	var mu sync.Mutex
	var seen []State
	unsubscribe := c.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer unsubscribe()

	done := async(func() error { return c.SetSession(context.Background(), session("u1")) })
	<-started

	st := c.State()
	assert.Equal(t, "cached", habitID(st))
	assert.True(t, st.FromCache)
	assert.False(t, st.Loading)
	require.NotNil(t, st.View)
	assert.Equal(t, 2.5, st.View.Earned)

	close(gates[0])
	require.NoError(t, <-done)
	st = c.State()
	assert.Equal(t, "fresh", habitID(st))
	assert.False(t, st.FromCache)

	raw, err := cache.Load(CacheKey("v1", "u1"))
	require.NoError(t, err)
	var e cacheEntry
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, "fresh", e.Snapshot.Habits[0].ID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].FromCache)
	assert.Equal(t, "fresh", habitID(seen[1]))
}

func TestCacheVersionBumpIgnoresOldEntries(t *testing.T) {
	cache := storage.NewMemory()
	seedCache(t, cache, "v1", "u1", snapshotNamed("old-format"))

	fn, gates, started := gated([]*flux.Snapshot{snapshotNamed("fresh")})
	c := New(&fakeBackend{bootstrap: fn}, Options{Cache: cache, CacheVersion: "v2"})

	done := async(func() error { return c.SetSession(context.Background(), session("u1")) })
	<-started
	st := c.State()
	assert.Nil(t, st.Snapshot)
	assert.True(t, st.Loading)

	close(gates[0])
	require.NoError(t, <-done)
	_, err := cache.Load(CacheKey("v2", "u1"))
	assert.NoError(t, err)
}

type brokenCache struct{}

func (brokenCache) Load(string) ([]byte, error) { return nil, errors.New("disk on fire") }
func (brokenCache) Store(string, []byte) error  { return errors.New("disk on fire") }
func (brokenCache) Delete(string) error         { return errors.New("disk on fire") }
func (brokenCache) Close() error                { return nil }

func TestCacheFailuresAreIgnored(t *testing.T) {
	c := New(&fakeBackend{}, Options{Cache: brokenCache{}})
	require.NoError(t, c.SetSession(context.Background(), session("u1")))
	assert.Equal(t, "fresh", habitID(c.State()))

	corrupt := storage.NewMemory()
	require.NoError(t, corrupt.Store(CacheKey("v1", "u1"), []byte("{not json")))
	c = New(&fakeBackend{}, Options{Cache: corrupt})
	require.NoError(t, c.SetSession(context.Background(), session("u1")))
	assert.Equal(t, "fresh", habitID(c.State()))
}

func TestErrorKeepsSnapshot(t *testing.T) {
	fb := &fakeBackend{}
	c := New(fb, Options{})
	require.NoError(t, c.SetSession(context.Background(), session("u1")))

	boom := errors.New("503 service unavailable")
	fb.err = boom
	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, boom)

	st := c.State()
	assert.ErrorIs(t, st.Err, boom)
	assert.Equal(t, "fresh", habitID(st))
	assert.False(t, st.Loading)

	fb.err = nil
	require.NoError(t, c.Refresh(context.Background()))
	assert.NoError(t, c.State().Err)
}

func TestMutationsReplaceSnapshot(t *testing.T) {
	cache := storage.NewMemory()
	c := New(&fakeBackend{}, Options{Cache: cache})
	require.NoError(t, c.SetSession(context.Background(), session("u1")))

	require.NoError(t, c.CreateHabit(context.Background(), flux.NewHabit{LibraryID: "read"}))
	assert.Equal(t, "habit-read", habitID(c.State()))

	require.NoError(t, c.CreateLog(context.Background(), flux.NewLog{HabitID: "fresh", UnitsMicros: 3_000_000}))
	require.Len(t, c.State().Snapshot.Logs, 1)
	assert.Equal(t, 3.0, c.View().Logs[0].Units)

	require.NoError(t, c.CreateTransfer(context.Background()))
	assert.Equal(t, 2.5, c.View().Transferred)
}

func TestUserResponsesMergeIntoSnapshot(t *testing.T) {
	cache := storage.NewMemory()
	c := New(&fakeBackend{}, Options{Cache: cache})
	require.NoError(t, c.SetSession(context.Background(), session("u1")))
	before := c.State().Snapshot

	name := "Ann"
	require.NoError(t, c.PatchUser(context.Background(), flux.UserPatch{DisplayName: &name}))
	st := c.State()
	assert.Equal(t, "Ann", st.Snapshot.User.DisplayName)
	assert.Equal(t, "fresh", habitID(st), "rest of the snapshot is kept")
	assert.Empty(t, before.User.DisplayName, "previous snapshot is not edited in place")

	require.NoError(t, c.CompleteOnboarding(context.Background()))
	assert.True(t, c.View().User.OnboardingComplete)

	raw, err := cache.Load(CacheKey("v1", "u1"))
	require.NoError(t, err)
	var e cacheEntry
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.True(t, e.Snapshot.User.OnboardingComplete)
}

func TestSwitchingUserDropsPreviousState(t *testing.T) {
	fn, gates, started := gated([]*flux.Snapshot{snapshotNamed("A"), snapshotNamed("B")})
	c := New(&fakeBackend{bootstrap: fn}, Options{})

	errA := async(func() error { return c.SetSession(context.Background(), session("alice")) })
	<-started
	errB := async(func() error { return c.SetSession(context.Background(), session("bob")) })
	<-started

	close(gates[0])
	require.NoError(t, <-errA)
	st := c.State()
	assert.Equal(t, "bob", st.UserID)
	assert.Nil(t, st.Snapshot)

	close(gates[1])
	require.NoError(t, <-errB)
	assert.Equal(t, "B", habitID(c.State()))
}

func TestCallTimeout(t *testing.T) {
	fb := &fakeBackend{bootstrap: func(ctx context.Context, _ string) (*flux.Snapshot, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := New(fb, Options{Timeout: 20 * time.Millisecond})

	err := c.SetSession(context.Background(), session("u1"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, c.State().Err, context.DeadlineExceeded)
	assert.False(t, c.State().Loading)
}

func TestUnsubscribe(t *testing.T) {
	c := New(&fakeBackend{}, Options{})
	var n atomic.Int32
	unsubscribe := c.Subscribe(func(State) { n.Add(1) })
	require.NoError(t, c.SetSession(context.Background(), session("u1")))
	got := n.Load()
	assert.Positive(t, got)

	unsubscribe()
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, got, n.Load())
}

func TestUserResponseWithoutSnapshotRefreshes(t *testing.T) {
	cache := storage.NewMemory()
	fn, gates, started := gated([]*flux.Snapshot{snapshotNamed("A"), snapshotNamed("B")})
	c := New(&fakeBackend{bootstrap: fn}, Options{Cache: cache})

	errA := async(func() error { return c.SetSession(context.Background(), session("u1")) })
	require.Equal(t, 0, <-started)

	name := "Ann"
	errPatch := async(func() error { return c.PatchUser(context.Background(), flux.UserPatch{DisplayName: &name}) })
	require.Equal(t, 1, <-started)

	st := c.State()
	assert.Nil(t, st.Snapshot, "a user alone is not a snapshot")
	assert.True(t, st.Loading)
	_, err := cache.Load(CacheKey("v1", "u1"))
	assert.ErrorIs(t, err, storage.ErrMiss)

	close(gates[0])
	require.NoError(t, <-errA)
	assert.Nil(t, c.State().Snapshot)

	close(gates[1])
	require.NoError(t, <-errPatch)
	st = c.State()
	assert.Equal(t, "B", habitID(st))
	assert.False(t, st.Loading)
	assert.False(t, st.FromCache)

	raw, err := cache.Load(CacheKey("v1", "u1"))
	require.NoError(t, err)
	var e cacheEntry
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, "B", e.Snapshot.Habits[0].ID)
}

func TestUserResponseOverCachedSnapshotStaysCached(t *testing.T) {
	cache := storage.NewMemory()
	seedCache(t, cache, "v1", "u1", snapshotNamed("cached"))
	fn, gates, started := gated([]*flux.Snapshot{snapshotNamed("A"), snapshotNamed("B")})
	c := New(&fakeBackend{bootstrap: fn}, Options{Cache: cache})

	errA := async(func() error { return c.SetSession(context.Background(), session("u1")) })
	<-started

	name := "Ann"
	errPatch := async(func() error { return c.PatchUser(context.Background(), flux.UserPatch{DisplayName: &name}) })
	<-started

	st := c.State()
	assert.True(t, st.FromCache)
	assert.Equal(t, "cached", habitID(st))
	assert.Equal(t, "Ann", st.Snapshot.User.DisplayName)

	raw, err := cache.Load(CacheKey("v1", "u1"))
	require.NoError(t, err)
	var e cacheEntry
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Empty(t, e.Snapshot.User.DisplayName, "unconfirmed merge is not cached")

	close(gates[0])
	close(gates[1])
	require.NoError(t, <-errA)
	require.NoError(t, <-errPatch)
	st = c.State()
	assert.Equal(t, "B", habitID(st))
	assert.False(t, st.FromCache)
}

func TestSubscriberMayCallBack(t *testing.T) {
	fb := &fakeBackend{}
	c := New(fb, Options{})

	var once sync.Once
	refreshErr := make(chan error, 1)
	unsubscribe := c.Subscribe(func(s State) {
		if s.Snapshot == nil {
			return
		}
		once.Do(func() { refreshErr <- c.Refresh(context.Background()) })
	})
	defer unsubscribe()

	done := async(func() error { return c.SetSession(context.Background(), session("u1")) })
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SetSession did not return")
	}
	require.NoError(t, <-refreshErr)
	assert.Equal(t, int32(2), fb.calls.Load())
	assert.Equal(t, "fresh", habitID(c.State()))
}

func TestLateResponseAfterSignOutIsNotCached(t *testing.T) {
	cache := storage.NewMemory()
	fn, gates, started := gated([]*flux.Snapshot{snapshotNamed("A")})
	c := New(&fakeBackend{bootstrap: fn}, Options{Cache: cache})

	errA := async(func() error { return c.SetSession(context.Background(), session("u1")) })
	<-started
	require.NoError(t, c.SetSession(context.Background(), nil))

	close(gates[0])
	require.NoError(t, <-errA)
	_, err := cache.Load(CacheKey("v1", "u1"))
	assert.ErrorIs(t, err, storage.ErrMiss)
}
