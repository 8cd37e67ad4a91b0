package selection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner-agent/internal/api"
	"planner-agent/internal/auth"
	"planner-agent/internal/auth/credentials"
	"planner-agent/internal/session"
	"planner-agent/internal/storage"
	"planner-agent/internal/wedding"
)

const (
	testToken = "t1"
	waitFor   = 2 * time.Second
	tick      = 5 * time.Millisecond
)

var (
	e1 = wedding.Wedding{ID: "w1", BrideName: "Ana", GroomName: "Ben", WeddingDate: "2026-05-01"}
	e2 = wedding.Wedding{ID: "w2", BrideName: "Cy", GroomName: "Di", WeddingDate: "2026-07-04"}
	e3 = wedding.Wedding{ID: "w3", BrideName: "Ed", GroomName: "Fa", WeddingDate: "2026-09-12"}
)

// fakeFetcher returns a scripted list. Each call may be held back by a gate.
type fakeFetcher struct {
	mu    sync.Mutex
	list  []wedding.Wedding
	err   error
	calls int
	gates []chan struct{}
}

func (f *fakeFetcher) ListWeddings(ctx context.Context) ([]wedding.Wedding, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	var gate chan struct{}
	if idx < len(f.gates) {
		gate = f.gates[idx]
	}
	list, err := f.list, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]wedding.Wedding, len(list))
	copy(out, list)
	return out, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newLoaded(t *testing.T, list []wedding.Wedding, savedID string) (*Store, *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	durable := storage.NewMemoryStore()
	require.NoError(t, durable.Set(ctx, storage.KeyToken, testToken))
	if savedID != "" {
		require.NoError(t, durable.Set(ctx, storage.KeySelectedWedding, savedID))
	}
	s := New(&fakeFetcher{list: list}, durable)
	s.Load(ctx)
	return s, durable
}

func storedSelection(t *testing.T, durable storage.Store) (string, bool) {
	t.Helper()
	v, ok, err := durable.Get(context.Background(), storage.KeySelectedWedding)
	require.NoError(t, err)
	return v, ok
}

func TestNew_StartsLoadingAndEmpty(t *testing.T) {
	s := New(&fakeFetcher{}, storage.NewMemoryStore())
	st := s.Snapshot()
	assert.True(t, st.Loading)
	assert.Empty(t, st.Weddings)
	assert.Nil(t, st.Active)
}

func TestLoad_NoTokenShortCircuits(t *testing.T) {
	fetcher := &fakeFetcher{list: []wedding.Wedding{e1}}
	s := New(fetcher, storage.NewMemoryStore())

	s.Load(context.Background())

	st := s.Snapshot()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Weddings)
	assert.Nil(t, st.Active)
	assert.Zero(t, fetcher.callCount(), "no network call without a token")
}

func TestLoad_DefaultsToFirst(t *testing.T) {
	s, _ := newLoaded(t, []wedding.Wedding{e1, e2, e3}, "")

	st := s.Snapshot()
	assert.False(t, st.Loading)
	assert.Equal(t, []wedding.Wedding{e1, e2, e3}, st.Weddings)
	require.NotNil(t, st.Active)
	assert.Equal(t, e1, *st.Active)
}

func TestLoad_UnknownSavedIDFallsBackToFirst(t *testing.T) {
	s, _ := newLoaded(t, []wedding.Wedding{e1, e2, e3}, "deleted-elsewhere")

	st := s.Snapshot()
	require.NotNil(t, st.Active)
	assert.Equal(t, e1, *st.Active)
}

func TestLoad_RestoresSavedSelection(t *testing.T) {
	s, _ := newLoaded(t, []wedding.Wedding{e1, e2, e3}, e2.ID)

	st := s.Snapshot()
	require.NotNil(t, st.Active)
	assert.Equal(t, e2, *st.Active)
}

func TestLoad_EmptyList(t *testing.T) {
	s, _ := newLoaded(t, []wedding.Wedding{}, e2.ID)

	st := s.Snapshot()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Weddings)
	assert.Nil(t, st.Active)
}

func TestLoad_FailureSettlesEmpty(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemoryStore()
	require.NoError(t, durable.Set(ctx, storage.KeyToken, testToken))
	fetcher := &fakeFetcher{list: []wedding.Wedding{e1}}
	s := New(fetcher, durable)
	s.Load(ctx)
	require.NotNil(t, s.Snapshot().Active)

	fetcher.mu.Lock()
	fetcher.err = &api.Error{Status: 500}
	fetcher.mu.Unlock()
	s.Reload(ctx)

	st := s.Snapshot()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Weddings)
	assert.Nil(t, st.Active)
	assert.Contains(t, st.Err, "500")

	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.mu.Unlock()
	s.Reload(ctx)
	assert.Empty(t, s.Snapshot().Err, "a successful load clears the error")
}

func TestSelect_PersistsAndClears(t *testing.T) {
	s, durable := newLoaded(t, []wedding.Wedding{e1, e2, e3}, "")
	ctx := context.Background()

	s.Select(ctx, &e3)
	require.NotNil(t, s.Snapshot().Active)
	assert.Equal(t, e3, *s.Snapshot().Active)
	id, ok := storedSelection(t, durable)
	assert.True(t, ok)
	assert.Equal(t, e3.ID, id)

	s.Select(ctx, nil)
	assert.Nil(t, s.Snapshot().Active)
	_, ok = storedSelection(t, durable)
	assert.False(t, ok)
}

func TestSelectByID(t *testing.T) {
	s, durable := newLoaded(t, []wedding.Wedding{e1, e2}, "")
	ctx := context.Background()

	got, ok := s.SelectByID(ctx, e2.ID)
	assert.True(t, ok)
	assert.Equal(t, e2, got)
	id, _ := storedSelection(t, durable)
	assert.Equal(t, e2.ID, id)

	_, ok = s.SelectByID(ctx, "nope")
	assert.False(t, ok)
	assert.Equal(t, e2, *s.Snapshot().Active, "unknown id changes nothing")
}

func TestAdd_PrependsAndSelects(t *testing.T) {
	s, durable := newLoaded(t, []wedding.Wedding{e1, e2}, "")
	created := wedding.Wedding{ID: "w9", BrideName: "New", GroomName: "Pair"}

	s.Add(context.Background(), created)

	st := s.Snapshot()
	require.Len(t, st.Weddings, 3)
	assert.Equal(t, created, st.Weddings[0])
	require.NotNil(t, st.Active)
	assert.Equal(t, created, *st.Active)
	id, _ := storedSelection(t, durable)
	assert.Equal(t, "w9", id)
}

func TestRemove_ActiveReassignsToFirst(t *testing.T) {
	s, durable := newLoaded(t, []wedding.Wedding{e1, e2, e3}, "")
	ctx := context.Background()
	require.Equal(t, e1, *s.Snapshot().Active)

	s.Remove(ctx, e1.ID)

	st := s.Snapshot()
	assert.Equal(t, []wedding.Wedding{e2, e3}, st.Weddings)
	require.NotNil(t, st.Active)
	assert.Equal(t, e2, *st.Active)
	id, _ := storedSelection(t, durable)
	assert.Equal(t, e2.ID, id)
}

func TestRemove_InactiveKeepsSelection(t *testing.T) {
	s, _ := newLoaded(t, []wedding.Wedding{e1, e2, e3}, e3.ID)

	s.Remove(context.Background(), e2.ID)

	st := s.Snapshot()
	assert.Equal(t, []wedding.Wedding{e1, e3}, st.Weddings)
	assert.Equal(t, e3, *st.Active)
}

func TestRemove_LastLeavesNothing(t *testing.T) {
	s, durable := newLoaded(t, []wedding.Wedding{e1}, "")

	s.Remove(context.Background(), e1.ID)

	st := s.Snapshot()
	assert.Empty(t, st.Weddings)
	assert.Nil(t, st.Active)
	_, ok := storedSelection(t, durable)
	assert.False(t, ok)
}

func TestUpdate_ReplacesByIDWithoutReordering(t *testing.T) {
	s, _ := newLoaded(t, []wedding.Wedding{e1, e2, e3}, e2.ID)
	changed := wedding.Wedding{ID: e2.ID, BrideName: "Cy", GroomName: "Dee", Venue: "Old Mill"}

	s.Update(context.Background(), changed)

	st := s.Snapshot()
	assert.Equal(t, []wedding.Wedding{e1, changed, e3}, st.Weddings)
	require.NotNil(t, st.Active)
	assert.Equal(t, changed, *st.Active)
}

func TestUpdate_InactiveLeavesActive(t *testing.T) {
	s, _ := newLoaded(t, []wedding.Wedding{e1, e2}, e1.ID)
	changed := wedding.Wedding{ID: e2.ID, BrideName: "Changed"}

	s.Update(context.Background(), changed)

	st := s.Snapshot()
	assert.Equal(t, changed, st.Weddings[1])
	assert.Equal(t, e1, *st.Active)
}

func TestSnapshot_IsACopy(t *testing.T) {
	s, _ := newLoaded(t, []wedding.Wedding{e1, e2}, "")

	st := s.Snapshot()
	st.Weddings[0].BrideName = "mutated"
	st.Active.BrideName = "mutated"

	again := s.Snapshot()
	assert.Equal(t, e1, again.Weddings[0])
	assert.Equal(t, e1, *again.Active)
}

func TestOnAuthTransition_LogoutClearsWithoutNetwork(t *testing.T) {
	s, durable := newLoaded(t, []wedding.Wedding{e1, e2}, e2.ID)
	fetcher := s.fetcher.(*fakeFetcher)
	calls := fetcher.callCount()

	s.OnAuthTransition(context.Background(), session.Transition{Authenticated: false, Reason: session.ReasonLogout})

	st := s.Snapshot()
	assert.Empty(t, st.Weddings)
	assert.Nil(t, st.Active)
	assert.False(t, st.Loading)
	assert.Equal(t, calls, fetcher.callCount())
	_, ok := storedSelection(t, durable)
	assert.False(t, ok)
}

func TestLoad_LastSignalWins(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemoryStore()
	require.NoError(t, durable.Set(ctx, storage.KeyToken, testToken))

	slow := make(chan struct{})
	fetcher := &fakeFetcher{list: []wedding.Wedding{e1}, gates: []chan struct{}{slow}}
	s := New(fetcher, durable)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Load(ctx)
	}()
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, waitFor, tick)

	// A logout arrives while the first fetch is still in flight.
	s.OnAuthTransition(ctx, session.Transition{Authenticated: false})
	close(slow)
	<-done

	st := s.Snapshot()
	assert.Empty(t, st.Weddings, "superseded fetch must not land")
	assert.Nil(t, st.Active)
	assert.False(t, st.Loading)
}

// startGatedLoad runs Load in the background with its fetch held until the
// returned release func is called. release waits for Load to return.
func startGatedLoad(t *testing.T, list []wedding.Wedding, savedID string) (*Store, *storage.MemoryStore, func()) {
	t.Helper()
	ctx := context.Background()
	durable := storage.NewMemoryStore()
	require.NoError(t, durable.Set(ctx, storage.KeyToken, testToken))
	if savedID != "" {
		require.NoError(t, durable.Set(ctx, storage.KeySelectedWedding, savedID))
	}

	gate := make(chan struct{})
	fetcher := &fakeFetcher{list: list, gates: []chan struct{}{gate}}
	s := New(fetcher, durable)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Load(ctx)
	}()
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, waitFor, tick)

	return s, durable, func() {
		close(gate)
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("load did not finish")
		}
	}
}

func TestLoad_KeepsAddMadeDuringFetch(t *testing.T) {
	s, durable, release := startGatedLoad(t, []wedding.Wedding{e1, e2}, "")

	s.Add(context.Background(), e3)
	release()

	st := s.Snapshot()
	require.Equal(t, []wedding.Wedding{e3, e1, e2}, st.Weddings)
	require.NotNil(t, st.Active)
	assert.Equal(t, e3.ID, st.Active.ID)
	assert.False(t, st.Loading)
	id, _ := storedSelection(t, durable)
	assert.Equal(t, e3.ID, id)
}

func TestLoad_AddAlreadyInFetchedList(t *testing.T) {
	s, durable, release := startGatedLoad(t, []wedding.Wedding{e1, e2, e3}, "")

	s.Add(context.Background(), e3)
	release()

	st := s.Snapshot()
	assert.Equal(t, []wedding.Wedding{e3, e1, e2}, st.Weddings, "no duplicate")
	assert.Equal(t, e3.ID, st.Active.ID)
	id, _ := storedSelection(t, durable)
	assert.Equal(t, e3.ID, id)
}

func TestLoad_KeepsRemoveMadeDuringFetch(t *testing.T) {
	s, durable, release := startGatedLoad(t, []wedding.Wedding{e1, e2, e3}, e1.ID)

	s.Remove(context.Background(), e1.ID)
	release()

	st := s.Snapshot()
	assert.Equal(t, []wedding.Wedding{e2, e3}, st.Weddings)
	require.NotNil(t, st.Active)
	assert.Equal(t, e2.ID, st.Active.ID)
	id, _ := storedSelection(t, durable)
	assert.Equal(t, e2.ID, id)
}

func TestLoad_KeepsUpdateAndSelectMadeDuringFetch(t *testing.T) {
	s, durable, release := startGatedLoad(t, []wedding.Wedding{e1, e2}, "")
	ctx := context.Background()
	changed := e2
	changed.Venue = "Old Mill"

	s.Select(ctx, &e2)
	s.Update(ctx, changed)
	release()

	st := s.Snapshot()
	assert.Equal(t, []wedding.Wedding{e1, changed}, st.Weddings)
	require.NotNil(t, st.Active)
	assert.Equal(t, changed, *st.Active)
	id, _ := storedSelection(t, durable)
	assert.Equal(t, e2.ID, id)
}

func TestLoad_NewerLoadCancelsOlder(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemoryStore()
	require.NoError(t, durable.Set(ctx, storage.KeyToken, testToken))

	never := make(chan struct{})
	fetcher := &fakeFetcher{list: []wedding.Wedding{e1, e2}, gates: []chan struct{}{never}}
	s := New(fetcher, durable)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Load(ctx)
	}()
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, waitFor, tick)

	s.Load(ctx)

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("older load was not cancelled")
	}

	st := s.Snapshot()
	assert.Equal(t, []wedding.Wedding{e1, e2}, st.Weddings)
	assert.False(t, st.Loading)
}

// backend is a session.Authenticator that always logs in as a couple.
type backend struct{}

func (backend) Login(context.Context, credentials.Credentials) (*api.AuthResponse, error) {
	return &api.AuthResponse{Token: testToken, User: auth.User{ID: "u1", Name: "A", Role: auth.RoleCouple}}, nil
}

func (backend) Register(context.Context, credentials.Registration) (*api.RegisterResponse, error) {
	return &api.RegisterResponse{Success: true}, nil
}

func (backend) Profile(context.Context) (*auth.User, error) {
	return nil, errors.New("not used")
}

func TestSession_LoginScenario(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemoryStore()
	sess := session.New(backend{}, durable)
	fetcher := &fakeFetcher{list: []wedding.Wedding{}}
	sel := New(fetcher, durable)
	sess.Subscribe(sel)
	sess.Initialize(ctx)
	sel.Load(ctx)
	require.Zero(t, fetcher.callCount())

	_, err := sess.Login(ctx, credentials.Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.callCount(), "the transition triggered exactly one load")
	st := sel.Snapshot()
	assert.Empty(t, st.Weddings)
	assert.Nil(t, st.Active)
	assert.False(t, st.Loading)
}

func TestSession_LogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemoryStore()
	sess := session.New(backend{}, durable)
	sel := New(&fakeFetcher{list: []wedding.Wedding{e1, e2, e3}}, durable)
	sess.Subscribe(sel)
	sess.Initialize(ctx)

	_, err := sess.Login(ctx, credentials.Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	sel.Select(ctx, &e2)
	require.Len(t, sel.Snapshot().Weddings, 3)

	require.NoError(t, sess.Logout(ctx))

	ss := sess.Snapshot()
	assert.Empty(t, ss.Token)
	assert.Nil(t, ss.User)
	assert.Empty(t, ss.Role)

	st := sel.Snapshot()
	assert.Empty(t, st.Weddings)
	assert.Nil(t, st.Active)

	for _, key := range []string{storage.KeyToken, storage.KeyRole, storage.KeySelectedWedding} {
		assert.False(t, storage.Has(ctx, durable, key), "durable %s should be gone", key)
	}
}
