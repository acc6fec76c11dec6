package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"console_go/internal/domain"
)

type fakeAPI struct {
	mu     sync.Mutex
	lists  int
	gate   chan struct{} // when set, ListConversations blocks until a value arrives
	list   []*domain.Conversation
	err    error
	scopes []domain.Scope

	takeoverErr error
	mutations   []string
}

func (f *fakeAPI) ListConversations(ctx context.Context, scope domain.Scope) ([]*domain.Conversation, error) {
	f.mu.Lock()
	f.lists++
	f.scopes = append(f.scopes, scope)
	gate, list, err := f.gate, f.list, f.err
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return list, err
}

func (f *fakeAPI) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeAPI) setList(list []*domain.Conversation, err error) {
	f.mu.Lock()
	f.list = list
	f.err = err
	f.mu.Unlock()
}

func (f *fakeAPI) record(verb string, err error) error {
	f.mu.Lock()
	f.mutations = append(f.mutations, verb)
	f.mu.Unlock()
	return err
}

func (f *fakeAPI) Takeover(ctx context.Context, id int64) error {
	return f.record("takeover", f.takeoverErr)
}

func (f *fakeAPI) SetFlag(ctx context.Context, id int64, flag domain.Flag, value bool) error {
	return f.record("flag", nil)
}

func (f *fakeAPI) SendMessage(ctx context.Context, id int64, content string) error {
	return f.record("send", nil)
}

func (f *fakeAPI) ShareSchedule(ctx context.Context, id int64) error {
	return f.record("share", nil)
}

type fakeSnapshots struct {
	mu    sync.Mutex
	saved map[string][]*domain.Conversation
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{saved: make(map[string][]*domain.Conversation)}
}

func (f *fakeSnapshots) Load(ctx context.Context, key string) ([]*domain.Conversation, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	convs, ok := f.saved[key]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	return convs, time.Now(), nil
}

func (f *fakeSnapshots) Save(ctx context.Context, key string, convs []*domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[key] = convs
	return nil
}

func activeScope() domain.Scope {
	return domain.Scope{Status: domain.StatusActive}
}

func TestRefetchPopulatesCache(t *testing.T) {
	api := &fakeAPI{list: []*domain.Conversation{conv(1, "jane", domain.PlatformSMS, time.Minute)}}
	e := New(api, nil, activeScope(), time.Hour)

	e.refetch(context.Background())

	snap := e.Current()
	require.Len(t, snap.Conversations, 1)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.Stale)
	assert.False(t, snap.Fetching)
	assert.True(t, snap.Loaded)
}

func TestLoadedOnlyAfterSuccessfulFetchForThatScope(t *testing.T) {
	api := &fakeAPI{}
	e := New(api, nil, activeScope(), time.Hour)

	assert.False(t, e.Current().Loaded)

	api.setList(nil, errors.New("upstream down"))
	e.refetch(context.Background())
	assert.False(t, e.Current().Loaded)

	// An empty result is still a completed fetch.
	api.setList([]*domain.Conversation{}, nil)
	e.refetch(context.Background())
	assert.True(t, e.Current().Loaded)

	// Loaded is per scope; a fresh scope starts over.
	e.SetScope(context.Background(), domain.Scope{Status: domain.StatusArchived})
	assert.False(t, e.Current().Loaded)
}

func TestRefetchErrorKeepsPreviousData(t *testing.T) {
	api := &fakeAPI{list: []*domain.Conversation{conv(1, "jane", domain.PlatformSMS, time.Minute)}}
	e := New(api, nil, activeScope(), time.Hour)
	e.refetch(context.Background())

	api.setList(nil, errors.New("upstream down"))
	e.refetch(context.Background())

	snap := e.Current()
	assert.Error(t, snap.Err)
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, int64(1), snap.Conversations[0].ID)

	// Recovery clears the error.
	api.setList([]*domain.Conversation{conv(2, "bob", domain.PlatformSMS, time.Minute)}, nil)
	e.refetch(context.Background())
	snap = e.Current()
	assert.NoError(t, snap.Err)
	assert.Equal(t, int64(2), snap.Conversations[0].ID)
}

func TestInvalidationsCoalesceWhileRefetchInFlight(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAPI{gate: gate}
	e := New(api, nil, activeScope(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return api.listCalls() == 1 }, time.Second, time.Millisecond)

	// A burst of triggers while the first fetch is still in flight.
	for i := 0; i < 5; i++ {
		e.Invalidate()
	}

	gate <- struct{}{}

	// Exactly one follow-up refetch, not five.
	require.Eventually(t, func() bool { return api.listCalls() == 2 }, time.Second, time.Millisecond)
	gate <- struct{}{}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, api.listCalls())

	cancel()
	<-done
}

func TestMutationInvalidatesOnlyOnSuccess(t *testing.T) {
	api := &fakeAPI{takeoverErr: domain.ErrInvalidTransition}
	e := New(api, nil, activeScope(), time.Hour)

	err := e.Takeover(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	select {
	case <-e.invalidate:
		t.Fatal("failed mutation must not schedule a refetch")
	default:
	}

	api.takeoverErr = nil
	require.NoError(t, e.Takeover(context.Background(), 7))
	select {
	case <-e.invalidate:
	default:
		t.Fatal("successful mutation must schedule a refetch")
	}
}

func TestSetScopeNeverServesAnotherScopesEntry(t *testing.T) {
	line1 := int64(1)
	scope1 := domain.Scope{Status: domain.StatusActive, PhoneLineID: &line1}
	line2 := int64(2)
	scope2 := domain.Scope{Status: domain.StatusActive, PhoneLineID: &line2}

	api := &fakeAPI{list: []*domain.Conversation{conv(1, "line one", domain.PlatformSMS, time.Minute)}}
	e := New(api, nil, scope1, time.Hour)
	e.refetch(context.Background())

	api.setList([]*domain.Conversation{conv(2, "line two", domain.PlatformSMS, time.Minute)}, nil)
	e.SetScope(context.Background(), scope2)

	// Before the new scope's fetch lands there is no data, never line one's.
	snap := e.Current()
	assert.Empty(t, snap.Conversations)

	e.refetch(context.Background())
	snap = e.Current()
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, int64(2), snap.Conversations[0].ID)

	// Switching back serves the previously fetched entry, marked stale.
	e.SetScope(context.Background(), scope1)
	snap = e.Current()
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, int64(1), snap.Conversations[0].ID)
	assert.True(t, snap.Stale)
}

func TestSetScopeSameScopeIsNoop(t *testing.T) {
	e := New(&fakeAPI{}, nil, activeScope(), time.Hour)
	e.SetScope(context.Background(), activeScope())
	select {
	case <-e.invalidate:
		t.Fatal("unchanged scope must not schedule a refetch")
	default:
	}
}

func TestPersistedSnapshotServedStaleOnStartup(t *testing.T) {
	snaps := newFakeSnapshots()
	key := activeScope().Key()
	snaps.saved[key] = []*domain.Conversation{conv(9, "restored", domain.PlatformSMS, time.Hour)}

	e := New(&fakeAPI{}, snaps, activeScope(), time.Hour)
	e.loadPersisted(context.Background(), activeScope())

	snap := e.Current()
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, int64(9), snap.Conversations[0].ID)
	assert.True(t, snap.Stale)
	assert.False(t, snap.Loaded)
}

func TestRefetchPersistsSnapshot(t *testing.T) {
	snaps := newFakeSnapshots()
	api := &fakeAPI{list: []*domain.Conversation{conv(1, "jane", domain.PlatformSMS, time.Minute)}}
	e := New(api, snaps, activeScope(), time.Hour)

	e.refetch(context.Background())

	snaps.mu.Lock()
	defer snaps.mu.Unlock()
	assert.Len(t, snaps.saved[activeScope().Key()], 1)
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	api := &fakeAPI{list: []*domain.Conversation{conv(1, "jane", domain.PlatformSMS, time.Minute)}}
	e := New(api, nil, activeScope(), time.Hour)

	ch, cancel := e.Subscribe()
	defer cancel()

	// The initial snapshot arrives immediately.
	snap := <-ch
	assert.Empty(t, snap.Conversations)

	// A slow subscriber sees only the newest state, not every intermediate.
	e.refetch(context.Background())
	api.setList([]*domain.Conversation{conv(2, "bob", domain.PlatformSMS, time.Minute)}, nil)
	e.refetch(context.Background())

	var last Snapshot
	for {
		select {
		case last = <-ch:
			continue
		default:
		}
		break
	}
	require.Len(t, last.Conversations, 1)
	assert.Equal(t, int64(2), last.Conversations[0].ID)
}
