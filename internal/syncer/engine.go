package syncer

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"console_go/internal/domain"
	"console_go/internal/transport"
)

// Snapshot is an immutable view of the engine's state for the current scope.
// Subscribers receive a new Snapshot on every state change; the conversation
// slice must not be mutated.
type Snapshot struct {
	Scope         domain.Scope
	Conversations []*domain.Conversation
	Err           error
	Stale         bool
	Fetching      bool
	// Loaded is true once this scope has completed at least one successful
	// fetch. A stale entry restored from disk does not count: consumers that
	// need "the server's answer for this scope" (deep-link resolution) wait
	// for Loaded.
	Loaded bool
	Conn   transport.Status
}

// Engine is the single source of truth for "conversations matching the
// current scope". All refresh triggers (monitor events, the poll backstop,
// successful mutations, scope switches, reconnects) converge on one
// capacity-1 invalidation channel, so triggers arriving while a refetch is in
// flight coalesce into exactly one follow-up refetch.
//
// The engine never mutates conversation content locally: mutations go to the
// API and, on success, invalidate; list content only ever comes from refetch.
type Engine struct {
	api       domain.ConversationAPI
	snapshots domain.SnapshotRepository // optional offline cache
	poll      time.Duration

	invalidate chan struct{}

	mu       sync.Mutex
	scope    domain.Scope
	cache    map[string][]*domain.Conversation
	stale    map[string]bool
	loaded   map[string]bool
	fetchErr error
	fetching bool
	conn     transport.Status
	subs     map[int]chan Snapshot
	nextSub  int
}

func New(api domain.ConversationAPI, snapshots domain.SnapshotRepository, scope domain.Scope, poll time.Duration) *Engine {
	if poll <= 0 {
		poll = 10 * time.Second
	}
	return &Engine{
		api:        api,
		snapshots:  snapshots,
		poll:       poll,
		invalidate: make(chan struct{}, 1),
		scope:      scope,
		cache:      make(map[string][]*domain.Conversation),
		stale:      make(map[string]bool),
		loaded:     make(map[string]bool),
		subs:       make(map[int]chan Snapshot),
	}
}

// Invalidate requests a refetch. Safe from any goroutine; concurrent requests
// collapse into the single pending slot.
func (e *Engine) Invalidate() {
	select {
	case e.invalidate <- struct{}{}:
	default:
	}
}

// Scope returns the current scope.
func (e *Engine) Scope() domain.Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scope
}

// SetScope switches the conversation-list scope. A previously fetched entry
// for the scope is served immediately (marked stale), never an entry from a
// different scope; a refetch is always scheduled.
func (e *Engine) SetScope(ctx context.Context, scope domain.Scope) {
	e.mu.Lock()
	if scope == e.scope {
		e.mu.Unlock()
		return
	}
	e.scope = scope
	e.fetchErr = nil
	key := scope.Key()
	_, cached := e.cache[key]
	if cached {
		e.stale[key] = true
	}
	e.mu.Unlock()

	if !cached {
		e.loadPersisted(ctx, scope)
	}
	e.notify()
	e.Invalidate()
}

// Subscribe registers a snapshot listener. The returned channel always holds
// at most the latest snapshot (older unread values are replaced). Call the
// cancel func to unsubscribe.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan Snapshot, 1)
	e.subs[id] = ch
	snap := e.snapshotLocked()
	e.mu.Unlock()

	ch <- snap
	return ch, func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Current returns the latest snapshot without subscribing.
func (e *Engine) Current() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Run drives the refetch loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.loadPersisted(ctx, e.Scope())
	e.notify()
	e.Invalidate()

	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Poll backstop: correctness does not depend on the socket.
			e.Invalidate()
		case <-e.invalidate:
			e.refetch(ctx)
		}
	}
}

// Pump forwards transport events and status changes into the engine until
// ctx is cancelled or both channels close.
func (e *Engine) Pump(ctx context.Context, events <-chan domain.Event, status <-chan transport.Status) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			_ = ev // payload is only a trigger; refetch reconciles state
			e.Invalidate()
		case st, ok := <-status:
			if !ok {
				status = nil
				continue
			}
			e.setConnStatus(st)
		}
		if events == nil && status == nil {
			return
		}
	}
}

func (e *Engine) setConnStatus(s transport.Status) {
	e.mu.Lock()
	changed := e.conn != s
	e.conn = s
	e.mu.Unlock()
	if changed {
		e.notify()
	}
}

func (e *Engine) refetch(ctx context.Context) {
	e.mu.Lock()
	scope := e.scope
	e.fetching = true
	e.mu.Unlock()
	e.notify()

	list, err := e.api.ListConversations(ctx, scope)

	e.mu.Lock()
	e.fetching = false
	if err != nil {
		// Keep serving the previous entry; surface the error alongside it.
		e.fetchErr = err
	} else {
		e.fetchErr = nil
		e.cache[scope.Key()] = list
		e.stale[scope.Key()] = false
		e.loaded[scope.Key()] = true
	}
	e.mu.Unlock()
	e.notify()

	if err == nil && e.snapshots != nil {
		if serr := e.snapshots.Save(ctx, scope.Key(), list); serr != nil {
			log.Printf("syncer: persist snapshot: %v", serr)
		}
	}
}

func (e *Engine) loadPersisted(ctx context.Context, scope domain.Scope) {
	if e.snapshots == nil {
		return
	}
	key := scope.Key()
	e.mu.Lock()
	_, cached := e.cache[key]
	e.mu.Unlock()
	if cached {
		return
	}
	convs, _, err := e.snapshots.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("syncer: load snapshot: %v", err)
		}
		return
	}
	e.mu.Lock()
	if _, ok := e.cache[key]; !ok {
		e.cache[key] = convs
		e.stale[key] = true
	}
	e.mu.Unlock()
}

func (e *Engine) snapshotLocked() Snapshot {
	key := e.scope.Key()
	return Snapshot{
		Scope:         e.scope,
		Conversations: e.cache[key],
		Err:           e.fetchErr,
		Stale:         e.stale[key],
		Fetching:      e.fetching,
		Loaded:        e.loaded[key],
		Conn:          e.conn,
	}
}

func (e *Engine) notify() {
	e.mu.Lock()
	snap := e.snapshotLocked()
	subs := make([]chan Snapshot, 0, len(e.subs))
	for _, ch := range e.subs {
		subs = append(subs, ch)
	}
	e.mu.Unlock()

	for _, ch := range subs {
		// Latest wins: replace an unread older snapshot instead of blocking.
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Takeover switches the conversation from AI to human control. On success the
// list is invalidated so the mode indicator updates on the next render.
func (e *Engine) Takeover(ctx context.Context, conversationID int64) error {
	if err := e.api.Takeover(ctx, conversationID); err != nil {
		return err
	}
	e.Invalidate()
	return nil
}

// SetFlag toggles starred/archived/pinned and invalidates on success.
func (e *Engine) SetFlag(ctx context.Context, conversationID int64, flag domain.Flag, value bool) error {
	if err := e.api.SetFlag(ctx, conversationID, flag, value); err != nil {
		return err
	}
	e.Invalidate()
	return nil
}

// SendMessage sends a manual operator message. The outgoing message is not
// appended locally; the refetch after invalidation reflects it.
func (e *Engine) SendMessage(ctx context.Context, conversationID int64, content string) error {
	if err := e.api.SendMessage(ctx, conversationID, content); err != nil {
		return err
	}
	e.Invalidate()
	return nil
}

// ShareSchedule pushes the booking link into the conversation.
func (e *Engine) ShareSchedule(ctx context.Context, conversationID int64) error {
	if err := e.api.ShareSchedule(ctx, conversationID); err != nil {
		return err
	}
	e.Invalidate()
	return nil
}
