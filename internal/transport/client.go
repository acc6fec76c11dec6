package transport

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"console_go/internal/domain"
)

// Status is the connection state surfaced to the UI.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// TokenFunc supplies a bearer token for the websocket handshake.
type TokenFunc func(ctx context.Context) (string, error)

// envelope is the wire shape of a monitor event.
type envelope struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	PhoneLineID    *int64 `json:"phone_line_id,omitempty"`
}

// Client maintains one realtime connection to the monitoring channel for the
// lifetime of a Run call. Inbound events are translated into invalidation
// signals; the client never patches conversation state itself.
//
// Reconnects use exponential backoff (doubling between backoffMin and
// backoffMax, reset after a stable minute). Each successful join emits a
// synthetic conversation_updated event so anything missed while disconnected
// is covered by the resulting refetch.
type Client struct {
	wsURL      string
	tokenFn    TokenFunc
	sessionID  string
	backoffMin time.Duration
	backoffMax time.Duration

	events chan domain.Event
	status chan Status
}

const stableReset = 60 * time.Second

func New(wsURL string, tokenFn TokenFunc, backoffMin, backoffMax time.Duration) *Client {
	if backoffMin <= 0 {
		backoffMin = 2 * time.Second
	}
	if backoffMax < backoffMin {
		backoffMax = 30 * time.Second
	}
	return &Client{
		wsURL:      wsURL,
		tokenFn:    tokenFn,
		sessionID:  uuid.NewString(),
		backoffMin: backoffMin,
		backoffMax: backoffMax,
		events:     make(chan domain.Event, 16),
		status:     make(chan Status, 4),
	}
}

// Events delivers decoded monitor events. The channel is buffered; if the
// consumer falls behind, events are dropped; they are only refetch hints and
// the poll backstop covers the loss.
func (c *Client) Events() <-chan domain.Event {
	return c.events
}

// StatusChanges delivers connection state transitions.
func (c *Client) StatusChanges() <-chan Status {
	return c.status
}

// Run connects and processes events until ctx is cancelled. The connection is
// scoped to this call: cancelling ctx leaves the monitoring room, closes the
// socket, and returns nil.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.backoffMin
	for {
		connectedAt := time.Now()
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			c.publishStatus(StatusDisconnected)
			return nil
		}
		if time.Since(connectedAt) > stableReset {
			backoff = c.backoffMin
		}
		c.publishStatus(StatusReconnecting)
		log.Printf("transport: disconnected: %v, reconnecting in %s", err, backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			c.publishStatus(StatusDisconnected)
			return nil
		}
		backoff *= 2
		if backoff > c.backoffMax {
			backoff = c.backoffMax
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	tok, err := c.tokenFn(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		// Token travels in the subprotocol list; some proxies strip the
		// Authorization header on upgrade requests.
		Subprotocols: []string{"bearer", tok},
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the socket when ctx is cancelled so ReadJSON unblocks.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteJSON(map[string]any{"type": "leave_monitoring", "session_id": c.sessionID})
			conn.Close()
		case <-watchDone:
		}
	}()

	if err := conn.WriteJSON(map[string]any{"type": "join_monitoring", "session_id": c.sessionID}); err != nil {
		return err
	}
	c.publishStatus(StatusConnected)
	// Events may have been missed while disconnected; one refetch covers them.
	c.publishEvent(domain.Event{Kind: domain.EventConversationUpdated})

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		kind := domain.ParseEventKind(env.Type)
		switch kind {
		case domain.EventNewMessage, domain.EventConversationUpdated, domain.EventControlModeChanged:
			c.publishEvent(domain.Event{
				Kind:           kind,
				ConversationID: env.ConversationID,
				PhoneLineID:    env.PhoneLineID,
			})
		case domain.EventUnknown:
			log.Printf("transport: unknown event type %q", env.Type)
		}
	}
}

func (c *Client) publishEvent(ev domain.Event) {
	select {
	case c.events <- ev:
	default:
	}
}

func (c *Client) publishStatus(s Status) {
	select {
	case c.status <- s:
	default:
	}
}
