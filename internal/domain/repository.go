package domain

import (
	"context"
	"time"
)

// Flag names the independently toggleable conversation flags.
type Flag string

const (
	FlagStarred  Flag = "starred"
	FlagArchived Flag = "archived"
	FlagPinned   Flag = "pinned"
)

// ConversationAPI is the external REST surface the engine consumes. All
// mutations are atomic from the client's point of view: on error nothing is
// applied locally, and on success the caller invalidates and refetches.
type ConversationAPI interface {
	ListConversations(ctx context.Context, scope Scope) ([]*Conversation, error)
	Takeover(ctx context.Context, conversationID int64) error
	SetFlag(ctx context.Context, conversationID int64, flag Flag, value bool) error
	SendMessage(ctx context.Context, conversationID int64, content string) error
	ShareSchedule(ctx context.Context, conversationID int64) error
}

// PreferenceRepository persists small operator UI preferences.
type PreferenceRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// SnapshotRepository persists the last successfully fetched list per scope,
// so a restart can render something before the first fetch completes.
type SnapshotRepository interface {
	Load(ctx context.Context, scopeKey string) ([]*Conversation, time.Time, error)
	Save(ctx context.Context, scopeKey string, convs []*Conversation) error
}

// ConversationStore is the persistence surface of the dev simulator.
type ConversationStore interface {
	List(ctx context.Context, scope Scope) ([]*Conversation, error)
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	Create(ctx context.Context, c *Conversation) error
	SetControlMode(ctx context.Context, id int64, mode ControlMode) error
	SetFlag(ctx context.Context, id int64, flag Flag, value bool) error
	RecordMessage(ctx context.Context, id int64, content, sender string, at time.Time, inbound bool) error
}

// OperatorRepository holds the simulator's login accounts.
type OperatorRepository interface {
	Create(ctx context.Context, username, hashedPassword string) error
	GetHashedPassword(ctx context.Context, username string) (string, error)
}
