package domain

import (
	"strconv"
	"time"
)

// Platform identifies the channel a conversation arrived on.
type Platform string

const (
	PlatformSMS       Platform = "sms"
	PlatformWeb       Platform = "web"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformEmail     Platform = "email"
)

// Platforms lists all known platforms in display order.
var Platforms = []Platform{PlatformSMS, PlatformWeb, PlatformFacebook, PlatformInstagram, PlatformEmail}

// CategoryAll is the category filter value that passes every platform.
const CategoryAll = "all"

// ControlMode says which actor is currently allowed to send on a thread.
// Exactly one mode applies at a time; the only legal transition from
// ControlAI is to ControlHuman (takeover).
type ControlMode string

const (
	ControlAI    ControlMode = "ai"
	ControlHuman ControlMode = "human"
)

// Status filter values accepted by the conversation list endpoint.
const (
	StatusActive    = "active"
	StatusArchived  = "archived"
	StatusAttention = "needs_attention"
)

// LatestMessage is the denormalized preview shown in the list. It may lag
// the true last message until the next refetch.
type LatestMessage struct {
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a customer thread. Conversations are created server-side
// on first inbound contact; clients only read and patch them.
type Conversation struct {
	ID                  int64          `db:"id" json:"id"`
	CustomerPhone       string         `db:"customer_phone" json:"customer_phone"`
	CustomerName        *string        `db:"customer_name" json:"customer_name,omitempty"`
	Platform            Platform       `db:"platform" json:"platform"`
	ControlMode         ControlMode    `db:"control_mode" json:"control_mode"`
	NeedsHumanAttention bool           `db:"needs_human_attention" json:"needs_human_attention"`
	LastMessageTime     time.Time      `db:"last_message_time" json:"last_message_time"`
	LatestMessage       *LatestMessage `json:"latest_message,omitempty"`
	UnreadCount         int            `db:"unread_count" json:"unread_count"`
	Starred             bool           `db:"starred" json:"starred"`
	StarredAt           *time.Time     `db:"starred_at" json:"starred_at,omitempty"`
	Archived            bool           `db:"archived" json:"archived"`
	ArchivedAt          *time.Time     `db:"archived_at" json:"archived_at,omitempty"`
	Pinned              bool           `db:"pinned" json:"pinned"`
	PinnedAt            *time.Time     `db:"pinned_at" json:"pinned_at,omitempty"`
	PhoneLineID         *int64         `db:"phone_line_id" json:"phone_line_id,omitempty"`
}

// DisplayName returns the customer name when known, otherwise the phone.
func (c *Conversation) DisplayName() string {
	if c.CustomerName != nil && *c.CustomerName != "" {
		return *c.CustomerName
	}
	return c.CustomerPhone
}

// Scope identifies one conversation-list query. Distinct scopes are distinct
// cache entries; switching phone lines must never surface another line's data.
type Scope struct {
	Status      string
	PhoneLineID *int64
}

// Key returns a stable cache key for the scope.
func (s Scope) Key() string {
	status := s.Status
	if status == "" {
		status = StatusActive
	}
	if s.PhoneLineID == nil {
		return status + "/-"
	}
	return status + "/" + strconv.FormatInt(*s.PhoneLineID, 10)
}
