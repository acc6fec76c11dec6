package domain

// EventKind is the closed set of monitor events delivered on the realtime
// channel. Dispatch on EventKind is exhaustive, so adding a kind is a
// compile-visible change rather than a new string tag.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventNewMessage
	EventConversationUpdated
	EventControlModeChanged
)

const (
	tagNewMessage          = "new_message"
	tagConversationUpdated = "conversation_updated"
	tagControlModeChanged  = "control_mode_changed"
)

// ParseEventKind maps a wire tag to an EventKind. Unknown tags map to
// EventUnknown; callers log and drop those.
func ParseEventKind(tag string) EventKind {
	switch tag {
	case tagNewMessage:
		return EventNewMessage
	case tagConversationUpdated:
		return EventConversationUpdated
	case tagControlModeChanged:
		return EventControlModeChanged
	default:
		return EventUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case EventNewMessage:
		return tagNewMessage
	case EventConversationUpdated:
		return tagConversationUpdated
	case EventControlModeChanged:
		return tagControlModeChanged
	default:
		return "unknown"
	}
}

// Event is a monitor event after decoding. Architecturally it is only a
// trigger signal: the payload identifies the conversation but the list is
// always refreshed by refetch, never patched in place.
type Event struct {
	Kind           EventKind
	ConversationID int64
	PhoneLineID    *int64
}
