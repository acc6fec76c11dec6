// Package selection tracks which conversation is open and keeps the
// panes that depend on it consistent with that choice.
package selection

import (
	"strconv"

	"console_go/internal/domain"
)

// DeepLink carries the phone/conversation URL parameters (or CLI flags) the
// console was opened with. Zero values mean no link.
type DeepLink struct {
	Phone          string
	ConversationID int64
}

// ParseDeepLink builds a DeepLink from raw query-parameter strings.
func ParseDeepLink(phone, conversation string) DeepLink {
	link := DeepLink{Phone: phone}
	if conversation != "" {
		if id, err := strconv.ParseInt(conversation, 10, 64); err == nil {
			link.ConversationID = id
		}
	}
	return link
}

func (l DeepLink) empty() bool {
	return l.Phone == "" && l.ConversationID == 0
}

// Selection is the minimal selection state machine: NoSelection or
// Selected(id). It also owns the pieces that must stay consistent with the
// selection: the profile panel open flag and per-conversation composer
// drafts.
type Selection struct {
	id          int64 // 0 means NoSelection
	profileOpen bool

	link         DeepLink
	linkConsumed bool

	drafts map[int64]string
}

func New(link DeepLink) *Selection {
	return &Selection{
		link:   link,
		drafts: make(map[int64]string),
	}
}

// SelectedID returns the open conversation id, if any.
func (s *Selection) SelectedID() (int64, bool) {
	return s.id, s.id != 0
}

// Select opens a conversation. Re-selecting the current id is a no-op.
func (s *Selection) Select(id int64) {
	s.id = id
}

// Clear returns to NoSelection. A profile panel left open would reference a
// conversation that is no longer selected, so it is forced closed.
func (s *Selection) Clear() {
	s.id = 0
	s.profileOpen = false
}

func (s *Selection) OpenProfile() {
	if s.id != 0 {
		s.profileOpen = true
	}
}

func (s *Selection) CloseProfile() {
	s.profileOpen = false
}

func (s *Selection) ProfileOpen() bool {
	return s.profileOpen
}

// Reconcile re-checks the selection against a freshly fetched list. A
// selected id that is no longer present resolves to NoSelection rather than
// silently referencing a missing object. Returns true if the selection
// changed.
func (s *Selection) Reconcile(convs []*domain.Conversation) bool {
	if s.id == 0 {
		return false
	}
	for _, c := range convs {
		if c.ID == s.id {
			return false
		}
	}
	s.Clear()
	return true
}

// ResolveDeepLink tries to resolve the pending deep link against the fetched
// list. loaded reports whether the list is a completed fetch for the current
// scope: until then a link may resolve early against interim data (a restored
// snapshot) but is never dropped, and once loaded it is consumed exactly once
// regardless of how often this runs. Consumption does not require a match: a
// scoped list that lacks the linked conversation, including a legitimately
// empty one, strips the link silently rather than letting it fire against a
// later refetch. Returns true if a selection was made.
func (s *Selection) ResolveDeepLink(convs []*domain.Conversation, loaded bool) bool {
	if s.linkConsumed || s.link.empty() {
		return false
	}
	if !loaded && len(convs) == 0 {
		// Nothing to match against yet; keep the link pending.
		return false
	}
	s.linkConsumed = true

	for _, c := range convs {
		if s.link.ConversationID != 0 && c.ID == s.link.ConversationID {
			s.Select(c.ID)
			return true
		}
		if s.link.Phone != "" && c.CustomerPhone == s.link.Phone {
			s.Select(c.ID)
			return true
		}
	}
	return false
}

// LinkPending reports whether a deep link is still waiting for the list.
func (s *Selection) LinkPending() bool {
	return !s.linkConsumed && !s.link.empty()
}

// Draft returns the composer draft for a conversation. Drafts survive the
// conversation dropping out of the visible list (archive, filter change); the
// text is only discarded explicitly.
func (s *Selection) Draft(id int64) string {
	return s.drafts[id]
}

func (s *Selection) SetDraft(id int64, text string) {
	if text == "" {
		delete(s.drafts, id)
		return
	}
	s.drafts[id] = text
}

func (s *Selection) ClearDraft(id int64) {
	delete(s.drafts, id)
}
