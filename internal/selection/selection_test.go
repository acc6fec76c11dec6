package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"console_go/internal/domain"
)

func convs(ids ...int64) []*domain.Conversation {
	out := make([]*domain.Conversation, len(ids))
	for i, id := range ids {
		out[i] = &domain.Conversation{ID: id, CustomerPhone: "+1555000000" + string(rune('0'+id))}
	}
	return out
}

func TestSelectAndClear(t *testing.T) {
	s := New(DeepLink{})

	_, ok := s.SelectedID()
	assert.False(t, ok)

	s.Select(3)
	id, ok := s.SelectedID()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	s.Clear()
	_, ok = s.SelectedID()
	assert.False(t, ok)
}

func TestProfileRequiresSelectionAndClosesOnClear(t *testing.T) {
	s := New(DeepLink{})

	s.OpenProfile()
	assert.False(t, s.ProfileOpen())

	s.Select(1)
	s.OpenProfile()
	assert.True(t, s.ProfileOpen())

	s.Clear()
	assert.False(t, s.ProfileOpen())
}

func TestReconcileDropsMissingSelection(t *testing.T) {
	s := New(DeepLink{})
	s.Select(2)
	s.OpenProfile()

	changed := s.Reconcile(convs(1, 3))
	assert.True(t, changed)
	_, ok := s.SelectedID()
	assert.False(t, ok)
	assert.False(t, s.ProfileOpen())
}

func TestReconcileKeepsPresentSelection(t *testing.T) {
	s := New(DeepLink{})
	s.Select(2)

	changed := s.Reconcile(convs(1, 2, 3))
	assert.False(t, changed)
	id, _ := s.SelectedID()
	assert.Equal(t, int64(2), id)
}

func TestReconcileNoSelectionIsNoop(t *testing.T) {
	s := New(DeepLink{})
	assert.False(t, s.Reconcile(convs(1, 2)))
	assert.False(t, s.Reconcile(nil))
}

func TestDeepLinkDefersUntilListLoads(t *testing.T) {
	s := New(DeepLink{ConversationID: 2})

	assert.True(t, s.LinkPending())
	assert.False(t, s.ResolveDeepLink(nil, false))
	assert.True(t, s.LinkPending())

	assert.True(t, s.ResolveDeepLink(convs(1, 2, 3), true))
	id, _ := s.SelectedID()
	assert.Equal(t, int64(2), id)
	assert.False(t, s.LinkPending())
}

func TestDeepLinkConsumedExactlyOnce(t *testing.T) {
	s := New(DeepLink{ConversationID: 2})
	list := convs(1, 2, 3)

	assert.True(t, s.ResolveDeepLink(list, true))

	// The operator navigates away; later refetches must not re-apply the link.
	s.Clear()
	assert.False(t, s.ResolveDeepLink(list, true))
	_, ok := s.SelectedID()
	assert.False(t, ok)
}

func TestDeepLinkNoMatchDropsSilently(t *testing.T) {
	s := New(DeepLink{ConversationID: 99})

	assert.False(t, s.ResolveDeepLink(convs(1, 2), true))
	assert.False(t, s.LinkPending())
	_, ok := s.SelectedID()
	assert.False(t, ok)
}

func TestDeepLinkConsumedByLoadedEmptyList(t *testing.T) {
	s := New(DeepLink{ConversationID: 7})

	// A completed fetch whose scoped list is empty still strips the link.
	assert.False(t, s.ResolveDeepLink([]*domain.Conversation{}, true))
	assert.False(t, s.LinkPending())

	// A later refetch that happens to contain the id must not select it.
	assert.False(t, s.ResolveDeepLink(convs(7), true))
	_, ok := s.SelectedID()
	assert.False(t, ok)
}

func TestDeepLinkResolvesEarlyAgainstInterimData(t *testing.T) {
	// A restored snapshot is enough to resolve against, even before the
	// first fetch completes.
	s := New(DeepLink{ConversationID: 2})
	assert.True(t, s.ResolveDeepLink(convs(1, 2), false))
	id, _ := s.SelectedID()
	assert.Equal(t, int64(2), id)

	// But an empty interim list keeps the link pending.
	s2 := New(DeepLink{ConversationID: 2})
	assert.False(t, s2.ResolveDeepLink([]*domain.Conversation{}, false))
	assert.True(t, s2.LinkPending())
}

func TestDeepLinkByPhone(t *testing.T) {
	list := []*domain.Conversation{
		{ID: 1, CustomerPhone: "+15551230001"},
		{ID: 2, CustomerPhone: "+15551230002"},
	}
	s := New(ParseDeepLink("+15551230002", ""))

	assert.True(t, s.ResolveDeepLink(list, true))
	id, _ := s.SelectedID()
	assert.Equal(t, int64(2), id)
}

func TestParseDeepLinkIgnoresMalformedID(t *testing.T) {
	link := ParseDeepLink("", "not-a-number")
	assert.True(t, link.empty())

	link = ParseDeepLink("", "42")
	assert.Equal(t, int64(42), link.ConversationID)
}

func TestDraftsSurviveSelectionChanges(t *testing.T) {
	s := New(DeepLink{})
	s.Select(1)
	s.SetDraft(1, "hello, checking in")

	s.Select(2)
	s.SetDraft(2, "your appointment")
	s.Clear()

	assert.Equal(t, "hello, checking in", s.Draft(1))
	assert.Equal(t, "your appointment", s.Draft(2))

	s.ClearDraft(1)
	assert.Empty(t, s.Draft(1))

	s.SetDraft(2, "")
	assert.Empty(t, s.Draft(2))
}
