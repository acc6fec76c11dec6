package syncer

import (
	"sort"
	"strings"

	"console_go/internal/domain"
)

// Visible is the pure filter/sort pipeline: it maps the full fetched set plus
// the category and free-text filters to the rendered order. Category and text
// are independent predicates ANDed together. The sort is stable: pinned
// conversations first (preserving their relative order), then by
// last-message time descending, ties keeping server order.
func Visible(convs []*domain.Conversation, category, search string) []*domain.Conversation {
	query := strings.ToLower(strings.TrimSpace(search))

	out := make([]*domain.Conversation, 0, len(convs))
	for _, c := range convs {
		if matchesCategory(c, category) && matchesSearch(c, query) {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out
}

func matchesCategory(c *domain.Conversation, category string) bool {
	if category == "" || category == domain.CategoryAll {
		return true
	}
	return string(c.Platform) == category
}

// matchesSearch does a case-insensitive substring match against the customer
// name, phone, and latest message preview. A nil preview participates as an
// empty string: it can never match a non-empty query, but name/phone still can.
func matchesSearch(c *domain.Conversation, query string) bool {
	if query == "" {
		return true
	}
	if c.CustomerName != nil && strings.Contains(strings.ToLower(*c.CustomerName), query) {
		return true
	}
	if strings.Contains(strings.ToLower(c.CustomerPhone), query) {
		return true
	}
	if c.LatestMessage != nil && strings.Contains(strings.ToLower(c.LatestMessage.Content), query) {
		return true
	}
	return false
}
