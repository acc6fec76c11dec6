package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"console_go/internal/domain"
	"console_go/internal/transport"
)

type styleSet struct {
	header   lipgloss.Style
	dim      lipgloss.Style
	cursor   lipgloss.Style
	selected lipgloss.Style
	badge    lipgloss.Style
	err      lipgloss.Style
	ok       lipgloss.Style
}

var darkStyles = styleSet{
	header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
	dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	cursor:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	selected: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	badge:    lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	err:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	ok:       lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
}

var lightStyles = styleSet{
	header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("90")),
	dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	cursor:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("53")),
	selected: lipgloss.NewStyle().Foreground(lipgloss.Color("26")),
	badge:    lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
	err:      lipgloss.NewStyle().Foreground(lipgloss.Color("124")),
	ok:       lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
}

var paneStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, true, false, false).PaddingRight(1)

func (m Model) styles() styleSet {
	if m.dark {
		return darkStyles
	}
	return lightStyles
}

func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	header := m.headerView()
	footer := m.footerView()

	body := ""
	if m.width < narrowWidth {
		if _, ok := m.sel.SelectedID(); ok {
			body = m.detailView(m.width)
		} else {
			body = m.listView(m.width)
		}
	} else {
		listW := m.width / 3
		list := paneStyle.Width(listW).Render(m.listView(listW))
		detail := m.detailView(m.width - listW - 2)
		body = lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) headerView() string {
	st := m.styles()
	conn := ""
	switch m.snapshot.Conn {
	case transport.StatusConnected:
		conn = st.ok.Render("live")
	case transport.StatusReconnecting:
		conn = st.badge.Render("reconnecting " + m.spin.View())
	default:
		conn = st.err.Render("offline")
	}

	state := ""
	switch {
	case m.snapshot.Fetching:
		state = m.spin.View() + " syncing"
	case m.snapshot.Stale:
		state = st.badge.Render("stale")
	}

	scope := m.snapshot.Scope.Status
	if scope == "" {
		scope = domain.StatusActive
	}
	if m.snapshot.Scope.PhoneLineID != nil {
		scope = fmt.Sprintf("%s line %d", scope, *m.snapshot.Scope.PhoneLineID)
	}

	left := st.header.Render("conversations") +
		st.dim.Render(fmt.Sprintf("  %s · %s", scope, m.category))
	right := conn
	if state != "" {
		right = state + "  " + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) listView(width int) string {
	st := m.styles()
	var b strings.Builder

	if m.mode == modeSearch || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n\n")
	}

	if len(m.visible) == 0 {
		if m.snapshot.Fetching && len(m.snapshot.Conversations) == 0 {
			b.WriteString(st.dim.Render(m.spin.View() + " loading conversations"))
		} else {
			b.WriteString(st.dim.Render("no conversations"))
		}
		return b.String()
	}

	selID, _ := m.sel.SelectedID()
	for i, c := range m.visible {
		line := listLine(st, c, width-4)
		switch {
		case i == m.cursor:
			line = st.cursor.Render("> " + line)
		case c.ID == selID:
			line = st.selected.Render("  " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func listLine(st styleSet, c *domain.Conversation, width int) string {
	badges := ""
	if c.Pinned {
		badges += "*"
	}
	if c.Starred {
		badges += "+"
	}
	if c.NeedsHumanAttention {
		badges += "!"
	}
	if c.UnreadCount > 0 {
		badges += fmt.Sprintf("(%d)", c.UnreadCount)
	}
	if badges != "" {
		badges = " " + badges
	}

	preview := ""
	if c.LatestMessage != nil {
		preview = c.LatestMessage.Content
	}
	line := fmt.Sprintf("%s%s %s %s", c.DisplayName(), badges, st.dim.Render(string(c.Platform)), st.dim.Render(preview))
	return truncate(line, width)
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

func (m Model) detailView(width int) string {
	st := m.styles()
	c := m.selected()
	if c == nil {
		return st.dim.Render("select a conversation (enter)")
	}

	var b strings.Builder
	b.WriteString(st.header.Render(c.DisplayName()))
	b.WriteString("\n")
	b.WriteString(st.dim.Render(fmt.Sprintf("%s · %s · %s control", c.CustomerPhone, c.Platform, c.ControlMode)))
	if c.Archived {
		b.WriteString(st.dim.Render(" · archived"))
	}
	b.WriteString("\n\n")

	if c.LatestMessage != nil {
		ts := c.LatestMessage.Timestamp.Local().Format(time.Kitchen)
		b.WriteString(fmt.Sprintf("%s %s\n%s\n", st.badge.Render(c.LatestMessage.Sender), st.dim.Render(ts), c.LatestMessage.Content))
	} else {
		b.WriteString(st.dim.Render("no messages yet\n"))
	}

	if m.sel.ProfileOpen() {
		b.WriteString("\n")
		b.WriteString(st.header.Render("profile"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("phone     %s\n", c.CustomerPhone))
		if c.CustomerName != nil {
			b.WriteString(fmt.Sprintf("name      %s\n", *c.CustomerName))
		}
		if c.PhoneLineID != nil {
			b.WriteString(fmt.Sprintf("line      %d\n", *c.PhoneLineID))
		}
		b.WriteString(fmt.Sprintf("last seen %s\n", c.LastMessageTime.Local().Format("2006-01-02 15:04")))
	}

	if m.mode == modeCompose {
		b.WriteString("\n")
		b.WriteString(m.composer.View())
	} else if id, ok := m.sel.SelectedID(); ok {
		if draft := m.sel.Draft(id); draft != "" {
			b.WriteString("\n")
			b.WriteString(st.dim.Render("draft: " + draft))
		}
	}

	return lipgloss.NewStyle().Width(width).Render(b.String())
}

func (m Model) footerView() string {
	st := m.styles()
	if m.toast != "" {
		if strings.Contains(m.toast, "failed") {
			return st.err.Render(m.toast)
		}
		return st.ok.Render(m.toast)
	}
	if m.snapshot.Err != nil {
		return st.err.Render("sync error: " + m.snapshot.Err.Error())
	}

	switch m.mode {
	case modeSearch:
		return st.dim.Render("enter/esc done")
	case modeCompose:
		return st.dim.Render("enter send · esc keep draft")
	}
	return st.dim.Render("j/k move · enter open · esc back · tab category · v scope · / search · m message · t takeover · p pin · s star · a archive · b booking link · o profile · d theme · q quit")
}
