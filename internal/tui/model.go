// Package tui is the operator-facing terminal console: a conversation list
// and thread detail pane rendered over a live syncer.Engine subscription.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"console_go/internal/domain"
	"console_go/internal/selection"
	"console_go/internal/store/sqlite"
	"console_go/internal/syncer"
)

// narrowWidth is the column threshold below which the console collapses to a
// single pane: list when nothing is selected, thread when something is.
const narrowWidth = 90

const actionTimeout = 10 * time.Second

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeCompose
)

type snapshotMsg syncer.Snapshot

type actionResultMsg struct {
	verb string
	err  error
}

type toastClearMsg struct{}

type Model struct {
	engine *syncer.Engine
	sel    *selection.Selection
	prefs  domain.PreferenceRepository

	snaps  <-chan syncer.Snapshot
	cancel func()

	snapshot syncer.Snapshot
	visible  []*domain.Conversation

	category string
	dark     bool
	search   textinput.Model
	composer textinput.Model
	spin     spinner.Model
	mode     mode

	cursor int
	width  int
	height int

	toast string
}

func New(engine *syncer.Engine, sel *selection.Selection, prefs domain.PreferenceRepository) Model {
	search := textinput.New()
	search.Placeholder = "search name, phone, message"
	search.CharLimit = 120

	composer := textinput.New()
	composer.Placeholder = "type a message"
	composer.CharLimit = 1000

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	category := domain.CategoryAll
	dark := true
	if prefs != nil {
		if v, err := prefs.Get(context.Background(), sqlite.PrefLastCategory); err == nil && v != "" {
			category = v
		}
		if v, err := prefs.Get(context.Background(), sqlite.PrefDarkMode); err == nil {
			dark = v != "false"
		}
	}

	snaps, cancel := engine.Subscribe()
	return Model{
		engine:   engine,
		sel:      sel,
		prefs:    prefs,
		snaps:    snaps,
		cancel:   cancel,
		category: category,
		dark:     dark,
		search:   search,
		composer: composer,
		spin:     spin,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForSnapshot(), m.spin.Tick)
}

func (m Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.snaps
		if !ok {
			return tea.Quit()
		}
		return snapshotMsg(snap)
	}
}

func (m *Model) recompute() {
	m.visible = syncer.Visible(m.snapshot.Conversations, m.category, m.search.Value())

	// Deep links resolve against the fetched list, not the filtered view.
	if m.sel.LinkPending() {
		m.sel.ResolveDeepLink(m.snapshot.Conversations, m.snapshot.Loaded)
	}
	m.sel.Reconcile(m.snapshot.Conversations)

	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) selected() *domain.Conversation {
	id, ok := m.sel.SelectedID()
	if !ok {
		return nil
	}
	for _, c := range m.snapshot.Conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *Model) savePref(key, value string) tea.Cmd {
	if m.prefs == nil {
		return nil
	}
	prefs := m.prefs
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		_ = prefs.Set(ctx, key, value)
		return nil
	}
}

func (m *Model) action(verb string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{verb: verb, err: fn(ctx)}
	}
}

func nextCategory(current string) string {
	cats := []string{domain.CategoryAll}
	for _, p := range domain.Platforms {
		cats = append(cats, string(p))
	}
	for i, c := range cats {
		if c == current {
			return cats[(i+1)%len(cats)]
		}
	}
	return domain.CategoryAll
}

func nextStatus(current string) string {
	switch current {
	case domain.StatusActive:
		return domain.StatusAttention
	case domain.StatusAttention:
		return domain.StatusArchived
	default:
		return domain.StatusActive
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.snapshot = syncer.Snapshot(msg)
		m.recompute()
		return m, m.waitForSnapshot()

	case actionResultMsg:
		if msg.err != nil {
			// Non-fatal: state is unchanged server-side, just tell the operator.
			m.toast = fmt.Sprintf("%s failed: %v", msg.verb, msg.err)
			return m, tea.Tick(4*time.Second, func(time.Time) tea.Msg { return toastClearMsg{} })
		}
		m.toast = msg.verb + " ok"
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return toastClearMsg{} })

	case toastClearMsg:
		m.toast = ""
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeCompose:
			return m.updateCompose(msg)
		default:
			return m.updateNormal(msg)
		}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.mode = modeNormal
		m.search.Blur()
		m.recompute()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.recompute()
	return m, cmd
}

func (m Model) updateCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id, ok := m.sel.SelectedID()
	if !ok {
		m.mode = modeNormal
		m.composer.Blur()
		return m, nil
	}
	switch msg.String() {
	case "esc":
		// Keep the draft; it is restored next time the composer opens.
		m.sel.SetDraft(id, m.composer.Value())
		m.mode = modeNormal
		m.composer.Blur()
		return m, nil
	case "enter":
		content := strings.TrimSpace(m.composer.Value())
		m.mode = modeNormal
		m.composer.Blur()
		if content == "" {
			return m, nil
		}
		m.sel.ClearDraft(id)
		m.composer.SetValue("")
		return m, m.action("send", func(ctx context.Context) error {
			return m.engine.SendMessage(ctx, id, content)
		})
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	m.sel.SetDraft(id, m.composer.Value())
	return m, cmd
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancel()
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}

	case "enter":
		if m.cursor < len(m.visible) {
			m.sel.Select(m.visible[m.cursor].ID)
		}

	case "esc":
		m.sel.Clear()

	case "tab":
		m.category = nextCategory(m.category)
		m.recompute()
		return m, m.savePref(sqlite.PrefLastCategory, m.category)

	case "v":
		scope := m.engine.Scope()
		scope.Status = nextStatus(scope.Status)
		engine := m.engine
		switchCmd := func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
			defer cancel()
			engine.SetScope(ctx, scope)
			return nil
		}
		return m, tea.Batch(switchCmd, m.savePref(sqlite.PrefLastScope, scope.Status))

	case "d":
		m.dark = !m.dark
		return m, m.savePref(sqlite.PrefDarkMode, strconv.FormatBool(m.dark))

	case "/":
		m.mode = modeSearch
		return m, m.search.Focus()

	case "o":
		if m.sel.ProfileOpen() {
			m.sel.CloseProfile()
		} else {
			m.sel.OpenProfile()
		}

	case "m":
		if id, ok := m.sel.SelectedID(); ok {
			m.composer.SetValue(m.sel.Draft(id))
			m.mode = modeCompose
			return m, m.composer.Focus()
		}

	case "t":
		if id, ok := m.sel.SelectedID(); ok {
			return m, m.action("takeover", func(ctx context.Context) error {
				return m.engine.Takeover(ctx, id)
			})
		}

	case "p":
		if c := m.cursorConversation(); c != nil {
			id, val := c.ID, !c.Pinned
			return m, m.action("pin", func(ctx context.Context) error {
				return m.engine.SetFlag(ctx, id, domain.FlagPinned, val)
			})
		}

	case "s":
		if c := m.cursorConversation(); c != nil {
			id, val := c.ID, !c.Starred
			return m, m.action("star", func(ctx context.Context) error {
				return m.engine.SetFlag(ctx, id, domain.FlagStarred, val)
			})
		}

	case "a":
		if c := m.cursorConversation(); c != nil {
			id, val := c.ID, !c.Archived
			return m, m.action("archive", func(ctx context.Context) error {
				return m.engine.SetFlag(ctx, id, domain.FlagArchived, val)
			})
		}

	case "b":
		if id, ok := m.sel.SelectedID(); ok {
			return m, m.action("schedule share", func(ctx context.Context) error {
				return m.engine.ShareSchedule(ctx, id)
			})
		}
	}
	return m, nil
}

func (m *Model) cursorConversation() *domain.Conversation {
	if m.cursor < len(m.visible) {
		return m.visible[m.cursor]
	}
	return nil
}
