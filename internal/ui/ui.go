package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/festa/internal/chat"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	RoomView
	ConfirmView
	RenameView
)

// Tab is a room list tab.
type Tab int

const (
	TabMy Tab = iota
	TabUnread
	TabCompanion
	TabAll
)

var tabNames = [...]string{"My rooms", "Unread", "Companion", "All"}

func (t Tab) String() string { return tabNames[t] }

const bannerDuration = 5 * time.Second

// SessionOpener creates and opens a session for room.
type SessionOpener func(ctx context.Context, room models.Room) (*chat.ChatRoomSession, error)

// Deps are the collaborators the TUI drives.
type Deps struct {
	Controller *chat.ChatListController
	Open       SessionOpener
	// Focus receives a value whenever the terminal regains focus.
	Focus  chan<- struct{}
	Banner *BannerNotifier
	Clock  shared.Clock
}

// Model represents the TUI application state.
type Model struct {
	ctx  context.Context
	deps Deps
	view ViewState
	tab  Tab

	rooms   chat.RoomList
	list    list.Model
	session *chat.ChatRoomSession
	opening bool
	pending string

	messages viewport.Model
	input    textinput.Model

	status    string
	statusErr bool
	banner    string
	bannerSeq int

	width  int
	height int
	help   help.Model
	keys   keyMap
}

func NewModel(ctx context.Context, deps Deps) *Model {
	if deps.Clock == nil {
		deps.Clock = shared.SystemClock()
	}

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.SetShowHelp(false)
	l.Title = TabMy.String()

	input := textinput.New()
	input.Placeholder = "Type a message"
	input.CharLimit = 1000

	return &Model{
		ctx:      ctx,
		deps:     deps,
		view:     ListView,
		list:     l,
		messages: viewport.New(0, 0),
		input:    input,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts listening for room lists and notifications.
func (m *Model) Init() tea.Cmd {
	var updates <-chan chat.RoomList
	if m.deps.Controller != nil {
		updates = m.deps.Controller.Updates()
	}
	return tea.Batch(waitForRooms(updates), waitForBanner(m.deps.Banner))
}

// Session returns the open session, if any, so the caller can close it on exit.
func (m *Model) Session() *chat.ChatRoomSession { return m.session }

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		m.messages.Width = msg.Width - 4
		m.messages.Height = max(msg.Height-9, 3)
		m.input.Width = msg.Width - 8
		m.renderMessages()
		return m, nil

	case tea.FocusMsg:
		m.requestRefresh()
		return m, nil

	case roomListMsg:
		m.rooms = chat.RoomList(msg)
		m.rebuildList()
		var updates <-chan chat.RoomList
		if m.deps.Controller != nil {
			updates = m.deps.Controller.Updates()
		}
		return m, waitForRooms(updates)

	case bannerMsg:
		m.bannerSeq++
		seq := m.bannerSeq
		m.banner = fmt.Sprintf("%s: %s", msg.Title, msg.Body)
		return m, tea.Batch(
			waitForBanner(m.deps.Banner),
			tea.Tick(bannerDuration, func(time.Time) tea.Msg { return bannerClearMsg{seq: seq} }),
		)

	case bannerClearMsg:
		if msg.seq == m.bannerSeq {
			m.banner = ""
		}
		return m, nil

	case sessionOpenedMsg:
		m.opening = false
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Could not open room: %v", msg.err), true)
			return m, nil
		}
		m.session = msg.session
		m.view = RoomView
		m.setStatus("", false)
		m.input.Reset()
		m.renderMessages()
		return m, tea.Batch(m.input.Focus(), waitForSession(msg.session))

	case sessionEventMsg:
		if msg.session != m.session {
			return m, nil
		}
		switch msg.event.Kind {
		case chat.EventPresence:
			m.setStatus(msg.event.Text, false)
		case chat.EventTitle:
			m.setStatus("Renamed to "+msg.event.Text, false)
		}
		m.renderMessages()
		return m, waitForSession(msg.session)

	case sessionEndedMsg:
		if msg.session == m.session {
			m.session = nil
			m.view = ListView
			m.input.Blur()
			m.requestRefresh()
		}
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.view = RoomView
			m.setStatus(actionMessage(msg.err), true)
			return m, nil
		}
		m.setStatus(map[string]string{"delete": "Room deleted", "leave": "Left the room", "rename": "Room renamed"}[msg.action], false)
		if msg.action == "rename" {
			m.view = RoomView
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ListView:
			return m.handleListKeys(msg)
		case RoomView:
			return m.handleRoomKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RenameView:
			return m.handleRenameKeys(msg)
		}
	}

	return m.updateComponents(msg)
}

// actionMessage prefers the server's own wording for failed actions.
func actionMessage(err error) string {
	var actionErr *chat.ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Message
	}
	switch {
	case errors.Is(err, shared.ErrOwnerOnly):
		return "Only the room owner can do that"
	case errors.Is(err, shared.ErrCancelled):
		return "Cancelled"
	default:
		return err.Error()
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status, m.statusErr = s, isErr
}

func (m *Model) requestRefresh() {
	if m.deps.Focus == nil {
		return
	}
	select {
	case m.deps.Focus <- struct{}{}:
	default:
	}
}

func (m *Model) tabRooms() []models.Room {
	switch m.tab {
	case TabUnread:
		return m.rooms.Unread
	case TabCompanion:
		return m.rooms.Companion
	case TabAll:
		return m.rooms.All
	default:
		return m.rooms.My
	}
}

func (m *Model) rebuildList() {
	var classifier chat.Classifier
	if m.deps.Controller != nil {
		classifier = m.deps.Controller.Classifier()
	}
	now := m.deps.Clock.Now()

	rooms := m.tabRooms()
	items := make([]list.Item, len(rooms))
	for i, r := range rooms {
		items[i] = roomItem{room: r, post: m.rooms.Posts[r.ID], unread: classifier.IsUnread(r), now: now}
	}
	m.list.SetItems(items)
	m.list.Title = m.tab.String()
}

func (m *Model) switchTab(delta int) {
	m.tab = Tab((int(m.tab) + delta + len(tabNames)) % len(tabNames))
	m.list.ResetSelected()
	m.rebuildList()
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.nextTab):
		m.switchTab(1)
		return m, nil
	case key.Matches(msg, m.keys.prevTab):
		m.switchTab(-1)
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.requestRefresh()
		m.setStatus("Refreshing…", false)
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.list.SelectedItem().(roomItem); ok && !m.opening && m.deps.Open != nil {
			m.opening = true
			m.setStatus("Opening "+item.room.DisplayName()+"…", false)
			return m, m.openRoom(item.room)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleRoomKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		return m, m.closeSession(s)
	case key.Matches(msg, m.keys.rename):
		if s.Role() != models.RoleOwner {
			m.setStatus(actionMessage(shared.ErrOwnerOnly), true)
			return m, nil
		}
		m.view = RenameView
		m.input.SetValue(s.Title())
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if s.Role() != models.RoleOwner {
			m.setStatus(actionMessage(shared.ErrOwnerOnly), true)
			return m, nil
		}
		m.pending = "delete"
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.leave):
		m.pending = "leave"
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.send):
		content := m.input.Value()
		if err := s.Send(content); err != nil {
			if errors.Is(err, shared.ErrEmptyMessage) {
				return m, nil
			}
			m.setStatus(fmt.Sprintf("Not sent: %v", err), true)
			return m, nil
		}
		m.input.Reset()
		m.setStatus("", false)
		return m, nil
	case msg.String() == "pgup" || msg.String() == "pgdown":
		var cmd tea.Cmd
		m.messages, cmd = m.messages.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		action := m.pending
		m.pending = ""
		m.setStatus("Working…", false)
		return m, m.runAction(action)
	case key.Matches(msg, m.keys.no):
		m.pending = ""
		m.view = RoomView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleRenameKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.input.Reset()
		m.view = RoomView
		return m, nil
	case msg.Type == tea.KeyEnter:
		name := m.input.Value()
		m.input.Reset()
		return m, m.runRename(name)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ListView:
		m.list, cmd = m.list.Update(msg)
	case RoomView, RenameView:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) openRoom(room models.Room) tea.Cmd {
	return func() tea.Msg {
		s, err := m.deps.Open(m.ctx, room)
		return sessionOpenedMsg{session: s, err: err}
	}
}

// closeSession closes s off the update loop; its closed event channel ends the room view.
func (m *Model) closeSession(s *chat.ChatRoomSession) tea.Cmd {
	return func() tea.Msg {
		_ = s.Close()
		return nil
	}
}

func confirmed(string) bool { return true }

func (m *Model) runAction(action string) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		var err error
		switch action {
		case "delete":
			err = s.Delete(m.ctx, confirmed)
		case "leave":
			err = s.Leave(m.ctx, confirmed)
		}
		return actionDoneMsg{action: action, err: err}
	}
}

func (m *Model) runRename(name string) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return actionDoneMsg{action: "rename", err: s.Rename(m.ctx, name)}
	}
}

func (m *Model) renderMessages() {
	if m.session == nil {
		return
	}
	var b strings.Builder
	for _, msg := range m.session.Messages() {
		stamp := styles.system.Render(msg.CreatedAt.Local().Format("15:04"))
		sender := styles.sender.Render(msg.DisplaySender())
		if m.session.IsMine(msg) {
			sender = styles.mine.Render("you")
		}
		text := msg.DisplayText()
		if msg.Deleted {
			text = styles.system.Render(text)
		}
		fmt.Fprintf(&b, "%s %s %s\n", stamp, sender, text)
	}
	if b.Len() == 0 {
		b.WriteString(styles.system.Render("No messages yet"))
	}
	m.messages.SetContent(b.String())
	m.messages.GotoBottom()
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case ListView:
		body = m.renderList()
	case RoomView:
		body = m.renderRoom()
	case ConfirmView:
		body = m.renderConfirm()
	case RenameView:
		body = m.renderRename()
	}

	var out strings.Builder
	if m.banner != "" {
		out.WriteString(styles.banner.Render(m.banner))
		out.WriteString("\n")
	}
	out.WriteString(body)
	if m.status != "" {
		out.WriteString("\n")
		if m.statusErr {
			out.WriteString(styles.err.Render(m.status))
		} else {
			out.WriteString(styles.help.Render(m.status))
		}
	}
	return out.String()
}

func (m *Model) renderTabs() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if Tab(i) == TabUnread && len(m.rooms.Unread) > 0 {
			name = fmt.Sprintf("%s (%d)", name, len(m.rooms.Unread))
		}
		if Tab(i) == m.tab {
			tabs[i] = styles.activeTab.Render(name)
		} else {
			tabs[i] = styles.tab.Render(name)
		}
	}
	return strings.Join(tabs, " ")
}

func (m *Model) renderList() string {
	header := m.renderTabs()
	if m.rooms.Stale() {
		header += "  " + styles.warn.Render("offline, showing last known rooms")
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.nextTab, m.keys.enter, m.keys.refresh, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n\n%s", header, m.list.View(), helpView)
}

func (m *Model) renderRoom() string {
	title := styles.title.Render(fmt.Sprintf("%s · %s", m.session.Title(), strings.ToLower(string(m.session.Role()))))
	bindings := []key.Binding{m.keys.send, m.keys.back, m.keys.leave}
	if m.session.Role() == models.RoleOwner {
		bindings = append(bindings, m.keys.rename, m.keys.remove)
	}
	helpView := m.help.ShortHelpView(bindings)
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, m.messages.View(), m.input.View(), helpView)
}

func (m *Model) renderConfirm() string {
	prompt := "Leave this room?"
	if m.pending == "delete" {
		prompt = "Delete this room for everyone?"
	}
	title := styles.title.Render(prompt)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s", title, helpView)
}

func (m *Model) renderRename() string {
	title := styles.title.Render("Rename room")
	helpView := m.help.ShortHelpView([]key.Binding{key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")), m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.input.View(), helpView)
}
