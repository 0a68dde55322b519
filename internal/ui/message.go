package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/festa/internal/chat"
)

var (
	_ tea.Msg = roomListMsg{}
	_ tea.Msg = sessionEventMsg{}
)

type roomListMsg chat.RoomList

type bannerMsg chat.Notification

type bannerClearMsg struct{ seq int }

type sessionOpenedMsg struct {
	session *chat.ChatRoomSession
	err     error
}

type sessionEventMsg struct {
	session *chat.ChatRoomSession
	event   chat.SessionEvent
}

type sessionEndedMsg struct {
	session *chat.ChatRoomSession
}

type actionDoneMsg struct {
	action string
	err    error
}

func waitForRooms(updates <-chan chat.RoomList) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		list, ok := <-updates
		if !ok {
			return nil
		}
		return roomListMsg(list)
	}
}

func waitForBanner(b *BannerNotifier) tea.Cmd {
	if b == nil {
		return nil
	}
	return func() tea.Msg {
		return bannerMsg(<-b.C())
	}
}

// waitForSession delivers the next session event, or sessionEndedMsg once the session closes.
func waitForSession(s *chat.ChatRoomSession) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-s.Events()
		if !ok {
			return sessionEndedMsg{session: s}
		}
		return sessionEventMsg{session: s, event: ev}
	}
}

// BannerNotifier is a [chat.Notifier] that hands notifications to the TUI. Permission is the Enabled flag.
type BannerNotifier struct {
	Enabled bool
	ch      chan chat.Notification
}

func NewBannerNotifier(enabled bool) *BannerNotifier {
	return &BannerNotifier{Enabled: enabled, ch: make(chan chat.Notification, 8)}
}

func (b *BannerNotifier) RequestPermission(context.Context) (bool, error) {
	return b.Enabled, nil
}

// Notify queues n for display. It never blocks; a full queue drops n.
func (b *BannerNotifier) Notify(n chat.Notification) error {
	select {
	case b.ch <- n:
	default:
	}
	return nil
}

func (b *BannerNotifier) C() <-chan chat.Notification { return b.ch }
