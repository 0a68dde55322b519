package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/festa/internal/chat"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/shared"
	tu "github.com/desertthunder/festa/internal/testing"
)

var now = time.Date(2025, 10, 3, 18, 0, 0, 0, time.UTC)

func roomList() chat.RoomList {
	a := models.Room{ID: 1, Name: "Main stage", Kind: models.KindGroup, UnreadCount: 2,
		LastMessage: &models.LastMessage{Text: "starting soon", Timestamp: now.Add(-5 * time.Minute)}}
	b := models.Room{ID: 2, Name: "Food trucks", Kind: models.KindGroup}
	pid := int64(40)
	c := models.Room{ID: 3, Name: "Meetup", Kind: models.KindGroup, Origin: models.OriginPost, OriginPostID: &pid}
	return chat.RoomList{
		Views: chat.Views{
			My:        []models.Room{a, b},
			Unread:    []models.Room{a},
			Companion: []models.Room{c},
			All:       []models.Room{a, b, c},
		},
		Posts: map[int64]*models.Post{3: {ID: 40, EventTitle: "Lantern Festival"}},
	}
}

func newTestModel(focus chan struct{}) *Model {
	return NewModel(context.Background(), Deps{Focus: focus, Clock: tu.NewFakeClock(now)})
}

func TestModel(t *testing.T) {
	t.Run("room lists populate the active tab", func(t *testing.T) {
		m := newTestModel(nil)
		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
		m.Update(roomListMsg(roomList()))

		if got := len(m.list.Items()); got != 2 {
			t.Fatalf("My tab items = %d, want 2", got)
		}
		if !strings.Contains(m.View(), "Unread (1)") {
			t.Errorf("tabs should show unread count, got:\n%s", m.View())
		}
	})

	t.Run("tab keys cycle views", func(t *testing.T) {
		m := newTestModel(nil)
		m.Update(roomListMsg(roomList()))

		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		if m.tab != TabUnread || len(m.list.Items()) != 1 {
			t.Errorf("tab = %v with %d items", m.tab, len(m.list.Items()))
		}
		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		item := m.list.Items()[0].(roomItem)
		if !strings.Contains(item.Description(), "Lantern Festival") {
			t.Errorf("companion item should show its post, got %q", item.Description())
		}
		m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
		m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
		m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
		if m.tab != TabAll {
			t.Errorf("tab = %v, want All", m.tab)
		}
	})

	t.Run("focus requests a refresh without blocking", func(t *testing.T) {
		focus := make(chan struct{}, 1)
		m := newTestModel(focus)
		m.Update(tea.FocusMsg{})
		m.Update(tea.FocusMsg{})

		select {
		case <-focus:
		default:
			t.Error("focus was not forwarded")
		}
	})

	t.Run("banner shows and clears", func(t *testing.T) {
		m := newTestModel(nil)
		m.Update(bannerMsg(chat.Notification{RoomID: 1, Title: "Main stage", Body: "mina: hi"}))
		if !strings.Contains(m.View(), "Main stage: mina: hi") {
			t.Errorf("banner missing:\n%s", m.View())
		}

		m.Update(bannerClearMsg{seq: m.bannerSeq - 1})
		if m.banner == "" {
			t.Error("an older clear must not hide a newer banner")
		}
		m.Update(bannerClearMsg{seq: m.bannerSeq})
		if m.banner != "" {
			t.Error("banner not cleared")
		}
	})

	t.Run("stale list is flagged", func(t *testing.T) {
		m := newTestModel(nil)
		list := roomList()
		list.Err = shared.ErrServiceUnavailable
		m.Update(roomListMsg(list))
		if !strings.Contains(m.View(), "offline") {
			t.Errorf("stale marker missing:\n%s", m.View())
		}
	})

	t.Run("failed open stays on the list", func(t *testing.T) {
		m := newTestModel(nil)
		m.Update(sessionOpenedMsg{err: errors.New("boom")})
		if m.view != ListView || !m.statusErr {
			t.Errorf("view = %v, status = %q", m.view, m.status)
		}
	})
}

func TestActionMessage(t *testing.T) {
	serverErr := &chat.ActionError{Action: "delete", Message: "room still has members", Err: shared.ErrInvalidReference}
	tests := []struct {
		err  error
		want string
	}{
		{serverErr, "room still has members"},
		{shared.ErrOwnerOnly, "Only the room owner can do that"},
		{shared.ErrCancelled, "Cancelled"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := actionMessage(tt.err); got != tt.want {
			t.Errorf("actionMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestBannerNotifier(t *testing.T) {
	b := NewBannerNotifier(true)
	if ok, _ := b.RequestPermission(context.Background()); !ok {
		t.Error("enabled notifier should grant permission")
	}
	for i := 0; i < 20; i++ {
		if err := b.Notify(chat.Notification{RoomID: int64(i)}); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
	}
	if got := (<-b.C()).RoomID; got != 0 {
		t.Errorf("first queued notification = %d", got)
	}
}
