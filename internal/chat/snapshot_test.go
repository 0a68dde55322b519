package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/festa/internal/models"
	tu "github.com/desertthunder/festa/internal/testing"
)

func event(roomID, msgID int64, content string, at time.Time) models.Event {
	return models.Event{
		MessageID:  &msgID,
		ChatRoomID: roomID,
		Content:    &content,
		SenderName: "mina",
		CreatedAt:  at.Format(time.RFC3339Nano),
	}
}

func TestReconcile(t *testing.T) {
	t.Run("poll replaces the list", func(t *testing.T) {
		state := Snapshot{Rooms: []models.Room{groupRoom(1, 0, "", epoch)}, FetchedAt: epoch}
		next := Reconcile(state, PollUpdate{Rooms: []models.Room{groupRoom(2, 3, "hi", epoch)}, At: epoch.Add(time.Second)})

		if got := ids(next.Rooms); len(got) != 1 || got[0] != 2 {
			t.Fatalf("expected only room 2, got %v", got)
		}
		if !next.FetchedAt.Equal(epoch.Add(time.Second)) {
			t.Errorf("expected fetchedAt to advance, got %v", next.FetchedAt)
		}
	})

	t.Run("poll keeps a newer pushed preview", func(t *testing.T) {
		state := Snapshot{Rooms: []models.Room{groupRoom(1, 0, "pushed", epoch.Add(5*time.Second))}, FetchedAt: epoch}
		next := Reconcile(state, PollUpdate{Rooms: []models.Room{groupRoom(1, 2, "older", epoch)}, At: epoch.Add(6 * time.Second)})

		r, _ := next.Room(1)
		if r.LastMessage.Text != "pushed" {
			t.Errorf("expected pushed preview to survive, got %q", r.LastMessage.Text)
		}
		if r.UnreadCount != 2 {
			t.Errorf("expected unread count from poll, got %d", r.UnreadCount)
		}
	})

	t.Run("poll wins when it is newer", func(t *testing.T) {
		state := Snapshot{Rooms: []models.Room{groupRoom(1, 0, "old", epoch)}, FetchedAt: epoch}
		next := Reconcile(state, PollUpdate{Rooms: []models.Room{groupRoom(1, 0, "new", epoch.Add(time.Minute))}, At: epoch.Add(time.Minute)})

		r, _ := next.Room(1)
		if r.LastMessage.Text != "new" {
			t.Errorf("expected poll preview, got %q", r.LastMessage.Text)
		}
	})

	t.Run("push updates only the preview", func(t *testing.T) {
		state := Snapshot{Rooms: []models.Room{groupRoom(1, 4, "old", epoch)}, FetchedAt: epoch}
		next := Reconcile(state, PushUpdate{Event: event(1, 10, "fresh", epoch.Add(time.Second)), At: epoch.Add(time.Second)})

		r, _ := next.Room(1)
		if r.LastMessage.Text != "fresh" {
			t.Errorf("expected pushed preview, got %q", r.LastMessage.Text)
		}
		if r.UnreadCount != 4 {
			t.Errorf("push must not touch unread count, got %d", r.UnreadCount)
		}
		if !next.FetchedAt.Equal(epoch) {
			t.Error("push must not move fetchedAt")
		}

		orig, _ := state.Room(1)
		if orig.LastMessage.Text != "old" {
			t.Error("input snapshot was modified")
		}
	})

	t.Run("push ignores unknown rooms and stale events", func(t *testing.T) {
		state := Snapshot{Rooms: []models.Room{groupRoom(1, 0, "now", epoch)}, FetchedAt: epoch}

		unknown := Reconcile(state, PushUpdate{Event: event(99, 1, "x", epoch), At: epoch})
		if len(unknown.Rooms) != 1 {
			t.Errorf("push must not add rooms, got %v", ids(unknown.Rooms))
		}

		stale := Reconcile(state, PushUpdate{Event: event(1, 2, "older", epoch.Add(-time.Minute)), At: epoch})
		if r, _ := stale.Room(1); r.LastMessage.Text != "now" {
			t.Errorf("stale push replaced preview with %q", r.LastMessage.Text)
		}
	})

	t.Run("push ignores presence and incomplete events", func(t *testing.T) {
		state := Snapshot{Rooms: []models.Room{groupRoom(1, 0, "now", epoch)}, FetchedAt: epoch}
		presence := models.Event{ChatRoomID: 1, EventType: models.EventJoin, MemberName: "mina"}
		incomplete := models.Event{ChatRoomID: 1}

		for _, ev := range []models.Event{presence, incomplete} {
			next := Reconcile(state, PushUpdate{Event: ev, At: epoch.Add(time.Hour)})
			if r, _ := next.Room(1); r.LastMessage.Text != "now" {
				t.Errorf("event %+v changed preview to %q", ev, r.LastMessage.Text)
			}
		}
	})
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh rotates current into previous", func(t *testing.T) {
		api := &fakeAPI{}
		clock := tu.NewFakeClock(epoch)
		store := NewSnapshotStore(api, clock, quietLogger())

		api.setRooms([]models.Room{groupRoom(1, 1, "a", epoch)}, nil)
		if _, err := store.Refresh(ctx); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if store.Previous().Loaded() {
			t.Error("previous should be empty after the first poll")
		}

		clock.Advance(time.Second)
		api.setRooms([]models.Room{groupRoom(1, 2, "b", epoch.Add(time.Second))}, nil)
		if _, err := store.Refresh(ctx); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}

		prev, _ := store.Previous().Room(1)
		cur, _ := store.Current().Room(1)
		if prev.UnreadCount != 1 || cur.UnreadCount != 2 {
			t.Errorf("expected previous=1 current=2, got %d and %d", prev.UnreadCount, cur.UnreadCount)
		}
	})

	t.Run("failed refresh keeps the last snapshot", func(t *testing.T) {
		api := &fakeAPI{}
		store := NewSnapshotStore(api, tu.NewFakeClock(epoch), quietLogger())
		api.setRooms([]models.Room{groupRoom(1, 0, "a", epoch)}, nil)
		_, _ = store.Refresh(ctx)

		boom := errors.New("boom")
		api.setRooms(nil, boom)
		rooms, err := store.Refresh(ctx)
		if !errors.Is(err, boom) {
			t.Fatalf("expected refresh error, got %v", err)
		}
		if got := ids(rooms); len(got) != 1 || got[0] != 1 {
			t.Errorf("expected last known rooms, got %v", got)
		}
		if store.Previous().Loaded() {
			t.Error("a failed refresh must not rotate snapshots")
		}
	})

	t.Run("ingest applies push to current", func(t *testing.T) {
		api := &fakeAPI{}
		store := NewSnapshotStore(api, tu.NewFakeClock(epoch), quietLogger())
		api.setRooms([]models.Room{groupRoom(1, 0, "a", epoch)}, nil)
		_, _ = store.Refresh(ctx)

		store.Ingest(event(1, 5, "pushed", epoch.Add(time.Second)))
		if r, _ := store.Current().Room(1); r.LastMessage.Text != "pushed" {
			t.Errorf("expected pushed preview, got %q", r.LastMessage.Text)
		}
	})
}
