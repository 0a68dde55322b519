package chat

import (
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/festa/internal/models"
)

func msg(id int64, at time.Time, content string) models.Message {
	return models.Message{ID: id, RoomID: 1, Content: content, ContentType: models.ContentText, CreatedAt: at}
}

func msgIDs(msgs []models.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestMessageLog(t *testing.T) {
	t.Run("orders by createdAt and dedups", func(t *testing.T) {
		l := NewMessageLog()
		added := l.Merge(msg(3, epoch.Add(3*time.Second), "c"), msg(1, epoch.Add(time.Second), "a"))
		added += l.Merge(msg(2, epoch.Add(2*time.Second), "b"), msg(1, epoch.Add(time.Second), "a"))

		if added != 3 {
			t.Errorf("expected 3 new messages, got %d", added)
		}
		if got := msgIDs(l.Messages()); !slices.Equal(got, []int64{1, 2, 3}) {
			t.Errorf("Messages = %v", got)
		}
	})

	t.Run("late history does not drop live messages", func(t *testing.T) {
		l := NewMessageLog()
		l.Merge(msg(10, epoch.Add(10*time.Second), "live"))
		l.Merge(msg(8, epoch.Add(8*time.Second), "h1"), msg(9, epoch.Add(9*time.Second), "h2"), msg(10, epoch.Add(10*time.Second), "live"))

		if got := msgIDs(l.Messages()); !slices.Equal(got, []int64{8, 9, 10}) {
			t.Errorf("Messages = %v", got)
		}
	})

	t.Run("merge order does not matter", func(t *testing.T) {
		a := []models.Message{msg(1, epoch, "a"), msg(2, epoch.Add(time.Second), "b")}
		b := []models.Message{msg(3, epoch.Add(2*time.Second), "c"), msg(2, epoch.Add(time.Second), "b")}

		x, y := NewMessageLog(), NewMessageLog()
		x.Merge(a...)
		x.Merge(b...)
		y.Merge(b...)
		y.Merge(a...)

		if !slices.Equal(msgIDs(x.Messages()), msgIDs(y.Messages())) {
			t.Errorf("logs differ: %v vs %v", msgIDs(x.Messages()), msgIDs(y.Messages()))
		}
	})

	t.Run("equal timestamps keep arrival order", func(t *testing.T) {
		l := NewMessageLog()
		l.Merge(msg(5, epoch, "x"), msg(4, epoch, "y"))
		if got := msgIDs(l.Messages()); !slices.Equal(got, []int64{5, 4}) {
			t.Errorf("Messages = %v", got)
		}
	})

	t.Run("deletion replaces in place", func(t *testing.T) {
		l := NewMessageLog()
		l.Merge(msg(1, epoch, "a"), msg(2, epoch.Add(time.Second), "b"))

		deleted := msg(2, epoch.Add(time.Hour), "")
		deleted.Deleted = true
		if n := l.Merge(deleted); n != 0 {
			t.Errorf("replacement counted as new: %d", n)
		}

		got := l.Messages()
		if len(got) != 2 || !got[1].Deleted || got[1].DisplayText() != models.DeletedPlaceholder {
			t.Fatalf("expected message 2 deleted in place, got %+v", got)
		}
		if !got[1].CreatedAt.Equal(epoch.Add(time.Second)) {
			t.Errorf("replacement moved message to %v", got[1].CreatedAt)
		}
		if l.Len() != 2 {
			t.Errorf("Len = %d", l.Len())
		}
	})
}
