package chat

import (
	"testing"
	"time"

	"github.com/desertthunder/festa/internal/repositories"
	tu "github.com/desertthunder/festa/internal/testing"
)

func TestReadTracker(t *testing.T) {
	t.Run("suppresses inside the window only", func(t *testing.T) {
		clock := tu.NewFakeClock(epoch)
		store := repositories.NewMemoryStore()
		tracker := NewReadTracker(store, clock, 10*time.Second, quietLogger())

		if tracker.IsSuppressed(1) {
			t.Fatal("room without an entry should not be suppressed")
		}
		if err := tracker.MarkSent(1); err != nil {
			t.Fatalf("MarkSent failed: %v", err)
		}

		clock.Advance(9 * time.Second)
		if !tracker.IsSuppressed(1) {
			t.Error("expected suppression 9s after send")
		}

		clock.Advance(time.Second)
		if tracker.IsSuppressed(1) {
			t.Error("expected suppression to lapse at the window boundary")
		}
		if _, ok, _ := store.Get(repositories.NamespaceOptimistic, "1"); ok {
			t.Error("expected stale entry to be deleted on lookup")
		}
	})

	t.Run("only the marked room is suppressed", func(t *testing.T) {
		tracker := NewReadTracker(repositories.NewMemoryStore(), tu.NewFakeClock(epoch), 0, quietLogger())
		_ = tracker.MarkSent(1)
		if tracker.IsSuppressed(2) {
			t.Error("room 2 should not be suppressed by a send in room 1")
		}
	})

	t.Run("prune removes stale entries", func(t *testing.T) {
		clock := tu.NewFakeClock(epoch)
		tracker := NewReadTracker(repositories.NewMemoryStore(), clock, 10*time.Second, quietLogger())
		_ = tracker.MarkSent(1)
		clock.Advance(11 * time.Second)
		_ = tracker.MarkSent(2)

		n, err := tracker.Prune()
		if err != nil {
			t.Fatalf("Prune failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 pruned entry, got %d", n)
		}

		entries, err := tracker.Entries()
		if err != nil {
			t.Fatalf("Entries failed: %v", err)
		}
		if _, ok := entries[2]; !ok || len(entries) != 1 {
			t.Errorf("expected only room 2 to remain, got %v", entries)
		}
	})

	t.Run("entries survive a new tracker on the same store", func(t *testing.T) {
		clock := tu.NewFakeClock(epoch)
		store := repositories.NewMemoryStore()
		_ = NewReadTracker(store, clock, 0, quietLogger()).MarkSent(5)

		again := NewReadTracker(store, clock, 0, quietLogger())
		if !again.IsSuppressed(5) {
			t.Error("expected persisted entry to suppress room 5")
		}
	})
}

func TestFailedReferenceCache(t *testing.T) {
	store := repositories.NewMemoryStore()
	cache := NewFailedReferenceCache(store, tu.NewFakeClock(epoch))

	if cache.Contains(9) {
		t.Fatal("empty cache should not contain 9")
	}
	if err := cache.Add(9); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !NewFailedReferenceCache(store, tu.NewFakeClock(epoch)).Contains(9) {
		t.Error("expected failed id to persist")
	}

	list, err := cache.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if at, ok := list[9]; !ok || !at.Equal(epoch) {
		t.Errorf("expected 9 recorded at %v, got %v", epoch, list)
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cache.Contains(9) {
		t.Error("expected cache to be empty after Clear")
	}
}
