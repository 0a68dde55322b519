package chat

import (
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/repositories"
	"github.com/desertthunder/festa/internal/shared"
)

// DefaultOptimisticWindow is how long a local send or exit hides a room's unread state.
const DefaultOptimisticWindow = 10 * time.Second

// ReadTracker records when the user last sent into or left a room, so the
// room list does not flash unread before the server catches up.
type ReadTracker struct {
	store  repositories.Store
	clock  shared.Clock
	window time.Duration
	logger *log.Logger

	mu sync.Mutex
}

// NewReadTracker creates a tracker persisted in the optimistic_read namespace of store.
func NewReadTracker(store repositories.Store, clock shared.Clock, window time.Duration, logger *log.Logger) *ReadTracker {
	if window <= 0 {
		window = DefaultOptimisticWindow
	}
	return &ReadTracker{store: store, clock: clock, window: window, logger: logger}
}

// MarkSent records the current time for roomID.
func (t *ReadTracker) MarkSent(roomID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := strconv.FormatInt(t.clock.Now().UnixMilli(), 10)
	return t.store.Put(repositories.NamespaceOptimistic, strconv.FormatInt(roomID, 10), now)
}

// IsSuppressed reports whether roomID was marked less than the window ago.
// A stale entry found here is deleted.
func (t *ReadTracker) IsSuppressed(roomID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := strconv.FormatInt(roomID, 10)
	raw, ok, err := t.store.Get(repositories.NamespaceOptimistic, key)
	if err != nil {
		t.logger.Warn("failed to read optimistic entry", "room", roomID, "err", err)
		return false
	}
	if !ok {
		return false
	}

	if t.active(raw) {
		return true
	}
	if err := t.store.Delete(repositories.NamespaceOptimistic, key); err != nil {
		t.logger.Warn("failed to prune optimistic entry", "room", roomID, "err", err)
	}
	return false
}

func (t *ReadTracker) active(raw string) bool {
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return t.clock.Now().Sub(time.UnixMilli(millis)) < t.window
}

// Prune deletes every entry older than the window and returns how many were removed.
func (t *ReadTracker) Prune() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := t.store.List(repositories.NamespaceOptimistic)
	if err != nil {
		return 0, err
	}

	removed := 0
	for key, raw := range entries {
		if t.active(raw) {
			continue
		}
		if err := t.store.Delete(repositories.NamespaceOptimistic, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Entries returns every stored entry, active or not.
func (t *ReadTracker) Entries() (map[int64]time.Time, error) {
	entries, err := t.store.List(repositories.NamespaceOptimistic)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]time.Time, len(entries))
	for key, raw := range entries {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[id] = time.UnixMilli(millis)
	}
	return out, nil
}

// FailedReferenceCache is the persisted set of post ids that came back not-found or invalid.
// Ids in it are never requested again.
type FailedReferenceCache struct {
	store repositories.Store
	clock shared.Clock
}

func NewFailedReferenceCache(store repositories.Store, clock shared.Clock) *FailedReferenceCache {
	return &FailedReferenceCache{store: store, clock: clock}
}

// Contains reports whether postID is cached as failed. Storage errors count as absent.
func (c *FailedReferenceCache) Contains(postID int64) bool {
	_, ok, err := c.store.Get(repositories.NamespaceFailedPosts, strconv.FormatInt(postID, 10))
	return err == nil && ok
}

// Add records postID as permanently failed.
func (c *FailedReferenceCache) Add(postID int64) error {
	return c.store.Put(repositories.NamespaceFailedPosts, strconv.FormatInt(postID, 10), c.clock.Now().UTC().Format(time.RFC3339))
}

// List returns the failed ids with the time each was recorded.
func (c *FailedReferenceCache) List() (map[int64]time.Time, error) {
	entries, err := c.store.List(repositories.NamespaceFailedPosts)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]time.Time, len(entries))
	for key, raw := range entries {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		at, _ := time.Parse(time.RFC3339, raw)
		out[id] = at
	}
	return out, nil
}

// Clear empties the cache so every post becomes eligible for enrichment again.
func (c *FailedReferenceCache) Clear() error {
	entries, err := c.store.List(repositories.NamespaceFailedPosts)
	if err != nil {
		return err
	}
	for key := range entries {
		if err := c.store.Delete(repositories.NamespaceFailedPosts, key); err != nil {
			return err
		}
	}
	return nil
}
