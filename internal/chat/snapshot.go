package chat

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/shared"
)

// Snapshot is the room list as last reported by the server, plus any push updates applied since.
type Snapshot struct {
	Rooms     []models.Room
	FetchedAt time.Time
}

// Loaded reports whether at least one poll has been applied.
func (s Snapshot) Loaded() bool { return !s.FetchedAt.IsZero() }

// Room looks up a room by id.
func (s Snapshot) Room(id int64) (models.Room, bool) {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return models.Room{}, false
}

// Update is the input to [Reconcile]: a [PollUpdate] or a [PushUpdate].
type Update interface {
	isUpdate()
}

// PollUpdate is a full room list fetched over REST. It is authoritative for
// membership, names and unread counts.
type PollUpdate struct {
	Rooms []models.Room
	At    time.Time
}

// PushUpdate is a single event received on a room topic.
type PushUpdate struct {
	Event models.Event
	At    time.Time
}

func (PollUpdate) isUpdate() {}
func (PushUpdate) isUpdate() {}

// Reconcile returns the state that results from applying in to state. The input snapshot is not modified.
//
// A poll replaces the room list but keeps a last message preview that a push
// delivered after the server computed the poll. A push only moves a known
// room's preview forward; it never changes unread counts and never adds rooms.
func Reconcile(state Snapshot, in Update) Snapshot {
	switch u := in.(type) {
	case PollUpdate:
		return reconcilePoll(state, u)
	case PushUpdate:
		return reconcilePush(state, u)
	default:
		return state
	}
}

func reconcilePoll(state Snapshot, u PollUpdate) Snapshot {
	rooms := slices.Clone(u.Rooms)
	for i, r := range rooms {
		prev, ok := state.Room(r.ID)
		if !ok || prev.LastMessage == nil {
			continue
		}
		if r.LastMessage == nil || prev.LastMessage.Timestamp.After(r.LastMessage.Timestamp) {
			rooms[i].LastMessage = prev.LastMessage
		}
	}
	return Snapshot{Rooms: rooms, FetchedAt: u.At}
}

func reconcilePush(state Snapshot, u PushUpdate) Snapshot {
	if u.Event.IsPresence() {
		return state
	}
	msg, err := u.Event.Message(u.At)
	if err != nil {
		return state
	}

	idx := slices.IndexFunc(state.Rooms, func(r models.Room) bool { return r.ID == msg.RoomID })
	if idx < 0 {
		return state
	}
	if last := state.Rooms[idx].LastMessage; last != nil && last.Timestamp.After(msg.CreatedAt) {
		return state
	}

	rooms := slices.Clone(state.Rooms)
	rooms[idx].LastMessage = &models.LastMessage{Text: msg.DisplayText(), Timestamp: msg.CreatedAt}
	return Snapshot{Rooms: rooms, FetchedAt: state.FetchedAt}
}

// RoomFetcher lists the rooms the current user belongs to. [*services.Client] implements it.
type RoomFetcher interface {
	MyRooms(ctx context.Context) ([]models.Room, error)
}

// SnapshotStore holds the current and previous [Snapshot]. Polls go through
// Refresh, push events through Ingest; both apply [Reconcile].
type SnapshotStore struct {
	fetcher RoomFetcher
	clock   shared.Clock
	logger  *log.Logger

	mu       sync.RWMutex
	current  Snapshot
	previous Snapshot
}

func NewSnapshotStore(fetcher RoomFetcher, clock shared.Clock, logger *log.Logger) *SnapshotStore {
	return &SnapshotStore{fetcher: fetcher, clock: clock, logger: logger}
}

// Refresh polls the server and makes the result current, moving the old
// current snapshot to previous. On failure the store keeps what it had and
// returns those rooms along with the error.
func (s *SnapshotStore) Refresh(ctx context.Context) ([]models.Room, error) {
	rooms, err := s.fetcher.MyRooms(ctx)
	if err != nil {
		s.logger.Warn("room refresh failed, keeping last snapshot", "err", err)
		return s.Current().Rooms, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = s.current
	s.current = Reconcile(s.current, PollUpdate{Rooms: rooms, At: s.clock.Now()})
	return slices.Clone(s.current.Rooms), nil
}

// Ingest applies a push event to the current snapshot. Previous is left alone.
func (s *SnapshotStore) Ingest(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Reconcile(s.current, PushUpdate{Event: ev, At: s.clock.Now()})
}

// Current returns a copy of the current snapshot.
func (s *SnapshotStore) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Rooms: slices.Clone(s.current.Rooms), FetchedAt: s.current.FetchedAt}
}

// Previous returns a copy of the snapshot that was current before the last successful poll.
func (s *SnapshotStore) Previous() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Rooms: slices.Clone(s.previous.Rooms), FetchedAt: s.previous.FetchedAt}
}
