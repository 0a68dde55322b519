package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/shared"
)

// DefaultPollInterval is how often the room list is refreshed.
const DefaultPollInterval = 5 * time.Second

// RoomList is what the controller publishes after each refresh.
type RoomList struct {
	Views
	// Posts maps companion room ids to their resolved originating post.
	Posts     map[int64]*models.Post
	FetchedAt time.Time
	// Err is the refresh error when the lists are from an older snapshot.
	Err error
}

// Stale reports whether the lists could not be refreshed.
func (l RoomList) Stale() bool { return l.Err != nil }

// ControllerOptions wires a [ChatListController].
type ControllerOptions struct {
	Store        *SnapshotStore
	Tracker      *ReadTracker
	Gate         *NotificationGate
	Enricher     *Enricher
	PollInterval time.Duration
	// EmptyPreview is the placeholder text the server uses for rooms without messages.
	EmptyPreview string
	Logger       *log.Logger
}

// ChatListController keeps the room list fresh: it polls on an interval and
// on focus, raises notifications for rooms whose unread count went up, enriches
// companion rooms and publishes classified views.
type ChatListController struct {
	store        *SnapshotStore
	tracker      *ReadTracker
	gate         *NotificationGate
	enricher     *Enricher
	classifier   Classifier
	interval     time.Duration
	emptyPreview string
	logger       *log.Logger

	updates chan RoomList
	mu      sync.RWMutex
	last    RoomList
	refresh sync.Mutex
}

func NewChatListController(opts ControllerOptions) *ChatListController {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &ChatListController{
		store:        opts.Store,
		tracker:      opts.Tracker,
		gate:         opts.Gate,
		enricher:     opts.Enricher,
		classifier:   Classifier{Tracker: opts.Tracker},
		interval:     opts.PollInterval,
		emptyPreview: opts.EmptyPreview,
		logger:       opts.Logger.With("component", "chatlist"),
		updates:      make(chan RoomList, 1),
	}
}

// Updates delivers a [RoomList] after every refresh. Slow readers only miss intermediate lists.
func (c *ChatListController) Updates() <-chan RoomList { return c.updates }

// Current returns the most recently published list.
func (c *ChatListController) Current() RoomList {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Classifier returns the classifier the controller uses, for callers that need to recompute views.
func (c *ChatListController) Classifier() Classifier { return c.classifier }

// Run refreshes immediately, then on every tick and every focus signal, until ctx is done.
// Notification permission is requested before the first refresh.
func (c *ChatListController) Run(ctx context.Context, focus <-chan struct{}) error {
	if c.gate != nil {
		c.gate.RequestPermission(ctx)
	}
	c.RefreshOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.RefreshOnce(ctx)
		case _, ok := <-focus:
			if !ok {
				focus = nil
				continue
			}
			c.logger.Debug("refreshing on focus")
			c.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce performs one poll cycle and returns the published list.
func (c *ChatListController) RefreshOnce(ctx context.Context) RoomList {
	c.refresh.Lock()
	defer c.refresh.Unlock()

	rooms, err := c.store.Refresh(ctx)
	if c.tracker != nil {
		if n, perr := c.tracker.Prune(); perr != nil {
			c.logger.Warn("failed to prune optimistic entries", "err", perr)
		} else if n > 0 {
			c.logger.Debug("pruned optimistic entries", "count", n)
		}
	}

	if err == nil {
		c.notifyIncreases(ctx, c.store.Previous(), c.store.Current())
	}

	list := RoomList{
		Views:     c.classifier.Views(rooms),
		FetchedAt: c.store.Current().FetchedAt,
		Err:       err,
	}
	if c.enricher != nil {
		list.Posts = c.enricher.Enrich(ctx, list.Companion)
	}

	c.publish(list)
	return list
}

// Increases returns the rooms whose unread count rose between prev and cur and
// whose preview is real content. Nothing is reported until prev has been loaded,
// so the first poll of a run does not alert on every old unread room.
func Increases(prev, cur Snapshot, emptyPreview string) []models.Room {
	if !prev.Loaded() {
		return nil
	}

	var out []models.Room
	for _, r := range cur.Rooms {
		before := 0
		if p, ok := prev.Room(r.ID); ok {
			before = p.UnreadCount
		}
		if r.UnreadCount <= 0 || r.UnreadCount <= before {
			continue
		}
		if r.LastMessage == nil || r.LastMessage.Text == "" || r.LastMessage.Text == emptyPreview {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (c *ChatListController) notifyIncreases(ctx context.Context, prev, cur Snapshot) {
	if c.gate == nil {
		return
	}
	for _, r := range Increases(prev, cur, c.emptyPreview) {
		n := Notification{
			RoomID: r.ID,
			Title:  r.DisplayName(),
			Body:   fmt.Sprintf("%s (%d unread)", r.LastMessage.Text, r.UnreadCount),
		}
		if c.gate.Notify(ctx, n) {
			c.logger.Info("notified", "room", r.ID, "unread", r.UnreadCount)
		}
	}
}

func (c *ChatListController) publish(list RoomList) {
	c.mu.Lock()
	c.last = list
	c.mu.Unlock()

	// Replace an undelivered older list so readers see the newest.
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- list:
	default:
		c.logger.Debug("room list update dropped")
	}
}
