package chat

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/repositories"
)

// RouteState tracks which room, if any, the user is looking at.
type RouteState struct {
	mu     sync.RWMutex
	roomID int64
	open   bool
}

// Enter records that roomID is on screen.
func (r *RouteState) Enter(roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roomID, r.open = roomID, true
}

// Leave clears the route if roomID is the open room.
func (r *RouteState) Leave(roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open && r.roomID == roomID {
		r.roomID, r.open = 0, false
	}
}

// Current returns the open room.
func (r *RouteState) Current() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roomID, r.open
}

// Viewing reports whether roomID is the open room.
func (r *RouteState) Viewing(roomID int64) bool {
	id, open := r.Current()
	return open && id == roomID
}

// Notification is a local alert about activity in a room.
type Notification struct {
	RoomID int64
	Title  string
	Body   string
}

// Notifier displays notifications on some surface.
type Notifier interface {
	RequestPermission(ctx context.Context) (bool, error)
	Notify(n Notification) error
}

const (
	keyPermission     = "notification_permission"
	permissionGranted = "granted"
	permissionDenied  = "denied"
)

// NotificationGate decides whether a notification is shown. Permission is
// requested lazily, once, and the answer is persisted; a denial is never
// asked again. Suppression happens only when the user is viewing the room.
type NotificationGate struct {
	route    *RouteState
	notifier Notifier
	store    repositories.Store
	logger   *log.Logger

	mu        sync.Mutex
	resolved  bool
	permitted bool
}

func NewNotificationGate(route *RouteState, notifier Notifier, store repositories.Store, logger *log.Logger) *NotificationGate {
	return &NotificationGate{route: route, notifier: notifier, store: store, logger: logger}
}

// RequestPermission returns whether notifications may be shown, asking the notifier only the first time ever.
func (g *NotificationGate) RequestPermission(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolved {
		return g.permitted
	}

	stored, ok, err := g.store.Get(repositories.NamespacePreferences, keyPermission)
	if err != nil {
		g.logger.Warn("failed to read notification permission", "err", err)
	}
	if ok {
		g.resolved, g.permitted = true, stored == permissionGranted
		return g.permitted
	}

	granted, err := g.notifier.RequestPermission(ctx)
	if err != nil {
		// Undecided: try again on the next call.
		g.logger.Warn("notification permission request failed", "err", err)
		return false
	}

	answer := permissionDenied
	if granted {
		answer = permissionGranted
	}
	if err := g.store.Put(repositories.NamespacePreferences, keyPermission, answer); err != nil {
		g.logger.Warn("failed to persist notification permission", "err", err)
	}
	g.resolved, g.permitted = true, granted
	return granted
}

// ShouldNotify is false only when the user is already viewing roomID.
func (g *NotificationGate) ShouldNotify(roomID int64) bool {
	return !g.route.Viewing(roomID)
}

// Notify shows n when permitted and not suppressed. It reports whether it was shown.
func (g *NotificationGate) Notify(ctx context.Context, n Notification) bool {
	if !g.ShouldNotify(n.RoomID) {
		g.logger.Debug("notification suppressed, room is open", "room", n.RoomID)
		return false
	}
	if !g.RequestPermission(ctx) {
		return false
	}
	if err := g.notifier.Notify(n); err != nil {
		g.logger.Warn("failed to show notification", "room", n.RoomID, "err", err)
		return false
	}
	return true
}

// WriterNotifier prints notifications as lines. Permission is the Enabled flag.
type WriterNotifier struct {
	W       io.Writer
	Enabled bool
}

func (w WriterNotifier) RequestPermission(context.Context) (bool, error) {
	return w.Enabled, nil
}

func (w WriterNotifier) Notify(n Notification) error {
	_, err := fmt.Fprintf(w.W, "[%d] %s: %s\n", n.RoomID, n.Title, n.Body)
	return err
}
