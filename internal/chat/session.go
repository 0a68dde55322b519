package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/realtime"
	"github.com/desertthunder/festa/internal/services"
	"github.com/desertthunder/festa/internal/shared"
)

// SessionState is the lifecycle state of a [ChatRoomSession].
type SessionState int

const (
	SessionInit SessionState = iota
	SessionLoadingHistory
	SessionLive
	SessionClosing
	SessionClosed
)

func (s SessionState) String() string {
	return [...]string{"init", "loading_history", "live", "closing", "closed"}[s]
}

// Default delays before a read receipt is sent.
const (
	DefaultEnterReadDelay = 500 * time.Millisecond
	DefaultEchoReadDelay  = 300 * time.Millisecond
)

// RoomAPI is the REST surface a session uses. [*services.Client] implements it.
type RoomAPI interface {
	MemberInfo(ctx context.Context, roomID int64) ([]models.Member, error)
	IsOwner(ctx context.Context, roomID int64) (bool, error)
	Messages(ctx context.Context, roomID int64, page, size int) ([]models.Message, error)
	JoinRoom(ctx context.Context, roomID int64) error
	ExitRoom(ctx context.Context, roomID int64) error
	DeleteRoom(ctx context.Context, roomID int64) error
	RenameRoom(ctx context.Context, roomID int64, name string) error
}

// IdentityStore persists the current user's identifiers. [*repositories.SessionRepository] implements it.
type IdentityStore interface {
	Identity() (models.Identity, error)
	SaveIdentity(models.Identity) error
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer func(prompt string) bool

// SessionEventKind classifies a [SessionEvent].
type SessionEventKind int

const (
	EventMessage SessionEventKind = iota
	EventPresence
	EventState
	EventTitle
)

// SessionEvent tells the view layer that something in the session changed.
type SessionEvent struct {
	Kind    SessionEventKind
	Message models.Message
	Mine    bool
	Text    string
	State   SessionState
}

// ActionError is a failed user-initiated action. Message is the server's text, unchanged.
type ActionError struct {
	Action  string
	Message string
	Err     error
}

func (e *ActionError) Error() string { return e.Action + " failed: " + e.Message }
func (e *ActionError) Unwrap() error { return e.Err }

// SessionOptions wires a [ChatRoomSession].
type SessionOptions struct {
	RoomID         int64
	Title          string
	API            RoomAPI
	Channel        *realtime.Channel
	Tracker        *ReadTracker
	Snapshots      *SnapshotStore
	Gate           *NotificationGate
	Route          *RouteState
	Identity       IdentityStore
	Clock          shared.Clock
	EnterReadDelay time.Duration
	EchoReadDelay  time.Duration
	PageSize       int
	Logger         *log.Logger
}

// ChatRoomSession controls one open room. It moves through
// init → loading_history → live → closing → closed and never goes back.
type ChatRoomSession struct {
	roomID    int64
	api       RoomAPI
	channel   *realtime.Channel
	tracker   *ReadTracker
	snapshots *SnapshotStore
	gate      *NotificationGate
	route     *RouteState
	ids       IdentityStore
	clock     shared.Clock
	enterRead time.Duration
	echoRead  time.Duration
	pageSize  int
	logger    *log.Logger

	log    *MessageLog
	events chan SessionEvent

	mu       sync.Mutex
	state    SessionState
	role     models.Role
	identity models.Identity
	title    string
	sub      *realtime.Subscription
	timers   []shared.Timer
}

func NewChatRoomSession(opts SessionOptions) *ChatRoomSession {
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock()
	}
	if opts.EnterReadDelay <= 0 {
		opts.EnterReadDelay = DefaultEnterReadDelay
	}
	if opts.EchoReadDelay <= 0 {
		opts.EchoReadDelay = DefaultEchoReadDelay
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Route == nil {
		opts.Route = &RouteState{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &ChatRoomSession{
		roomID:    opts.RoomID,
		api:       opts.API,
		channel:   opts.Channel,
		tracker:   opts.Tracker,
		snapshots: opts.Snapshots,
		gate:      opts.Gate,
		route:     opts.Route,
		ids:       opts.Identity,
		clock:     opts.Clock,
		enterRead: opts.EnterReadDelay,
		echoRead:  opts.EchoReadDelay,
		pageSize:  opts.PageSize,
		logger:    opts.Logger.With("room", opts.RoomID),
		log:       NewMessageLog(),
		events:    make(chan SessionEvent, 64),
		role:      models.RoleMember,
		title:     opts.Title,
	}
}

func (s *ChatRoomSession) RoomID() int64 { return s.roomID }

// Events delivers session changes. The channel is closed when the session closes.
func (s *ChatRoomSession) Events() <-chan SessionEvent { return s.events }

// Messages returns the ordered message log.
func (s *ChatRoomSession) Messages() []models.Message { return s.log.Messages() }

// IsMine reports whether m was sent by the current user, matched by verify id or member id.
func (s *ChatRoomSession) IsMine(m models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Owns(m.SenderVerifyID, m.SenderMemberID)
}

func (s *ChatRoomSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ChatRoomSession) Role() models.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *ChatRoomSession) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// alive must be called with mu held.
func (s *ChatRoomSession) alive() bool {
	return s.state != SessionClosing && s.state != SessionClosed
}

func (s *ChatRoomSession) setState(st SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive() {
		return false
	}
	s.state = st
	s.emitLocked(SessionEvent{Kind: EventState, State: st})
	return true
}

// emitLocked must be called with mu held; it never blocks.
func (s *ChatRoomSession) emitLocked(ev SessionEvent) {
	if s.state == SessionClosed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Debug("session event dropped", "kind", ev.Kind)
	}
}

// Open enters the room: resolve the role, load history, connect, announce
// entry, join, subscribe and schedule a read receipt. Only a missing room id
// or a session closed mid-way is an error; every other failure is logged and
// the session goes live with whatever it has.
func (s *ChatRoomSession) Open(ctx context.Context) error {
	if s.roomID <= 0 {
		return shared.ErrMissingRoom
	}

	s.mu.Lock()
	if s.state != SessionInit {
		s.mu.Unlock()
		return fmt.Errorf("%w: session already opened", shared.ErrInvalidInput)
	}
	s.state = SessionLoadingHistory
	s.mu.Unlock()
	s.route.Enter(s.roomID)

	s.resolveRole(ctx)
	if !s.isAlive() {
		return shared.ErrSessionClosed
	}

	history, err := s.api.Messages(ctx, s.roomID, 0, s.pageSize)
	if err != nil {
		s.logger.Warn("failed to load history", "err", err)
	}
	if !s.isAlive() {
		return shared.ErrSessionClosed
	}
	if added := s.log.Merge(history...); added > 0 {
		s.logger.Debug("history loaded", "count", added)
	}

	s.goLive(ctx)
	if !s.setState(SessionLive) {
		return shared.ErrSessionClosed
	}
	return nil
}

func (s *ChatRoomSession) isAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive()
}

// resolveRole asks memberInfo, then the owner endpoint, then settles on member.
// The first memberInfo entry is the current user and teaches us their identity.
func (s *ChatRoomSession) resolveRole(ctx context.Context) {
	role := models.RoleMember
	var learned models.Identity

	members, err := s.api.MemberInfo(ctx, s.roomID)
	switch {
	case err == nil && len(members) > 0:
		if members[0].Role == models.RoleOwner {
			role = models.RoleOwner
		}
		learned = models.Identity{VerifyID: members[0].VerifyID, MemberID: members[0].MemberID}
	default:
		if err != nil {
			s.logger.Warn("member info unavailable", "err", err)
		}
		owner, err := s.api.IsOwner(ctx, s.roomID)
		if err != nil {
			s.logger.Warn("could not resolve role, assuming member", "err", err)
		}
		if owner {
			role = models.RoleOwner
		}
	}

	if s.ids != nil {
		if !learned.IsZero() {
			if err := s.ids.SaveIdentity(learned); err != nil {
				s.logger.Warn("failed to save identity", "err", err)
			}
		}
		if id, err := s.ids.Identity(); err == nil {
			learned = id
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive() {
		return
	}
	s.role = role
	s.identity = learned
	if learned.IsZero() {
		s.logger.Warn("own identity unknown, no message will be marked as mine")
	}
}

func (s *ChatRoomSession) goLive(ctx context.Context) {
	if s.channel == nil {
		return
	}
	if s.channel.State() == realtime.StateDisconnected {
		if err := s.channel.Connect(ctx); err != nil {
			s.logger.Warn("push channel unavailable, room will not update live", "err", err)
			return
		}
	}
	if !s.isAlive() {
		return
	}

	if err := s.channel.SendEnter(s.roomID); err != nil {
		s.logger.Warn("failed to send enter", "err", err)
	}
	if err := s.api.JoinRoom(ctx, s.roomID); err != nil {
		s.logger.Debug("join on entry failed", "err", err)
	}

	sub, err := s.channel.Subscribe(s.roomID, s.handle)
	if err != nil {
		s.logger.Warn("failed to subscribe", "err", err)
		return
	}

	s.mu.Lock()
	if !s.alive() {
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	s.sub = sub
	s.mu.Unlock()

	s.scheduleRead(s.enterRead)
}

// scheduleRead sends a read receipt after d unless the session closes first.
func (s *ChatRoomSession) scheduleRead(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive() {
		return
	}
	t := s.clock.AfterFunc(d, func() {
		if !s.isAlive() {
			return
		}
		if err := s.channel.SendRead(s.roomID); err != nil {
			s.logger.Debug("delayed read not sent", "err", err)
		}
	})
	s.timers = append(s.timers, t)
}

// handle is the single dispatch point for events on the room topic.
func (s *ChatRoomSession) handle(body []byte) {
	if !s.isAlive() {
		return
	}

	ev, err := models.ParseEvent(body)
	if err != nil {
		s.logger.Warn("dropping malformed event", "err", err)
		return
	}
	if ev.ChatRoomID != 0 && ev.ChatRoomID != s.roomID {
		s.logger.Debug("dropping event for another room", "event_room", ev.ChatRoomID)
		return
	}

	if ev.IsPresence() {
		text := fmt.Sprintf("%s %s", displayName(ev.MemberName), presenceVerb(ev.EventType))
		s.logger.Info(text)
		s.mu.Lock()
		if s.alive() {
			s.emitLocked(SessionEvent{Kind: EventPresence, Text: text})
		}
		s.mu.Unlock()
		return
	}

	msg, err := ev.Message(s.clock.Now())
	if err != nil {
		s.logger.Warn("dropping event", "err", err)
		return
	}

	s.mu.Lock()
	if !s.alive() {
		s.mu.Unlock()
		return
	}
	mine := s.identity.Owns(msg.SenderVerifyID, msg.SenderMemberID)
	title := s.title
	s.log.Merge(msg)
	s.emitLocked(SessionEvent{Kind: EventMessage, Message: msg, Mine: mine})
	s.mu.Unlock()

	if s.snapshots != nil {
		s.snapshots.Ingest(ev)
	}
	if mine {
		return
	}

	if s.gate != nil {
		s.gate.Notify(context.Background(), Notification{
			RoomID: s.roomID,
			Title:  title,
			Body:   msg.DisplaySender() + ": " + msg.DisplayText(),
		})
	}
	s.scheduleRead(s.echoRead)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return models.UnknownSender
	}
	return name
}

func presenceVerb(t models.EventType) string {
	if t == models.EventJoin {
		return "joined"
	}
	return "left"
}

// Send publishes a text message. Empty content and a missing room are
// rejected before anything goes on the wire.
func (s *ChatRoomSession) Send(content string) error {
	return s.SendContent(content, models.ContentText, "")
}

// SendContent publishes a message of any content type, with an optional uploaded media key.
func (s *ChatRoomSession) SendContent(content string, contentType models.ContentType, mediaKey string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return shared.ErrEmptyMessage
	}
	if s.roomID <= 0 {
		return shared.ErrMissingRoom
	}
	if !s.isAlive() {
		return shared.ErrSessionClosed
	}
	if s.channel == nil {
		return shared.ErrNotConnected
	}

	err := s.channel.SendMessage(realtime.OutgoingMessage{
		ChatRoomID:   s.roomID,
		Content:      content,
		Type:         string(contentType),
		TempMediaKey: mediaKey,
	})
	if err != nil {
		return err
	}
	s.markRead()
	return nil
}

func (s *ChatRoomSession) markRead() {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.MarkSent(s.roomID); err != nil {
		s.logger.Warn("failed to record optimistic read", "err", err)
	}
}

// Close tears the session down: pending timers stop and the handler is
// released first, then read and leave are sent and the channel disconnects.
// Calling Close again does nothing.
func (s *ChatRoomSession) Close() error {
	s.mu.Lock()
	if !s.alive() {
		s.mu.Unlock()
		return nil
	}
	s.state = SessionClosing
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Debug("unsubscribe failed", "err", err)
		}
	}

	var err error
	if s.channel != nil && s.channel.State() == realtime.StateConnected {
		if rerr := s.channel.SendRead(s.roomID); rerr != nil {
			s.logger.Debug("final read not sent", "err", rerr)
		}
		if lerr := s.channel.SendLeave(s.roomID); lerr != nil {
			s.logger.Debug("leave not sent", "err", lerr)
		}
	}
	if s.channel != nil {
		err = s.channel.Disconnect()
	}

	s.markRead()
	s.route.Leave(s.roomID)

	s.mu.Lock()
	s.state = SessionClosed
	close(s.events)
	s.mu.Unlock()
	s.logger.Info("session closed")
	return err
}

// Rename changes the room name. Only the owner may rename; others are refused
// without a request. The new title is applied locally because no push follows.
func (s *ChatRoomSession) Rename(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if s.Role() != models.RoleOwner {
		return shared.ErrOwnerOnly
	}
	if name == "" {
		return fmt.Errorf("%w: room name is empty", shared.ErrInvalidInput)
	}

	if err := s.api.RenameRoom(ctx, s.roomID, name); err != nil {
		return &ActionError{Action: "rename", Message: services.ServerMessage(err), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alive() {
		s.title = name
		s.emitLocked(SessionEvent{Kind: EventTitle, Text: name})
	}
	return nil
}

// Delete removes the room after confirmation. Only the owner may delete; the
// request is never sent otherwise. On failure the session stays open.
func (s *ChatRoomSession) Delete(ctx context.Context, confirm Confirmer) error {
	if s.Role() != models.RoleOwner {
		return shared.ErrOwnerOnly
	}
	return s.destroy(ctx, confirm, "delete", "Delete this room for everyone?", s.api.DeleteRoom)
}

// Leave exits the room after confirmation. Any member, the owner included, may leave.
func (s *ChatRoomSession) Leave(ctx context.Context, confirm Confirmer) error {
	return s.destroy(ctx, confirm, "leave", "Leave this room?", s.api.ExitRoom)
}

func (s *ChatRoomSession) destroy(ctx context.Context, confirm Confirmer, action, prompt string, call func(context.Context, int64) error) error {
	if !s.isAlive() {
		return shared.ErrSessionClosed
	}
	if confirm == nil || !confirm(prompt) {
		return shared.ErrCancelled
	}

	if err := call(ctx, s.roomID); err != nil {
		s.logger.Error(action+" failed", "err", err)
		return &ActionError{Action: action, Message: services.ServerMessage(err), Err: err}
	}

	s.logger.Info(action + " succeeded")
	return s.Close()
}
