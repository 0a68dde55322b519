package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/shared"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state of a [Channel].
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the subset of [*websocket.Conn] the channel needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a [Conn].
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, header http.Header) (Conn, error)
}

// WebsocketDialer adapts [websocket.Dialer] to [Dialer].
type WebsocketDialer struct {
	*websocket.Dialer
}

func (d WebsocketDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, urlStr, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial status %d: %v", shared.ErrHandshake, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrHandshake, err)
	}
	return conn, nil
}

// TokenProvider returns the bearer token presented in the CONNECT frame.
type TokenProvider interface {
	AccessToken() (string, error)
}

// Handler receives the raw body of every MESSAGE frame on a room topic.
type Handler func(body []byte)

// Options configures a [Channel].
type Options struct {
	URL              string
	Dialer           Dialer
	Tokens           TokenProvider
	HandshakeTimeout time.Duration
	Logger           *log.Logger
}

// Channel is the push connection to the chat broker.
type Channel struct {
	url              string
	dialer           Dialer
	tokens           TokenProvider
	handshakeTimeout time.Duration
	logger           *log.Logger

	mu     sync.Mutex
	state  State
	conn   Conn
	rooms  map[int64]*Subscription
	subIDs map[string]*Subscription

	writeMu sync.Mutex
}

// NewChannel creates a disconnected [Channel].
func NewChannel(opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Channel{
		url:              opts.URL,
		dialer:           opts.Dialer,
		tokens:           opts.Tokens,
		handshakeTimeout: opts.HandshakeTimeout,
		logger:           opts.Logger.With("component", "realtime"),
		rooms:            make(map[int64]*Subscription),
		subIDs:           make(map[string]*Subscription),
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the broker and completes the STOMP handshake. It returns once
// CONNECTED arrives, and fails with [shared.ErrHandshake] on an ERROR frame,
// a dial failure or the handshake timeout.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return shared.ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.handshake(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		return err
	}
	if c.state != StateConnecting {
		// Disconnect was called while the handshake was in flight.
		conn.Close()
		return fmt.Errorf("%w: disconnected during handshake", shared.ErrHandshake)
	}

	c.state = StateConnected
	c.conn = conn
	go c.readLoop(conn)
	c.logger.Info("connected", "url", c.url)
	return nil
}

func (c *Channel) handshake(ctx context.Context) (Conn, error) {
	var token string
	if c.tokens != nil {
		t, err := c.tokens.AccessToken()
		if err != nil {
			return nil, err
		}
		token = t
	}

	ctx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, err
	}

	host := c.url
	if u, err := url.Parse(c.url); err == nil {
		host = u.Hostname()
	}
	connect := NewFrame(CmdConnect, nil, "accept-version", "1.2", "host", host, "heart-beat", "0,0")
	if token != "" {
		connect.Headers["Authorization"] = "Bearer " + token
	}
	if err := conn.WriteMessage(websocket.TextMessage, connect.Encode()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", shared.ErrHandshake, err)
	}

	result := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				result <- fmt.Errorf("%w: %v", shared.ErrHandshake, err)
				return
			}
			f, err := Decode(data)
			if err != nil || f.IsHeartbeat() {
				continue
			}
			switch f.Command {
			case CmdConnected:
				result <- nil
				return
			case CmdError:
				msg := f.Header("message")
				if msg == "" {
					msg = string(f.Body)
				}
				result <- fmt.Errorf("%w: broker refused connection: %s", shared.ErrHandshake, msg)
				return
			}
		}
	}()

	select {
	case err := <-result:
		if err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	case <-ctx.Done():
		// closing unblocks the reader goroutine
		conn.Close()
		return nil, fmt.Errorf("%w: %v", shared.ErrHandshake, ctx.Err())
	}
}

func (c *Channel) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.dropped(conn, err)
			return
		}

		f, err := Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "err", err)
			continue
		}
		if f.IsHeartbeat() {
			continue
		}

		switch f.Command {
		case CmdMessage:
			c.dispatch(f)
		case CmdError:
			c.logger.Error("broker error", "message", f.Header("message"), "body", string(f.Body))
		default:
			c.logger.Debug("ignoring frame", "command", f.Command)
		}
	}
}

func (c *Channel) dispatch(f Frame) {
	c.mu.Lock()
	sub := c.subIDs[f.Header("subscription")]
	if sub == nil {
		if roomID, ok := roomFromTopic(f.Header("destination")); ok {
			sub = c.rooms[roomID]
		}
	}
	c.mu.Unlock()

	if sub == nil {
		c.logger.Debug("no handler for message", "destination", f.Header("destination"))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("room handler panicked", "room", sub.roomID, "panic", r)
		}
	}()
	sub.handler(f.Body)
}

// dropped handles a read failure. Nothing happens when conn was already replaced or torn down.
func (c *Channel) dropped(conn Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.reset()
	c.mu.Unlock()

	conn.Close()
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Warn("connection lost", "err", err)
	} else {
		c.logger.Info("connection closed", "err", err)
	}
}

// reset must be called with mu held.
func (c *Channel) reset() {
	c.state = StateDisconnected
	c.conn = nil
	for _, sub := range c.rooms {
		sub.active = false
	}
	c.rooms = make(map[int64]*Subscription)
	c.subIDs = make(map[string]*Subscription)
}

// Disconnect sends DISCONNECT and closes the connection. It is a no-op when already disconnected.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.reset()
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := c.write(conn, NewFrame(CmdDisconnect, nil)); err != nil {
		c.logger.Debug("disconnect frame not sent", "err", err)
	}
	c.logger.Info("disconnected")
	return conn.Close()
}

// Subscription is an active room topic subscription.
type Subscription struct {
	id      string
	roomID  int64
	handler Handler
	channel *Channel
	active  bool
}

// RoomID returns the subscribed room.
func (s *Subscription) RoomID() int64 { return s.roomID }

// Unsubscribe releases the handler immediately, then tells the broker when still connected.
// Calling it more than once is safe.
func (s *Subscription) Unsubscribe() error {
	c := s.channel
	c.mu.Lock()
	if !s.active {
		c.mu.Unlock()
		return nil
	}
	s.active = false
	delete(c.rooms, s.roomID)
	delete(c.subIDs, s.id)
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		return nil
	}
	return c.write(conn, NewFrame(CmdUnsubscribe, nil, "id", s.id))
}

// Subscribe registers handler for a room topic. When the room is already
// subscribed on this connection the existing subscription is returned and
// handler is ignored.
func (c *Channel) Subscribe(roomID int64, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: nil handler", shared.ErrInvalidInput)
	}

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil, shared.ErrNotConnected
	}
	if existing, ok := c.rooms[roomID]; ok {
		c.mu.Unlock()
		c.logger.Debug("already subscribed", "room", roomID)
		return existing, nil
	}

	sub := &Subscription{id: uuid.NewString(), roomID: roomID, handler: handler, channel: c, active: true}
	c.rooms[roomID] = sub
	c.subIDs[sub.id] = sub
	conn := c.conn
	c.mu.Unlock()

	frame := NewFrame(CmdSubscribe, nil, "id", sub.id, "destination", RoomTopic(roomID), "ack", "auto")
	if err := c.write(conn, frame); err != nil {
		c.mu.Lock()
		delete(c.rooms, roomID)
		delete(c.subIDs, sub.id)
		sub.active = false
		c.mu.Unlock()
		return nil, err
	}
	c.logger.Debug("subscribed", "room", roomID, "id", sub.id)
	return sub, nil
}

// Subscribed reports whether the room has an active subscription.
func (c *Channel) Subscribed(roomID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[roomID]
	return ok
}

// OutgoingMessage is the body published to /app/chat/message.
type OutgoingMessage struct {
	ChatRoomID   int64  `json:"chatRoomId"`
	Content      string `json:"content"`
	Type         string `json:"type"`
	TempMediaKey string `json:"tempS3Key,omitempty"`
}

// RoomTopic is the destination a room's events are published to.
func RoomTopic(roomID int64) string {
	return "/topic/chat/room/" + strconv.FormatInt(roomID, 10)
}

func roomFromTopic(dest string) (int64, bool) {
	const prefix = "/topic/chat/room/"
	if len(dest) <= len(prefix) || dest[:len(prefix)] != prefix {
		return 0, false
	}
	id, err := strconv.ParseInt(dest[len(prefix):], 10, 64)
	return id, err == nil
}

func roomAction(roomID int64, action string) string {
	return "/app/chat/room/" + strconv.FormatInt(roomID, 10) + "/" + action
}

// SendEnter announces that the user opened the room.
func (c *Channel) SendEnter(roomID int64) error { return c.publish(roomAction(roomID, "enter"), nil) }

// SendLeave announces that the user left the room view.
func (c *Channel) SendLeave(roomID int64) error { return c.publish(roomAction(roomID, "leave"), nil) }

// SendRead marks the room as read up to now on the server.
func (c *Channel) SendRead(roomID int64) error { return c.publish(roomAction(roomID, "read"), nil) }

// SendMessage publishes a chat message. The sender sees it again as a broadcast on the room topic.
func (c *Channel) SendMessage(msg OutgoingMessage) error {
	if msg.Type == "" {
		msg.Type = "TEXT"
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return c.publish("/app/chat/message", body)
}

func (c *Channel) publish(destination string, body []byte) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if state != StateConnected || conn == nil {
		return shared.ErrNotConnected
	}

	frame := NewFrame(CmdSend, body, "destination", destination)
	if body != nil {
		frame.Headers["content-type"] = "application/json"
	}
	if err := c.write(conn, frame); err != nil {
		return err
	}
	c.logger.Debug("published", "destination", destination)
	return nil
}

func (c *Channel) write(conn Conn, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, f.Encode()); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", f.Command, err)
	}
	return nil
}
