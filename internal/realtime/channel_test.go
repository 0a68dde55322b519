package realtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/shared"
	tu "github.com/desertthunder/festa/internal/testing"
	"github.com/gorilla/websocket"
)

// broker is a minimal STOMP endpoint for exercising [Channel].
type broker struct {
	t        *testing.T
	server   *httptest.Server
	frames   chan Frame
	mu       sync.Mutex
	conn     *websocket.Conn
	silent   bool
	upgraded chan struct{}
}

func newBroker(t *testing.T) *broker {
	t.Helper()
	b := &broker{t: t, frames: make(chan Frame, 32), upgraded: make(chan struct{}, 1)}
	upgrader := websocket.Upgrader{}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()
		b.upgraded <- struct{}{}
		b.serve(conn)
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *broker) serve(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := Decode(data)
		if err != nil || f.IsHeartbeat() {
			continue
		}

		if f.Command == CmdConnect && !b.silent {
			if f.Header("Authorization") == "Bearer bad" {
				b.write(NewFrame(CmdError, []byte("invalid token"), "message", "unauthorized"))
				continue
			}
			b.write(NewFrame(CmdConnected, nil, "version", "1.2"))
		}
		b.frames <- f
	}
}

func (b *broker) write(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.WriteMessage(websocket.TextMessage, f.Encode()); err != nil {
		b.t.Logf("broker write failed: %v", err)
	}
}

func (b *broker) writeRaw(data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

func (b *broker) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

// next returns the next frame the broker received with the given command.
func (b *broker) next(command string) Frame {
	b.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f := <-b.frames:
			if f.Command == command {
				return f
			}
		case <-timeout:
			b.t.Fatalf("timed out waiting for %s frame", command)
			return Frame{}
		}
	}
}

func newTestChannel(b *broker, token string) *Channel {
	return NewChannel(Options{
		URL:              b.url(),
		Tokens:           tu.StaticTokens(token),
		HandshakeTimeout: 500 * time.Millisecond,
		Logger:           log.New(io.Discard),
	})
}

func TestChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("Connect Sends Bearer Token", func(t *testing.T) {
		b := newBroker(t)
		ch := newTestChannel(b, "tok")

		if err := ch.Connect(ctx); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		defer ch.Disconnect()

		connect := b.next(CmdConnect)
		if connect.Header("Authorization") != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", connect.Header("Authorization"))
		}
		if connect.Header("accept-version") != "1.2" {
			t.Errorf("expected accept-version 1.2, got %q", connect.Header("accept-version"))
		}
		if ch.State() != StateConnected {
			t.Errorf("expected connected, got %s", ch.State())
		}
		if err := ch.Connect(ctx); !errors.Is(err, shared.ErrAlreadyConnected) {
			t.Errorf("expected ErrAlreadyConnected, got %v", err)
		}
	})

	t.Run("Connect Rejected", func(t *testing.T) {
		b := newBroker(t)
		ch := newTestChannel(b, "bad")

		err := ch.Connect(ctx)
		if !errors.Is(err, shared.ErrHandshake) {
			t.Fatalf("expected ErrHandshake, got %v", err)
		}
		if !strings.Contains(err.Error(), "unauthorized") {
			t.Errorf("expected broker message in error, got %v", err)
		}
		if ch.State() != StateDisconnected {
			t.Errorf("expected disconnected after failure, got %s", ch.State())
		}
	})

	t.Run("Connect Times Out", func(t *testing.T) {
		b := newBroker(t)
		b.silent = true
		ch := newTestChannel(b, "tok")

		if err := ch.Connect(ctx); !errors.Is(err, shared.ErrHandshake) {
			t.Fatalf("expected ErrHandshake, got %v", err)
		}
		if ch.State() != StateDisconnected {
			t.Errorf("expected disconnected, got %s", ch.State())
		}
	})

	t.Run("Connect Without Token", func(t *testing.T) {
		b := newBroker(t)
		ch := newTestChannel(b, "")
		if err := ch.Connect(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Publish Requires Connection", func(t *testing.T) {
		ch := NewChannel(Options{URL: "ws://unused", Logger: log.New(io.Discard)})
		if err := ch.SendRead(1); !errors.Is(err, shared.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
		if _, err := ch.Subscribe(1, func([]byte) {}); !errors.Is(err, shared.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
		if err := ch.Disconnect(); err != nil {
			t.Errorf("Disconnect() on a disconnected channel should be a no-op, got %v", err)
		}
	})

	t.Run("Control Events And Messages", func(t *testing.T) {
		b := newBroker(t)
		ch := newTestChannel(b, "tok")
		if err := ch.Connect(ctx); err != nil {
			t.Fatal(err)
		}
		defer ch.Disconnect()

		ch.SendEnter(42)
		if f := b.next(CmdSend); f.Header("destination") != "/app/chat/room/42/enter" || len(f.Body) != 0 {
			t.Errorf("unexpected enter frame %+v", f)
		}
		ch.SendRead(42)
		if f := b.next(CmdSend); f.Header("destination") != "/app/chat/room/42/read" {
			t.Errorf("unexpected read frame %+v", f)
		}
		ch.SendLeave(42)
		if f := b.next(CmdSend); f.Header("destination") != "/app/chat/room/42/leave" {
			t.Errorf("unexpected leave frame %+v", f)
		}

		if err := ch.SendMessage(OutgoingMessage{ChatRoomID: 42, Content: "hello"}); err != nil {
			t.Fatal(err)
		}
		f := b.next(CmdSend)
		if f.Header("destination") != "/app/chat/message" {
			t.Errorf("unexpected destination %s", f.Header("destination"))
		}
		if string(f.Body) != `{"chatRoomId":42,"content":"hello","type":"TEXT"}` {
			t.Errorf("unexpected body %s", f.Body)
		}
	})

	t.Run("Duplicate Subscribe Delivers Once", func(t *testing.T) {
		b := newBroker(t)
		ch := newTestChannel(b, "tok")
		if err := ch.Connect(ctx); err != nil {
			t.Fatal(err)
		}
		defer ch.Disconnect()

		var mu sync.Mutex
		var calls int
		got := make(chan struct{}, 4)
		handler := func([]byte) {
			mu.Lock()
			calls++
			mu.Unlock()
			got <- struct{}{}
		}

		first, err := ch.Subscribe(7, handler)
		if err != nil {
			t.Fatal(err)
		}
		second, err := ch.Subscribe(7, handler)
		if err != nil {
			t.Fatal(err)
		}
		if first != second {
			t.Error("expected the existing subscription to be returned")
		}

		sub := b.next(CmdSubscribe)
		if sub.Header("destination") != "/topic/chat/room/7" {
			t.Errorf("unexpected destination %s", sub.Header("destination"))
		}

		b.writeRaw("garbage without terminator")
		b.write(NewFrame(CmdMessage, []byte(`{"messageId":1}`), "subscription", sub.Header("id"), "destination", RoomTopic(7)))

		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatal("handler was not called")
		}
		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		if calls != 1 {
			t.Errorf("expected exactly one delivery, got %d", calls)
		}

		select {
		case f := <-b.frames:
			if f.Command == CmdSubscribe {
				t.Error("second Subscribe must not send another SUBSCRIBE frame")
			}
		default:
		}
	})

	t.Run("Unsubscribe Stops Delivery", func(t *testing.T) {
		b := newBroker(t)
		ch := newTestChannel(b, "tok")
		if err := ch.Connect(ctx); err != nil {
			t.Fatal(err)
		}
		defer ch.Disconnect()

		called := make(chan struct{}, 1)
		sub, err := ch.Subscribe(9, func([]byte) { called <- struct{}{} })
		if err != nil {
			t.Fatal(err)
		}
		subFrame := b.next(CmdSubscribe)

		if err := sub.Unsubscribe(); err != nil {
			t.Fatal(err)
		}
		if f := b.next(CmdUnsubscribe); f.Header("id") != subFrame.Header("id") {
			t.Errorf("expected UNSUBSCRIBE for %s, got %+v", subFrame.Header("id"), f)
		}
		if ch.Subscribed(9) {
			t.Error("room should no longer be subscribed")
		}
		if err := sub.Unsubscribe(); err != nil {
			t.Errorf("second Unsubscribe should be a no-op, got %v", err)
		}

		b.write(NewFrame(CmdMessage, []byte(`{}`), "subscription", subFrame.Header("id"), "destination", RoomTopic(9)))
		select {
		case <-called:
			t.Error("handler called after Unsubscribe")
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("Handler Panic Does Not Kill Channel", func(t *testing.T) {
		b := newBroker(t)
		ch := newTestChannel(b, "tok")
		if err := ch.Connect(ctx); err != nil {
			t.Fatal(err)
		}
		defer ch.Disconnect()

		calls := make(chan struct{}, 2)
		ch.Subscribe(3, func([]byte) {
			calls <- struct{}{}
			panic("boom")
		})
		id := b.next(CmdSubscribe).Header("id")

		for range 2 {
			b.write(NewFrame(CmdMessage, []byte(`{}`), "subscription", id))
			select {
			case <-calls:
			case <-time.After(2 * time.Second):
				t.Fatal("handler not called")
			}
		}
		if ch.State() != StateConnected {
			t.Errorf("expected channel to stay connected, got %s", ch.State())
		}
	})

	t.Run("Disconnect", func(t *testing.T) {
		b := newBroker(t)
		ch := newTestChannel(b, "tok")
		if err := ch.Connect(ctx); err != nil {
			t.Fatal(err)
		}
		ch.Subscribe(1, func([]byte) {})
		b.next(CmdSubscribe)

		if err := ch.Disconnect(); err != nil {
			t.Fatalf("Disconnect() error = %v", err)
		}
		b.next(CmdDisconnect)

		if ch.State() != StateDisconnected || ch.Subscribed(1) {
			t.Error("expected disconnected channel without subscriptions")
		}
		if err := ch.Disconnect(); err != nil {
			t.Errorf("second Disconnect() should be a no-op, got %v", err)
		}
	})

	t.Run("Server Close Resets State", func(t *testing.T) {
		b := newBroker(t)
		ch := newTestChannel(b, "tok")
		if err := ch.Connect(ctx); err != nil {
			t.Fatal(err)
		}
		<-b.upgraded

		b.mu.Lock()
		b.conn.Close()
		b.mu.Unlock()

		deadline := time.Now().Add(2 * time.Second)
		for ch.State() != StateDisconnected && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if ch.State() != StateDisconnected {
			t.Error("expected channel to notice the closed connection")
		}
	})
}
