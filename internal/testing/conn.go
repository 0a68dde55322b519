package testing

import (
	"bytes"
	"errors"
	"strings"
	"sync"
)

// ErrConnClosed is returned by [FakeConn.ReadMessage] after Close.
var ErrConnClosed = errors.New("fake connection closed")

// FakeConn is an in-memory websocket connection speaking raw STOMP bytes.
// It answers a CONNECT frame with CONNECTED and records everything written.
type FakeConn struct {
	// Refuse makes the CONNECT reply an ERROR frame.
	Refuse bool

	inbox chan []byte
	done  chan struct{}

	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func NewFakeConn() *FakeConn {
	return &FakeConn{inbox: make(chan []byte, 64), done: make(chan struct{})}
}

func (c *FakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbox:
		return 1, data, nil
	case <-c.done:
		return 0, nil, ErrConnClosed
	}
}

func (c *FakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	c.mu.Unlock()

	if bytes.HasPrefix(data, []byte("CONNECT\n")) {
		if c.Refuse {
			c.Push([]byte("ERROR\nmessage:bad token\n\n\x00"))
		} else {
			c.Push([]byte("CONNECTED\nversion:1.2\n\n\x00"))
		}
	}
	return nil
}

func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Push queues a raw frame for the reader.
func (c *FakeConn) Push(frame []byte) {
	select {
	case c.inbox <- frame:
	case <-c.done:
	}
}

// PushMessage delivers body as a MESSAGE frame on destination.
func (c *FakeConn) PushMessage(destination, body string) {
	c.Push([]byte("MESSAGE\ndestination:" + destination + "\nmessage-id:1\n\n" + body + "\x00"))
}

// Writes returns every frame written so far.
func (c *FakeConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// Commands returns the command line of every frame written, in order.
func (c *FakeConn) Commands() []string {
	var out []string
	for _, w := range c.Writes() {
		cmd, _, _ := strings.Cut(string(w), "\n")
		out = append(out, cmd)
	}
	return out
}

// Destinations returns the destination header of every SEND frame, in order.
func (c *FakeConn) Destinations() []string {
	var out []string
	for _, w := range c.Writes() {
		s := string(w)
		if !strings.HasPrefix(s, "SEND\n") {
			continue
		}
		for _, line := range strings.Split(s, "\n") {
			if v, ok := strings.CutPrefix(line, "destination:"); ok {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// Bodies returns the body of every SEND frame to destination.
func (c *FakeConn) Bodies(destination string) []string {
	var out []string
	for _, w := range c.Writes() {
		s := strings.TrimSuffix(string(w), "\x00")
		if !strings.HasPrefix(s, "SEND\n") || !strings.Contains(s, "\ndestination:"+destination+"\n") {
			continue
		}
		if _, body, ok := strings.Cut(s, "\n\n"); ok {
			out = append(out, body)
		}
	}
	return out
}
