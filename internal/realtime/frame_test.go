package realtime

import (
	"errors"
	"testing"

	"github.com/desertthunder/festa/internal/shared"
)

func TestFrame(t *testing.T) {
	t.Run("Encode And Decode", func(t *testing.T) {
		in := NewFrame(CmdSend, []byte(`{"content":"hi"}`), "destination", "/app/chat/message", "content-type", "application/json")
		out, err := Decode(in.Encode())
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if out.Command != CmdSend || out.Header("destination") != "/app/chat/message" {
			t.Errorf("unexpected frame %+v", out)
		}
		if string(out.Body) != `{"content":"hi"}` {
			t.Errorf("unexpected body %q", out.Body)
		}
		if out.Header("content-length") != "16" {
			t.Errorf("expected content-length 16, got %q", out.Header("content-length"))
		}
	})

	t.Run("Header Escaping", func(t *testing.T) {
		in := NewFrame(CmdMessage, nil, "note", "a:b\nc")
		out, err := Decode(in.Encode())
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if out.Header("note") != "a:b\nc" {
			t.Errorf("expected escaped header to survive, got %q", out.Header("note"))
		}
	})

	t.Run("Connect Is Not Escaped", func(t *testing.T) {
		encoded := string(NewFrame(CmdConnect, nil, "host", "a:b").Encode())
		if encoded != "CONNECT\nhost:a:b\n\n\x00" {
			t.Errorf("unexpected CONNECT encoding %q", encoded)
		}
	})

	t.Run("Heartbeat", func(t *testing.T) {
		for _, in := range []string{"\n", "\r\n", "\n\n"} {
			f, err := Decode([]byte(in))
			if err != nil || !f.IsHeartbeat() {
				t.Errorf("Decode(%q) = %+v, %v; want heartbeat", in, f, err)
			}
		}
	})

	t.Run("Body Without Content Length", func(t *testing.T) {
		f, err := Decode([]byte("MESSAGE\r\ndestination:/topic/chat/room/7\r\n\r\nhello\x00\n"))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if string(f.Body) != "hello" || f.Header("destination") != "/topic/chat/room/7" {
			t.Errorf("unexpected frame %+v", f)
		}
	})

	t.Run("Repeated Header First Wins", func(t *testing.T) {
		f, err := Decode([]byte("MESSAGE\nfoo:1\nfoo:2\n\n\x00"))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if f.Header("foo") != "1" {
			t.Errorf("expected first header value, got %q", f.Header("foo"))
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		tests := map[string]string{
			"no terminator":      "MESSAGE\nfoo:1",
			"bad header":         "MESSAGE\nnocolon\n\n\x00",
			"missing nul":        "MESSAGE\n\nbody",
			"bad content-length": "MESSAGE\ncontent-length:99\n\nshort\x00",
		}
		for name, in := range tests {
			t.Run(name, func(t *testing.T) {
				if _, err := Decode([]byte(in)); !errors.Is(err, shared.ErrMalformedFrame) {
					t.Errorf("expected ErrMalformedFrame, got %v", err)
				}
			})
		}
	})
}

func TestRoomFromTopic(t *testing.T) {
	if id, ok := roomFromTopic(RoomTopic(42)); !ok || id != 42 {
		t.Errorf("roomFromTopic() = %d, %v", id, ok)
	}
	if _, ok := roomFromTopic("/topic/other/1"); ok {
		t.Error("expected foreign topic to be rejected")
	}
}
