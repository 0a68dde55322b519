package realtime

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/desertthunder/festa/internal/shared"
)

// STOMP commands used by the client and broker.
const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSend        = "SEND"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdDisconnect  = "DISCONNECT"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
)

// Frame is a single STOMP 1.2 frame. Over a websocket each message carries exactly one frame.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

// NewFrame builds a frame from alternating header keys and values.
func NewFrame(command string, body []byte, kv ...string) Frame {
	f := Frame{Command: command, Headers: make(map[string]string, len(kv)/2), Body: body}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers[kv[i]] = kv[i+1]
	}
	return f
}

// IsHeartbeat reports whether the frame was an empty keep-alive line.
func (f Frame) IsHeartbeat() bool { return f.Command == "" }

// Header returns the named header or "".
func (f Frame) Header(name string) string { return f.Headers[name] }

// STOMP 1.2 header escaping. CONNECT and CONNECTED frames are exempt.
var (
	headerEscaper   = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	headerUnescaper = strings.NewReplacer(`\\`, `\`, `\r`, "\r", `\n`, "\n", `\c`, ":")
)

func escapes(command string) bool {
	return command != CmdConnect && command != CmdConnected
}

// Encode serializes the frame with a trailing NUL. Headers are written in sorted order.
func (f Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	keys := make([]string, 0, len(f.Headers))
	for k := range f.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := f.Headers[k]
		if escapes(f.Command) {
			k, v = headerEscaper.Replace(k), headerEscaper.Replace(v)
		}
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 && f.Headers["content-length"] == "" {
		buf.WriteString("content-length:")
		buf.WriteString(strconv.Itoa(len(f.Body)))
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Decode parses one frame. A payload of only end-of-line bytes decodes as a heartbeat.
func Decode(data []byte) (Frame, error) {
	trimmed := bytes.TrimLeft(data, "\r\n")
	if len(bytes.TrimRight(trimmed, "\x00\r\n")) == 0 {
		return Frame{}, nil
	}

	head, body, ok := cutHead(trimmed)
	if !ok {
		return Frame{}, fmt.Errorf("%w: missing header terminator", shared.ErrMalformedFrame)
	}

	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	f := Frame{Command: strings.TrimSpace(lines[0]), Headers: make(map[string]string, len(lines)-1)}
	if f.Command == "" {
		return Frame{}, fmt.Errorf("%w: empty command", shared.ErrMalformedFrame)
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		k, v, found := strings.Cut(line, ":")
		if !found {
			return Frame{}, fmt.Errorf("%w: bad header line %q", shared.ErrMalformedFrame, line)
		}
		if escapes(f.Command) {
			k, v = headerUnescaper.Replace(k), headerUnescaper.Replace(v)
		}
		// repeated headers: the first occurrence wins
		if _, seen := f.Headers[k]; !seen {
			f.Headers[k] = v
		}
	}

	if cl := f.Headers["content-length"]; cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(body) {
			return Frame{}, fmt.Errorf("%w: bad content-length %q", shared.ErrMalformedFrame, cl)
		}
		f.Body = body[:n]
		return f, nil
	}

	end := bytes.IndexByte(body, 0)
	if end < 0 {
		return Frame{}, fmt.Errorf("%w: missing NUL terminator", shared.ErrMalformedFrame)
	}
	f.Body = body[:end]
	return f, nil
}

func cutHead(data []byte) (head, body []byte, ok bool) {
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		if j := bytes.Index(data, []byte("\r\n\r\n")); j >= 0 && j < i {
			return data[:j], data[j+4:], true
		}
		return data[:i], data[i+2:], true
	}
	if j := bytes.Index(data, []byte("\r\n\r\n")); j >= 0 {
		return data[:j], data[j+4:], true
	}
	return nil, nil, false
}
