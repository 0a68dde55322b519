package chat

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/realtime"
	tu "github.com/desertthunder/festa/internal/testing"
)

var epoch = time.Date(2025, 10, 3, 12, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger { return log.New(io.Discard) }

func groupRoom(id int64, unread int, preview string, at time.Time) models.Room {
	r := models.Room{ID: id, Name: "room", Kind: models.KindGroup, UnreadCount: unread}
	if preview != "" {
		r.LastMessage = &models.LastMessage{Text: preview, Timestamp: at}
	}
	return r
}

func companionRoom(id, postID int64, unread int) models.Room {
	pid := postID
	return models.Room{ID: id, Name: "meetup", Kind: models.KindGroup, Origin: models.OriginPost, OriginPostID: &pid, UnreadCount: unread}
}

func directRoom(id int64, unread int) models.Room {
	return models.Room{ID: id, Name: "dm", Kind: models.KindDirect, UnreadCount: unread}
}

func ids(rooms []models.Room) []int64 {
	out := make([]int64, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.ID)
	}
	return out
}

// fakeAPI implements the REST interfaces the chat package depends on.
type fakeAPI struct {
	mu sync.Mutex

	rooms    []models.Room
	roomsErr error

	members    []models.Member
	membersErr error
	owner      bool
	ownerErr   error
	history    []models.Message
	historyErr error

	posts    map[int64]*models.Post
	postErrs map[int64]error

	joinErr, exitErr, deleteErr, renameErr error

	calls []string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) setRooms(rooms []models.Room, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms, f.roomsErr = rooms, err
}

func (f *fakeAPI) MyRooms(context.Context) ([]models.Room, error) {
	f.record("rooms")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Room(nil), f.rooms...), f.roomsErr
}

func (f *fakeAPI) MemberInfo(context.Context, int64) ([]models.Member, error) {
	f.record("members")
	return f.members, f.membersErr
}

func (f *fakeAPI) IsOwner(context.Context, int64) (bool, error) {
	f.record("owner")
	return f.owner, f.ownerErr
}

func (f *fakeAPI) Messages(context.Context, int64, int, int) ([]models.Message, error) {
	f.record("history")
	return f.history, f.historyErr
}

func (f *fakeAPI) JoinRoom(context.Context, int64) error {
	f.record("join")
	return f.joinErr
}

func (f *fakeAPI) ExitRoom(context.Context, int64) error {
	f.record("exit")
	return f.exitErr
}

func (f *fakeAPI) DeleteRoom(context.Context, int64) error {
	f.record("delete")
	return f.deleteErr
}

func (f *fakeAPI) RenameRoom(context.Context, int64, string) error {
	f.record("rename")
	return f.renameErr
}

func (f *fakeAPI) Post(_ context.Context, postID int64) (*models.Post, error) {
	f.record("post")
	if err := f.postErrs[postID]; err != nil {
		return nil, err
	}
	return f.posts[postID], nil
}

// fakeDialer hands out a fresh [tu.FakeConn] per dial.
type fakeDialer struct {
	mu     sync.Mutex
	conns  []*tu.FakeConn
	err    error
	refuse bool
}

func (d *fakeDialer) DialContext(context.Context, string, http.Header) (realtime.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	conn := tu.NewFakeConn()
	conn.Refuse = d.refuse
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) last() *tu.FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// waitFor polls cond until it holds or a second passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
