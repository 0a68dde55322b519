package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/festa/internal/chat"
	"github.com/desertthunder/festa/internal/formatter"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/services"
	"github.com/desertthunder/festa/internal/shared"
	"github.com/urfave/cli/v3"
)

// roomJSON is the machine readable form of a listed room.
type roomJSON struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Companion    bool   `json:"companion"`
	Participants int    `json:"participants"`
	Unread       int    `json:"unread"`
	LastMessage  string `json:"lastMessage,omitempty"`
	LastAt       string `json:"lastAt,omitempty"`
	EventTitle   string `json:"eventTitle,omitempty"`
}

func toRoomJSON(room models.Room, unread int, post *models.Post) roomJSON {
	out := roomJSON{
		ID:           room.ID,
		Name:         room.DisplayName(),
		Kind:         string(room.Kind),
		Companion:    room.IsCompanion(),
		Participants: room.ParticipantCount,
		Unread:       unread,
	}
	if room.LastMessage != nil {
		out.LastMessage = room.LastMessage.Text
		if !room.LastMessage.Timestamp.IsZero() {
			out.LastAt = room.LastMessage.Timestamp.Format(time.RFC3339)
		}
	}
	if post != nil {
		out.EventTitle = post.EventTitle
	}
	return out
}

// roomArg reads the room id argument.
func roomArg(cmd *cli.Command) (int64, error) {
	id := cmd.Int64Arg("room")
	if id <= 0 {
		return 0, fmt.Errorf("%w: room id", shared.ErrMissingArgument)
	}
	return id, nil
}

// confirm asks prompt on the terminal unless --yes was given.
func (r *Runner) confirm(cmd *cli.Command, prompt string) bool {
	if cmd.Bool("yes") {
		return true
	}
	r.writePlain("%s [y/N] ", prompt)
	line, err := bufio.NewReader(r.input).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func actionError(action string, err error) error {
	return &chat.ActionError{Action: action, Message: services.ServerMessage(err), Err: err}
}

// RoomsList performs one refresh and prints the requested view.
//
// Rooms marked as just sent to within the optimistic window show no unread count.
func (r *Runner) RoomsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	stack := r.newChatStack(chat.WriterNotifier{W: r.output, Enabled: r.config.Notifications.Enabled})
	list := stack.controller.RefreshOnce(ctx)
	if list.Stale() {
		return fmt.Errorf("failed to list rooms: %w", list.Err)
	}

	var rooms []models.Room
	view := strings.ToLower(cmd.String("view"))
	switch view {
	case "my", "":
		rooms = list.My
	case "unread":
		rooms = list.Unread
	case "companion":
		rooms = list.Companion
	case "all":
		rooms = list.All
	default:
		return fmt.Errorf("%w: unknown view %q", shared.ErrInvalidArgument, view)
	}

	classifier := stack.controller.Classifier()
	displayed := make([]models.Room, len(rooms))
	for i, room := range rooms {
		if !classifier.IsUnread(room) {
			room.UnreadCount = 0
		}
		displayed[i] = room
	}

	switch {
	case cmd.Bool("json"):
		out := make([]roomJSON, len(displayed))
		for i, room := range displayed {
			out[i] = toRoomJSON(room, room.UnreadCount, list.Posts[room.ID])
		}
		return r.writeJSON(out, true)
	case cmd.Bool("csv"):
		data, err := formatter.RoomsToCSV(displayed)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	if _, err := r.output.Write(formatter.RoomsToText(view+" rooms", displayed, r.clock.Now())); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for _, room := range displayed {
		if post := list.Posts[room.ID]; post != nil && post.EventTitle != "" {
			r.writePlain("  #%d → %s\n", room.ID, post.EventTitle)
		}
	}
	return nil
}

// RoomsBrowse lists one page of group rooms, leaving out the ones already joined.
func (r *Runner) RoomsBrowse(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	page, err := r.client.BrowseRooms(ctx, services.BrowseQuery{
		Category: cmd.String("category"),
		Keyword:  cmd.String("keyword"),
		Page:     cmd.Int("page"),
		Size:     cmd.Int("size"),
	})
	if err != nil {
		return err
	}

	mine, err := r.client.MyRooms(ctx)
	if err != nil {
		r.logger.Warn("failed to list joined rooms, showing all", "err", err)
	}
	rooms := chat.BrowsableGroupRooms(page.Rooms, mine)

	heading := fmt.Sprintf("browse (page %d of %d)", page.Page+1, max(page.TotalPages, 1))
	if _, err := r.output.Write(formatter.RoomsToText(heading, rooms, r.clock.Now())); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !page.Last {
		r.writePlain("More: festa rooms browse --page %d\n", page.Page+1)
	}
	return nil
}

// RoomsCreate validates and creates a companion room.
func (r *Runner) RoomsCreate(ctx context.Context, cmd *cli.Command) error {
	req := services.CompanionRoomRequest{
		Name:        strings.TrimSpace(cmd.String("name")),
		Information: strings.TrimSpace(cmd.String("information")),
		Category:    cmd.String("category"),
		EventDate:   cmd.String("event-date"),
	}
	if postID := cmd.Int64("post"); postID > 0 {
		req.CreatedFrom = string(models.OriginPost)
		req.CreatedFromID = &postID
	}
	if err := req.Validate(r.clock.Now()); err != nil {
		return err
	}

	if err := r.open(ctx); err != nil {
		return err
	}
	room, err := r.client.CreateCompanionRoom(ctx, req)
	if err != nil {
		return actionError("create", err)
	}

	if room == nil {
		return r.writePlain("✓ Room created\n")
	}
	r.logger.Info("room created", "room", room.ID)
	return r.writePlain("✓ Created room #%d %s\n", room.ID, room.DisplayName())
}

// RoomsJoin joins a group room.
func (r *Runner) RoomsJoin(ctx context.Context, cmd *cli.Command) error {
	roomID, err := roomArg(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.client.JoinRoom(ctx, roomID); err != nil {
		return actionError("join", err)
	}
	return r.writePlain("✓ Joined room #%d\n", roomID)
}

// requireOwner fails with [shared.ErrOwnerOnly] unless the current user owns roomID.
func (r *Runner) requireOwner(ctx context.Context, roomID int64) error {
	owner, err := r.client.IsOwner(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to check ownership: %w", err)
	}
	if !owner {
		return shared.ErrOwnerOnly
	}
	return nil
}

// RoomsRename renames a room the current user owns.
func (r *Runner) RoomsRename(ctx context.Context, cmd *cli.Command) error {
	roomID, err := roomArg(cmd)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: room name is empty", shared.ErrInvalidInput)
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.requireOwner(ctx, roomID); err != nil {
		return err
	}
	if err := r.client.RenameRoom(ctx, roomID, name); err != nil {
		return actionError("rename", err)
	}
	return r.writePlain("✓ Renamed room #%d to %s\n", roomID, name)
}

// RoomsDelete deletes a room the current user owns after confirmation.
func (r *Runner) RoomsDelete(ctx context.Context, cmd *cli.Command) error {
	roomID, err := roomArg(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.requireOwner(ctx, roomID); err != nil {
		return err
	}
	if !r.confirm(cmd, fmt.Sprintf("Delete room #%d for everyone?", roomID)) {
		return shared.ErrCancelled
	}
	if err := r.client.DeleteRoom(ctx, roomID); err != nil {
		return actionError("delete", err)
	}
	return r.writePlain("✓ Deleted room #%d\n", roomID)
}

// RoomsLeave leaves a room after confirmation.
func (r *Runner) RoomsLeave(ctx context.Context, cmd *cli.Command) error {
	roomID, err := roomArg(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if !r.confirm(cmd, fmt.Sprintf("Leave room #%d?", roomID)) {
		return shared.ErrCancelled
	}
	if err := r.client.ExitRoom(ctx, roomID); err != nil {
		return actionError("leave", err)
	}
	return r.writePlain("✓ Left room #%d\n", roomID)
}
