package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/festa/internal/chat"
	"github.com/desertthunder/festa/internal/formatter"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/realtime"
	"github.com/desertthunder/festa/internal/shared"
	"github.com/urfave/cli/v3"
)

// ChatOpen opens a room and relays lines from the terminal until /quit, EOF or
// the room goes away. Lines starting with a slash are commands:
// /rename <name>, /leave, /delete and /quit.
func (r *Runner) ChatOpen(ctx context.Context, cmd *cli.Command) error {
	roomID, err := roomArg(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	stack := r.newChatStack(chat.WriterNotifier{W: r.output, Enabled: r.config.Notifications.Enabled})
	session, err := r.openSession(ctx, stack, r.findRoom(ctx, roomID))
	if err != nil {
		return fmt.Errorf("failed to open room %d: %w", roomID, err)
	}
	defer session.Close()

	r.writePlainHeader(fmt.Sprintf("%s (%s)", session.Title(), session.Role()))
	for _, m := range session.Messages() {
		r.writeMessage(session, m)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	events := session.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.writeEvent(session, ev)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			done, err := r.handleChatLine(ctx, session, line)
			if err != nil {
				r.writePlain("! %s\n", chatErrorText(err))
			}
			if done {
				return nil
			}
		}
	}
}

func (r *Runner) handleChatLine(ctx context.Context, session *chat.ChatRoomSession, line string) (bool, error) {
	text := strings.TrimSpace(line)
	if !strings.HasPrefix(text, "/") {
		if text == "" {
			return false, nil
		}
		return false, session.Send(text)
	}

	command, arg, _ := strings.Cut(text, " ")
	confirmed := strings.TrimSpace(arg) == "!"
	yes := func(string) bool { return confirmed }

	switch command {
	case "/quit", "/q":
		return true, nil
	case "/rename":
		return false, session.Rename(ctx, arg)
	case "/leave":
		if !confirmed {
			r.writePlain("Leave this room? Repeat as '/leave !' to confirm.\n")
		}
		err := session.Leave(ctx, yes)
		return err == nil, err
	case "/delete":
		if !confirmed {
			r.writePlain("Delete this room for everyone? Repeat as '/delete !' to confirm.\n")
		}
		err := session.Delete(ctx, yes)
		return err == nil, err
	default:
		return false, fmt.Errorf("%w: unknown command %s", shared.ErrInvalidInput, command)
	}
}

// chatErrorText prefers the server's own wording for failed room actions.
func chatErrorText(err error) string {
	var actionErr *chat.ActionError
	if errors.As(err, &actionErr) && actionErr.Message != "" {
		return actionErr.Message
	}
	return err.Error()
}

func (r *Runner) writeMessage(session *chat.ChatRoomSession, m models.Message) {
	prefix := "  "
	if session.IsMine(m) {
		prefix = "> "
	}
	r.writePlain("%s%s\n", prefix, formatter.MessageLine(m))
}

func (r *Runner) writeEvent(session *chat.ChatRoomSession, ev chat.SessionEvent) {
	switch ev.Kind {
	case chat.EventMessage:
		r.writeMessage(session, ev.Message)
	case chat.EventPresence:
		r.writePlain("* %s\n", ev.Text)
	case chat.EventTitle:
		r.writePlain("* room renamed to %s\n", ev.Text)
	case chat.EventState:
		r.logger.Debug("session state", "state", ev.State)
	}
}

// ChatSend publishes one message over a short-lived push connection.
func (r *Runner) ChatSend(ctx context.Context, cmd *cli.Command) error {
	roomID, err := roomArg(cmd)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(cmd.StringArg("text"))
	if text == "" {
		return shared.ErrEmptyMessage
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	channel := r.newChannel()
	if err := channel.Connect(ctx); err != nil {
		return err
	}
	defer channel.Disconnect()

	err = channel.SendMessage(realtime.OutgoingMessage{
		ChatRoomID: roomID,
		Content:    text,
		Type:       string(models.ContentText),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	tracker := chat.NewReadTracker(r.store, r.clock, r.config.Chat.OptimisticWindow.Duration, r.logger)
	if err := tracker.MarkSent(roomID); err != nil {
		r.logger.Warn("failed to record sent message", "room", roomID, "err", err)
	}
	return r.writePlain("✓ Sent\n")
}

// ChatHistory fetches one page of history and prints it or writes it to a file.
func (r *Runner) ChatHistory(ctx context.Context, cmd *cli.Command) error {
	roomID, err := roomArg(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	size := cmd.Int("size")
	if size <= 0 {
		size = r.config.Chat.PageSize
	}
	msgs, err := r.client.Messages(ctx, roomID, cmd.Int("page"), size)
	if err != nil {
		return err
	}

	history := chat.NewMessageLog()
	history.Merge(msgs...)
	title := r.findRoom(ctx, roomID).DisplayName()

	if cmd.Bool("save") || cmd.String("output") != "" {
		path, err := formatter.WriteHistoryExport(format, roomID, title, history.Messages(), cmd.String("output"))
		if err != nil {
			return err
		}
		r.logger.Info("history exported", "room", roomID, "path", path, "messages", history.Len())
		return r.writePlain("✓ Saved %d messages to %s\n", history.Len(), path)
	}

	data, err := formatter.RenderHistory(format, title, history.Messages())
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}
