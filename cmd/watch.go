package main

import (
	"context"
	"errors"

	"github.com/desertthunder/festa/internal/chat"
	"github.com/urfave/cli/v3"
)

// Watch runs the room list controller without a UI until interrupted.
// Notifications are printed as lines; each refresh is logged.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	notifier := chat.WriterNotifier{W: r.output, Enabled: r.config.Notifications.Enabled}
	stack := r.newChatStack(notifier)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- stack.controller.Run(ctx, nil) }()

	r.logger.Info("watching rooms", "interval", r.config.Chat.PollInterval.Duration)
	for {
		select {
		case list := <-stack.controller.Updates():
			if list.Stale() {
				r.logger.Warn("room list is stale", "err", list.Err)
				continue
			}
			r.logger.Debug("rooms refreshed", "rooms", len(list.All), "unread", len(list.Unread))
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
