package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/festa/internal/chat"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/shared"
	"github.com/desertthunder/festa/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
//
// The list controller polls in the background for as long as the program
// runs; terminal focus events trigger an immediate refresh.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	if err := r.open(ctx); err != nil {
		return err
	}
	if _, err := r.sessions.AccessToken(); err != nil {
		return fmt.Errorf("%w: run 'festa auth login' first", err)
	}

	banner := ui.NewBannerNotifier(r.config.Notifications.Enabled)
	stack := r.newChatStack(banner)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	focus := make(chan struct{}, 1)
	go func() {
		if err := stack.controller.Run(ctx, focus); err != nil && ctx.Err() == nil {
			r.logger.Error("room list controller stopped", "err", err)
		}
	}()

	model := ui.NewModel(ctx, ui.Deps{
		Controller: stack.controller,
		Open: func(ctx context.Context, room models.Room) (*chat.ChatRoomSession, error) {
			return r.openSession(ctx, stack, room)
		},
		Focus:  focus,
		Banner: banner,
		Clock:  r.clock,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	final, err := p.Run()

	if m, ok := final.(*ui.Model); ok && m.Session() != nil {
		if cerr := m.Session().Close(); cerr != nil {
			r.logger.Warn("failed to close room", "err", cerr)
		}
	}
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
