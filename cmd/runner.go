package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/chat"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/realtime"
	"github.com/desertthunder/festa/internal/repositories"
	"github.com/desertthunder/festa/internal/services"
	"github.com/desertthunder/festa/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store and the clients built on top of it are opened on first use so
// commands like `setup config` work before any database exists.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	dialer     realtime.Dialer
	clock      shared.Clock
	logger     *log.Logger
	input      io.Reader
	output     io.Writer

	store    repositories.Store
	sessions *repositories.SessionRepository
	client   *services.Client
	api      *services.APIService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Store      repositories.Store
	HTTPClient *http.Client
	Dialer     realtime.Dialer
	Clock      shared.Clock
	Logger     *log.Logger
	Input      io.Reader
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.API.Timeout.Duration}
	}
	if opts.Dialer == nil {
		opts.Dialer = realtime.WebsocketDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		dialer:     opts.Dialer,
		clock:      opts.Clock,
		logger:     opts.Logger,
		input:      opts.Input,
		output:     opts.Output,
		store:      opts.Store,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, roomsCommand, chatCommand, watchCommand, tuiCommand, apiCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger, e.g. to a file while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// open lazily opens the store and builds the REST clients on top of it.
func (r *Runner) open(ctx context.Context) error {
	if r.store == nil {
		store, err := repositories.OpenStore(ctx, r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		r.store = store
		r.logger.Debug("store opened", "driver", r.config.Database.Driver, "path", r.config.Database.Path)
	}
	if r.sessions == nil {
		r.sessions = repositories.NewSessionRepository(r.store)
	}
	if r.client == nil {
		r.client = services.NewClient(r.config.API, r.sessions, r.httpClient)
	}
	if r.api == nil {
		r.api = services.NewAPIService(r.config.API.BaseURL, r.httpClient, r.sessions)
	}
	return nil
}

// Close releases the store, if one was opened.
func (r *Runner) Close() error {
	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

// chatStack is the set of chat components shared by the list controller and room sessions.
type chatStack struct {
	route      *chat.RouteState
	tracker    *chat.ReadTracker
	failed     *chat.FailedReferenceCache
	snapshots  *chat.SnapshotStore
	gate       *chat.NotificationGate
	controller *chat.ChatListController
}

func (r *Runner) newChatStack(notifier chat.Notifier) *chatStack {
	cfg := r.config.Chat
	route := &chat.RouteState{}
	tracker := chat.NewReadTracker(r.store, r.clock, cfg.OptimisticWindow.Duration, r.logger)
	failed := chat.NewFailedReferenceCache(r.store, r.clock)
	snapshots := chat.NewSnapshotStore(r.client, r.clock, r.logger)
	gate := chat.NewNotificationGate(route, notifier, r.store, r.logger)

	controller := chat.NewChatListController(chat.ControllerOptions{
		Store:        snapshots,
		Tracker:      tracker,
		Gate:         gate,
		Enricher:     chat.NewEnricher(r.client, failed, r.store, r.logger),
		PollInterval: cfg.PollInterval.Duration,
		EmptyPreview: cfg.EmptyPreview,
		Logger:       r.logger,
	})

	return &chatStack{
		route:      route,
		tracker:    tracker,
		failed:     failed,
		snapshots:  snapshots,
		gate:       gate,
		controller: controller,
	}
}

// newChannel builds a disconnected push channel authenticated with the stored token.
func (r *Runner) newChannel() *realtime.Channel {
	return realtime.NewChannel(realtime.Options{
		URL:              r.config.Realtime.URL,
		Dialer:           r.dialer,
		Tokens:           r.sessions,
		HandshakeTimeout: r.config.Realtime.HandshakeTimeout.Duration,
		Logger:           r.logger,
	})
}

// openSession creates a session for room on a fresh channel and opens it.
func (r *Runner) openSession(ctx context.Context, stack *chatStack, room models.Room) (*chat.ChatRoomSession, error) {
	session := chat.NewChatRoomSession(chat.SessionOptions{
		RoomID:         room.ID,
		Title:          room.DisplayName(),
		API:            r.client,
		Channel:        r.newChannel(),
		Tracker:        stack.tracker,
		Snapshots:      stack.snapshots,
		Gate:           stack.gate,
		Route:          stack.route,
		Identity:       r.sessions,
		Clock:          r.clock,
		EnterReadDelay: r.config.Chat.EnterReadDelay.Duration,
		EchoReadDelay:  r.config.Chat.EchoReadDelay.Duration,
		PageSize:       r.config.Chat.PageSize,
		Logger:         r.logger,
	})
	if err := session.Open(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

// findRoom looks roomID up in the user's rooms so commands can show its name.
// Unknown rooms get a bare entry.
func (r *Runner) findRoom(ctx context.Context, roomID int64) models.Room {
	rooms, err := r.client.MyRooms(ctx)
	if err != nil {
		r.logger.Warn("failed to list rooms", "err", err)
	}
	for _, room := range rooms {
		if room.ID == roomID {
			return room
		}
	}
	return models.Room{ID: roomID}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
