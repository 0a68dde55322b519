// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlag(value string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (text, markdown, csv)",
		Value:   value,
	}
}

func yesFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "Skip the confirmation prompt",
	}
}

// setupCommand handles setup operations for configuration and the local store.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize the local store and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml populated with defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in through the browser and store the issued tokens",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "Local callback port (defaults to auth.callback_port)",
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the login URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show who is signed in and when the token expires",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget stored tokens and identity",
				Action: r.AuthLogout,
			},
			{
				Name:  "token",
				Usage: "Store an access token obtained elsewhere",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "access-token"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "refresh", Usage: "Refresh token"},
					&cli.StringFlag{Name: "verify-id", Usage: "Your stable member identifier"},
				},
				Action: r.AuthToken,
			},
		},
	}
}

// roomsCommand handles room listing and room management
func roomsCommand(r *Runner) *cli.Command {
	roomArg := []cli.Argument{&cli.Int64Arg{Name: "room"}}

	return &cli.Command{
		Name:    "rooms",
		Aliases: []string{"r"},
		Usage:   "List, browse and manage chat rooms",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your rooms",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "view",
						Usage: "Which list to show (my, unread, companion, all)",
						Value: "my",
					},
					&cli.BoolFlag{Name: "csv", Usage: "Output CSV"},
					&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
				},
				Action: r.RoomsList,
			},
			{
				Name:  "browse",
				Usage: "Browse group rooms you have not joined",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Usage: "Room category"},
					&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Search keyword"},
					&cli.IntFlag{Name: "page", Usage: "Page number, starting at 0"},
					&cli.IntFlag{Name: "size", Usage: "Page size", Value: 20},
				},
				Action: r.RoomsBrowse,
			},
			{
				Name:  "create",
				Usage: "Create a companion room for a meetup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Room name", Required: true},
					&cli.StringFlag{Name: "information", Aliases: []string{"i"}, Usage: "Room description", Required: true},
					&cli.StringFlag{Name: "category", Usage: "Room category"},
					&cli.StringFlag{Name: "event-date", Usage: "Meetup date (YYYY-MM-DD)", Required: true},
					&cli.Int64Flag{Name: "post", Usage: "Companion post the room belongs to"},
				},
				Action: r.RoomsCreate,
			},
			{
				Name:      "join",
				Usage:     "Join a group room",
				Arguments: roomArg,
				Action:    r.RoomsJoin,
			},
			{
				Name:      "rename",
				Usage:     "Rename a room you own",
				Arguments: []cli.Argument{&cli.Int64Arg{Name: "room"}, &cli.StringArg{Name: "name"}},
				Action:    r.RoomsRename,
			},
			{
				Name:      "delete",
				Usage:     "Delete a room you own",
				Arguments: roomArg,
				Flags:     []cli.Flag{yesFlag()},
				Action:    r.RoomsDelete,
			},
			{
				Name:      "leave",
				Usage:     "Leave a room",
				Arguments: roomArg,
				Flags:     []cli.Flag{yesFlag()},
				Action:    r.RoomsLeave,
			},
		},
	}
}

// chatCommand handles sending, reading and exporting messages
func chatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk in a room",
		Commands: []*cli.Command{
			{
				Name:      "open",
				Usage:     "Open a room and chat line by line (/quit to leave)",
				Arguments: []cli.Argument{&cli.Int64Arg{Name: "room"}},
				Action:    r.ChatOpen,
			},
			{
				Name:  "send",
				Usage: "Send one message to a room",
				Arguments: []cli.Argument{
					&cli.Int64Arg{Name: "room"},
					&cli.StringArg{Name: "text"},
				},
				Action: r.ChatSend,
			},
			{
				Name:      "history",
				Usage:     "Print or export a room's message history",
				Arguments: []cli.Argument{&cli.Int64Arg{Name: "room"}},
				Flags: []cli.Flag{
					formatFlag("text"),
					&cli.IntFlag{Name: "page", Usage: "History page, starting at 0"},
					&cli.IntFlag{Name: "size", Usage: "Messages per page (defaults to chat.page_size)"},
					&cli.BoolFlag{Name: "save", Usage: "Write the export to a file"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Export path (implies --save)"},
				},
				Action: r.ChatHistory,
			},
		},
	}
}

// watchCommand polls the room list and prints notifications
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Poll your rooms and print a line for every new message",
		Action: r.Watch,
	}
}

// tuiCommand launches the interactive terminal UI
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch the interactive terminal UI",
		Action: r.TUI,
	}
}

// apiCommand provides direct API access for debugging
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API access for debugging",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET request",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// cacheCommand handles maintenance of locally persisted chat state
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and prune locally persisted chat state",
		Commands: []*cli.Command{
			{
				Name:   "prune",
				Usage:  "Remove expired optimistic read entries",
				Action: r.CachePrune,
			},
			{
				Name:  "failed",
				Usage: "List companion posts that could not be resolved",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "clear",
						Usage: "Forget every failed post so it is retried",
					},
				},
				Action: r.CacheFailed,
			},
		},
	}
}
