// Package ui implements the interactive terminal client using bubbletea's Elm architecture.
//
// The TUI has two main views:
//  1. [ListView] : room list with My, Unread, Companion and All tabs, refreshed by the [chat.ChatListController]
//  2. [RoomView] : one open [chat.ChatRoomSession] with its message log and a compose box
//
// Owner actions (rename, delete) and leave go through [ConfirmView] or the rename prompt.
//
// Terminal focus events are forwarded to the controller so the room list
// refreshes when the window regains focus. Notifications raised by the
// controller or an open session are shown as a banner through [BannerNotifier].
package ui
