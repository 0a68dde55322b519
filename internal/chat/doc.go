// Package chat is the synchronization core of the chat client.
//
// It reconciles three sources of room state: periodic REST polls of the
// user's rooms, push events from the realtime channel, and optimistic local
// state recorded when the user sends into or leaves a room.
//
// Components, leaf first:
//   - [SnapshotStore] : last known server state, updated only through [Reconcile]
//   - [ReadTracker] : persisted room → timestamp map hiding false unread badges for a short window
//   - [FailedReferenceCache] : persisted set of post ids that must never be fetched again
//   - [Classifier] : pure derivation of the my / unread / companion / browsable views
//   - [NotificationGate] : decides whether a local notification is shown
//   - [Enricher] : resolves companion rooms' originating posts
//   - [ChatListController] : polling loop, diffing and view publication
//   - [ChatRoomSession] : one open room: history, live events, sending, owner-gated actions
//
// Shared stores are safe for concurrent use. Sessions check a liveness flag
// before every mutation so callbacks that arrive after Close do nothing.
package chat
