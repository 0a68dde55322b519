// Package models defines the domain entities of the festival chat client.
//
// The package contains three groups of types:
//
// 1. Room list entities, projected from the server's REST responses
//   - [Room] : a chat room with kind, origin, unread count and last message
//   - [Member] : a participant descriptor returned by the member info endpoint
//   - [Post] : a companion-meetup post used to enrich companion rooms
//
// 2. Message entities
//   - [Message] : one entry in a room's message log
//   - [Event] : the raw payload published on a room topic
//
// 3. [Identity], the current user's stable identifiers used to recognise
// the user's own messages. Display names are never used for that purpose.
//
// Rooms and messages are owned by the server; the client only holds read-only projections of them.
package models
