// Package repositories implements the client's persisted key-value state.
//
// Everything the client owns locally (session tokens, the current user's
// identity, optimistic read markers, failed post ids, notification
// permission) is a string value stored under a (namespace, key) pair in a
// [Store]. Three backends are available:
//   - [SQLiteStore] : kv_entries table managed by the embedded migrations
//   - [PebbleStore] : keys encoded as "namespace/key" in a Pebble database
//   - [MemoryStore] : process-local map, used by tests and --db memory
//
// [SessionRepository] layers typed accessors for tokens and identity on top of a Store.
package repositories
