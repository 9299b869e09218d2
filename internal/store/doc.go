// Package store provides the transport event ledger.
//
// # Architecture
//
// Every message the gateway publishes to the broker, and every message it
// receives from it, can be recorded as an Event. The ledger is an audit
// trail only; nothing reads it back to rebuild conversation state.
//
// Two implementations satisfy the Store interface:
//
//   - SQLiteStore: persistent ledger using modernc.org/sqlite (no cgo)
//   - MockStore: in-memory ledger used when database.path is unset, and in tests
//
// # Data Model
//
//   - Event: direction (inbound/outbound), topic, kind, robot id,
//     correlation token, raw payload and timestamp
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode and a single connection:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as fixed-width UTC strings so they order lexically.
//
// # Listing
//
// ListEvents returns events oldest first, filtered by direction, kind or
// robot id, with opaque cursors for pagination:
//
//	page, err := s.ListEvents(ctx, store.ListParams{Kind: store.KindReply, Limit: 20})
//	next, err := s.ListEvents(ctx, store.ListParams{Kind: store.KindReply, Limit: 20, Cursor: page.NextCursor})
//
// The schema is created on store initialization if it does not exist.
package store
