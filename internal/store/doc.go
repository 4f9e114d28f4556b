// Package store provides SQLite-backed durable storage for the offline layer.
//
// The store holds four record families, all owned locally:
//   - Pending actions: mutations queued while the origin was unreachable
//   - Sync tags: background-sync registrations, one per pending kind
//   - Cache generations and their cached responses
//   - Saved items: local mirrors of saved cases, keyed by business key
//
// # Write Rules
//
// Every write is a whole-record put or delete. Pending actions are never
// updated in place: they are appended by Enqueue and removed by Remove once a
// replay is confirmed. Cached responses are overwritten on each successful
// fetch and disappear only with their generation.
//
// # Ordering
//
// Pending action ids come from an AUTOINCREMENT rowid, so they are unique,
// monotonic and never reused. ListPending orders by id, which is enqueue order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: An enqueue is on disk when Enqueue returns
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Cache entries cascade with their generation
package store
