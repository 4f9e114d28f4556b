// Package reconcile replays queued mutations once connectivity returns.
//
// # Replay Semantics
//
// Pending actions are replayed per kind in enqueue order. An action that
// the origin accepts is removed from the durable queue; an action that
// fails for any reason stays queued untouched and the pass moves on to the
// next item. Network errors and rejections by the origin are treated the
// same way, and nothing is ever moved to a dead-letter queue.
//
// The pending action's idempotency key travels with every replay, so the
// origin can drop a duplicate delivery caused by a crash between a
// successful replay and the queue removal.
//
// # Triggers
//
// Replays are started by external events only: a background-sync event for
// one tag, or a connectivity change. Triggers are coalesced and processed
// by a single Run goroutine, so two passes never replay concurrently. There
// are no internal retry timers.
package reconcile
