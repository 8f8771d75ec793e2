// Package replica implements the replica sync engine: it keeps a local CRDT
// replica of each document consistent with a remote snapshot store while
// tolerating offline writes.
//
// # Operations
//
// Pull fetches the remote snapshot, flushes any queued offline updates into
// it, caches the result and returns exactly the part the caller has not seen
// (a diff against the caller's state vector).
//
// Push merges an incremental update into the best known base (cache, then a
// fresh fetch, then the queue alone) and persists the result. When the
// remote is unreachable or rejects the write the update is queued instead;
// Push never loses an edit because of connectivity.
//
// # Failure model
//
// Results are sum types (PullResult, PushResult) rather than errors:
//
//   - decode/merge failures fail open (PullNotFound with Err set)
//   - pull transport failures report PullUnavailable
//   - push transport failures queue the update (PushQueued)
//
// Persist failures are retried only by the next Pull or Push. There are no
// internal timers; retry scheduling belongs to the caller.
//
// # Concurrency
//
// Cache and queue access is safe from any goroutine, but there is no per-key
// lock: callers that need strict ordering must not overlap Push calls for
// the same document key.
package replica
