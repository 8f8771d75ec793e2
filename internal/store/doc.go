// Package store provides SQLite-backed local state for chatsync replicas.
//
// It holds two tables:
//   - pending_updates: the durable offline queue (replica.PendingQueue)
//   - snapshots: versioned full updates (replica.RemoteStore), used by the
//     snapshot server and by single-machine setups
//
// # Ordering
//
// Queue rows are always read ORDER BY id ASC. The AUTOINCREMENT id is the
// causal order of local writes; timestamps are advisory and never ordered on.
//
// The database runs in WAL mode with synchronous=NORMAL and a 5s busy
// timeout. Schema changes are transactional PRAGMA user_version migrations.
package store
