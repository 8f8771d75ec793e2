// Package remote provides RemoteStore backends for the replica engine.
//
// Every backend speaks the same snapshot envelope:
//
//	{"version": 3, "encodedFullUpdate": "<base64>", "updatedAtMs": 1700000000000}
//
// and the same write rule: a snapshot may only be persisted with version
// stored+1 (1 when absent); anything else fails with
// replica.ErrVersionConflict.
//
// Backends:
//   - MemoryStore: in-process, for tests and the "memory" backend
//   - HTTPStore: client for the GET/PUT snapshot service
//   - RedisStore: one string key per document, WATCH/MULTI conditional write
//   - PostgresStore: doc_snapshots table, conditional upsert
//
// Server exposes any replica.RemoteStore over the HTTP contract.
package remote
