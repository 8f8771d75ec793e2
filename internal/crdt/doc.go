// Package crdt is the reference update algebra used by the replica engine.
//
// The replica engine treats the algebra as an opaque collaborator with three
// primitives: Diff, Merge and StateVector. This package supplies a concrete
// operation-log CRDT so that the engine, the harness and the CLI have a real
// mergeable format to work with.
//
// # Model
//
// Every local mutation is an Op identified by (origin, seq). seq is
// contiguous per origin, starting at 1. Each op also carries a Lamport
// timestamp which orders concurrent writes to the same key
// (last-writer-wins register per key, ties broken by origin).
//
// An update is a set of ops. A full update is simply the union of every op a
// replica has observed, so full and incremental updates share one encoding.
//
// A state vector maps origin to the highest contiguous seq observed from it.
//
// # Encoding
//
// Updates and state vectors are canonical JSON: fixed key order, ops sorted
// by (origin, seq), strings NFC normalised, no HTML escaping. Canonical
// encoding makes Merge byte-for-byte commutative, associative and
// idempotent, which the convergence tests rely on.
package crdt
