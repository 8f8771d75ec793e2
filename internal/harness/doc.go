// Package harness runs replica sync scenarios written in YAML.
//
// A scenario declares a set of peers sharing one in-memory remote. Each peer
// owns a crdt.Doc, a replica.Engine and a flaky link to the remote, so steps
// can take a single peer offline or make its next writes fail.
//
// # Scenario Format
//
//	name: offline_flush
//	description: "Writes made offline reach the remote on the next pull"
//	doc: room-1
//	peers: [alice, bob]
//	steps:
//	  - peer: alice
//	    push: { set: { topic: dice } }
//	  - peer: alice
//	    remote_down: true
//	  - peer: alice
//	    push: { set: { mode: rp }, expect: queued }
//	  - peer: alice
//	    remote_up: true
//	  - peer: alice
//	    pull: {}
//	assertions:
//	  - type: queue_len
//	    peer: alice
//	    count: 0
//	  - type: remote_state
//	    expect: { topic: dice, mode: rp }
//	  - type: converged
//
// # Step Types
//
//   - push: write set/delete ops through the peer's Doc and push them as one update
//   - pull: pull with the Doc's state vector and apply the diff
//   - remote_down / remote_up: toggle a full outage on the peer's link
//   - fail_persists: make the peer's next N persists fail
//
// # Assertion Types
//
//   - queue_len: pending offline updates of a peer
//   - remote_state: materialized remote key/value state (exact match)
//   - remote_version: stored snapshot version
//   - peer_state: materialized state of a peer's Doc (exact match)
//   - converged: every peer's Doc encodes byte-identically to the remote
//
// # Deterministic Testing
//
// Origins come from testutil.SequentialOrigins in peer declaration order and
// the wall clock is a testutil.ManualClock, so the same scenario always
// produces the same trace. Traces are compared against golden files under
// testdata/golden.
package harness
