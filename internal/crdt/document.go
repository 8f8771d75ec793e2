package crdt

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// NewOrigin returns a fresh, time-sortable replica origin (UUIDv7).
//
// Panics if UUID generation fails (should never happen in practice).
func NewOrigin() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Doc is a local replica that produces incremental updates for its own
// writes and folds in updates from elsewhere.
//
// Thread-safety: all methods are safe for concurrent use.
type Doc struct {
	mu      sync.Mutex
	origin  string
	seq     uint64
	lamport uint64
	ops     map[OpID]Op
}

// NewDoc creates an empty replica writing as origin.
func NewDoc(origin string) *Doc {
	return &Doc{
		origin: origin,
		ops:    make(map[OpID]Op),
	}
}

// Origin returns the replica's origin identifier.
func (d *Doc) Origin() string {
	return d.origin
}

// Set writes key=value and returns the incremental update for the write.
func (d *Doc) Set(key, value string) ([]byte, error) {
	return d.local(key, value, false)
}

// Delete removes key and returns the incremental update for the delete.
func (d *Doc) Delete(key string) ([]byte, error) {
	return d.local(key, "", true)
}

func (d *Doc) local(key, value string, deleted bool) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	d.lamport++
	op := Op{
		Origin:  d.origin,
		Seq:     d.seq,
		Lamport: d.lamport,
		Key:     norm.NFC.String(key),
		Value:   norm.NFC.String(value),
		Deleted: deleted,
	}
	d.ops[op.ID()] = op
	return EncodeUpdate([]Op{op})
}

// Apply folds an update (full or incremental) into the replica.
func (d *Doc) Apply(update []byte) error {
	ops, err := DecodeUpdate(update)
	if err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, op := range ops {
		if existing, ok := d.ops[op.ID()]; !ok || compareOps(op, existing) > 0 {
			d.ops[op.ID()] = op
		}
		if op.Lamport > d.lamport {
			d.lamport = op.Lamport
		}
		// Our own ops coming back after a restart: never reuse a seq.
		if op.Origin == d.origin && op.Seq > d.seq {
			d.seq = op.Seq
		}
	}
	return nil
}

// Encode returns the full update of everything the replica has seen.
func (d *Doc) Encode() ([]byte, error) {
	return EncodeUpdate(d.snapshotOps())
}

// StateVector returns the encoded state vector of the replica.
func (d *Doc) StateVector() ([]byte, error) {
	return EncodeStateVector(vectorOf(d.snapshotOps()))
}

// Get returns the visible value of key.
func (d *Doc) Get(key string) (string, bool) {
	v, ok := project(d.snapshotOps())[norm.NFC.String(key)]
	return v, ok
}

// State returns the visible key/value map.
func (d *Doc) State() map[string]string {
	return project(d.snapshotOps())
}

func (d *Doc) snapshotOps() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	ops := make([]Op, 0, len(d.ops))
	for _, op := range d.ops {
		ops = append(ops, op)
	}
	return ops
}
