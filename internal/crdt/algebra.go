package crdt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// domainUpdate separates update digests from any other hash in the system.
const domainUpdate = "chatsync/update/v1"

// Algebra implements replica.Algebra over the op-log encoding.
// The zero value is ready to use.
type Algebra struct{}

// Merge unions any number of updates into one full update.
func (Algebra) Merge(updates [][]byte) ([]byte, error) {
	return Merge(updates...)
}

// Diff returns the part of full not covered by stateVector.
func (Algebra) Diff(full, stateVector []byte) ([]byte, error) {
	return Diff(full, stateVector)
}

// StateVector computes the encoded state vector of full.
func (Algebra) StateVector(full []byte) ([]byte, error) {
	sv, err := StateVectorOf(full)
	if err != nil {
		return nil, err
	}
	return EncodeStateVector(sv)
}

// Merge unions updates. The result is independent of argument order and
// merging an update with itself is a no-op.
func Merge(updates ...[]byte) ([]byte, error) {
	var all []Op
	for i, u := range updates {
		ops, err := DecodeUpdate(u)
		if err != nil {
			return nil, fmt.Errorf("merge update %d: %w", i, err)
		}
		all = append(all, ops...)
	}
	return EncodeUpdate(all)
}

// Diff returns the ops in full that the encoded state vector has not seen.
func Diff(full, stateVector []byte) ([]byte, error) {
	ops, err := DecodeUpdate(full)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	sv, err := DecodeStateVector(stateVector)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	missing := make([]Op, 0, len(ops))
	for _, op := range ops {
		if op.Seq > sv[op.Origin] {
			missing = append(missing, op)
		}
	}
	return EncodeUpdate(missing)
}

// StateVectorOf decodes full and computes its state vector.
func StateVectorOf(full []byte) (StateVector, error) {
	ops, err := DecodeUpdate(full)
	if err != nil {
		return nil, fmt.Errorf("state vector: %w", err)
	}
	return vectorOf(ops), nil
}

// Materialize returns the visible key/value state of an update.
func Materialize(update []byte) (map[string]string, error) {
	ops, err := DecodeUpdate(update)
	if err != nil {
		return nil, fmt.Errorf("materialize: %w", err)
	}
	return project(ops), nil
}

// Digest returns a short content hash of an update for logs and traces.
func Digest(update []byte) string {
	h := sha256.New()
	h.Write([]byte(domainUpdate))
	h.Write([]byte{0x00})
	h.Write(update)
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// project resolves every key to its winning op and drops tombstones.
func project(ops []Op) map[string]string {
	winners := make(map[string]Op)
	for _, op := range ops {
		if cur, ok := winners[op.Key]; !ok || wins(op, cur) {
			winners[op.Key] = op
		}
	}

	state := make(map[string]string, len(winners))
	for key, op := range winners {
		if !op.Deleted {
			state[key] = op.Value
		}
	}
	return state
}
