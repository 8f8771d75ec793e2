package crdt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedUpdate is returned when bytes do not decode to a valid update
// or state vector.
var ErrMalformedUpdate = errors.New("crdt: malformed update")

// OpID identifies an op across all replicas.
type OpID struct {
	Origin string
	Seq    uint64
}

// Op is a single register write or delete.
type Op struct {
	Origin  string `json:"origin"`
	Seq     uint64 `json:"seq"`
	Lamport uint64 `json:"lamport"`
	Key     string `json:"key"`
	Value   string `json:"value"`
	Deleted bool   `json:"deleted"`
}

// ID returns the op identity.
func (o Op) ID() OpID {
	return OpID{Origin: o.Origin, Seq: o.Seq}
}

type wireUpdate struct {
	Ops []Op `json:"ops"`
}

// DecodeUpdate parses an encoded update. An empty input is the empty update.
func DecodeUpdate(data []byte) ([]Op, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w wireUpdate
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	for i, op := range w.Ops {
		if err := validateOp(op); err != nil {
			return nil, fmt.Errorf("%w: ops[%d]: %v", ErrMalformedUpdate, i, err)
		}
	}
	return w.Ops, nil
}

// EncodeUpdate sorts, deduplicates and canonically encodes ops.
func EncodeUpdate(ops []Op) ([]byte, error) {
	return encodeOps(normalize(ops))
}

// IsEmpty reports whether an encoded update carries no ops.
// Malformed input is reported as non-empty.
func IsEmpty(update []byte) bool {
	ops, err := DecodeUpdate(update)
	return err == nil && len(ops) == 0
}

func validateOp(op Op) error {
	if op.Origin == "" {
		return errors.New("empty origin")
	}
	if op.Seq == 0 {
		return errors.New("seq must be >= 1")
	}
	if op.Lamport == 0 {
		return errors.New("lamport must be >= 1")
	}
	return nil
}

// normalize returns ops sorted by identity with duplicates removed.
// When two ops share an identity the greater one (by compareOps) wins, so
// the result does not depend on input order.
func normalize(ops []Op) []Op {
	byID := make(map[OpID]Op, len(ops))
	for _, op := range ops {
		id := op.ID()
		if existing, ok := byID[id]; ok && compareOps(existing, op) >= 0 {
			continue
		}
		byID[id] = op
	}

	out := make([]Op, 0, len(byID))
	for _, op := range byID {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		return compareOps(out[i], out[j]) < 0
	})
	return out
}

// compareOps is a total order over ops: identity first, then content.
func compareOps(a, b Op) int {
	if c := strings.Compare(a.Origin, b.Origin); c != 0 {
		return c
	}
	if c := cmpUint(a.Seq, b.Seq); c != 0 {
		return c
	}
	if c := cmpUint(a.Lamport, b.Lamport); c != 0 {
		return c
	}
	if c := strings.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	switch {
	case a.Deleted == b.Deleted:
		return 0
	case b.Deleted:
		return -1
	default:
		return 1
	}
}

// wins reports whether a supersedes b for the same key.
func wins(a, b Op) bool {
	if a.Lamport != b.Lamport {
		return a.Lamport > b.Lamport
	}
	return a.Origin > b.Origin
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
