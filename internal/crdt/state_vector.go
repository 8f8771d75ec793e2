package crdt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// StateVector maps origin to the highest contiguous seq observed.
type StateVector map[string]uint64

// Covers reports whether sv has observed everything other has.
func (sv StateVector) Covers(other StateVector) bool {
	for origin, seq := range other {
		if sv[origin] < seq {
			return false
		}
	}
	return true
}

// Clone returns a copy of sv.
func (sv StateVector) Clone() StateVector {
	out := make(StateVector, len(sv))
	maps.Copy(out, sv)
	return out
}

// EncodeStateVector canonically encodes sv.
func EncodeStateVector(sv StateVector) ([]byte, error) {
	return encodeVector(sv)
}

// DecodeStateVector parses an encoded state vector. Empty input is the
// empty vector.
func DecodeStateVector(data []byte) (StateVector, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return StateVector{}, nil
	}
	var sv StateVector
	if err := json.Unmarshal(data, &sv); err != nil {
		return nil, fmt.Errorf("%w: state vector: %v", ErrMalformedUpdate, err)
	}
	if sv == nil {
		sv = StateVector{}
	}
	return sv, nil
}

// vectorOf computes the contiguous-prefix state vector of ops.
func vectorOf(ops []Op) StateVector {
	seen := make(map[string]map[uint64]bool)
	for _, op := range ops {
		if seen[op.Origin] == nil {
			seen[op.Origin] = make(map[uint64]bool)
		}
		seen[op.Origin][op.Seq] = true
	}

	sv := make(StateVector, len(seen))
	for origin, seqs := range seen {
		var n uint64
		for seqs[n+1] {
			n++
		}
		if n > 0 {
			sv[origin] = n
		}
	}
	return sv
}
