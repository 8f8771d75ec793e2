package remote

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/starrybamboo/chatsync/internal/replica"
)

// Envelope is the wire form of a remote snapshot.
type Envelope struct {
	Version           int64  `json:"version"`
	EncodedFullUpdate string `json:"encodedFullUpdate"`
	UpdatedAtMs       int64  `json:"updatedAtMs"`
}

// EncodeEnvelope serialises a snapshot.
func EncodeEnvelope(s replica.Snapshot) ([]byte, error) {
	return json.Marshal(Envelope{
		Version:           s.Version,
		EncodedFullUpdate: base64.StdEncoding.EncodeToString(s.Update),
		UpdatedAtMs:       s.UpdatedAtMs,
	})
}

// DecodeEnvelope parses envelope bytes into a fetch result. Undecodable
// input yields a corrupt (not found) result, never an error.
func DecodeEnvelope(data []byte) replica.FetchResult {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return replica.Corrupt(0, fmt.Errorf("%w: envelope: %v", replica.ErrCorruptSnapshot, err))
	}
	update, err := base64.StdEncoding.DecodeString(env.EncodedFullUpdate)
	if err != nil {
		return replica.Corrupt(env.Version, fmt.Errorf("%w: payload: %v", replica.ErrCorruptSnapshot, err))
	}
	return replica.Found(replica.Snapshot{
		Version:     env.Version,
		Update:      update,
		UpdatedAtMs: env.UpdatedAtMs,
	})
}

// storedVersion extracts just the version of stored envelope bytes, for
// conditional writes over a possibly corrupt value.
func storedVersion(data []byte) int64 {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0
	}
	return env.Version
}

// checkVersion enforces the next = stored+1 write rule.
func checkVersion(docKey string, stored int64, exists bool, next int64) error {
	if !exists {
		stored = 0
	}
	if next != stored+1 {
		return fmt.Errorf("%w: %s: stored %d, got %d", replica.ErrVersionConflict, docKey, stored, next)
	}
	return nil
}
