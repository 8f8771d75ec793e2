package replica

import "context"

// Algebra is the CRDT merge algebra. Implementations must make Merge
// commutative, associative and idempotent.
type Algebra interface {
	Diff(full, stateVector []byte) ([]byte, error)
	Merge(updates [][]byte) ([]byte, error)
	StateVector(full []byte) ([]byte, error)
}

// Snapshot is a decoded remote snapshot.
type Snapshot struct {
	Version     int64
	Update      []byte
	UpdatedAtMs int64 // advisory only; never used for conflict resolution
}

// FetchStatus is the outcome class of a remote fetch.
type FetchStatus int

const (
	// FetchFound means Snapshot holds the remote state.
	FetchFound FetchStatus = iota + 1
	// FetchNotFound means there is no usable remote state. Err is set when
	// a snapshot exists but is corrupt.
	FetchNotFound
	// FetchUnavailable means the remote could not be reached.
	FetchUnavailable
)

// String returns the status name.
func (s FetchStatus) String() string {
	switch s {
	case FetchFound:
		return "found"
	case FetchNotFound:
		return "not_found"
	case FetchUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// FetchResult is the sum type returned by RemoteStore.Fetch.
type FetchResult struct {
	Status   FetchStatus
	Snapshot Snapshot
	Err      error
}

// Found builds a FetchFound result.
func Found(s Snapshot) FetchResult {
	return FetchResult{Status: FetchFound, Snapshot: s}
}

// NotFound builds a FetchNotFound result.
func NotFound() FetchResult {
	return FetchResult{Status: FetchNotFound}
}

// Corrupt builds a FetchNotFound result for an undecodable snapshot.
// version is the stored version when known, so a later write can replace it.
func Corrupt(version int64, err error) FetchResult {
	return FetchResult{Status: FetchNotFound, Snapshot: Snapshot{Version: version}, Err: err}
}

// Unavailable builds a FetchUnavailable result.
func Unavailable(err error) FetchResult {
	return FetchResult{Status: FetchUnavailable, Err: err}
}

// RemoteStore is the remote snapshot key-value service.
//
// Persist must reject a snapshot whose Version is not exactly the stored
// version plus one (zero when absent) with an error wrapping
// ErrVersionConflict.
type RemoteStore interface {
	Fetch(ctx context.Context, docKey string) FetchResult
	Persist(ctx context.Context, docKey string, snap Snapshot) error
}

// PendingQueue is the per-document offline update queue.
type PendingQueue interface {
	// Append adds update to the end of the key's queue.
	Append(ctx context.Context, docKey string, update []byte) error
	// List returns the key's queued updates in causal order.
	List(ctx context.Context, docKey string) ([][]byte, error)
	// Clear drops the first n queued updates for the key.
	Clear(ctx context.Context, docKey string, n int) error
}

// PullStatus is the outcome class of a Pull.
type PullStatus int

const (
	// PullUpdated means Update holds the diff and StateVector the new vector.
	PullUpdated PullStatus = iota + 1
	// PullNotFound means there is no usable remote state.
	PullNotFound
	// PullUnavailable means the remote could not be reached this round.
	PullUnavailable
)

// String returns the status name.
func (s PullStatus) String() string {
	switch s {
	case PullUpdated:
		return "updated"
	case PullNotFound:
		return "not_found"
	case PullUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// PullResult is the sum type returned by Engine.Pull.
type PullResult struct {
	Status      PullStatus
	Update      []byte // diff against the caller's state vector
	StateVector []byte // state vector of the full update
	Version     int64
	Flushed     int // queued updates flushed into the remote by this pull
	Err         error
}

// PushStatus is the outcome class of a Push.
type PushStatus int

const (
	// PushPersisted means the merged state reached the remote.
	PushPersisted PushStatus = iota + 1
	// PushQueued means the update was queued for a later flush.
	PushQueued
	// PushRejected means the update itself was malformed and was dropped.
	PushRejected
	// PushFailed means the update could not even be queued.
	PushFailed
)

// String returns the status name.
func (s PushStatus) String() string {
	switch s {
	case PushPersisted:
		return "persisted"
	case PushQueued:
		return "queued"
	case PushRejected:
		return "rejected"
	case PushFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PushResult is the sum type returned by Engine.Push.
type PushResult struct {
	Status  PushStatus
	Version int64
	Err     error
}
