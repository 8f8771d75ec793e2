package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/starrybamboo/chatsync/internal/metrics"
)

// cacheEntry is the authoritative full update for one document key.
type cacheEntry struct {
	full    []byte
	version int64
}

// Engine is the replica sync engine for any number of document keys.
// Each Engine owns its cache and queue; there is no shared global state.
type Engine struct {
	remote  RemoteStore
	queue   PendingQueue
	algebra Algebra
	cache   *gocache.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueue replaces the default in-memory queue, e.g. with a durable one.
func WithQueue(q PendingQueue) Option {
	return func(e *Engine) {
		e.queue = q
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the wall clock used for the advisory UpdatedAtMs field.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine. remote and algebra are required.
func New(remote RemoteStore, algebra Algebra, opts ...Option) (*Engine, error) {
	if remote == nil {
		return nil, fmt.Errorf("%w: remote store", ErrMissingCollaborator)
	}
	if algebra == nil {
		return nil, fmt.Errorf("%w: algebra", ErrMissingCollaborator)
	}

	e := &Engine{
		remote:  remote,
		algebra: algebra,
		// No expiry and no janitor: entries live until Evict.
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.queue == nil {
		e.queue = NewMemoryQueue()
	}
	return e, nil
}

// Pull fetches the remote snapshot for docKey, flushes queued offline
// updates into it, caches the result and returns the diff against
// stateVector (nil means "nothing seen yet").
func (e *Engine) Pull(ctx context.Context, docKey string, stateVector []byte) PullResult {
	res := e.pull(ctx, docKey, stateVector)
	e.metrics.ObservePull(res.Status.String())
	return res
}

func (e *Engine) pull(ctx context.Context, docKey string, stateVector []byte) PullResult {
	log := e.logger.With("doc", docKey)

	fetched := e.remote.Fetch(ctx, docKey)
	switch fetched.Status {
	case FetchFound:
	case FetchUnavailable:
		log.Warn("pull: remote unavailable", "error", fetched.Err)
		return PullResult{Status: PullUnavailable, Err: fetched.Err}
	default:
		if fetched.Err != nil {
			log.Warn("pull: remote snapshot unusable", "error", fetched.Err)
		}
		return PullResult{Status: PullNotFound, Err: fetched.Err}
	}

	full := fetched.Snapshot.Update
	version := fetched.Snapshot.Version

	merged, mergedVersion, flushed := e.flush(ctx, docKey, full, version)
	full, version = merged, mergedVersion

	sv, err := e.algebra.StateVector(full)
	if err != nil {
		log.Warn("pull: snapshot does not decode", "error", err)
		return PullResult{Status: PullNotFound, Err: fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)}
	}
	e.cache.Set(docKey, cacheEntry{full: full, version: version}, gocache.NoExpiration)

	diff, err := e.algebra.Diff(full, stateVector)
	if err != nil {
		log.Warn("pull: diff failed", "error", err)
		return PullResult{Status: PullNotFound, Err: fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)}
	}

	log.Debug("pulled", "version", version, "flushed", flushed)
	return PullResult{
		Status:      PullUpdated,
		Update:      diff,
		StateVector: sv,
		Version:     version,
		Flushed:     flushed,
	}
}

// flush merges queued updates into full and persists the result. On any
// failure the queue is left intact and the fetched update is returned
// unchanged.
func (e *Engine) flush(ctx context.Context, docKey string, full []byte, version int64) ([]byte, int64, int) {
	log := e.logger.With("doc", docKey)

	queued, err := e.queue.List(ctx, docKey)
	if err != nil {
		log.Warn("flush: list queue failed", "error", err)
		return full, version, 0
	}
	if len(queued) == 0 {
		return full, version, 0
	}

	merged, err := e.algebra.Merge(append([][]byte{full}, queued...))
	if err != nil {
		log.Warn("flush: merge failed", "queued", len(queued), "error", err)
		e.metrics.ObserveFlush("failed")
		return full, version, 0
	}

	snap := Snapshot{Version: version + 1, Update: merged, UpdatedAtMs: e.now().UnixMilli()}
	if err := e.remote.Persist(ctx, docKey, snap); err != nil {
		log.Warn("flush: persist failed, keeping queue", "queued", len(queued), "error", err)
		e.metrics.ObserveFlush("failed")
		return full, version, 0
	}

	if err := e.queue.Clear(ctx, docKey, len(queued)); err != nil {
		// Remote already has the updates; replaying them later is harmless.
		log.Warn("flush: clear queue failed", "error", err)
	}
	e.metrics.ObserveFlush("ok")
	log.Info("flushed offline updates", "count", len(queued), "version", snap.Version)
	return merged, snap.Version, len(queued)
}

// Push merges update into the current base and persists it. If the remote
// cannot take the write, the update is queued and PushQueued is returned.
func (e *Engine) Push(ctx context.Context, docKey string, update []byte) PushResult {
	res := e.push(ctx, docKey, update)
	e.metrics.ObservePush(res.Status.String())
	return res
}

func (e *Engine) push(ctx context.Context, docKey string, update []byte) PushResult {
	log := e.logger.With("doc", docKey)

	queued, err := e.queue.List(ctx, docKey)
	if err != nil {
		log.Warn("push: list queue failed", "error", err)
		queued = nil
	}

	if _, err := e.algebra.Merge([][]byte{update}); err != nil {
		log.Warn("push: rejecting malformed update", "error", err)
		return PushResult{Status: PushRejected, Err: fmt.Errorf("%w: %v", ErrMalformedUpdate, err)}
	}

	var (
		base          []byte
		version       int64
		remoteUnknown error
	)
	if entry, ok := e.cached(docKey); ok {
		base = entry.full
		version = entry.version
	} else {
		fetched := e.remote.Fetch(ctx, docKey)
		switch fetched.Status {
		case FetchFound:
			base = fetched.Snapshot.Update
			version = fetched.Snapshot.Version
		case FetchUnavailable:
			remoteUnknown = fetched.Err
		default:
			// Absent (or corrupt): the queue alone is the base.
			version = fetched.Snapshot.Version
		}
	}

	tail := append(append([][]byte(nil), queued...), update)
	updates := tail
	if base != nil {
		updates = append([][]byte{base}, tail...)
	}
	merged, err := e.algebra.Merge(updates)
	if err != nil && base != nil {
		// An undecodable remote payload counts as absent, like a corrupt
		// envelope.
		log.Warn("push: remote snapshot does not decode, replacing it", "error", err)
		merged, err = e.algebra.Merge(tail)
	}
	if err != nil {
		return e.enqueue(ctx, docKey, update, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err))
	}

	if remoteUnknown != nil {
		// Persisting a queue-only base would overwrite remote state we
		// could not read.
		return e.enqueue(ctx, docKey, update, fmt.Errorf("%w: %v", ErrRemoteUnavailable, remoteUnknown))
	}

	snap := Snapshot{Version: version + 1, Update: merged, UpdatedAtMs: e.now().UnixMilli()}
	if err := e.remote.Persist(ctx, docKey, snap); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// Someone else wrote; the next push must start from a fresh fetch.
			e.cache.Delete(docKey)
		}
		return e.enqueue(ctx, docKey, update, err)
	}

	e.cache.Set(docKey, cacheEntry{full: merged, version: snap.Version}, gocache.NoExpiration)
	if len(queued) > 0 {
		if err := e.queue.Clear(ctx, docKey, len(queued)); err != nil {
			log.Warn("push: clear queue failed", "error", err)
		}
	}
	log.Debug("pushed", "version", snap.Version, "flushed", len(queued))
	return PushResult{Status: PushPersisted, Version: snap.Version}
}

func (e *Engine) enqueue(ctx context.Context, docKey string, update []byte, cause error) PushResult {
	log := e.logger.With("doc", docKey)
	if err := e.queue.Append(ctx, docKey, update); err != nil {
		log.Error("push: queue append failed, update lost", "error", err, "cause", cause)
		return PushResult{Status: PushFailed, Err: errors.Join(cause, err)}
	}
	e.metrics.ObserveEnqueued()
	log.Info("push queued for later flush", "cause", cause)
	return PushResult{Status: PushQueued, Err: cause}
}

func (e *Engine) cached(docKey string) (cacheEntry, bool) {
	v, ok := e.cache.Get(docKey)
	if !ok {
		return cacheEntry{}, false
	}
	entry, ok := v.(cacheEntry)
	return entry, ok
}

// Evict drops the cached full update for docKey. The next push re-fetches.
func (e *Engine) Evict(docKey string) {
	e.cache.Delete(docKey)
}

// Cached returns the cached full update and version for docKey.
func (e *Engine) Cached(docKey string) ([]byte, int64, bool) {
	entry, ok := e.cached(docKey)
	if !ok {
		return nil, 0, false
	}
	return entry.full, entry.version, true
}

// Pending returns the number of queued updates for docKey.
func (e *Engine) Pending(ctx context.Context, docKey string) (int, error) {
	queued, err := e.queue.List(ctx, docKey)
	if err != nil {
		return 0, fmt.Errorf("pending: %w", err)
	}
	return len(queued), nil
}
