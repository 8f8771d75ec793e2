package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/starrybamboo/chatsync/internal/config"
	"github.com/starrybamboo/chatsync/internal/crdt"
	"github.com/starrybamboo/chatsync/internal/metrics"
	"github.com/starrybamboo/chatsync/internal/remote"
	"github.com/starrybamboo/chatsync/internal/replica"
	"github.com/starrybamboo/chatsync/internal/store"
)

// backend is the replica stack one CLI invocation works against: the
// configured remote, the durable SQLite queue and an engine over both.
type backend struct {
	cfg     config.Config
	origin  string
	remote  replica.RemoteStore
	queue   *store.Store
	engine  *replica.Engine
	metrics *metrics.Metrics
	closers []func() error
}

// openBackend wires the remote named by cfg.Remote.Kind to a queue stored
// at cfg.Queue.Path.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	b := &backend{cfg: cfg, origin: cfg.Origin, metrics: metrics.New()}
	if b.origin == "" {
		b.origin = crdt.NewOrigin()
	}

	queue, err := openStore(cfg.Queue.Path)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	b.queue = queue
	b.closers = append(b.closers, queue.Close)

	rs, err := b.openRemote(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.remote = rs

	e, err := replica.New(rs, crdt.Algebra{},
		replica.WithQueue(queue),
		replica.WithLogger(logger.With("origin", b.origin)),
		replica.WithMetrics(b.metrics),
	)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.engine = e
	return b, nil
}

func (b *backend) openRemote(ctx context.Context) (replica.RemoteStore, error) {
	rc := b.cfg.Remote
	switch rc.Kind {
	case config.RemoteMemory:
		return remote.NewMemoryStore(), nil
	case config.RemoteHTTP:
		return remote.NewHTTPStore(rc.URL, &http.Client{Timeout: rc.Timeout}), nil
	case config.RemoteRedis:
		ctx, cancel := dialContext(ctx, rc.Timeout)
		defer cancel()
		rs, err := remote.DialRedis(ctx, rc.URL, rc.RedisDB, rc.Prefix)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, rs.Close)
		return rs, nil
	case config.RemotePostgres:
		ctx, cancel := dialContext(ctx, rc.Timeout)
		defer cancel()
		rs, err := remote.OpenPostgres(ctx, rc.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { rs.Close(); return nil })
		return rs, nil
	case config.RemoteSQLite:
		path := rc.URL
		if path == "" {
			path = b.cfg.Server.DBPath
		}
		if path == b.cfg.Queue.Path {
			return b.queue, nil
		}
		rs, err := openStore(path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot db: %w", err)
		}
		b.closers = append(b.closers, rs.Close)
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown remote kind %q", rc.Kind)
	}
}

// Close releases everything openBackend opened, newest first.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// localDoc rebuilds a replica of docKey from the remote (via a pull, which
// also flushes the queue) and whatever is still queued. Local writes made
// on top of it order after everything it has seen.
func (b *backend) localDoc(ctx context.Context, docKey string) (*crdt.Doc, replica.PullResult, error) {
	doc := crdt.NewDoc(b.origin)
	res := b.engine.Pull(ctx, docKey, nil)
	if res.Status == replica.PullUpdated {
		if err := doc.Apply(res.Update); err != nil {
			return nil, res, fmt.Errorf("apply pulled state: %w", err)
		}
	}
	queued, err := b.queue.List(ctx, docKey)
	if err != nil {
		return nil, res, err
	}
	for _, u := range queued {
		if err := doc.Apply(u); err != nil {
			return nil, res, fmt.Errorf("apply queued update: %w", err)
		}
	}
	return doc, res, nil
}

// dialContext bounds connection setup by timeout; zero means unbounded.
func dialContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

// withBackend loads config, opens the backend, runs fn and closes it.
func withBackend(ctx context.Context, opts *RootOptions, fn func(b *backend) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg, opts.logger())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	defer func() {
		opts.writeMetrics(b.metrics)
		if err := b.Close(); err != nil {
			opts.logger().Error("error closing backend", "error", err)
		}
	}()
	return fn(b)
}
