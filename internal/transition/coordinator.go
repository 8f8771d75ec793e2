package transition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starrybamboo/chatsync/internal/metrics"
)

// slot is a resource bound to a channel.
type slot struct {
	id    string
	res   Resource
	token int64
}

// fade is an in-flight wind-down. done closes when the ramp finishes.
type fade struct {
	target *slot
	done   chan struct{}
}

// channel is the per-channel state. All fields except gen are guarded by
// Coordinator.mu.
type channel struct {
	gen      Generation
	active   *slot
	starting *slot
	fading   *fade
}

// Coordinator owns every channel's generation and active-resource record.
//
// Thread-safety: all methods are safe for concurrent use. Start and
// SetLevel run without the coordinator lock. Stop runs under it and must
// not call back into the coordinator.
type Coordinator struct {
	mu       sync.Mutex
	channels map[string]*channel

	resolver Resolver
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig sets ramp timings. Default: DefaultConfig().
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) {
		c.cfg = cfg
	}
}

// WithSleep replaces the frame pause, e.g. with an instant one in tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) {
		c.sleep = sleep
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// New creates a Coordinator. A nil resolver is reported as a ConfigError on
// the first RequestActivate.
func New(resolver Resolver, opts ...Option) *Coordinator {
	c := &Coordinator{
		channels: make(map[string]*channel),
		resolver: resolver,
		cfg:      DefaultConfig(),
		sleep:    sleepContext,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) channel(id string) *channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[id]
	if !ok {
		ch = &channel{}
		c.channels[id] = ch
	}
	return ch
}

// RequestActivate hands channelID over to resourceID.
//
// The returned error is non-nil only for configuration errors, a failing
// Start, or ctx cancellation. Being superseded is a normal outcome.
func (c *Coordinator) RequestActivate(ctx context.Context, channelID, resourceID string) (Outcome, error) {
	res, err := c.resolve(channelID, resourceID)
	if err != nil {
		return OutcomeFailed, err
	}

	ch := c.channel(channelID)
	token := ch.gen.Next()
	log := c.logger.With("channel", channelID, "resource", resourceID, "token", token)
	log.Debug("activate requested")

	outcome, err := c.activate(ctx, ch, token, resourceID, res, log)
	c.metrics.ObserveTransition("activate", outcome.String())
	return outcome, err
}

func (c *Coordinator) activate(ctx context.Context, ch *channel, token int64, id string, res Resource, log *slog.Logger) (Outcome, error) {
	c.mu.Lock()
	if a := ch.active; a != nil && a.id == id && ch.fading == nil && a.res.IsActive() {
		c.mu.Unlock()
		return OutcomeUnchanged, nil
	}
	c.mu.Unlock()

	proceed, err := c.windDown(ctx, ch, token, log)
	if err != nil {
		return OutcomeSuperseded, err
	}
	if !proceed {
		return OutcomeSuperseded, nil
	}
	return c.start(ctx, ch, token, id, res, log)
}

// RequestDeactivate winds down and clears channelID's active resource.
func (c *Coordinator) RequestDeactivate(ctx context.Context, channelID string) (Outcome, error) {
	ch := c.channel(channelID)
	token := ch.gen.Next()
	log := c.logger.With("channel", channelID, "token", token)
	log.Debug("deactivate requested")

	outcome := OutcomeDeactivated
	proceed, err := c.windDown(ctx, ch, token, log)
	if err != nil || !proceed {
		outcome = OutcomeSuperseded
	}
	c.metrics.ObserveTransition("deactivate", outcome.String())
	return outcome, err
}

func (c *Coordinator) resolve(channelID, resourceID string) (Resource, error) {
	if c.resolver == nil {
		return nil, &ConfigError{
			Code:       ErrCodeNoResolver,
			Message:    "coordinator has no resolver",
			Channel:    channelID,
			ResourceID: resourceID,
		}
	}
	res, err := c.resolver.Resolve(resourceID)
	if err != nil {
		return nil, &ConfigError{
			Code:       ErrCodeUnknownResource,
			Message:    "resolve failed",
			Channel:    channelID,
			ResourceID: resourceID,
			Err:        err,
		}
	}
	if res == nil {
		return nil, &ConfigError{
			Code:       ErrCodeNilResource,
			Message:    "resolver returned nil resource",
			Channel:    channelID,
			ResourceID: resourceID,
		}
	}
	return res, nil
}

// windDown fades the active resource out (or joins a fade already running)
// and deactivates it if token is still current. It reports whether the
// caller still owns the channel.
func (c *Coordinator) windDown(ctx context.Context, ch *channel, token int64, log *slog.Logger) (bool, error) {
	c.mu.Lock()
	cur := ch.active
	if cur == nil {
		c.mu.Unlock()
		return c.stillCurrent(ch, token, log, "wind-down"), nil
	}
	f := ch.fading
	owner := false
	if f == nil || f.target != cur {
		if !cur.res.IsActive() {
			// Stopped on its own; nothing to fade.
			ch.active = nil
			c.mu.Unlock()
			return c.stillCurrent(ch, token, log, "wind-down"), nil
		}
		f = &fade{target: cur, done: make(chan struct{})}
		ch.fading = f
		owner = true
	}
	c.mu.Unlock()

	if owner {
		log.Debug("winding down", "outgoing", cur.id)
		// The fade itself is not cancellable; only what follows it is.
		c.ramp(context.WithoutCancel(ctx), cur.res, cur.res.Level(), 0, c.cfg.FadeOut, nil)
		close(f.done)
	} else {
		log.Debug("joining wind-down", "outgoing", cur.id)
		select {
		case <-f.done:
		case <-ctx.Done():
			// The owner may already be stale and will not stop cur. If this
			// request is still the newest, cleanup falls to it.
			<-f.done
		}
	}

	c.mu.Lock()
	if !ch.gen.IsCurrent(token) {
		c.mu.Unlock()
		c.stale(log, "deactivate")
		return false, ctx.Err()
	}
	if ch.active == cur {
		cur.res.Stop()
		ch.active = nil
		ch.fading = nil
	}
	c.mu.Unlock()
	log.Debug("deactivated", "outgoing", cur.id)

	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// start runs the start sequence of res under token.
func (c *Coordinator) start(ctx context.Context, ch *channel, token int64, id string, res Resource, log *slog.Logger) (Outcome, error) {
	s := &slot{id: id, res: res, token: token}
	c.mu.Lock()
	if !ch.gen.IsCurrent(token) {
		c.mu.Unlock()
		c.stale(log, "pre-start")
		return OutcomeSuperseded, nil
	}
	ch.starting = s
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if ch.starting == s {
			ch.starting = nil
		}
		c.mu.Unlock()
	}()

	res.SetLevel(0)
	if err := res.Start(ctx); err != nil {
		c.cleanup(ch, s)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return OutcomeSuperseded, ctxErr
		}
		return OutcomeFailed, fmt.Errorf("start %s: %w", id, err)
	}
	if !c.stillCurrent(ch, token, log, "start") {
		c.cleanup(ch, s)
		return OutcomeSuperseded, nil
	}

	ok, err := c.ramp(ctx, res, 0, c.cfg.TargetLevel, c.cfg.FadeIn, func() bool {
		return c.stillCurrent(ch, token, log, "ramp-up")
	})
	if err != nil {
		c.cleanup(ch, s)
		return OutcomeSuperseded, err
	}
	if !ok {
		c.cleanup(ch, s)
		return OutcomeSuperseded, nil
	}

	c.mu.Lock()
	if !ch.gen.IsCurrent(token) {
		c.mu.Unlock()
		c.stale(log, "mark-active")
		c.cleanup(ch, s)
		return OutcomeSuperseded, nil
	}
	ch.active = s
	c.mu.Unlock()
	log.Debug("activated")
	return OutcomeActivated, nil
}

// cleanup stops a resource whose start was abandoned, unless a newer
// request has since claimed the same instance.
func (c *Coordinator) cleanup(ch *channel, s *slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	claimed := (ch.active != nil && ch.active.res == s.res) ||
		(ch.starting != nil && ch.starting != s && ch.starting.res == s.res)
	if !claimed {
		s.res.Stop()
	}
}

// ramp moves res from one level to another in frame-sized steps. When check
// is non-nil it runs after every frame and a false result aborts the ramp.
func (c *Coordinator) ramp(ctx context.Context, res Resource, from, to float64, d time.Duration, check func() bool) (bool, error) {
	n := c.cfg.steps(d)
	for i := 1; i <= n; i++ {
		res.SetLevel(from + (to-from)*float64(i)/float64(n))
		if i == n {
			break
		}
		if err := c.sleep(ctx, c.cfg.Frame); err != nil {
			return false, err
		}
		if check != nil && !check() {
			return false, nil
		}
	}
	return true, nil
}

func (c *Coordinator) stillCurrent(ch *channel, token int64, log *slog.Logger, step string) bool {
	if ch.gen.IsCurrent(token) {
		return true
	}
	c.stale(log, step)
	return false
}

func (c *Coordinator) stale(log *slog.Logger, step string) {
	c.metrics.ObserveStale()
	log.Debug("superseded by newer request", "step", step)
}

// Active returns the active resource ID of channelID.
func (c *Coordinator) Active(channelID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[channelID]
	if !ok || ch.active == nil {
		return "", false
	}
	return ch.active.id, true
}

// Generation returns the live generation of channelID (0 if never used).
func (c *Coordinator) Generation(channelID string) int64 {
	c.mu.Lock()
	ch, ok := c.channels[channelID]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	return ch.gen.Current()
}
