package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/starrybamboo/chatsync/internal/metrics"
	"github.com/starrybamboo/chatsync/internal/transition"
)

// CrossfadeOptions holds flags for the crossfade command.
type CrossfadeOptions struct {
	*RootOptions
	Channel    string
	Interval   time.Duration // 0 runs requests one after another
	Buffer     time.Duration // simulated Start latency per resource
	Deactivate bool
}

// TransitionReport is the outcome of one transition request.
type TransitionReport struct {
	Request  int    `json:"request"`
	Resource string `json:"resource,omitempty"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

// CrossfadeReport summarizes a crossfade run.
type CrossfadeReport struct {
	Channel    string             `json:"channel"`
	Requests   []TransitionReport `json:"requests"`
	Active     string             `json:"active,omitempty"`
	Generation int64              `json:"generation"`
}

// NewCrossfadeCommand creates the crossfade command.
func NewCrossfadeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CrossfadeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "crossfade <resource>...",
		Short: "Drive simulated outputs through the transition coordinator",
		Long: `Request each resource on one channel and report how every request ended.

With --interval 0 requests run one after another. With a positive interval
request i is issued at i*interval whether or not earlier ones finished, so
newer requests supersede older ones mid-fade. Fade timings come from the
transition section of the config.

Examples:
  chatsync crossfade theme-a theme-b
  chatsync crossfade a b c --interval 100ms --buffer 250ms --deactivate`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			m := metrics.New()
			coord := transition.New(newToneBank(args, opts.Buffer, opts.logger()),
				transition.WithConfig(cfg.TransitionConfig()),
				transition.WithLogger(opts.logger()),
				transition.WithMetrics(m),
			)
			defer opts.writeMetrics(m)
			return runCrossfade(cmd, opts, coord, args)
		},
	}

	cmd.Flags().StringVar(&opts.Channel, "channel", "bgm", "channel to transition")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "delay between overlapping requests")
	cmd.Flags().DurationVar(&opts.Buffer, "buffer", 0, "simulated start latency")
	cmd.Flags().BoolVar(&opts.Deactivate, "deactivate", false, "wind the channel down at the end")

	return cmd
}

func runCrossfade(cmd *cobra.Command, opts *CrossfadeOptions, coord *transition.Coordinator, ids []string) error {
	ctx := cmd.Context()
	reports := make([]TransitionReport, len(ids))

	request := func(ctx context.Context, i int) {
		outcome, err := coord.RequestActivate(ctx, opts.Channel, ids[i])
		reports[i] = TransitionReport{Request: i + 1, Resource: ids[i], Outcome: outcome.String()}
		if err != nil {
			reports[i].Error = err.Error()
		}
	}

	if opts.Interval <= 0 {
		for i := range ids {
			request(ctx, i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i := range ids {
			g.Go(func() error {
				select {
				case <-time.After(time.Duration(i) * opts.Interval):
				case <-gctx.Done():
				}
				request(gctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}

	if opts.Deactivate {
		outcome, err := coord.RequestDeactivate(ctx, opts.Channel)
		r := TransitionReport{Request: len(reports) + 1, Outcome: outcome.String()}
		if err != nil {
			r.Error = err.Error()
		}
		reports = append(reports, r)
	}

	report := CrossfadeReport{
		Channel:    opts.Channel,
		Requests:   reports,
		Generation: coord.Generation(opts.Channel),
	}
	report.Active, _ = coord.Active(opts.Channel)

	return opts.formatter(cmd).Emit(report, func(w io.Writer) {
		for _, r := range report.Requests {
			target := r.Resource
			if target == "" {
				target = "(off)"
			}
			fmt.Fprintf(w, "#%d %s: %s\n", r.Request, target, r.Outcome)
			if r.Error != "" {
				fmt.Fprintf(w, "  error: %s\n", r.Error)
			}
		}
		active := report.Active
		if active == "" {
			active = "none"
		}
		fmt.Fprintf(w, "channel %s: active=%s generation=%d\n", report.Channel, active, report.Generation)
	})
}

// tone is a simulated output. Level changes are logged at debug level.
type tone struct {
	id     string
	buffer time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	active bool
	level  float64
}

// Start implements transition.Resource.
func (t *tone) Start(ctx context.Context) error {
	if t.buffer > 0 {
		timer := time.NewTimer(t.buffer)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	t.mu.Lock()
	t.active = true
	t.mu.Unlock()
	t.logger.Debug("tone started", "tone", t.id)
	return nil
}

// Stop implements transition.Resource.
func (t *tone) Stop() {
	t.mu.Lock()
	t.active = false
	t.level = 0
	t.mu.Unlock()
	t.logger.Debug("tone stopped", "tone", t.id)
}

// IsActive implements transition.Resource.
func (t *tone) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Level implements transition.Resource.
func (t *tone) Level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

// SetLevel implements transition.Resource.
func (t *tone) SetLevel(level float64) {
	t.mu.Lock()
	t.level = level
	t.mu.Unlock()
	t.logger.Debug("tone level", "tone", t.id, "level", level)
}

// toneBank resolves the tones named on the command line.
type toneBank map[string]*tone

func newToneBank(ids []string, buffer time.Duration, logger *slog.Logger) toneBank {
	bank := make(toneBank, len(ids))
	for _, id := range ids {
		bank[id] = &tone{id: id, buffer: buffer, logger: logger}
	}
	return bank
}

// Resolve implements transition.Resolver.
func (b toneBank) Resolve(id string) (transition.Resource, error) {
	t, ok := b[id]
	if !ok {
		return nil, fmt.Errorf("no tone named %q", id)
	}
	return t, nil
}
