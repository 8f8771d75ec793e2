package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"

	"github.com/starrybamboo/chatsync/internal/crdt"
	"github.com/starrybamboo/chatsync/internal/replica"
)

// FlushOptions holds flags for the flush command.
type FlushOptions struct {
	*RootOptions
	MaxTries uint // overrides retry.max_tries when set
}

// FlushReport is the outcome of flushing one document.
type FlushReport struct {
	Doc      string `json:"doc"`
	Flushed  int    `json:"flushed"`
	Pending  int    `json:"pending"`
	Version  int64  `json:"version,omitempty"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// NewFlushCommand creates the flush command.
func NewFlushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FlushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "flush [doc]...",
		Short: "Retry queued offline writes until the queue drains",
		Long: `Flush queued offline writes to the remote, retrying with exponential
backoff (retry.* in the config) while the remote is unreachable.

Without arguments every document with a non-empty queue is flushed.
Exits 1 if any queue is still non-empty when retries run out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts.RootOptions, func(b *backend) error {
				return runFlush(cmd, opts, b, args)
			})
		},
	}

	cmd.Flags().UintVar(&opts.MaxTries, "max-tries", 0, "attempts per document (0 uses retry.max_tries)")

	return cmd
}

func runFlush(cmd *cobra.Command, opts *FlushOptions, b *backend, docs []string) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)

	if len(docs) == 0 {
		var err error
		if docs, err = b.queue.PendingDocs(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to read queue", err)
		}
	}

	reports := make([]FlushReport, 0, len(docs))
	var stuck []string
	for _, doc := range docs {
		r := flushDoc(ctx, opts, b, doc)
		if r.Pending > 0 || r.Error != "" {
			stuck = append(stuck, doc)
		}
		reports = append(reports, r)
	}

	render := func(w io.Writer) {
		if len(reports) == 0 {
			fmt.Fprintln(w, "Nothing to flush.")
			return
		}
		for _, r := range reports {
			fmt.Fprintf(w, "%s: flushed %d, %d pending after %d attempt(s)", r.Doc, r.Flushed, r.Pending, r.Attempts)
			if r.Version > 0 {
				fmt.Fprintf(w, " (v%d)", r.Version)
			}
			fmt.Fprintln(w)
			if r.Error != "" {
				fmt.Fprintf(w, "  error: %s\n", r.Error)
			}
		}
	}

	if len(stuck) > 0 {
		msg := fmt.Sprintf("queue not drained for %s", strings.Join(stuck, ", "))
		if f.Format == "json" {
			if err := f.Fail(CodePending, msg, reports); err != nil {
				return err
			}
		} else {
			render(f.Writer)
		}
		return NewExitError(ExitFailure, msg)
	}
	return f.Emit(reports, render)
}

// flushDoc pulls doc until its queue is empty or retries run out. A doc
// with no remote snapshot yet is created from the queue by an empty push.
func flushDoc(ctx context.Context, opts *FlushOptions, b *backend, doc string) FlushReport {
	log := opts.logger().With("doc", doc)
	report := FlushReport{Doc: doc}

	empty, _ := crdt.EncodeUpdate(nil)
	attempt := func() (int, error) {
		report.Attempts++
		res := b.engine.Pull(ctx, doc, nil)
		report.Flushed += res.Flushed
		if res.Version > 0 {
			report.Version = res.Version
		}

		switch res.Status {
		case replica.PullUnavailable:
			return 0, fmt.Errorf("remote unavailable: %w", res.Err)
		case replica.PullNotFound:
			pending, err := b.engine.Pending(ctx, doc)
			if err != nil {
				return 0, backoff.Permanent(err)
			}
			if pending > 0 {
				pushed := b.engine.Push(ctx, doc, empty)
				if pushed.Status == replica.PushPersisted {
					report.Flushed += pending
					report.Version = pushed.Version
				}
			}
		}

		pending, err := b.engine.Pending(ctx, doc)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		if pending > 0 {
			return pending, fmt.Errorf("%d update(s) still queued", pending)
		}
		return 0, nil
	}

	maxTries := opts.MaxTries
	if maxTries == 0 {
		maxTries = b.cfg.Retry.MaxTries
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.cfg.Retry.InitialInterval
	eb.MaxInterval = b.cfg.Retry.MaxInterval

	pending, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("flush incomplete, retrying", "error", err, "next", next)
		}),
	)
	report.Pending = pending
	if err != nil {
		report.Error = err.Error()
		if p, perr := b.engine.Pending(ctx, doc); perr == nil {
			report.Pending = p
		}
	}
	return report
}
