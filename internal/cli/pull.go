package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/starrybamboo/chatsync/internal/crdt"
	"github.com/starrybamboo/chatsync/internal/replica"
)

// PullOptions holds flags for the pull command.
type PullOptions struct {
	*RootOptions
	Parallel int
}

// DocReport describes one document after a pull or push.
type DocReport struct {
	Doc     string            `json:"doc"`
	Status  string            `json:"status"`
	Version int64             `json:"version,omitempty"`
	Flushed int               `json:"flushed,omitempty"`
	Pending int               `json:"pending"`
	Digest  string            `json:"digest,omitempty"`
	State   map[string]string `json:"state,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PullOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pull <doc>...",
		Short: "Pull documents and flush queued offline writes",
		Long: `Fetch each document from the remote, flush any queued offline writes
into it and print the merged state.

Documents are pulled concurrently. A document whose remote is unreachable
is reported as unavailable and makes the command exit 1.

Examples:
  chatsync pull room-1
  chatsync pull room-1 room-2 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts.RootOptions, func(b *backend) error {
				return runPull(cmd, opts, b, args)
			})
		},
	}

	cmd.Flags().IntVar(&opts.Parallel, "parallel", 4, "maximum concurrent pulls")

	return cmd
}

func runPull(cmd *cobra.Command, opts *PullOptions, b *backend, docs []string) error {
	ctx := cmd.Context()
	// The engine does not serialise pulls of one doc; naming it twice
	// must not run two.
	docs = uniqueDocs(docs)
	reports := make([]DocReport, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, doc := range docs {
		g.Go(func() error {
			report, err := pullReport(gctx, b, doc)
			if err != nil {
				return fmt.Errorf("%s: %w", doc, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "pull failed", err)
	}

	if err := opts.formatter(cmd).Emit(reports, func(w io.Writer) {
		for _, r := range reports {
			writeDocReport(w, r)
		}
	}); err != nil {
		return err
	}

	var unavailable []string
	for _, r := range reports {
		if r.Status == replica.PullUnavailable.String() {
			unavailable = append(unavailable, r.Doc)
		}
	}
	if len(unavailable) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("remote unavailable for %s", strings.Join(unavailable, ", ")))
	}
	return nil
}

// uniqueDocs drops repeated keys, keeping first-seen order.
func uniqueDocs(docs []string) []string {
	seen := make(map[string]bool, len(docs))
	out := docs[:0:0]
	for _, d := range docs {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func pullReport(ctx context.Context, b *backend, doc string) (DocReport, error) {
	res := b.engine.Pull(ctx, doc, nil)
	report := DocReport{
		Doc:     doc,
		Status:  res.Status.String(),
		Version: res.Version,
		Flushed: res.Flushed,
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
	}
	if res.Status == replica.PullUpdated {
		state, err := crdt.Materialize(res.Update)
		if err != nil {
			return report, err
		}
		report.State = state
		report.Digest = crdt.Digest(res.Update)
	}
	pending, err := b.engine.Pending(ctx, doc)
	if err != nil {
		return report, err
	}
	report.Pending = pending
	return report, nil
}

func writeDocReport(w io.Writer, r DocReport) {
	fmt.Fprintf(w, "%s: %s", r.Doc, r.Status)
	if r.Version > 0 {
		fmt.Fprintf(w, " v%d", r.Version)
	}
	if r.Flushed > 0 {
		fmt.Fprintf(w, " (flushed %d)", r.Flushed)
	}
	if r.Pending > 0 {
		fmt.Fprintf(w, " [%d pending]", r.Pending)
	}
	fmt.Fprintln(w)
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
	}
	writeState(w, r.State)
}

func writeState(w io.Writer, state map[string]string) {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, state[k])
	}
}
