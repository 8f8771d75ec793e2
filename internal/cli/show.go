package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/starrybamboo/chatsync/internal/crdt"
	"github.com/starrybamboo/chatsync/internal/replica"
)

// SnapshotReport describes the remote snapshot of a document as stored,
// without flushing anything into it.
type SnapshotReport struct {
	Doc       string            `json:"doc"`
	Status    string            `json:"status"`
	Version   int64             `json:"version,omitempty"`
	UpdatedAt string            `json:"updated_at,omitempty"`
	Digest    string            `json:"digest,omitempty"`
	Clock     crdt.StateVector  `json:"state_vector,omitempty"`
	State     map[string]string `json:"state,omitempty"`
	Pending   int               `json:"pending"`
	Error     string            `json:"error,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <doc>",
		Short: "Show the remote snapshot of a document",
		Long: `Read the remote snapshot of a document without writing anything.

Unlike pull, show never flushes the local queue.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), rootOpts, func(b *backend) error {
				return runShow(cmd, rootOpts, b, args[0])
			})
		},
	}
	return cmd
}

func runShow(cmd *cobra.Command, opts *RootOptions, b *backend, doc string) error {
	ctx := cmd.Context()
	fetched := b.remote.Fetch(ctx, doc)

	report := SnapshotReport{Doc: doc, Status: fetched.Status.String()}
	if fetched.Err != nil {
		report.Error = fetched.Err.Error()
	}
	if fetched.Status == replica.FetchFound {
		snap := fetched.Snapshot
		report.Version = snap.Version
		report.Digest = crdt.Digest(snap.Update)
		if snap.UpdatedAtMs > 0 {
			report.UpdatedAt = time.UnixMilli(snap.UpdatedAtMs).UTC().Format(time.RFC3339)
		}
		state, err := crdt.Materialize(snap.Update)
		if err != nil {
			report.Error = err.Error()
		} else {
			report.State = state
		}
		if sv, err := crdt.StateVectorOf(snap.Update); err == nil {
			report.Clock = sv
		}
	}
	pending, err := b.engine.Pending(ctx, doc)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read queue", err)
	}
	report.Pending = pending

	return opts.formatter(cmd).Emit(report, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %s", report.Doc, report.Status)
		if report.Version > 0 {
			fmt.Fprintf(w, " v%d %s", report.Version, report.Digest)
		}
		if report.UpdatedAt != "" {
			fmt.Fprintf(w, " at %s", report.UpdatedAt)
		}
		if report.Pending > 0 {
			fmt.Fprintf(w, " [%d pending]", report.Pending)
		}
		fmt.Fprintln(w)
		if report.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", report.Error)
		}
		writeState(w, report.State)
	})
}
