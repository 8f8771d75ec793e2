package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/starrybamboo/chatsync/internal/readiness"
)

// GuardOptions holds flags for the guard command.
type GuardOptions struct {
	*RootOptions
	Snapshot readiness.Snapshot
	All      bool
}

// GuardRow pairs a snapshot with its decision.
type GuardRow struct {
	Snapshot readiness.Snapshot `json:"snapshot"`
	Decision readiness.Decision `json:"decision"`
}

// NewGuardCommand creates the guard command.
func NewGuardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GuardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Evaluate the history rendering gates for a room snapshot",
		Long: `Evaluate whether initial history may render, whether a settings change
needs a re-render and whether history deltas may apply.

Examples:
  chatsync guard --realtime-active --has-history --has-room
  chatsync guard --all --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuard(cmd, opts)
		},
	}

	s := &opts.Snapshot
	cmd.Flags().BoolVar(&s.IsRealtimeActive, "realtime-active", false, "room view is live")
	cmd.Flags().BoolVar(&s.HasRenderedHistory, "rendered", false, "initial history render has completed")
	cmd.Flags().BoolVar(&s.IsRenderingHistory, "rendering", false, "a history render is in progress")
	cmd.Flags().BoolVar(&s.HasHistoryMessages, "has-history", false, "history messages are loaded")
	cmd.Flags().BoolVar(&s.ChatHistoryLoading, "loading", false, "history is still loading")
	cmd.Flags().BoolVar(&s.HasRoom, "has-room", false, "a room is selected")
	cmd.Flags().BoolVar(&s.SettingsChanged, "settings-changed", false, "display settings changed")
	cmd.Flags().BoolVar(&opts.All, "all", false, "print the decision for every snapshot")

	return cmd
}

func runGuard(cmd *cobra.Command, opts *GuardOptions) error {
	f := opts.formatter(cmd)

	if !opts.All {
		d := readiness.Evaluate(opts.Snapshot)
		return f.Emit(GuardRow{Snapshot: opts.Snapshot, Decision: d}, func(w io.Writer) {
			writeDecision(w, d)
		})
	}

	snapshots := readiness.AllSnapshots()
	rows := make([]GuardRow, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, GuardRow{Snapshot: s, Decision: readiness.Evaluate(s)})
	}
	return f.Emit(rows, func(w io.Writer) {
		var render, rerender, delta int
		for _, r := range rows {
			if r.Decision.RenderInitialHistory {
				render++
			}
			if r.Decision.RerenderForSettings {
				rerender++
			}
			if r.Decision.ProcessHistoryDelta {
				delta++
			}
		}
		fmt.Fprintf(w, "%d snapshots: render_initial_history=%d rerender_for_settings=%d process_history_delta=%d\n",
			len(rows), render, rerender, delta)
	})
}

func writeDecision(w io.Writer, d readiness.Decision) {
	fmt.Fprintf(w, "render_initial_history: %t\n", d.RenderInitialHistory)
	fmt.Fprintf(w, "rerender_for_settings:  %t\n", d.RerenderForSettings)
	fmt.Fprintf(w, "process_history_delta:  %t\n", d.ProcessHistoryDelta)
}
