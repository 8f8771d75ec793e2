package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starrybamboo/chatsync/internal/crdt"
	"github.com/starrybamboo/chatsync/internal/replica"
)

// PushOptions holds flags for the push command.
type PushOptions struct {
	*RootOptions
	Set    []string // key=value pairs
	Delete []string
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push <doc>",
		Short: "Write keys to a document",
		Long: `Write key/value pairs (and deletes) to a document as one update.

If the remote cannot take the write it is queued locally and flushed by a
later pull, push or flush. A queued write still exits 0.

Examples:
  chatsync push room-1 --set topic=dice --set mode=rp
  chatsync push room-1 --delete topic`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := parseAssignments(opts.Set)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --set", err)
			}
			if len(sets) == 0 && len(opts.Delete) == 0 {
				return NewExitError(ExitCommandError, "nothing to push: use --set or --delete")
			}
			return withBackend(cmd.Context(), opts.RootOptions, func(b *backend) error {
				return runPush(cmd, opts, b, args[0], sets)
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "key=value to write (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Delete, "delete", nil, "key to delete (repeatable)")

	return cmd
}

// parseAssignments splits key=value pairs. Later pairs win.
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func runPush(cmd *cobra.Command, opts *PushOptions, b *backend, doc string, sets map[string]string) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)

	local, pulled, err := b.localDoc(ctx, doc)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load local replica", err)
	}
	f.VerboseLog("base: %s v%d", pulled.Status, pulled.Version)

	keys := make([]string, 0, len(sets))
	for k := range sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var updates [][]byte
	for _, k := range keys {
		u, err := local.Set(k, sets[k])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build update", err)
		}
		updates = append(updates, u)
	}
	for _, k := range opts.Delete {
		u, err := local.Delete(k)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build update", err)
		}
		updates = append(updates, u)
	}
	update, err := crdt.Merge(updates...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build update", err)
	}

	res := b.engine.Push(ctx, doc, update)
	report := DocReport{
		Doc:     doc,
		Status:  res.Status.String(),
		Version: res.Version,
		State:   local.State(),
		Digest:  crdt.Digest(update),
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
	}
	if report.Pending, err = b.engine.Pending(ctx, doc); err != nil {
		return WrapExitError(ExitCommandError, "failed to read queue", err)
	}

	if err := f.Emit(report, func(w io.Writer) { writeDocReport(w, report) }); err != nil {
		return err
	}

	switch res.Status {
	case replica.PushPersisted, replica.PushQueued:
		return nil
	default:
		return WrapExitError(ExitFailure, "push "+res.Status.String(), res.Err)
	}
}
