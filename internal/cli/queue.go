package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/starrybamboo/chatsync/internal/crdt"
)

// QueueEntry is one queued offline update as shown by the queue command.
type QueueEntry struct {
	ID         int64  `json:"id"`
	EnqueuedAt string `json:"enqueued_at"`
	Digest     string `json:"digest"`
	Ops        int    `json:"ops"`
	Bytes      int    `json:"bytes"`
}

// QueueReport lists the queue of one document.
type QueueReport struct {
	Doc     string       `json:"doc"`
	Entries []QueueEntry `json:"entries"`
}

// NewQueueCommand creates the queue command.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue [doc]",
		Short: "Inspect the local offline queue",
		Long: `List updates waiting to be flushed to the remote.

Without a document, lists every document that has queued updates.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), rootOpts, func(b *backend) error {
				docs := args
				if len(docs) == 0 {
					var err error
					if docs, err = b.queue.PendingDocs(cmd.Context()); err != nil {
						return WrapExitError(ExitCommandError, "failed to read queue", err)
					}
				}
				return runQueue(cmd, rootOpts, b, docs)
			})
		},
	}
	return cmd
}

func runQueue(cmd *cobra.Command, opts *RootOptions, b *backend, docs []string) error {
	reports := make([]QueueReport, 0, len(docs))
	for _, doc := range docs {
		rows, err := b.queue.Entries(cmd.Context(), doc)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read queue", err)
		}
		report := QueueReport{Doc: doc, Entries: make([]QueueEntry, 0, len(rows))}
		for _, row := range rows {
			entry := QueueEntry{
				ID:         row.ID,
				EnqueuedAt: time.UnixMilli(row.EnqueuedAtMs).UTC().Format(time.RFC3339),
				Digest:     crdt.Digest(row.Payload),
				Bytes:      len(row.Payload),
				Ops:        -1, // undecodable
			}
			if ops, err := crdt.DecodeUpdate(row.Payload); err == nil {
				entry.Ops = len(ops)
			}
			report.Entries = append(report.Entries, entry)
		}
		reports = append(reports, report)
	}

	return opts.formatter(cmd).Emit(reports, func(w io.Writer) {
		if len(reports) == 0 {
			fmt.Fprintln(w, "Queue is empty.")
			return
		}
		for _, r := range reports {
			fmt.Fprintf(w, "%s: %d queued\n", r.Doc, len(r.Entries))
			for _, e := range r.Entries {
				fmt.Fprintf(w, "  #%d %s %s ops=%d bytes=%d\n", e.ID, e.EnqueuedAt, e.Digest, e.Ops, e.Bytes)
			}
		}
	})
}
