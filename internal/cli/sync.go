package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/precedent-offline/internal/policy"
	"github.com/roach88/precedent-offline/internal/reconcile"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Tag string
}

// SyncResult is the outcome of a reconcile pass.
type SyncResult struct {
	Replayed int        `json:"replayed"`
	Failed   int        `json:"failed"`
	Items    []SyncItem `json:"items"`
}

// SyncItem is one replayed or failed action.
type SyncItem struct {
	Kind    string `json:"kind"`
	ID      int64  `json:"id"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued actions to the backend",
		Long: `Replay queued actions to the backend, oldest first per kind.

Accepted actions are removed from the queue. Rejected or undeliverable
actions stay queued for the next pass.

Exit codes:
  0 - Every action was replayed
  1 - One or more actions are still queued
  2 - Command error (invalid config, store unavailable, etc.)

Examples:
  precedent-offline sync
  precedent-offline sync --tag sync-saved-case-create`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tag, "tag", "", "only replay the kind named by this sync tag")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := opts.setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	ed, err := e.edge(ctx)
	if err != nil {
		return err
	}

	var report reconcile.Report
	if opts.Tag != "" {
		report, err = ed.Reconciler.HandleSyncEvent(ctx, opts.Tag)
	} else {
		report, err = ed.Reconciler.Reconcile(ctx)
	}
	if err != nil && !policy.HasCode(err, policy.ErrCodeReplayFailed) {
		return e.out.Fail(ExitCommandError, ErrCodeReplay, "sync failed", err)
	}

	result := SyncResult{
		Replayed: report.Replayed(),
		Failed:   report.Failed(),
		Items:    make([]SyncItem, 0, len(report.Items)),
	}
	for _, item := range report.Items {
		si := SyncItem{Kind: item.Kind, ID: item.ID, Outcome: string(item.Outcome)}
		if item.Err != nil {
			si.Error = item.Err.Error()
		}
		result.Items = append(result.Items, si)
	}
	if result.Failed > 0 {
		if e.out.Format == "json" {
			_ = e.out.Success(result)
		} else {
			printSyncItems(e.out.Writer, result)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d action(s) still queued", result.Failed))
	}

	return e.out.Emit(result, func(w io.Writer) {
		printSyncItems(w, result)
		fmt.Fprintf(w, "✓ %d action(s) replayed\n", result.Replayed)
	})
}

func printSyncItems(w io.Writer, r SyncResult) {
	for _, item := range r.Items {
		if item.Error != "" {
			fmt.Fprintf(w, "✗ %s #%d: %s\n", item.Kind, item.ID, item.Error)
			continue
		}
		fmt.Fprintf(w, "✓ %s #%d\n", item.Kind, item.ID)
	}
	if r.Failed > 0 {
		fmt.Fprintf(w, "\n%d replayed, %d still queued\n", r.Replayed, r.Failed)
	}
}
