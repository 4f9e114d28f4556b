package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// StatusResult summarizes the durable state of the offline layer.
type StatusResult struct {
	Generation  string         `json:"generation"`
	Installed   bool           `json:"installed"`
	Generations []string       `json:"generations"`
	Pending     map[string]int `json:"pending"`
	Tags        []string       `json:"tags"`
	Saved       int            `json:"saved"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache generations and queued actions",
		Long: `Show what the offline store holds: cache generations, queued actions
per kind, registered sync tags and locally saved cases.

Example:
  precedent-offline status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
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
	result := StatusResult{Generation: e.cfg.Generation, Pending: map[string]int{}}
	if result.Installed, err = ed.Coordinator.Restore(ctx); err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to check install", err)
	}
	if result.Generations, err = e.store.Generations(ctx); err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to list generations", err)
	}

	kinds, err := e.store.PendingKinds(ctx)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to list pending kinds", err)
	}
	for _, kind := range kinds {
		n, err := e.store.PendingCount(ctx, kind)
		if err != nil {
			return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to count pending actions", err)
		}
		result.Pending[kind] = n
	}
	if result.Tags, err = e.store.Tags(ctx); err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to list sync tags", err)
	}
	saved, err := e.store.ListSavedItems(ctx)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to list saved cases", err)
	}
	result.Saved = len(saved)

	return e.out.Emit(result, func(w io.Writer) {
		mark := "not installed"
		if result.Installed {
			mark = "installed"
		}
		fmt.Fprintf(w, "Generation: %s (%s)\n", result.Generation, mark)
		if len(result.Generations) > 1 {
			fmt.Fprintf(w, "Cached generations: %v\n", result.Generations)
		}
		if len(result.Pending) == 0 {
			fmt.Fprintln(w, "Queue: empty")
		} else {
			fmt.Fprintln(w, "Queue:")
			for _, kind := range kinds {
				fmt.Fprintf(w, "  %s: %d\n", kind, result.Pending[kind])
			}
		}
		if len(result.Tags) > 0 {
			fmt.Fprintf(w, "Sync tags: %v\n", result.Tags)
		}
		fmt.Fprintf(w, "Saved cases: %d\n", result.Saved)
	})
}
