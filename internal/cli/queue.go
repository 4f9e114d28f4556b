package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/precedent-offline/internal/store"
)

// QueueOptions holds flags for the queue commands.
type QueueOptions struct {
	*RootOptions
	Kind string
}

// NewQueueCommand creates the queue command and its subcommands.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect queued actions",
		Long: `Inspect and manage actions queued while the origin was unreachable.

Examples:
  precedent-offline queue list
  precedent-offline queue list --kind saved-case-create --format json
  precedent-offline queue remove 42`,
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List queued actions, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(opts, cmd)
		},
	}
	list.Flags().StringVar(&opts.Kind, "kind", "", "only list actions of this kind")

	remove := &cobra.Command{
		Use:           "remove <id>",
		Short:         "Drop a queued action without replaying it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueRemove(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(list, remove)
	return cmd
}

func runQueueList(opts *QueueOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := opts.setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	actions, err := e.store.ListPending(ctx, opts.Kind)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to list queued actions", err)
	}
	if actions == nil {
		actions = []store.PendingAction{}
	}

	return e.out.Emit(actions, func(w io.Writer) {
		if len(actions) == 0 {
			fmt.Fprintln(w, "No queued actions.")
			return
		}
		for _, a := range actions {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				a.ID, a.Kind, a.EnqueuedAt.UTC().Format("2006-01-02T15:04:05Z"), a.Payload)
		}
	})
}

func runQueueRemove(opts *QueueOptions, arg string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	out := opts.formatter(cmd)
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Sprintf("invalid action id %q", arg), err)
	}

	e, err := opts.setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.store.Remove(ctx, id); err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to remove action", err)
	}
	return e.out.Emit(map[string]int64{"removed": id}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Removed action %d\n", id)
	})
}
