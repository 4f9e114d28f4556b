package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/precedent-offline/internal/intercept"
	"github.com/roach88/precedent-offline/internal/remote"
	"github.com/roach88/precedent-offline/internal/store"
)

// SavedOptions holds flags for the saved commands.
type SavedOptions struct {
	*RootOptions
	ProjectID string
	Notes     string
	Tags      []string
}

// NewSavedCommand creates the saved command and its subcommands.
func NewSavedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SavedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved planning cases",
		Long: `Manage planning cases saved for later. Saves are kept locally and
submitted to the backend, or queued when it cannot be reached.

Examples:
  precedent-offline saved put 2024/0412/P --project loft-conversion --tag dormer
  precedent-offline saved list`,
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List locally saved cases",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSavedList(opts, cmd)
		},
	}

	put := &cobra.Command{
		Use:           "put <case-reference>",
		Short:         "Save a case and submit it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSavedPut(opts, args[0], cmd)
		},
	}
	put.Flags().StringVar(&opts.ProjectID, "project", "", "project the case is saved to")
	put.Flags().StringVar(&opts.Notes, "notes", "", "free-text notes")
	put.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag (repeatable)")

	del := &cobra.Command{
		Use:           "delete <case-reference>",
		Short:         "Forget a locally saved case",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSavedDelete(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(list, put, del)
	return cmd
}

func runSavedList(opts *SavedOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := opts.setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	items, err := e.store.ListSavedItems(ctx)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to list saved cases", err)
	}
	if items == nil {
		items = []store.SavedItem{}
	}
	return e.out.Emit(items, func(w io.Writer) {
		if len(items) == 0 {
			fmt.Fprintln(w, "No saved cases.")
			return
		}
		for _, it := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", it.BusinessKey, it.ProjectID, strings.Join(it.Tags, ","))
		}
	})
}

func runSavedPut(opts *SavedOptions, ref string, cmd *cobra.Command) error {
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
	res, err := ed.Outbox.SaveCase(ctx, store.SavedItem{
		BusinessKey: ref,
		ProjectID:   opts.ProjectID,
		Notes:       opts.Notes,
		Tags:        opts.Tags,
	})
	if err != nil {
		return submitFailure(e.out, "save", err)
	}
	return e.out.Emit(res, func(w io.Writer) {
		printSubmitResult(w, ref, res)
	})
}

func runSavedDelete(opts *SavedOptions, ref string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := opts.setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	if _, err := e.store.GetSavedItem(ctx, ref); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return e.out.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no saved case %s", ref), nil)
		}
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to read saved case", err)
	}
	if err := e.store.DeleteSavedItem(ctx, ref); err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to delete saved case", err)
	}
	return e.out.Emit(map[string]string{"deleted": ref}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Deleted %s\n", ref)
	})
}

// submitFailure reports an outbox error. An origin rejection is an
// operation failure; anything else is a command error.
func submitFailure(out *OutputFormatter, op string, err error) error {
	if remote.IsStatusError(err) {
		return out.Fail(ExitFailure, ErrCodeEdge, op+" rejected by backend", err)
	}
	return out.Fail(ExitCommandError, ErrCodeStore, op+" failed", err)
}

func printSubmitResult(w io.Writer, what string, res intercept.Result) {
	if res.Queued {
		fmt.Fprintf(w, "✓ %s queued as %s #%d (backend unreachable)\n", what, res.Kind, res.ID)
		return
	}
	fmt.Fprintf(w, "✓ %s submitted (HTTP %d)\n", what, res.Status)
}
