package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/precedent-offline/internal/intercept"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Results int
	Filters []string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Record searches in the remote search history",
	}

	appendCmd := &cobra.Command{
		Use:   "append <query>",
		Short: "Append a search to the history",
		Long: `Append a search to the remote search history, queueing it when the
backend cannot be reached.

Example:
  precedent-offline history append "rear extension" --results 12 --filter ward=camden-town`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryAppend(opts, args[0], cmd)
		},
	}
	appendCmd.Flags().IntVar(&opts.Results, "results", 0, "number of results the search returned")
	appendCmd.Flags().StringSliceVar(&opts.Filters, "filter", nil, "search filter as key=value (repeatable)")

	cmd.AddCommand(appendCmd)
	return cmd
}

func runHistoryAppend(opts *HistoryOptions, query string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	out := opts.formatter(cmd)

	entry := intercept.SearchEntry{Query: query, ResultsCount: opts.Results}
	if strings.TrimSpace(query) == "" {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "query must not be empty", nil)
	}
	if opts.Results < 0 {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "--results must not be negative", nil)
	}
	if len(opts.Filters) > 0 {
		entry.Filters = make(map[string]any, len(opts.Filters))
		for _, f := range opts.Filters {
			k, v, ok := strings.Cut(f, "=")
			if !ok || k == "" {
				return out.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Sprintf("invalid filter %q, want key=value", f), nil)
			}
			entry.Filters[k] = v
		}
	}

	e, err := opts.setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	ed, err := e.edge(ctx)
	if err != nil {
		return err
	}
	res, err := ed.Outbox.AppendSearch(ctx, entry)
	if err != nil {
		return submitFailure(e.out, "search", err)
	}
	return e.out.Emit(res, func(w io.Writer) {
		printSubmitResult(w, fmt.Sprintf("search %q", query), res)
	})
}
