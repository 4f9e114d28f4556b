package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/precedent-offline/internal/lifecycle"
)

// NewActivateCommand creates the activate command.
func NewActivateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate the installed generation",
		Long: `Make the installed cache generation current and delete every other
generation. The current generation must have been installed first.

Example:
  precedent-offline install && precedent-offline activate`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivate(rootOpts, cmd)
		},
	}
	return cmd
}

func runActivate(opts *RootOptions, cmd *cobra.Command) error {
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
	co := ed.Coordinator

	restored, err := co.Restore(ctx)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeStore, "failed to read cache generations", err)
	}
	if !restored {
		return e.out.Fail(ExitFailure, ErrCodeActivate,
			fmt.Sprintf("generation %s is not installed", co.Generation()), nil)
	}

	result := LifecycleResult{Generation: co.Generation(), Purged: []string{}}
	if co.State() == lifecycle.StateWaiting {
		report, err := co.Activate(ctx)
		if err != nil {
			return e.out.Fail(ExitFailure, ErrCodeActivate, "activate failed", err)
		}
		result.Purged = report.Purged
	}
	result.State = co.State().String()

	return e.out.Emit(result, func(w io.Writer) {
		if len(result.Purged) == 0 {
			fmt.Fprintf(w, "✓ %s is active\n", result.Generation)
			return
		}
		fmt.Fprintf(w, "✓ %s is active, removed %s\n", result.Generation, strings.Join(result.Purged, ", "))
	})
}
