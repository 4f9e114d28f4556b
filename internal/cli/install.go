package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/precedent-offline/internal/lifecycle"
)

// LifecycleResult is the outcome of install and activate.
type LifecycleResult struct {
	Generation string   `json:"generation"`
	State      string   `json:"state"`
	Assets     int      `json:"assets,omitempty"`
	Restored   bool     `json:"restored,omitempty"`
	Purged     []string `json:"purged,omitempty"`
}

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Pre-cache the offline manifest",
		Long: `Fetch every asset in the offline manifest into the current cache
generation. Either every asset is stored or none is; a failed install
leaves the generation untouched.

Installing a generation that is already complete is a no-op.

Example:
  precedent-offline install --config ./offline.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(rootOpts, cmd)
		},
	}
	return cmd
}

func runInstall(opts *RootOptions, cmd *cobra.Command) error {
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
		e.out.VerboseLog("installing %d asset(s) from %s", len(e.cfg.Manifest), e.cfg.Origin)
		if err := co.Install(ctx); err != nil {
			return e.out.Fail(ExitFailure, ErrCodeInstall, "install failed", err)
		}
	}

	result := LifecycleResult{
		Generation: co.Generation(),
		State:      co.State().String(),
		Assets:     len(e.cfg.Manifest),
		Restored:   restored,
	}
	return e.out.Emit(result, func(w io.Writer) {
		if restored {
			fmt.Fprintf(w, "✓ %s already installed (%s)\n", result.Generation, result.State)
			return
		}
		fmt.Fprintf(w, "✓ Installed %s: %d asset(s) cached\n", result.Generation, result.Assets)
		if co.State() == lifecycle.StateWaiting {
			fmt.Fprintln(w, "  Run 'precedent-offline activate' to retire older generations.")
		}
	})
}
