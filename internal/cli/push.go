package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/precedent-offline/internal/clients"
	"github.com/roach88/precedent-offline/internal/edge"
)

// PushOptions holds flags for the push command.
type PushOptions struct {
	*RootOptions
	Edge string

	// Client overrides the HTTP client (for testing).
	Client *http.Client
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{RootOptions: rootOpts}
	return newPushCommand(opts)
}

func newPushCommand(opts *PushOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push [payload]",
		Short: "Deliver a push message to a running edge",
		Long: `Deliver a push message to a running edge, which shows it as a
notification to connected instances.

A JSON object payload sets title, body, icon, badge, tag, actions and
data.url; any other payload becomes the notification body. Missing fields
use the configured defaults.

Examples:
  precedent-offline push '{"title":"Decision issued","data":{"url":"/cases/2024-0412"}}'
  precedent-offline push "Committee agenda published" --edge http://127.0.0.1:8787`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := ""
			if len(args) == 1 {
				payload = args[0]
			}
			return runPush(opts, payload, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Edge, "edge", "", "base URL of the running edge (default: http://<listen>)")

	return cmd
}

func runPush(opts *PushOptions, payload string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	base := opts.Edge
	if base == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
		}
		base = "http://" + cfg.Listen
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(commandContext(cmd), http.MethodPost,
		strings.TrimRight(base, "/")+edge.PushPath, strings.NewReader(payload))
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid edge URL", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeEdge, "edge unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return out.Fail(ExitFailure, ErrCodeEdge,
			fmt.Sprintf("edge answered %d", resp.StatusCode), errors.New(strings.TrimSpace(string(body))))
	}

	var n clients.Notification
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return out.Fail(ExitFailure, ErrCodeEdge, "invalid edge response", err)
	}
	return out.Emit(n, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Shown %q: %s\n", n.Title, n.Body)
		fmt.Fprintf(w, "  tag=%s url=%s\n", n.Tag, n.URL)
	})
}
