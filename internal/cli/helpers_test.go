package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/precedent-offline/internal/config"
	"github.com/roach88/precedent-offline/internal/testutil"
)

// cliEnv is a config file and database pointing at a fake origin.
type cliEnv struct {
	origin *testutil.Origin
	config string
	db     string
}

// newCLIEnv writes a config whose origin serves the default manifest.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	origin := testutil.NewOrigin(testutil.ManifestPages(config.Default().Manifest))
	t.Cleanup(origin.Close)
	return newCLIEnvWith(t, origin, fmt.Sprintf("origin: %s\n", origin.URL))
}

// newOfflineCLIEnv writes a config whose origin is unreachable while
// replays go to a live remote.
func newOfflineCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dead := httptest.NewServer(nil)
	deadURL := dead.URL
	dead.Close()

	origin := testutil.NewOrigin(nil)
	t.Cleanup(origin.Close)
	return newCLIEnvWith(t, origin, fmt.Sprintf("origin: %s\nremote: %s\n", deadURL, origin.URL))
}

func newCLIEnvWith(t *testing.T, origin *testutil.Origin, yaml string) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "offline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return &cliEnv{origin: origin, config: path, db: filepath.Join(dir, "offline.db")}
}

// run executes the root command with the env's config and database.
func (c *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runRoot(t, append([]string{"--config", c.config, "--db", c.db}, args...)...)
}

// runJSON runs with --format json and decodes the response.
func (c *cliEnv) runJSON(t *testing.T, args ...string) (CLIResponse, error) {
	t.Helper()
	out, err := c.run(t, append([]string{"--format", "json"}, args...)...)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, err
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// dataAs re-decodes a response payload into v.
func dataAs(t *testing.T, resp CLIResponse, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}
