package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

const passingScenario = `name: cli_offline_save
description: A save made offline is queued and replayed.
steps:
  - do: start
  - do: offline
  - do: save
    body: '{"case_reference":"2024/0412/P"}'
    expect:
      queued: true
  - do: online
  - do: sync
    expect:
      replayed: 1
assertions:
  - type: pending
    count: 0
  - type: delivered
    path: /api/v1/saved-cases
    count: 1
`

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// scenarioDir lays out dir/scenarios and returns it.
func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := runTestCommand(t, "text", scenarioDir(t, nil))
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	if _, err := os.Stat(harnessScenarios); os.IsNotExist(err) {
		t.Skip("harness scenarios not found")
	}

	out, err := runTestCommand(t, "json", harnessScenarios)
	require.NoError(t, err, out)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	var result TestResult
	dataAs(t, resp, &result)
	assert.Positive(t, result.Total)
	assert.Equal(t, result.Total, result.Passed)
}

func TestTestCommandFilter(t *testing.T) {
	if _, err := os.Stat(harnessScenarios); os.IsNotExist(err) {
		t.Skip("harness scenarios not found")
	}

	out, err := runTestCommand(t, "text", harnessScenarios, "--filter", "push_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ push_and_click")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"cli_offline_save.yaml": passingScenario})

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cli_offline_save (golden updated)")

	golden := filepath.Join(filepath.Dir(dir), "golden", "cli_offline_save.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name": "cli_offline_save"`)

	// The written golden now matches.
	out, err = runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All scenarios passed")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err = runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	failing := `name: wrong_expectation
description: Expects a direct submit while offline.
steps:
  - do: start
  - do: offline
  - do: save
    body: '{"case_reference":"2024/0412/P"}'
    expect:
      queued: false
`
	dir := scenarioDir(t, map[string]string{
		"wrong_expectation.yaml": failing,
		"broken.yaml":            "name: [",
	})

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)

	var result TestResult
	dataAs(t, resp, &result)
	assert.Equal(t, 2, result.Failed)
	for _, sc := range result.Scenarios {
		assert.False(t, sc.Pass)
		assert.NotEmpty(t, sc.Errors)
	}
}

func TestGoldenFilePath(t *testing.T) {
	got := goldenFilePath(filepath.Join("testdata", "scenarios", "offline_reads.yaml"))
	assert.Equal(t, filepath.Join("testdata", "golden", "offline_reads.golden"), got)
}
