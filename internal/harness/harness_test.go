package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReportsFailedExpectation(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectation
description: "expects a cached answer that cannot exist"
steps:
  - do: start
  - do: offline
  - do: request
    path: /api/v1/unknown
    expect: { status: 200, cache: hit }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected status 200, got 503")
	assert.Contains(t, result.Errors[1], "expected cache hit, got")
}

func TestRun_ReportsFailedAssertion(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_assertion
description: "claims a queued action was delivered"
steps:
  - do: start
  - do: offline
  - do: submit
    kind: saved-case-create
    body: '{"case_reference":"2024/0001/P","tags":[]}'
assertions:
  - type: pending
    count: 0
  - type: delivered
    path: /api/v1/saved-cases
    count: 1
  - type: tags
    tags: [sync-saved-case-create]
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: pending")
	assert.Contains(t, result.Errors[0], "Expected: 0 all pending actions")
	assert.Contains(t, result.Errors[0], "Actual: 1")
	assert.Contains(t, result.Errors[1], "Assertion failed: delivered")
}

func TestRun_SubmitRejectedByOrigin(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: rejected_submit
description: "an origin rejection is not queued"
steps:
  - do: start
  - do: reject
    path: /api/v1/saved-cases
    status: 422
  - do: submit
    kind: saved-case-create
    body: '{"case_reference":"","tags":[]}'
    expect: { status: 422, queued: false, error: true }
assertions:
  - type: pending
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Contains(t, result.Trace[2].Body, "rejected with 422")
}

func TestRun_UnknownTagIsAnEdgeError(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unknown_tag
description: "a tag without the sync prefix is refused"
steps:
  - do: start
  - do: sync
    tag: refresh-wards
    expect: { error: true }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace[1].Code)
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps:\n  - do: start\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps:\n  - do: start\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown step",
			yaml:    "name: n\ndescription: d\nsteps:\n  - do: reboot\n",
			wantErr: `unknown step "reboot"`,
		},
		{
			name:    "request without path",
			yaml:    "name: n\ndescription: d\nsteps:\n  - do: request\n",
			wantErr: "path is required for request",
		},
		{
			name:    "submit without kind",
			yaml:    "name: n\ndescription: d\nsteps:\n  - do: submit\n",
			wantErr: "kind is required for submit",
		},
		{
			name:    "reject with success status",
			yaml:    "name: n\ndescription: d\nsteps:\n  - do: reject\n    path: /x\n    status: 200\n",
			wantErr: "status of at least 400",
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\nstep:\n  - do: start\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps:\n  - do: start\nassertions:\n  - type: final_state\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "delivered without path",
			yaml:    "name: n\ndescription: d\nsteps:\n  - do: start\nassertions:\n  - type: delivered\n",
			wantErr: "path is required for delivered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestMarshalSnapshot_OmitsUnsetFields(t *testing.T) {
	online := false
	data, err := MarshalSnapshot(TraceSnapshot{
		ScenarioName: "s",
		Trace: []TraceEvent{
			{Seq: 1, Step: "offline", Online: &online},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"scenario_name\": \"s\",\n  \"trace\": [\n    {\n      \"seq\": 1,\n      \"step\": \"offline\",\n      \"online\": false\n    }\n  ]\n}\n", string(data))
}
