package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines an offline behaviour test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pages are extra origin bodies (path to body) served next to the
	// install manifest.
	Pages map[string]string `yaml:"pages,omitempty"`

	// Steps run in order against one edge.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single action against the edge.
type Step struct {
	// Do names the step type. See the Step constants.
	Do string `yaml:"do"`

	Method string `yaml:"method,omitempty"`
	Path   string `yaml:"path,omitempty"`

	// Mode is sent as Sec-Fetch-Mode on a request step.
	Mode string `yaml:"mode,omitempty"`

	// Body is the request body, submit payload, page body or push payload.
	Body string `yaml:"body,omitempty"`

	Kind string `yaml:"kind,omitempty"`
	Tag  string `yaml:"tag,omitempty"`

	// Action is the notification action on a click step.
	Action string `yaml:"action,omitempty"`

	// Status is the rejection status on a reject step.
	Status int `yaml:"status,omitempty"`

	// Expect is checked against the step's trace event.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	Status   int    `yaml:"status,omitempty"`
	Cache    string `yaml:"cache,omitempty"`
	Body     string `yaml:"body,omitempty"`
	Code     string `yaml:"code,omitempty"`
	State    string `yaml:"state,omitempty"`
	Title    string `yaml:"title,omitempty"`
	Opened   string `yaml:"opened,omitempty"`
	Queued   *bool  `yaml:"queued,omitempty"`
	Replayed *int   `yaml:"replayed,omitempty"`
	Failed   *int   `yaml:"failed,omitempty"`
	Error    *bool  `yaml:"error,omitempty"`
}

// Step types.
const (
	StepStart    = "start"
	StepInstall  = "install"
	StepActivate = "activate"
	StepOffline  = "offline"
	StepOnline   = "online"
	StepRequest  = "request"
	StepSubmit   = "submit"
	StepSave     = "save"
	StepReject   = "reject"
	StepAccept   = "accept"
	StepPage     = "page"
	StepSync     = "sync"
	StepPush     = "push"
	StepClick    = "click"
)

// Assertion validates state after the last step.
type Assertion struct {
	// Type specifies the assertion type:
	// - "pending": Count queued actions, optionally of Kind
	// - "delivered": Count mutations the origin accepted on Path
	// - "state": Check the lifecycle state
	// - "tags": Check the registered sync tags
	// - "saved": Count saved items mirrored locally
	// - "trace_count": Check Step appears exactly Count times
	Type string `yaml:"type"`

	Kind  string   `yaml:"kind,omitempty"`
	Path  string   `yaml:"path,omitempty"`
	State string   `yaml:"state,omitempty"`
	Step  string   `yaml:"step,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`
	Count int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertPending    = "pending"
	AssertDelivered  = "delivered"
	AssertState      = "state"
	AssertTags       = "tags"
	AssertSaved      = "saved"
	AssertTraceCount = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Do {
	case StepStart, StepInstall, StepActivate, StepOffline, StepOnline, StepSync, StepPush, StepClick:
	case StepRequest:
		if s.Path == "" {
			return fmt.Errorf("steps[%d]: path is required for request", index)
		}
	case StepSave:
		if s.Body == "" {
			return fmt.Errorf("steps[%d]: body is required for save", index)
		}
	case StepSubmit:
		if s.Kind == "" {
			return fmt.Errorf("steps[%d]: kind is required for submit", index)
		}
	case StepReject:
		if s.Path == "" || s.Status < 400 {
			return fmt.Errorf("steps[%d]: path and a status of at least 400 are required for reject", index)
		}
	case StepAccept, StepPage:
		if s.Path == "" {
			return fmt.Errorf("steps[%d]: path is required for %s", index, s.Do)
		}
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, s.Do)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPending, AssertSaved, AssertTags:
	case AssertDelivered:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for delivered", index)
		}
	case AssertState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for state", index)
		}
	case AssertTraceCount:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
