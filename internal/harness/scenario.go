package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one simulation conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description,omitempty"`

	// Source is the path of the choreography source file, relative to
	// the scenario file.
	Source string `yaml:"source"`

	// Fire is the sequence of firings to attempt, in order.
	Fire []FireStep `yaml:"fire"`

	// Expect maps event labels to the marking required after the whole
	// sequence has run.
	Expect map[string]ExpectedMarking `yaml:"expect,omitempty"`
}

// FireStep attempts to fire one event, named by label.
type FireStep struct {
	Event string `yaml:"event"`

	// Reject flips the expectation: the firing must be refused as not
	// executable, leaving the marking unchanged.
	Reject bool `yaml:"reject,omitempty"`
}

// ExpectedMarking is the full runtime marking asserted for one event.
type ExpectedMarking struct {
	Included   bool `yaml:"included"`
	Pending    bool `yaml:"pending"`
	Executable bool `yaml:"executable"`
	Executed   bool `yaml:"executed"`
}

// LoadScenario reads and parses a scenario file. Unknown YAML fields are
// rejected so typos fail loudly instead of silently passing.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: missing name", path)
	}
	if sc.Source == "" {
		return nil, fmt.Errorf("scenario %s: missing source", path)
	}
	if len(sc.Fire) == 0 {
		return nil, fmt.Errorf("scenario %s: empty fire sequence", path)
	}
	for i, step := range sc.Fire {
		if step.Event == "" {
			return nil, fmt.Errorf("scenario %s: fire step %d has no event", path, i)
		}
	}
	return &sc, nil
}
