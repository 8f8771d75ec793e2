package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a replica sync test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Doc is the document key every peer syncs. Default: "doc".
	Doc string `yaml:"doc,omitempty"`

	// Peers lists the replicas in origin-assignment order.
	Peers []string `yaml:"peers"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one action field must be set.
type Step struct {
	Peer string `yaml:"peer"`

	Push         *PushStep `yaml:"push,omitempty"`
	Pull         *PullStep `yaml:"pull,omitempty"`
	RemoteDown   bool      `yaml:"remote_down,omitempty"`
	RemoteUp     bool      `yaml:"remote_up,omitempty"`
	FailPersists int       `yaml:"fail_persists,omitempty"`
}

// PushStep writes ops and pushes them as one update.
type PushStep struct {
	// Set writes are applied in key order, then Delete in list order.
	Set    map[string]string `yaml:"set,omitempty"`
	Delete []string          `yaml:"delete,omitempty"`

	// Expect is the expected push status ("persisted", "queued", ...).
	Expect string `yaml:"expect,omitempty"`
}

// PullStep pulls and applies the diff.
type PullStep struct {
	// Expect is the expected pull status ("updated", "not_found", ...).
	Expect string `yaml:"expect,omitempty"`
}

// Step action names, as they appear in traces.
const (
	ActionPush         = "push"
	ActionPull         = "pull"
	ActionRemoteDown   = "remote_down"
	ActionRemoteUp     = "remote_up"
	ActionFailPersists = "fail_persists"
)

// Action returns the step's action name, or "" when none or several are
// set.
func (s Step) Action() string {
	var found []string
	if s.Push != nil {
		found = append(found, ActionPush)
	}
	if s.Pull != nil {
		found = append(found, ActionPull)
	}
	if s.RemoteDown {
		found = append(found, ActionRemoteDown)
	}
	if s.RemoteUp {
		found = append(found, ActionRemoteUp)
	}
	if s.FailPersists > 0 {
		found = append(found, ActionFailPersists)
	}
	if len(found) != 1 {
		return ""
	}
	return found[0]
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Peer is used by queue_len and peer_state.
	Peer string `yaml:"peer,omitempty"`

	// Count is used by queue_len.
	Count int `yaml:"count,omitempty"`

	// Version is used by remote_version.
	Version int64 `yaml:"version,omitempty"`

	// Expect is used by remote_state and peer_state.
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertQueueLen      = "queue_len"
	AssertRemoteState   = "remote_state"
	AssertRemoteVersion = "remote_version"
	AssertPeerState     = "peer_state"
	AssertConverged     = "converged"
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

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Doc == "" {
		scenario.Doc = "doc"
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that all required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Peers) == 0 {
		return errors.New("at least one peer is required")
	}

	peers := make(map[string]bool, len(s.Peers))
	for _, p := range s.Peers {
		if p == "" {
			return errors.New("peer names must not be empty")
		}
		if peers[p] {
			return fmt.Errorf("duplicate peer %q", p)
		}
		peers[p] = true
	}

	if len(s.Steps) == 0 {
		return errors.New("at least one step is required")
	}
	for i, step := range s.Steps {
		if !peers[step.Peer] {
			return fmt.Errorf("steps[%d]: unknown peer %q", i, step.Peer)
		}
		if step.Action() == "" {
			return fmt.Errorf("steps[%d]: exactly one of push, pull, remote_down, remote_up, fail_persists is required", i)
		}
		if step.Push != nil && len(step.Push.Set) == 0 && len(step.Push.Delete) == 0 {
			return fmt.Errorf("steps[%d]: push needs at least one set or delete", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, peers); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, peers map[string]bool) error {
	switch a.Type {
	case AssertQueueLen:
		if !peers[a.Peer] {
			return fmt.Errorf("assertions[%d]: unknown peer %q for queue_len", index, a.Peer)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for queue_len", index)
		}
	case AssertPeerState:
		if !peers[a.Peer] {
			return fmt.Errorf("assertions[%d]: unknown peer %q for peer_state", index, a.Peer)
		}
	case AssertRemoteState, AssertConverged:
	case AssertRemoteVersion:
		if a.Version < 0 {
			return fmt.Errorf("assertions[%d]: version must be non-negative for remote_version", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
