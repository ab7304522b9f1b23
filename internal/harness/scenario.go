package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/learnsync/internal/model"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Options are the sync defaults of the service under test.
	Options Options `yaml:"options,omitempty"`

	// Remote seeds records written by other clients before the first step.
	Remote []RemoteRecord `yaml:"remote,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions check the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Options are service-wide sync defaults.
type Options struct {
	Policy        string `yaml:"policy,omitempty"`
	RetryAttempts int    `yaml:"retry_attempts,omitempty"`
}

// RemoteRecord is a record seeded into the remote.
type RemoteRecord struct {
	Type    string         `yaml:"type"`
	Key     string         `yaml:"key"`
	Payload map[string]any `yaml:"payload"`
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	Enqueue      *EnqueueStep  `yaml:"enqueue,omitempty"`
	SaveProgress *ProgressStep `yaml:"save_progress,omitempty"`
	Sync         *SyncStep     `yaml:"sync,omitempty"`
	Resolve      *ResolveStep  `yaml:"resolve,omitempty"`
	Fail         *FailStep     `yaml:"fail,omitempty"`
	Heal         string        `yaml:"heal,omitempty"`
}

// EnqueueStep queues an item.
type EnqueueStep struct {
	Type    string         `yaml:"type"`
	Payload map[string]any `yaml:"payload"`
	Policy  string         `yaml:"policy,omitempty"`
}

// ProgressStep saves learning progress.
type ProgressStep struct {
	Course   string  `yaml:"course"`
	Module   string  `yaml:"module"`
	Progress float64 `yaml:"progress"`
	Synced   bool    `yaml:"synced,omitempty"`
}

// SyncStep runs one cycle. Zero fields take the scenario options.
type SyncStep struct {
	Policy        string      `yaml:"policy,omitempty"`
	RetryAttempts int         `yaml:"retry_attempts,omitempty"`
	Expect        *SyncExpect `yaml:"expect,omitempty"`
}

// SyncExpect checks a cycle's result. Unset fields are not checked.
type SyncExpect struct {
	Success   *bool `yaml:"success,omitempty"`
	Synced    *int  `yaml:"synced,omitempty"`
	Conflicts *int  `yaml:"conflicts,omitempty"`
	Errors    *int  `yaml:"errors,omitempty"`
}

// ResolveStep resolves the open conflict of an item.
type ResolveStep struct {
	Item       string `yaml:"item"`
	Resolution string `yaml:"resolution"`
}

// FailStep makes every remote apply of an item fail until healed.
type FailStep struct {
	Item   string `yaml:"item"`
	Reason string `yaml:"reason"`
}

// action names the step's action, or "" when none or several are set.
func (s Step) action() string {
	var names []string
	if s.Enqueue != nil {
		names = append(names, "enqueue")
	}
	if s.SaveProgress != nil {
		names = append(names, "save_progress")
	}
	if s.Sync != nil {
		names = append(names, "sync")
	}
	if s.Resolve != nil {
		names = append(names, "resolve")
	}
	if s.Fail != nil {
		names = append(names, "fail")
	}
	if s.Heal != "" {
		names = append(names, "heal")
	}
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

// Assertion checks final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Item is a queue item id (queue_item, remote_calls).
	Item string `yaml:"item,omitempty"`

	// ItemType and Key address a remote record (remote_record, remote_missing).
	ItemType string `yaml:"item_type,omitempty"`
	Key      string `yaml:"key,omitempty"`

	// Course and Module address a progress record.
	Course string `yaml:"course,omitempty"`
	Module string `yaml:"module,omitempty"`

	// Count is the expected number (queue_length, conflicts, history_length,
	// remote_calls).
	Count int `yaml:"count,omitempty"`

	// Version is the expected item version (queue_item).
	Version int `yaml:"version,omitempty"`

	// Unresolved limits conflicts to open ones.
	Unresolved bool `yaml:"unresolved,omitempty"`

	// Expect holds expected fields (remote_record, progress). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertQueueLength   = "queue_length"
	AssertQueueItem     = "queue_item"
	AssertRemoteRecord  = "remote_record"
	AssertRemoteMissing = "remote_missing"
	AssertConflicts     = "conflicts"
	AssertHistoryLength = "history_length"
	AssertProgress      = "progress"
	AssertRemoteCalls   = "remote_calls"
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
	// Reject unknown fields so "assertion:" vs "assertions:" typos surface
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
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
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := validPolicy("options.policy", s.Options.Policy); err != nil {
		return err
	}
	if s.Options.RetryAttempts < 0 {
		return fmt.Errorf("options.retry_attempts must be non-negative")
	}

	for i, r := range s.Remote {
		if _, err := model.ParseItemType(r.Type); err != nil {
			return fmt.Errorf("remote[%d]: %w", i, err)
		}
		if r.Key == "" {
			return fmt.Errorf("remote[%d]: key is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validPolicy(field, p string) error {
	if p == "" {
		return nil
	}
	if _, err := model.ParsePolicy(p); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// validateStep validates a single step based on its action.
func validateStep(i int, step Step) error {
	switch step.action() {
	case "":
		return fmt.Errorf("steps[%d]: exactly one action is required", i)
	case "enqueue":
		if _, err := model.ParseItemType(step.Enqueue.Type); err != nil {
			return fmt.Errorf("steps[%d].enqueue: %w", i, err)
		}
		return validPolicy(fmt.Sprintf("steps[%d].enqueue.policy", i), step.Enqueue.Policy)
	case "save_progress":
		if step.SaveProgress.Course == "" || step.SaveProgress.Module == "" {
			return fmt.Errorf("steps[%d].save_progress: course and module are required", i)
		}
	case "sync":
		return validPolicy(fmt.Sprintf("steps[%d].sync.policy", i), step.Sync.Policy)
	case "resolve":
		if step.Resolve.Item == "" {
			return fmt.Errorf("steps[%d].resolve: item is required", i)
		}
		p, err := model.ParsePolicy(step.Resolve.Resolution)
		if err != nil || !p.IsAuto() {
			return fmt.Errorf("steps[%d].resolve: resolution must be local, remote or merge", i)
		}
	case "fail":
		if step.Fail.Item == "" {
			return fmt.Errorf("steps[%d].fail: item is required", i)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertQueueLength, AssertHistoryLength, AssertConflicts:
	case AssertQueueItem:
		if a.Item == "" || a.Version <= 0 {
			return fmt.Errorf("assertions[%d]: item and a positive version are required for queue_item", index)
		}
	case AssertRemoteRecord:
		if a.ItemType == "" || a.Key == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: item_type, key and expect are required for remote_record", index)
		}
	case AssertRemoteMissing:
		if a.ItemType == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: item_type and key are required for remote_missing", index)
		}
	case AssertProgress:
		if a.Course == "" || a.Module == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: course, module and expect are required for progress", index)
		}
	case AssertRemoteCalls:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for remote_calls", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
