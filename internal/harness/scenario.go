package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/canon/internal/config"
)

// Flow operations.
const (
	OpCreate  = "create"
	OpUpsert  = "upsert"
	OpSave    = "save"
	OpFind    = "find"
	OpFindOne = "find_one"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpAdvance = "advance"
)

// Scenario defines a resolution scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ConfigFile is a YAML or CUE configuration file, relative to the
	// scenario file. Mutually exclusive with Config.
	ConfigFile string `yaml:"config_file,omitempty"`

	// Config is an inline YAML configuration, decoded over the defaults.
	Config *InlineConfig `yaml:"config,omitempty"`

	// Setup writes documents straight to the store.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Flow runs operations through the access layer.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SetupStep is a document written behind the access layer.
type SetupStep struct {
	Kind     string         `yaml:"kind"`
	Document map[string]any `yaml:"document"`
}

// FlowStep is one access layer operation.
type FlowStep struct {
	Op   string `yaml:"op"`
	Kind string `yaml:"kind,omitempty"`

	// Document is written by create, upsert and save.
	Document map[string]any `yaml:"document,omitempty"`

	// Filter selects documents for find, find_one, update and delete.
	// Same shape as a JSON filter: scalars, {$in: [...]}, tags: [...].
	Filter map[string]any `yaml:"filter,omitempty"`

	// Set holds the fields update assigns.
	Set map[string]any `yaml:"set,omitempty"`

	// Limit caps find results.
	Limit int `yaml:"limit,omitempty"`

	// AdvanceMillis moves the clock forward (advance only).
	AdvanceMillis int64 `yaml:"advance_ms,omitempty"`

	// Expect is checked against the step's event. Nil checks nothing.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step behavior. Unset fields are not
// checked.
type ExpectClause struct {
	Outcome   string   `yaml:"outcome,omitempty"`
	IDs       []string `yaml:"ids,omitempty"`
	Count     *int     `yaml:"count,omitempty"`
	Ambiguous *bool    `yaml:"ambiguous,omitempty"`
	Indexed   *bool    `yaml:"indexed,omitempty"`
	Error     bool     `yaml:"error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "outcome_count": Outcome appears exactly Count times
	// - "outcome_order": Outcomes appear in this order among reads
	// - "document_count": Filter matches Count stored documents of Kind
	// - "index_record": the record found by Where in Scope matches Expect
	Type string `yaml:"type"`

	Outcome  string   `yaml:"outcome,omitempty"`
	Outcomes []string `yaml:"outcomes,omitempty"`
	Count    int      `yaml:"count,omitempty"`

	Kind   string         `yaml:"kind,omitempty"`
	Scope  string         `yaml:"scope,omitempty"`
	Filter map[string]any `yaml:"filter,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`

	// Expect holds record fields (current_id, current_revision,
	// primary_key) for index_record.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcomeCount  = "outcome_count"
	AssertOutcomeOrder  = "outcome_order"
	AssertDocumentCount = "document_count"
	AssertIndexRecord   = "index_record"
)

// InlineConfig holds a scenario's config block undecoded, so the strict
// scenario decoder leaves it to the config loader.
type InlineConfig struct {
	node yaml.Node
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *InlineConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("config must be a mapping, got %s", value.Tag)
	}
	c.node = *value
	return nil
}

// LoadScenario reads and parses a scenario YAML file.
// ConfigFile is resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.ConfigFile != "" && !filepath.IsAbs(scenario.ConfigFile) {
		scenario.ConfigFile = filepath.Join(filepath.Dir(path), scenario.ConfigFile)
	}
	if scenario.ConfigFile != "" {
		if _, err := os.Stat(scenario.ConfigFile); err != nil {
			return nil, fmt.Errorf("invalid scenario: config file not found: %s", scenario.ConfigFile)
		}
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

// LoadConfig returns the scenario's configuration.
func (s *Scenario) LoadConfig() (config.Config, error) {
	if s.Config == nil {
		return config.Load(s.ConfigFile)
	}
	data, err := yaml.Marshal(&s.Config.node)
	if err != nil {
		return config.Config{}, fmt.Errorf("encode inline config: %w", err)
	}
	return config.ParseYAML(data)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Config != nil && s.ConfigFile != "" {
		return fmt.Errorf("config and config_file are mutually exclusive")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Kind == "" {
			return fmt.Errorf("setup[%d]: kind is required", i)
		}
		if len(step.Document) == 0 {
			return fmt.Errorf("setup[%d]: document is required", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step); err != nil {
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

func validateStep(i int, step FlowStep) error {
	switch step.Op {
	case OpAdvance:
		if step.AdvanceMillis <= 0 {
			return fmt.Errorf("flow[%d]: advance_ms must be positive", i)
		}
		return nil
	case OpCreate, OpUpsert, OpSave:
		if step.Document == nil {
			return fmt.Errorf("flow[%d]: document is required for %s", i, step.Op)
		}
	case OpUpdate:
		if len(step.Set) == 0 {
			return fmt.Errorf("flow[%d]: set is required for update", i)
		}
	case OpFind, OpFindOne, OpDelete:
	case "":
		return fmt.Errorf("flow[%d]: op is required", i)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
	}

	if step.Kind == "" {
		return fmt.Errorf("flow[%d]: kind is required", i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutcomeCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case AssertOutcomeOrder:
		if len(a.Outcomes) == 0 {
			return fmt.Errorf("assertions[%d]: outcomes list is required for outcome_order", index)
		}
	case AssertDocumentCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for document_count", index)
		}
	case AssertIndexRecord:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for index_record", index)
		}
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for index_record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for index_record", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
