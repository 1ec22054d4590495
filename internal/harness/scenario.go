package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/brickbook/internal/ir"
)

// Scenario defines a conformance scenario against the catalogue.
// A scenario seeds buildings, runs an ordered list of mutations with an
// expected outcome each, and checks the final state of selected buildings.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixtures are seeded before the first step. Buildings start at
	// revision 0 with no log entries.
	Fixtures FixtureSet `yaml:"fixtures"`

	// Steps run in order. A step with Parallel > 1 runs its copies
	// concurrently and only its outcome counts are checked.
	Steps []Step `yaml:"steps"`

	// Assertions validate final building state.
	Assertions []Assertion `yaml:"assertions"`
}

// FixtureSet is the seed data format shared by scenarios and
// `brickbook seed`.
type FixtureSet struct {
	// Geometries are optional; a building whose geometry is not listed
	// gets a small generated footprint.
	Geometries []ir.Geometry     `yaml:"geometries,omitempty"`
	Buildings  []FixtureBuilding `yaml:"buildings"`
}

// FixtureBuilding is one seeded building.
type FixtureBuilding struct {
	ID         int64          `yaml:"building_id"`
	GeometryID int64          `yaml:"geometry_id,omitempty"` // defaults to ID
	Fields     map[string]any `yaml:"fields,omitempty"`
}

// Step is a single mutation.
type Step struct {
	// Action is one of save, like, revert.
	Action string `yaml:"action"`

	// Building is the target building id.
	Building int64 `yaml:"building"`

	// User picks the acting principal; users are numbered from 1.
	User int `yaml:"user"`

	// Revision is the expected revision for save and revert. If omitted the
	// building's current revision is read just before the step runs.
	Revision *int64 `yaml:"revision,omitempty"`

	// Fields are the proposed whitelisted fields for save.
	Fields map[string]any `yaml:"fields,omitempty"`

	// LogID is the log entry to undo for revert.
	LogID int64 `yaml:"log_id,omitempty"`

	// Parallel runs this many copies at once. Copy i acts as User+i.
	Parallel int `yaml:"parallel,omitempty"`

	// Expect is the expected outcome of a sequential step.
	Expect string `yaml:"expect,omitempty"`

	// ExpectCounts is the expected outcome histogram of a parallel step.
	ExpectCounts map[string]int `yaml:"expect_counts,omitempty"`

	// Result is a subset of the returned record checked when Expect is ok.
	Result map[string]any `yaml:"result,omitempty"`
}

// Step actions.
const (
	ActionSave   = "save"
	ActionLike   = "like"
	ActionRevert = "revert"
)

// Outcomes a step can expect.
const (
	OutcomeOK           = "ok"
	OutcomeConflict     = "conflict"
	OutcomeAlreadyLiked = "already_liked"
	OutcomeValidation   = "validation"
	OutcomeNotFound     = "not_found"
	OutcomeTransient    = "transient"
	OutcomeError        = "error"
)

var validOutcomes = map[string]bool{
	OutcomeOK:           true,
	OutcomeConflict:     true,
	OutcomeAlreadyLiked: true,
	OutcomeValidation:   true,
	OutcomeNotFound:     true,
	OutcomeTransient:    true,
	OutcomeError:        true,
}

// Assertion validates the final state of one building.
// Only the fields that are set are checked.
type Assertion struct {
	Building   int64          `yaml:"building"`
	Fields     map[string]any `yaml:"fields,omitempty"`
	Revision   *int64         `yaml:"revision,omitempty"`
	LikesTotal *int64         `yaml:"likes_total,omitempty"`
	LogLength  *int           `yaml:"log_length,omitempty"`
}

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

// ParseScenario parses scenario YAML.
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

// LoadFixtures reads a fixture YAML file.
func LoadFixtures(path string) (*FixtureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var set FixtureSet
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(set.Buildings) == 0 {
		return nil, fmt.Errorf("fixture file has no buildings")
	}
	return &set, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if a.Building <= 0 {
			return fmt.Errorf("assertions[%d]: building is required", i)
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	switch step.Action {
	case ActionSave, ActionLike:
	case ActionRevert:
		if step.LogID <= 0 {
			return fmt.Errorf("steps[%d]: log_id is required for revert", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}

	if step.Building <= 0 {
		return fmt.Errorf("steps[%d]: building is required", index)
	}
	if step.User < 0 {
		return fmt.Errorf("steps[%d]: user must be non-negative", index)
	}

	if step.Parallel > 1 {
		if len(step.ExpectCounts) == 0 {
			return fmt.Errorf("steps[%d]: expect_counts is required for parallel steps", index)
		}
		total := 0
		for outcome, n := range step.ExpectCounts {
			if !validOutcomes[outcome] {
				return fmt.Errorf("steps[%d]: unknown outcome %q", index, outcome)
			}
			total += n
		}
		if total != step.Parallel {
			return fmt.Errorf("steps[%d]: expect_counts sum to %d, parallel is %d", index, total, step.Parallel)
		}
		return nil
	}

	if !validOutcomes[step.Expect] {
		return fmt.Errorf("steps[%d]: expect must be one of ok, conflict, already_liked, validation, not_found, transient, error; got %q", index, step.Expect)
	}
	if step.Result != nil && step.Expect != OutcomeOK {
		return fmt.Errorf("steps[%d]: result can only be checked when expect is ok", index)
	}
	return nil
}
