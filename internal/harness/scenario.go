package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nbhd/internal/engine"
	"github.com/roach88/nbhd/internal/store"
)

// Scenario defines one resolution scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Engine overrides controller tuning. Zero values keep the defaults.
	Engine EngineSettings `yaml:"engine,omitempty"`

	// Fixture seeds the scenario's store before the first step.
	Fixture store.Fixture `yaml:"fixture"`

	// Steps run in order; each is followed by a full queue drain.
	Steps []Step `yaml:"steps"`
}

// EngineSettings tunes the engine for one scenario.
type EngineSettings struct {
	MaxRetries    *int          `yaml:"max_retries,omitempty"`
	SafetyTimeout time.Duration `yaml:"safety_timeout,omitempty"`
}

// Step is one scenario action plus optional expectations on the state
// after it.
type Step struct {
	Actor   *string       `yaml:"actor,omitempty"`
	Refresh bool          `yaml:"refresh,omitempty"`
	Select  string        `yaml:"select,omitempty"`
	Advance time.Duration `yaml:"advance,omitempty"`
	Fail    string        `yaml:"fail,omitempty"`
	Heal    bool          `yaml:"heal,omitempty"`

	// Error selects the injected error for fail: "query" (default) or
	// "unavailable".
	Error string `yaml:"error,omitempty"`

	// Times limits fail to the next n matching calls. Zero means until heal.
	Times int `yaml:"times,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks the state after a step. Nil fields are not checked.
type Expect struct {
	Active     *string  `yaml:"active,omitempty"`
	Candidates []string `yaml:"candidates,omitempty"`
	Loading    *bool    `yaml:"loading,omitempty"`
	Privileged *bool    `yaml:"privileged,omitempty"`

	// Error is the expected error code, or "" for no error.
	Error *string `yaml:"error,omitempty"`

	// Notices is the cumulative number of terminal notices.
	Notices *int `yaml:"notices,omitempty"`

	// Calls is the number of gateway calls made during the step.
	Calls *int `yaml:"calls,omitempty"`
}

// Injected error kinds.
const (
	ErrorQuery       = "query"
	ErrorUnavailable = "unavailable"
)

// FailAll matches every gateway operation in a fail step.
const FailAll = "*"

var knownOps = map[string]bool{
	FailAll:                         true,
	engine.OpHasPrivilegedAccess:    true,
	engine.OpFetchPrivilegedCatalog: true,
	engine.OpFetchCreatedBy:         true,
	engine.OpFetchAllCommunities:    true,
	engine.OpIsActiveMember:         true,
	engine.OpActiveMemberships:      true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if s.Engine.MaxRetries != nil && *s.Engine.MaxRetries < 0 {
		return errors.New("engine.max_retries must not be negative")
	}
	if s.Engine.SafetyTimeout < 0 {
		return errors.New("engine.safety_timeout must not be negative")
	}
	if err := s.Fixture.Validate(); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func validateStep(st Step) error {
	actions := 0
	for _, set := range []bool{
		st.Actor != nil,
		st.Refresh,
		st.Select != "",
		st.Advance != 0,
		st.Fail != "",
		st.Heal,
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("exactly one of actor, refresh, select, advance, fail, heal is required (got %d)", actions)
	}

	if st.Advance < 0 {
		return fmt.Errorf("advance must be positive, got %s", st.Advance)
	}
	if st.Fail != "" && !knownOps[st.Fail] {
		return fmt.Errorf("fail: unknown gateway operation %q", st.Fail)
	}
	if st.Fail == "" && (st.Error != "" || st.Times != 0) {
		return errors.New("error and times are only valid with fail")
	}
	switch st.Error {
	case "", ErrorQuery, ErrorUnavailable:
	default:
		return fmt.Errorf("error must be %q or %q, got %q", ErrorQuery, ErrorUnavailable, st.Error)
	}
	if st.Times < 0 {
		return fmt.Errorf("times must not be negative, got %d", st.Times)
	}
	return nil
}
