package store

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/nbhd/internal/community"
)

//go:embed fixture_schema.cue
var fixtureSchema string

// Fixture is a seed data set for a store.
type Fixture struct {
	Communities []community.Community  `json:"communities" yaml:"communities"`
	Memberships []community.Membership `json:"memberships" yaml:"memberships"`
	Privileged  []community.ActorID    `json:"privileged" yaml:"privileged"`
}

// SeedResult counts what a fixture wrote.
type SeedResult struct {
	Communities int `json:"communities"`
	Memberships int `json:"memberships"`
	Privileged  int `json:"privileged"`
}

// LoadFixture reads a fixture from path. The extension selects the format:
// .yaml/.yml (strict YAML, unknown fields rejected) or .cue (validated
// against the embedded fixture schema).
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseYAMLFixture(data)
	case ".cue":
		return ParseCUEFixture(data, path)
	default:
		return nil, fmt.Errorf("unsupported fixture format %q (want .yaml, .yml, or .cue)", ext)
	}
}

// ParseYAMLFixture decodes a YAML fixture. Unknown fields are errors.
func ParseYAMLFixture(data []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture yaml: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseCUEFixture unifies a CUE fixture with the fixture schema and decodes
// the concrete result. filename is used in error positions only.
func ParseCUEFixture(data []byte, filename string) (*Fixture, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(fixtureSchema, cue.Filename("fixture_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile fixture schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile fixture: %w", err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate fixture: %w", err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("export fixture: %w", err)
	}

	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks references inside the fixture.
func (f *Fixture) Validate() error {
	ids := make(map[string]bool, len(f.Communities))
	for i, c := range f.Communities {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("fixture: communities[%d]: name is required", i)
		}
		if c.ID != "" {
			ids[c.ID] = true
		}
	}
	for i, m := range f.Memberships {
		if m.ActorID.SignedOut() {
			return fmt.Errorf("fixture: memberships[%d]: actor_id is required", i)
		}
		if !ids[m.CommunityID] {
			return fmt.Errorf("fixture: memberships[%d]: unknown community %q", i, m.CommunityID)
		}
		switch m.Status {
		case "", community.StatusActive, community.StatusPending, community.StatusLeft:
		default:
			return fmt.Errorf("fixture: memberships[%d]: invalid status %q", i, m.Status)
		}
	}
	return nil
}

// Seed writes the fixture into the store. Communities with an existing ID
// are left as they are.
func (s *Store) Seed(ctx context.Context, f *Fixture) (SeedResult, error) {
	var res SeedResult
	for _, c := range f.Communities {
		if _, err := s.CreateCommunity(ctx, c); err != nil {
			return res, err
		}
		res.Communities++
	}
	for _, m := range f.Memberships {
		if err := s.AddMembership(ctx, m); err != nil {
			return res, err
		}
		res.Memberships++
	}
	for _, a := range f.Privileged {
		if err := s.GrantPrivilege(ctx, a); err != nil {
			return res, err
		}
		res.Privileged++
	}
	return res, nil
}
