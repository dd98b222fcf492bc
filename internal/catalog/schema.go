package catalog

import (
	"fmt"
	"regexp"
)

const (
	CurriculumKind         = "curriculum"
	UnitKind               = "unit"
	SupportedSchemaVersion = 1

	// MaxHints is the number of hints a single test may carry.
	MaxHints = 3
)

var (
	idPattern       = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)
	testNamePattern = regexp.MustCompile(`^Test[A-Za-z0-9_]*$`)
)

type Curriculum struct {
	Kind          string    `yaml:"kind"`
	SchemaVersion int       `yaml:"schema_version"`
	Name          string    `yaml:"name"`
	DescriptionMD string    `yaml:"description_md"`
	Units         []UnitRef `yaml:"units"`
}

type UnitRef struct {
	UnitID  string `yaml:"unit_id"`
	Path    string `yaml:"path"`
	Enabled *bool  `yaml:"enabled"`
}

type Unit struct {
	Kind             string     `yaml:"kind"`
	SchemaVersion    int        `yaml:"schema_version"`
	UnitID           string     `yaml:"unit_id"`
	Title            string     `yaml:"title"`
	Package          string     `yaml:"package"`
	DescriptionMD    string     `yaml:"description_md"`
	DependsOn        []string   `yaml:"depends_on"`
	Concepts         []string   `yaml:"concepts"`
	Docs             []DocLink  `yaml:"docs"`
	EstimatedMinutes int        `yaml:"estimated_minutes"`
	Tests            []TestCase `yaml:"tests"`

	Ordinal int    `yaml:"-"`
	Dir     string `yaml:"-"`
}

type DocLink struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// TestCase names one top-level test function of the unit's package. Hints are
// ordered from vague to specific.
type TestCase struct {
	Name  string   `yaml:"name"`
	Hints []string `yaml:"hints"`
}

// HintGroups returns the unit's hints, one group per test, in test order.
func (u Unit) HintGroups() [][]string {
	out := make([][]string, len(u.Tests))
	for i, tc := range u.Tests {
		out[i] = tc.Hints
	}
	return out
}

func (u Unit) TestIndex(name string) int {
	for i, tc := range u.Tests {
		if tc.Name == name {
			return i
		}
	}
	return -1
}

func (c Curriculum) Validate() error {
	if c.Kind != CurriculumKind {
		return fmt.Errorf("kind must be %q", CurriculumKind)
	}
	if c.SchemaVersion == 0 {
		return fmt.Errorf("schema_version is required")
	}
	if c.SchemaVersion > SupportedSchemaVersion {
		return fmt.Errorf("unsupported curriculum schema_version %d (max supported %d)", c.SchemaVersion, SupportedSchemaVersion)
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	seen := map[string]struct{}{}
	for _, u := range c.Units {
		if u.UnitID == "" {
			return fmt.Errorf("units[].unit_id is required")
		}
		if u.Path == "" {
			return fmt.Errorf("units[%s].path is required", u.UnitID)
		}
		if _, ok := seen[u.UnitID]; ok {
			return fmt.Errorf("duplicate unit_id %q in curriculum.yaml", u.UnitID)
		}
		seen[u.UnitID] = struct{}{}
	}
	return nil
}

// Validate checks a single unit in isolation. Cross-unit rules (identifier
// uniqueness, dependencies, cycles) are enforced by New.
func (u Unit) Validate() error {
	if u.Kind != UnitKind {
		return fmt.Errorf("kind must be %q", UnitKind)
	}
	if u.SchemaVersion == 0 {
		return fmt.Errorf("schema_version is required")
	}
	if u.SchemaVersion > SupportedSchemaVersion {
		return fmt.Errorf("unsupported unit schema_version %d (max supported %d)", u.SchemaVersion, SupportedSchemaVersion)
	}
	if !idPattern.MatchString(u.UnitID) {
		return fmt.Errorf("invalid unit_id %q", u.UnitID)
	}
	if u.Title == "" {
		return fmt.Errorf("title is required")
	}
	if u.EstimatedMinutes < 0 {
		return fmt.Errorf("estimated_minutes must be >= 0")
	}
	for _, d := range u.Docs {
		if d.URL == "" {
			return fmt.Errorf("docs[].url is required")
		}
	}
	return validateTests(u.Tests)
}

func validateTests(tests []TestCase) error {
	seen := map[string]struct{}{}
	for _, tc := range tests {
		if !testNamePattern.MatchString(tc.Name) {
			return fmt.Errorf("invalid test name %q", tc.Name)
		}
		if _, ok := seen[tc.Name]; ok {
			return fmt.Errorf("duplicate test name %q", tc.Name)
		}
		seen[tc.Name] = struct{}{}
		if len(tc.Hints) > MaxHints {
			return fmt.Errorf("test %q has %d hints (max %d)", tc.Name, len(tc.Hints), MaxHints)
		}
	}
	return nil
}
