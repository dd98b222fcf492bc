package session

import (
	"time"

	"codedojo/internal/catalog"
	"codedojo/internal/outcome"
)

type Panel int

const (
	PanelClosed Panel = iota
	PanelInfo
	PanelHints
	PanelDocs
	PanelConcepts
)

func (p Panel) String() string {
	switch p {
	case PanelInfo:
		return "info"
	case PanelHints:
		return "hints"
	case PanelDocs:
		return "docs"
	case PanelConcepts:
		return "concepts"
	default:
		return "closed"
	}
}

type RunState int

const (
	RunRunning RunState = iota
	RunCompleted
	RunCancelled
	RunToolchainFailure
	RunSpawnFailure
	RunTimedOut
)

func (s RunState) String() string {
	switch s {
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunCancelled:
		return "cancelled"
	case RunToolchainFailure:
		return "toolchain failure"
	case RunSpawnFailure:
		return "spawn failure"
	case RunTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// RunRecord is the latest run of one unit. A newer run for the same unit
// replaces it.
type RunRecord struct {
	Seq        uint64
	UnitID     string
	StartedAt  time.Time
	FinishedAt time.Time
	State      RunState

	Outcomes map[string]outcome.Outcome
	// Diagnostic holds the full toolchain text for ToolchainFailure and the
	// OS error for SpawnFailure.
	Diagnostic   string
	Raw          string
	Unattributed string
	// Live is the tail of output streamed while the run is in flight.
	Live string

	ExitCode  int
	TimedOut  bool
	Truncated bool
}

func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

type TestView struct {
	Name           string
	Outcome        outcome.Outcome
	HintsRevealed  int
	HintsAvailable int
}

type UnitView struct {
	ID      string
	Title   string
	Ordinal int
	Tests   []TestView
	Passed  int
	LastRun time.Time

	// Complete means every test of this unit passed. DependenciesComplete
	// covers the unit's transitive dependencies only.
	Complete             bool
	DependenciesComplete bool
}

// View is the render model handed to the presentation layer after every
// command.
type View struct {
	CurriculumName string
	Units          []UnitView
	UnitIndex      int
	TestIndex      int

	Unit  catalog.Unit
	Panel Panel
	// Hints lists the revealed hints of the selected test.
	Hints []string

	Running bool
	Record  *RunRecord

	Banners []string
	Notice  string
}

// SelectedUnit returns the view row for the selected unit.
func (v View) SelectedUnit() (UnitView, bool) {
	if v.UnitIndex < 0 || v.UnitIndex >= len(v.Units) {
		return UnitView{}, false
	}
	return v.Units[v.UnitIndex], true
}

func (v View) SelectedTest() (TestView, bool) {
	u, ok := v.SelectedUnit()
	if !ok || v.TestIndex < 0 || v.TestIndex >= len(u.Tests) {
		return TestView{}, false
	}
	return u.Tests[v.TestIndex], true
}
