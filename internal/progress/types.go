package progress

import (
	"fmt"
	"time"

	"codedojo/internal/outcome"
)

// FormatVersion is bumped whenever the persisted layout changes. Records
// with any other version are discarded on load.
const FormatVersion = 1

// MaxHints caps the per-test hint counter.
const MaxHints = 3

type TestProgress struct {
	Outcome outcome.Outcome `json:"outcome"`
	Hints   int             `json:"hints"`
}

type UnitProgress struct {
	// LastSeq is the sequence number of the run that produced the stored
	// outcomes. Results from runs at or below it are stale.
	LastSeq uint64                  `json:"last_seq"`
	LastRun time.Time               `json:"last_run"`
	Tests   map[string]TestProgress `json:"tests"`
}

type Resume struct {
	UnitID   string `json:"unit_id"`
	TestName string `json:"test_name"`
}

type Snapshot struct {
	Version int                     `json:"version"`
	Resume  Resume                  `json:"resume"`
	Units   map[string]UnitProgress `json:"units"`
}

func NewSnapshot() Snapshot {
	return Snapshot{Version: FormatVersion, Units: map[string]UnitProgress{}}
}

func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Version: s.Version, Resume: s.Resume, Units: make(map[string]UnitProgress, len(s.Units))}
	for id, up := range s.Units {
		tests := make(map[string]TestProgress, len(up.Tests))
		for name, tp := range up.Tests {
			tests[name] = tp
		}
		up.Tests = tests
		out.Units[id] = up
	}
	return out
}

// Test returns the stored progress for a test, or the zero value (NotRun,
// no hints) when nothing has been recorded.
func (s Snapshot) Test(unitID, name string) TestProgress {
	return s.Units[unitID].Tests[name]
}

func (s *Snapshot) SetTest(unitID, name string, tp TestProgress) {
	if s.Units == nil {
		s.Units = map[string]UnitProgress{}
	}
	up := s.Units[unitID]
	if up.Tests == nil {
		up.Tests = map[string]TestProgress{}
	}
	up.Tests[name] = tp
	s.Units[unitID] = up
}

func (s Snapshot) Unit(unitID string) UnitProgress {
	return s.Units[unitID]
}

func (s *Snapshot) SetRun(unitID string, seq uint64, at time.Time) {
	if s.Units == nil {
		s.Units = map[string]UnitProgress{}
	}
	up := s.Units[unitID]
	if up.Tests == nil {
		up.Tests = map[string]TestProgress{}
	}
	up.LastSeq = seq
	up.LastRun = at
	s.Units[unitID] = up
}

// MaxSeq is the highest run sequence stored for any unit.
func (s Snapshot) MaxSeq() uint64 {
	var m uint64
	for _, up := range s.Units {
		if up.LastSeq > m {
			m = up.LastSeq
		}
	}
	return m
}

// normalize fills nil maps and clamps hint counters so loaded snapshots
// compare equal to freshly built ones.
func (s *Snapshot) normalize() {
	if s.Units == nil {
		s.Units = map[string]UnitProgress{}
	}
	for id, up := range s.Units {
		if up.Tests == nil {
			up.Tests = map[string]TestProgress{}
		}
		for name, tp := range up.Tests {
			tp.Hints = min(max(tp.Hints, 0), MaxHints)
			up.Tests[name] = tp
		}
		s.Units[id] = up
	}
}

type WarningKind int

const (
	WarnMissing WarningKind = iota
	WarnCorrupt
	WarnVersionMismatch
	WarnUnreadable
)

func (k WarningKind) String() string {
	switch k {
	case WarnMissing:
		return "missing"
	case WarnCorrupt:
		return "corrupt"
	case WarnVersionMismatch:
		return "version mismatch"
	default:
		return "unreadable"
	}
}

// Warning explains why Load fell back to an empty snapshot. It is never
// fatal.
type Warning struct {
	Kind WarningKind
	Path string
	Err  error
}

func (w *Warning) Error() string {
	if w.Err == nil {
		return fmt.Sprintf("progress %s (%s): starting fresh", w.Path, w.Kind)
	}
	return fmt.Sprintf("progress %s (%s): %v: starting fresh", w.Path, w.Kind, w.Err)
}

func (w *Warning) Unwrap() error { return w.Err }

// Notable reports whether the warning is worth showing to the learner. A
// missing record on first launch is not.
func (w *Warning) Notable() bool {
	return w != nil && w.Kind != WarnMissing
}
