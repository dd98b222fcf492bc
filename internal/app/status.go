package app

import (
	"context"
	"time"

	"codedojo/internal/session"
)

type UnitStatus struct {
	Ordinal              int
	ID                   string
	Title                string
	Passed               int
	Total                int
	HintsUsed            int
	LastRun              time.Time
	Complete             bool
	DependenciesComplete bool
}

type StatusReport struct {
	Curriculum string
	Units      []UnitStatus
	// Warning is set when stored progress could not be read.
	Warning string
}

// Status summarises stored progress without starting a session.
func Status(ctx context.Context, cfg Config) (StatusReport, error) {
	if err := cfg.Validate(); err != nil {
		return StatusReport{}, err
	}
	cat, err := LoadCatalog(cfg)
	if err != nil {
		return StatusReport{}, err
	}
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return StatusReport{}, err
	}
	defer store.Close()

	snap, warn := store.Load(ctx)
	report := StatusReport{Curriculum: cat.Name}
	if warn.Notable() {
		report.Warning = warn.Error()
	}

	view := session.New(ctx, cat, snap, session.Options{}).View()
	for _, u := range view.Units {
		st := UnitStatus{
			Ordinal:              u.Ordinal,
			ID:                   u.ID,
			Title:                u.Title,
			Passed:               u.Passed,
			Total:                len(u.Tests),
			LastRun:              u.LastRun,
			Complete:             u.Complete,
			DependenciesComplete: u.DependenciesComplete,
		}
		for _, t := range u.Tests {
			st.HintsUsed += t.HintsRevealed
		}
		report.Units = append(report.Units, st)
	}
	return report, nil
}
