// Package session holds the engine that ties the catalog, the runner, the
// parser and the progress writer together.
//
// An Engine is driven from a single goroutine (the UI loop). Commands return
// the updated View synchronously; background work is picked up by Poll.
package session

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"codedojo/internal/catalog"
	"codedojo/internal/outcome"
	"codedojo/internal/parser"
	"codedojo/internal/progress"
	"codedojo/internal/runner"

	"github.com/charmbracelet/log"
)

const (
	maxLiveBytes = 32 * 1024
	maxBanners   = 4
)

type Options struct {
	Runner Runner
	Saver  Saver
	// Watcher is optional. With AutoRun set, a change reported by the
	// watcher runs the selected unit's tests.
	Watcher Watcher
	AutoRun bool
	Logger  *log.Logger

	// Root is the directory unit package paths are relative to.
	Root     string
	Warnings []string
	Now      func() time.Time
}

type Engine struct {
	ctx     context.Context
	cat     *catalog.Catalog
	snap    progress.Snapshot
	runner  Runner
	saver   Saver
	watcher Watcher
	autoRun bool
	logger  *log.Logger
	root    string
	now     func() time.Time

	seq     uint64
	unitIdx int
	testIdx int
	panel   Panel
	active  RunHandle
	records map[string]*RunRecord

	banners []string
	notice  string
}

func New(ctx context.Context, cat *catalog.Catalog, snap progress.Snapshot, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		ctx:     ctx,
		cat:     cat,
		snap:    snap.Clone(),
		runner:  opts.Runner,
		saver:   opts.Saver,
		watcher: opts.Watcher,
		autoRun: opts.AutoRun,
		logger:  logger,
		root:    opts.Root,
		now:     now,
		seq:     snap.MaxSeq(),
		records: map[string]*RunRecord{},
	}
	for _, w := range opts.Warnings {
		e.addBanner(w)
	}
	if idx, ok := cat.IndexOf(snap.Resume.UnitID); ok {
		e.unitIdx = idx
		u, _ := cat.ByIndex(idx)
		if ti := u.TestIndex(snap.Resume.TestName); ti >= 0 {
			e.testIdx = ti
		}
	}
	e.follow()
	return e
}

func (e *Engine) SelectUnit(i int) View {
	if e.cat.Len() == 0 {
		return e.View()
	}
	i = clamp(i, 0, e.cat.Len()-1)
	if i != e.unitIdx {
		e.unitIdx = i
		e.testIdx = 0
		e.panel = PanelClosed
		e.notice = ""
		e.follow()
	}
	return e.View()
}

func (e *Engine) SelectTest(i int) View {
	u, ok := e.currentUnit()
	if !ok || len(u.Tests) == 0 {
		return e.View()
	}
	e.testIdx = clamp(i, 0, len(u.Tests)-1)
	return e.View()
}

func (e *Engine) SelectNextUnit() View { return e.SelectUnit(e.unitIdx + 1) }
func (e *Engine) SelectPrevUnit() View { return e.SelectUnit(e.unitIdx - 1) }
func (e *Engine) SelectNextTest() View { return e.SelectTest(e.testIdx + 1) }
func (e *Engine) SelectPrevTest() View { return e.SelectTest(e.testIdx - 1) }

func (e *Engine) SetPanel(p Panel) View {
	e.panel = p
	return e.View()
}

// TogglePanel opens p, or closes it when it is already open.
func (e *Engine) TogglePanel(p Panel) View {
	if e.panel == p {
		e.panel = PanelClosed
	} else {
		e.panel = p
	}
	return e.View()
}

func (e *Engine) ClosePanel() View {
	e.panel = PanelClosed
	return e.View()
}

// RunTests starts a run for the selected unit. A run in flight for another
// unit is cancelled first.
func (e *Engine) RunTests() View {
	u, ok := e.currentUnit()
	if !ok {
		return e.View()
	}
	if e.active != nil && e.active.UnitID() == u.UnitID {
		e.notice = "already running"
		return e.View()
	}
	e.cancelActive()

	e.seq++
	rec := &RunRecord{Seq: e.seq, UnitID: u.UnitID, StartedAt: e.now(), State: RunRunning}
	e.records[u.UnitID] = rec
	e.notice = ""

	h, err := e.runner.Start(e.ctx, runner.Request{Seq: rec.Seq, UnitID: u.UnitID, Package: u.Package})
	if err != nil {
		e.logger.Error("run.start", "seq", rec.Seq, "unit", u.UnitID, "err", err)
		e.finishRun(u, rec, &runner.Result{SpawnErr: err, StartedAt: rec.StartedAt})
		return e.View()
	}
	e.active = h
	e.logger.Info("run.start", "seq", rec.Seq, "unit", u.UnitID, "package", u.Package)
	return e.View()
}

// RevealHint shows one more hint for the selected test, up to the number of
// hints it has and never more than three.
func (e *Engine) RevealHint() View {
	u, ok := e.currentUnit()
	if !ok || len(u.Tests) == 0 {
		return e.View()
	}
	tc := u.Tests[e.testIdx]
	limit := min(progress.MaxHints, len(tc.Hints))
	tp := e.snap.Test(u.UnitID, tc.Name)
	e.panel = PanelHints
	if tp.Hints >= limit {
		if limit == 0 {
			e.notice = "no hints for this test"
		} else {
			e.notice = "all hints revealed"
		}
		return e.View()
	}
	tp.Hints++
	e.snap.SetTest(u.UnitID, tc.Name, tp)
	e.notice = ""
	e.logger.Debug("hint.reveal", "unit", u.UnitID, "test", tc.Name, "count", tp.Hints)
	e.save()
	return e.View()
}

// Poll applies everything that arrived from background goroutines since the
// last call.
func (e *Engine) Poll() View {
	e.drainRunner()
	e.drainSaver()
	e.drainWatcher()
	return e.View()
}

// Quit cancels the active run, records the resume position and waits for the
// writer to drain.
func (e *Engine) Quit(ctx context.Context) error {
	e.cancelActive()
	e.save()
	if e.saver == nil {
		return nil
	}
	if err := e.saver.Flush(ctx); err != nil {
		return fmt.Errorf("flush progress: %w", err)
	}
	return nil
}

func (e *Engine) drainRunner() {
	if e.runner == nil {
		return
	}
	events := e.runner.Events()
	for {
		select {
		case ev := <-events:
			e.handleEvent(ev)
		default:
			return
		}
	}
}

func (e *Engine) drainSaver() {
	if e.saver == nil {
		return
	}
	for {
		select {
		case err := <-e.saver.Errors():
			e.addBanner("progress not saved: " + err.Error())
		default:
			return
		}
	}
}

func (e *Engine) drainWatcher() {
	if e.watcher == nil {
		return
	}
	changed := false
drain:
	for {
		select {
		case <-e.watcher.Changes():
			changed = true
		default:
			break drain
		}
	}
	if !changed || !e.autoRun {
		return
	}
	u, ok := e.currentUnit()
	if !ok || (e.active != nil && e.active.UnitID() == u.UnitID) {
		return
	}
	e.logger.Debug("watch.autorun", "unit", u.UnitID)
	e.RunTests()
}

func (e *Engine) handleEvent(ev runner.Event) {
	if e.active == nil || ev.Seq != e.active.Seq() {
		if ev.Kind == runner.EventFinished {
			e.logger.Debug("run.stale", "seq", ev.Seq, "unit", ev.UnitID)
		}
		return
	}
	rec := e.records[ev.UnitID]
	if rec == nil || rec.Seq != ev.Seq {
		return
	}
	switch ev.Kind {
	case runner.EventOutput:
		rec.Live = tail(rec.Live+string(ev.Chunk), maxLiveBytes)
	case runner.EventFinished:
		e.active = nil
		if ev.Seq <= e.snap.Unit(ev.UnitID).LastSeq {
			e.logger.Debug("run.stale", "seq", ev.Seq, "unit", ev.UnitID)
			return
		}
		u, ok := e.cat.ByID(ev.UnitID)
		if !ok || ev.Result == nil {
			return
		}
		e.finishRun(u, rec, ev.Result)
	}
}

// finishRun turns a runner result into outcomes for every test of u and
// merges them into the snapshot.
func (e *Engine) finishRun(u catalog.Unit, rec *RunRecord, res *runner.Result) {
	rec.FinishedAt = e.now()
	rec.Raw = string(res.Output)
	rec.ExitCode = res.ExitCode
	rec.TimedOut = res.TimedOut
	rec.Truncated = res.Truncated
	rec.Live = ""

	switch {
	case res.Cancelled:
		rec.State = RunCancelled
		return
	case res.SpawnErr != nil:
		rec.State = RunSpawnFailure
		rec.Diagnostic = res.SpawnErr.Error()
		rec.Outcomes = allOutcomes(u, outcome.Error(res.SpawnErr.Error()))
	case res.TimedOut:
		rec.State = RunTimedOut
		rec.Outcomes = allOutcomes(u, outcome.Error("timeout"))
	case res.Err != nil:
		rec.State = RunToolchainFailure
		rec.Diagnostic = res.Err.Error()
		rec.Outcomes = allOutcomes(u, outcome.Error(res.Err.Error()))
	default:
		report := parser.Parse(res.Output, res.ExitCode)
		if report.ToolchainFailure {
			rec.State = RunToolchainFailure
			rec.Diagnostic = report.Diagnostic
			rec.Outcomes = allOutcomes(u, outcome.Error(toolchainReason(report.Diagnostic, res.ExitCode)))
			break
		}
		rec.State = RunCompleted
		rec.Outcomes = make(map[string]outcome.Outcome, len(u.Tests))
		for _, tc := range u.Tests {
			if tr, ok := report.Lookup(tc.Name); ok {
				rec.Outcomes[tc.Name] = tr.Outcome
			} else {
				rec.Outcomes[tc.Name] = outcome.Outcome{}
			}
		}
		rec.Unattributed = strings.Join(undeclared(u, report), "\n")
	}

	for _, tc := range u.Tests {
		tp := e.snap.Test(u.UnitID, tc.Name)
		tp.Outcome = rec.Outcomes[tc.Name]
		e.snap.SetTest(u.UnitID, tc.Name, tp)
	}
	e.snap.SetRun(u.UnitID, rec.Seq, rec.FinishedAt.UTC().Truncate(time.Second))
	e.logger.Info("run.finished",
		"seq", rec.Seq,
		"unit", u.UnitID,
		"state", rec.State.String(),
		"exit", rec.ExitCode,
		"elapsed", rec.Duration(),
	)
	e.save()
}

// undeclared collects the unattributed text plus results for tests the unit
// does not declare.
func undeclared(u catalog.Unit, report parser.Report) []string {
	var out []string
	if report.Unattributed != "" {
		out = append(out, report.Unattributed)
	}
	for _, tr := range report.Results {
		if u.TestIndex(tr.Name) >= 0 {
			continue
		}
		line := tr.Name + ": " + tr.Outcome.Kind.String()
		if tr.Outcome.Message != "" {
			line += "\n" + tr.Outcome.Message
		}
		out = append(out, line)
	}
	return out
}

func allOutcomes(u catalog.Unit, o outcome.Outcome) map[string]outcome.Outcome {
	out := make(map[string]outcome.Outcome, len(u.Tests))
	for _, tc := range u.Tests {
		out[tc.Name] = o
	}
	return out
}

func toolchainReason(diag string, exitCode int) string {
	for _, line := range strings.Split(diag, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return "build failed: " + line
	}
	return fmt.Sprintf("toolchain exited with status %d", exitCode)
}

func (e *Engine) cancelActive() {
	if e.active == nil {
		return
	}
	h := e.active
	e.active = nil
	h.Cancel()
	if rec := e.records[h.UnitID()]; rec != nil && rec.Seq == h.Seq() && rec.State == RunRunning {
		rec.State = RunCancelled
		rec.FinishedAt = e.now()
	}
	e.logger.Info("run.cancel", "seq", h.Seq(), "unit", h.UnitID())
}

func (e *Engine) save() {
	if u, ok := e.currentUnit(); ok {
		e.snap.Resume.UnitID = u.UnitID
		e.snap.Resume.TestName = ""
		if e.testIdx < len(u.Tests) {
			e.snap.Resume.TestName = u.Tests[e.testIdx].Name
		}
	}
	if e.saver != nil {
		e.saver.Save(e.snap)
	}
}

func (e *Engine) follow() {
	if e.watcher == nil {
		return
	}
	u, ok := e.currentUnit()
	if !ok {
		return
	}
	dir := filepath.Join(e.root, strings.TrimSuffix(u.Package, "/..."))
	if err := e.watcher.Follow(dir); err != nil {
		e.logger.Warn("watch.follow", "dir", dir, "err", err)
	}
}

func (e *Engine) addBanner(msg string) {
	if n := len(e.banners); n > 0 && e.banners[n-1] == msg {
		return
	}
	e.banners = append(e.banners, msg)
	if len(e.banners) > maxBanners {
		e.banners = e.banners[len(e.banners)-maxBanners:]
	}
}

// DismissBanners clears absorbed error messages from the view.
func (e *Engine) DismissBanners() View {
	e.banners = nil
	return e.View()
}

func (e *Engine) currentUnit() (catalog.Unit, bool) {
	return e.cat.ByIndex(e.unitIdx)
}

// Snapshot returns a copy of the in-memory progress.
func (e *Engine) Snapshot() progress.Snapshot {
	return e.snap.Clone()
}

func (e *Engine) View() View {
	v := View{
		CurriculumName: e.cat.Name,
		UnitIndex:      e.unitIdx,
		TestIndex:      e.testIdx,
		Panel:          e.panel,
		Running:        e.active != nil,
		Banners:        append([]string(nil), e.banners...),
		Notice:         e.notice,
	}
	units := e.cat.Units()
	v.Units = make([]UnitView, len(units))
	complete := make(map[string]bool, len(units))
	for i, u := range units {
		uv := UnitView{
			ID:      u.UnitID,
			Title:   u.Title,
			Ordinal: u.Ordinal,
			Tests:   make([]TestView, len(u.Tests)),
			LastRun: e.snap.Unit(u.UnitID).LastRun,
		}
		for j, tc := range u.Tests {
			tp := e.snap.Test(u.UnitID, tc.Name)
			uv.Tests[j] = TestView{
				Name:           tc.Name,
				Outcome:        tp.Outcome,
				HintsRevealed:  min(tp.Hints, len(tc.Hints)),
				HintsAvailable: min(progress.MaxHints, len(tc.Hints)),
			}
			if tp.Outcome.IsPassed() {
				uv.Passed++
			}
		}
		uv.Complete = len(u.Tests) > 0 && uv.Passed == len(u.Tests)
		complete[u.UnitID] = uv.Complete
		v.Units[i] = uv
	}
	for i := range v.Units {
		deps := e.cat.DependenciesOf(v.Units[i].ID)
		v.Units[i].DependenciesComplete = true
		for _, d := range deps {
			if !complete[d] {
				v.Units[i].DependenciesComplete = false
				break
			}
		}
	}

	if u, ok := e.currentUnit(); ok {
		v.Unit = u
		if e.testIdx < len(u.Tests) {
			tc := u.Tests[e.testIdx]
			n := min(e.snap.Test(u.UnitID, tc.Name).Hints, len(tc.Hints))
			v.Hints = append([]string(nil), tc.Hints[:n]...)
		}
		if rec := e.records[u.UnitID]; rec != nil {
			cp := *rec
			v.Record = &cp
		}
	}
	return v
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
