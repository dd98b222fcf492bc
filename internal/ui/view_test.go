package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"codedojo/internal/catalog"
	"codedojo/internal/outcome"
	"codedojo/internal/session"

	tea "charm.land/bubbletea/v2"
)

type fakeEngine struct {
	calls   []string
	view    session.View
	quitErr error
}

func (f *fakeEngine) record(name string) session.View {
	f.calls = append(f.calls, name)
	return f.view
}

func (f *fakeEngine) View() session.View           { return f.view }
func (f *fakeEngine) Poll() session.View           { return f.record("poll") }
func (f *fakeEngine) RunTests() session.View       { return f.record("run") }
func (f *fakeEngine) RevealHint() session.View     { return f.record("hint") }
func (f *fakeEngine) SelectNextUnit() session.View { return f.record("next-unit") }
func (f *fakeEngine) SelectPrevUnit() session.View { return f.record("prev-unit") }
func (f *fakeEngine) SelectNextTest() session.View { return f.record("next-test") }
func (f *fakeEngine) SelectPrevTest() session.View { return f.record("prev-test") }
func (f *fakeEngine) ClosePanel() session.View     { return f.record("close") }
func (f *fakeEngine) DismissBanners() session.View { return f.record("dismiss") }
func (f *fakeEngine) TogglePanel(p session.Panel) session.View {
	return f.record("toggle-" + p.String())
}
func (f *fakeEngine) Quit(context.Context) error {
	f.calls = append(f.calls, "quit")
	return f.quitErr
}

func press(v *Root, code rune, text string) tea.Cmd {
	_, cmd := v.Update(tea.KeyPressMsg{Code: code, Text: text})
	return cmd
}

func sampleView() session.View {
	return session.View{
		CurriculumName: "Go Basics",
		Units: []session.UnitView{
			{
				ID: "greeting", Title: "Greeting", Ordinal: 0, Passed: 1, DependenciesComplete: true,
				Tests: []session.TestView{
					{Name: "TestGreetName", Outcome: outcome.Pass(""), HintsRevealed: 1, HintsAvailable: 3},
					{Name: "TestGreetEmpty", Outcome: outcome.Fail("greet_test.go:12: want \"hi\", got \"\"")},
				},
			},
			{
				ID: "counter", Title: "Counter", Ordinal: 1,
				Tests: []session.TestView{{Name: "TestCountSimple"}},
			},
		},
		Unit: catalog.Unit{
			UnitID:        "greeting",
			Title:         "Greeting",
			Package:       "./units/01-greeting",
			DescriptionMD: "Write a **greeting**.",
			Concepts:      []string{"fmt.Sprintf", "string formatting"},
			Docs:          []catalog.DocLink{{Label: "fmt", URL: "https://pkg.go.dev/fmt"}},
		},
		Hints: []string{"Look at fmt.Sprintf"},
	}
}

func TestKeysDispatchEngineCommands(t *testing.T) {
	cases := []struct {
		code rune
		text string
		want string
	}{
		{'r', "r", "run"},
		{'h', "h", "hint"},
		{'i', "i", "toggle-info"},
		{'d', "d", "toggle-docs"},
		{'c', "c", "toggle-concepts"},
		{'n', "n", "next-unit"},
		{tea.KeyRight, "", "next-unit"},
		{'p', "p", "prev-unit"},
		{tea.KeyLeft, "", "prev-unit"},
		{'j', "j", "next-test"},
		{tea.KeyDown, "", "next-test"},
		{'k', "k", "prev-test"},
		{tea.KeyUp, "", "prev-test"},
		{tea.KeyEsc, "", "close"},
		{'x', "x", "dismiss"},
	}
	for _, tc := range cases {
		eng := &fakeEngine{view: sampleView()}
		v := New(eng, Options{})
		press(v, tc.code, tc.text)
		if len(eng.calls) != 1 || eng.calls[0] != tc.want {
			t.Fatalf("key %q: expected %q, got %v", tc.text, tc.want, eng.calls)
		}
	}
}

func TestQuitFlushesAndExits(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	v := New(eng, Options{})

	cmd := press(v, 'q', "q")
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if len(eng.calls) != 1 || eng.calls[0] != "quit" {
		t.Fatalf("expected engine quit, got %v", eng.calls)
	}

	// Keys after quit are ignored.
	press(v, 'r', "r")
	if len(eng.calls) != 1 {
		t.Fatalf("expected no commands after quit, got %v", eng.calls)
	}
}

func TestQuitKeepsFlushError(t *testing.T) {
	eng := &fakeEngine{view: sampleView(), quitErr: errors.New("flush progress: disk full")}
	v := New(eng, Options{})
	press(v, 'q', "q")
	if v.err == nil || !strings.Contains(v.err.Error(), "disk full") {
		t.Fatalf("expected flush error to be kept, got %v", v.err)
	}
}

func TestPollTickRefreshesView(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	v := New(eng, Options{})
	eng.view.Notice = "already running"

	_, cmd := v.Update(pollMsg(time.Now()))
	if cmd == nil {
		t.Fatalf("expected the next poll to be scheduled")
	}
	if v.view.Notice != "already running" {
		t.Fatalf("expected view to refresh from Poll")
	}
}

func TestRenderShowsUnitsTestsAndFailure(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	eng.view.TestIndex = 1
	eng.view.Record = &session.RunRecord{
		Seq: 1, UnitID: "greeting", State: session.RunCompleted,
		StartedAt: time.Now().Add(-2 * time.Second), FinishedAt: time.Now(),
	}
	v := New(eng, Options{})
	out := v.render()

	for _, want := range []string{"Go Basics", "Greeting", "Counter", "TestGreetName", "TestGreetEmpty", "hints 1/3", "want \"hi\"", "1/2 passed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected render to contain %q:\n%s", want, out)
		}
	}
}

func TestRenderPanels(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	v := New(eng, Options{ASCIIOnly: true})

	v.view.Panel = session.PanelHints
	if out := v.render(); !strings.Contains(out, "1. Look at fmt.Sprintf") || !strings.Contains(out, "1 of 3 revealed") {
		t.Fatalf("hints panel missing content:\n%s", out)
	}
	v.view.Panel = session.PanelDocs
	if out := v.render(); !strings.Contains(out, "https://pkg.go.dev/fmt") {
		t.Fatalf("docs panel missing link:\n%s", out)
	}
	v.view.Panel = session.PanelConcepts
	if out := v.render(); !strings.Contains(out, "- string formatting") {
		t.Fatalf("concepts panel missing content:\n%s", out)
	}
	v.view.Panel = session.PanelInfo
	if out := v.render(); !strings.Contains(out, "greeting") {
		t.Fatalf("info panel missing description:\n%s", out)
	}
}

func TestRenderToolchainFailureAndBanners(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	eng.view.Banners = []string{"progress not saved: disk full"}
	eng.view.Record = &session.RunRecord{
		Seq: 2, UnitID: "greeting", State: session.RunToolchainFailure,
		Diagnostic: "# example.com/units/greeting\n./greet.go:3:1: syntax error",
	}
	v := New(eng, Options{ASCIIOnly: true})
	out := v.render()
	for _, want := range []string{"progress not saved: disk full", "toolchain failure", "syntax error"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected render to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "┌") {
		t.Fatalf("ascii mode should not draw box characters")
	}
}

func TestTooSmallLayout(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	v := New(eng, Options{})
	_, _ = v.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	if v.layout != LayoutTooSmall {
		t.Fatalf("expected too-small layout")
	}
	if out := v.renderTooSmall(); !strings.Contains(out, "too small") {
		t.Fatalf("unexpected too-small text: %q", out)
	}
}
