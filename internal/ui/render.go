package ui

import (
	"fmt"
	"strings"
	"time"

	"codedojo/internal/outcome"
	"codedojo/internal/session"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

const (
	unitListWidth  = 32
	maxMessageRows = 12
	maxLiveRows    = 6
)

func (r *Root) render() string {
	v := r.view
	w := r.cols

	parts := []string{r.renderHeader(w)}
	for _, b := range v.Banners {
		parts = append(parts, r.theme.Banner.Render(trimForWidth("! "+b, max(1, w-2))))
	}

	detailW := w
	var body string
	if r.layout == LayoutWide {
		detailW = w - unitListWidth - 1
		left := r.drawPanel("Units", r.unitLines(unitListWidth-4), unitListWidth, max(8, r.rows-4-len(v.Banners)))
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, " ", r.renderDetail(detailW))
	} else {
		body = r.renderDetail(detailW)
	}
	parts = append(parts, body, r.renderFooter(w))
	return strings.Join(parts, "\n")
}

func (r *Root) renderHeader(width int) string {
	v := r.view
	done := 0
	for _, u := range v.Units {
		if u.Complete {
			done++
		}
	}
	title := "codedojo"
	if v.CurriculumName != "" {
		title += " · " + v.CurriculumName
	}
	if r.ascii {
		title = strings.ReplaceAll(title, "·", "-")
	}
	progress := fmt.Sprintf("unit %d/%d  %d complete", v.UnitIndex+1, len(v.Units), done)
	gap := max(1, width-lipgloss.Width(title)-lipgloss.Width(progress)-2)
	return r.theme.Header.Render(title + strings.Repeat(" ", gap) + progress)
}

func (r *Root) unitLines(width int) []string {
	lines := make([]string, 0, len(r.view.Units))
	for i, u := range r.view.Units {
		text := trimForWidth(fmt.Sprintf("%2d %s", u.Ordinal+1, u.Title), width-2)
		switch {
		case i == r.view.UnitIndex:
			text = r.theme.Selected.Render(text)
		case !u.DependenciesComplete:
			text = r.theme.Muted.Render(text)
		}
		lines = append(lines, r.unitGlyph(u)+" "+text)
	}
	return lines
}

func (r *Root) renderDetail(width int) string {
	v := r.view
	u, ok := v.SelectedUnit()
	if !ok {
		return r.drawPanel("Unit", []string{"No units in this curriculum."}, width, 5)
	}

	var lines []string
	meta := []string{v.Unit.Package}
	if v.Unit.EstimatedMinutes > 0 {
		meta = append(meta, fmt.Sprintf("~%d min", v.Unit.EstimatedMinutes))
	}
	if !u.DependenciesComplete {
		meta = append(meta, "needs: "+strings.Join(v.Unit.DependsOn, ", "))
	}
	lines = append(lines, r.theme.Muted.Render(strings.Join(meta, "  ")), "")

	for i, tv := range u.Tests {
		line := fmt.Sprintf("%s %s", r.outcomeGlyph(tv.Outcome), tv.Name)
		if tv.HintsAvailable > 0 {
			line += r.theme.Muted.Render(fmt.Sprintf("  hints %d/%d", tv.HintsRevealed, tv.HintsAvailable))
		}
		if i == v.TestIndex {
			line = r.theme.Accent.Render(">") + " " + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", r.runLine(u))
	lines = append(lines, r.runDetail(width-4)...)

	title := fmt.Sprintf("%d. %s", u.Ordinal+1, u.Title)
	out := r.drawPanel(title, lines, width, len(lines)+2)
	if panel := r.renderPanel(width); panel != "" {
		out += "\n" + panel
	}
	return out
}

func (r *Root) runLine(u session.UnitView) string {
	v := r.view
	rec := v.Record
	switch {
	case v.Running && rec != nil && rec.State == session.RunRunning:
		return r.spin.View() + " running " + rec.UnitID + "..."
	case v.Running:
		return r.spin.View() + " another unit is running"
	case rec == nil && u.LastRun.IsZero():
		return r.theme.Muted.Render("not run yet, press r")
	case rec == nil:
		return r.theme.Muted.Render("last run " + humanize.RelTime(u.LastRun, r.now(), "ago", "from now"))
	}
	parts := []string{r.stateLabel(rec.State), fmt.Sprintf("%d/%d passed", u.Passed, len(u.Tests))}
	if d := rec.Duration(); d > 0 {
		parts = append(parts, d.Round(10*time.Millisecond).String())
	}
	if !rec.FinishedAt.IsZero() {
		parts = append(parts, humanize.RelTime(rec.FinishedAt, r.now(), "ago", "from now"))
	}
	if rec.Truncated {
		parts = append(parts, "output truncated")
	}
	return strings.Join(parts, "  ")
}

func (r *Root) stateLabel(s session.RunState) string {
	switch s {
	case session.RunCompleted:
		return r.theme.Accent.Render("completed")
	case session.RunCancelled:
		return r.theme.Muted.Render("cancelled")
	case session.RunTimedOut:
		return r.theme.Errored.Render("timed out")
	default:
		return r.theme.Errored.Render(s.String())
	}
}

// runDetail shows what the learner most likely wants next: the failure text
// of the selected test, or the toolchain diagnostic.
func (r *Root) runDetail(width int) []string {
	v := r.view
	rec := v.Record
	if rec == nil {
		return nil
	}
	if rec.State == session.RunRunning {
		lines := clipTail(rec.Live, maxLiveRows, width)
		for i, l := range lines {
			lines[i] = r.theme.Muted.Render(l)
		}
		return lines
	}
	switch rec.State {
	case session.RunToolchainFailure, session.RunSpawnFailure:
		return append([]string{""}, clipHead(rec.Diagnostic, maxMessageRows, width)...)
	}
	tv, ok := v.SelectedTest()
	if !ok || tv.Outcome.Message == "" || tv.Outcome.Kind == outcome.NotRun {
		return nil
	}
	return append([]string{""}, clipHead(tv.Outcome.Message, maxMessageRows, width)...)
}

func (r *Root) renderPanel(width int) string {
	v := r.view
	var title string
	var lines []string
	switch v.Panel {
	case session.PanelInfo:
		title = "Info"
		lines = strings.Split(r.renderMarkdown(v.Unit.DescriptionMD), "\n")
	case session.PanelHints:
		title = "Hints"
		tv, _ := v.SelectedTest()
		if len(v.Hints) == 0 {
			lines = []string{"No hints revealed yet. Press h."}
		}
		for i, h := range v.Hints {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, h))
		}
		if tv.HintsAvailable > 0 {
			lines = append(lines, "", r.theme.Muted.Render(fmt.Sprintf("%d of %d revealed", tv.HintsRevealed, tv.HintsAvailable)))
		}
	case session.PanelDocs:
		title = "Docs"
		for _, d := range v.Unit.Docs {
			label := d.Label
			if label == "" {
				label = d.URL
			}
			lines = append(lines, label, "  "+r.theme.Muted.Render(d.URL))
		}
		if len(lines) == 0 {
			lines = []string{"No doc links for this unit."}
		}
	case session.PanelConcepts:
		title = "Concepts"
		for _, c := range v.Unit.Concepts {
			lines = append(lines, r.bullet()+" "+c)
		}
		if len(lines) == 0 {
			lines = []string{"No concepts listed for this unit."}
		}
	default:
		return ""
	}
	return r.drawPanel(title, lines, width, len(lines)+2)
}

func (r *Root) renderMarkdown(md string) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return "No description."
	}
	if r.markdown == nil || r.ascii {
		return md
	}
	if out, ok := r.mdCache[md]; ok {
		return out
	}
	out, err := r.markdown.Render(md)
	if err != nil {
		r.logger.Warn("ui.markdown", "err", err)
		return md
	}
	out = strings.Trim(out, "\n")
	r.mdCache[md] = out
	return out
}

func (r *Root) renderFooter(width int) string {
	line := r.help.View(r.keys)
	if n := r.view.Notice; n != "" {
		line = r.theme.Pending.Render(n) + "  " + line
	}
	return r.theme.Footer.Render(ansi.Truncate(line, max(1, width-2), "…"))
}

func (r *Root) renderTooSmall() string {
	msg := fmt.Sprintf("Terminal too small (%dx%d). Resize to at least 60x16.", r.cols, r.rows)
	return r.theme.Fail.Render(trimForWidth(msg, max(1, r.cols)))
}

func (r *Root) unitGlyph(u session.UnitView) string {
	failed := false
	for _, t := range u.Tests {
		if t.Outcome.Kind == outcome.Failed || t.Outcome.Kind == outcome.Errored {
			failed = true
			break
		}
	}
	switch {
	case u.Complete:
		return r.theme.Pass.Render(r.glyph("✓", "+"))
	case failed:
		return r.theme.Fail.Render(r.glyph("✗", "x"))
	case u.Passed > 0:
		return r.theme.Pending.Render(r.glyph("◐", "~"))
	default:
		return r.theme.Muted.Render(r.glyph("·", "."))
	}
}

func (r *Root) outcomeGlyph(o outcome.Outcome) string {
	switch o.Kind {
	case outcome.Passed:
		return r.theme.Pass.Render(r.glyph("✓", "+"))
	case outcome.Failed:
		return r.theme.Fail.Render(r.glyph("✗", "x"))
	case outcome.Errored:
		return r.theme.Errored.Render("!")
	default:
		return r.theme.Muted.Render(r.glyph("·", "."))
	}
}

func (r *Root) bullet() string { return r.glyph("•", "-") }

func (r *Root) glyph(fancy, plain string) string {
	if r.ascii {
		return plain
	}
	return fancy
}

func (r *Root) drawPanel(title string, lines []string, width, height int) string {
	width = max(4, width)
	height = max(3, height)
	innerW := width - 2
	innerH := height - 2

	h, v := "─", "│"
	tl, tr, bl, br := "┌", "┐", "└", "┘"
	if r.ascii {
		h, v = "-", "|"
		tl, tr, bl, br = "+", "+", "+", "+"
	}

	top := tl + strings.Repeat(h, innerW) + tr
	if title != "" && innerW > 4 {
		t := " " + trimForWidth(title, innerW-4) + " "
		top = tl + h + t + strings.Repeat(h, max(0, innerW-1-lipgloss.Width(t))) + tr
	}

	out := make([]string, 0, height)
	out = append(out, r.theme.Border.Render(top))
	for row := 0; row < innerH; row++ {
		line := ""
		if row < len(lines) {
			line = lines[row]
		}
		out = append(out, r.theme.Border.Render(v)+r.theme.Body.Render(padANSI(line, innerW))+r.theme.Border.Render(v))
	}
	out = append(out, r.theme.Border.Render(bl+strings.Repeat(h, innerW)+br))
	return strings.Join(out, "\n")
}

// padANSI truncates or pads a styled line to exactly width cells.
func padANSI(s string, width int) string {
	s = strings.ReplaceAll(s, "\t", "    ")
	if ansi.StringWidth(s) > width {
		s = ansi.Truncate(s, width, "…")
	}
	if n := width - ansi.StringWidth(s); n > 0 {
		s += strings.Repeat(" ", n)
	}
	return s
}

// clipHead keeps the first rows lines of text, each trimmed to width.
func clipHead(text string, rows, width int) []string {
	lines := splitLines(text)
	if len(lines) > rows {
		more := len(lines) - rows + 1
		lines = append(lines[:rows-1], fmt.Sprintf("... %d more lines", more))
	}
	return trimLines(lines, width)
}

func clipTail(text string, rows, width int) []string {
	lines := splitLines(text)
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	return trimLines(lines, width)
}

func splitLines(text string) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func trimLines(lines []string, width int) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = trimForWidth(l, width)
	}
	return out
}

func trimForWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(ansi.Strip(s), "\n", " "))
	if len(r) <= width {
		return string(r)
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
