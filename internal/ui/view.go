// Package ui is the terminal front end. It renders session.View values and
// turns key presses into engine commands; all state lives in the engine.
package ui

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"codedojo/internal/session"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
)

// PollInterval is how often the engine is asked to pick up background
// results.
const PollInterval = 250 * time.Millisecond

type pollMsg time.Time

type Options struct {
	ASCIIOnly   bool
	Logger      *log.Logger
	QuitTimeout time.Duration
}

type Root struct {
	engine Engine
	view   session.View

	theme    Theme
	ascii    bool
	keys     keyMap
	help     help.Model
	spin     spinner.Model
	markdown *glamour.TermRenderer
	mdCache  map[string]string
	logger   *log.Logger

	cols   int
	rows   int
	layout LayoutMode

	quitTimeout time.Duration
	quitting    bool
	err         error
	now         func() time.Time
}

func New(engine Engine, opts Options) *Root {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	theme := DefaultTheme()
	if opts.ASCIIOnly {
		theme = PlainTheme()
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(72),
	)
	if err != nil {
		logger.Warn("ui.markdown", "err", err)
		renderer = nil
	}
	h := help.New()
	h.Styles = help.DefaultDarkStyles()
	sp := spinner.MiniDot
	if opts.ASCIIOnly {
		sp = spinner.Line
	}
	quitTimeout := opts.QuitTimeout
	if quitTimeout <= 0 {
		quitTimeout = 5 * time.Second
	}
	r := &Root{
		engine:      engine,
		theme:       theme,
		ascii:       opts.ASCIIOnly,
		keys:        defaultKeyMap(),
		help:        h,
		spin:        spinner.New(spinner.WithSpinner(sp), spinner.WithStyle(theme.Accent)),
		markdown:    renderer,
		mdCache:     map[string]string{},
		logger:      logger,
		cols:        120,
		rows:        30,
		layout:      LayoutWide,
		quitTimeout: quitTimeout,
		now:         time.Now,
	}
	r.view = engine.View()
	return r
}

func (r *Root) Init() tea.Cmd {
	return tea.Batch(pollCmd(), spinnerTickCmd(r.spin))
}

func (r *Root) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("ui.panic_recovered", "where", "update", "panic", fmt.Sprint(rec), "msg", fmt.Sprintf("%T", msg), "stack", string(debug.Stack()))
			model = r
			cmd = nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.cols = msg.Width
		r.rows = msg.Height
		r.layout = DetermineLayoutMode(r.cols, r.rows)
		return r, nil
	case pollMsg:
		if r.quitting {
			return r, nil
		}
		r.view = r.engine.Poll()
		return r, pollCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		r.spin, cmd = r.spin.Update(msg)
		return r, cmd
	case tea.KeyPressMsg:
		return r.handleKey(msg)
	}
	return r, nil
}

func (r *Root) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if r.quitting {
		return r, nil
	}
	switch {
	case key.Matches(msg, r.keys.Quit):
		return r, r.quit()
	case key.Matches(msg, r.keys.Run):
		r.view = r.engine.RunTests()
	case key.Matches(msg, r.keys.Hint):
		r.view = r.engine.RevealHint()
	case key.Matches(msg, r.keys.Info):
		r.view = r.engine.TogglePanel(session.PanelInfo)
	case key.Matches(msg, r.keys.Docs):
		r.view = r.engine.TogglePanel(session.PanelDocs)
	case key.Matches(msg, r.keys.Concepts):
		r.view = r.engine.TogglePanel(session.PanelConcepts)
	case key.Matches(msg, r.keys.NextUnit):
		r.view = r.engine.SelectNextUnit()
	case key.Matches(msg, r.keys.PrevUnit):
		r.view = r.engine.SelectPrevUnit()
	case key.Matches(msg, r.keys.NextTest):
		r.view = r.engine.SelectNextTest()
	case key.Matches(msg, r.keys.PrevTest):
		r.view = r.engine.SelectPrevTest()
	case key.Matches(msg, r.keys.Close):
		r.view = r.engine.ClosePanel()
	case key.Matches(msg, r.keys.Dismiss):
		r.view = r.engine.DismissBanners()
	case msg.String() == "?":
		r.help.ShowAll = !r.help.ShowAll
	}
	return r, nil
}

func (r *Root) quit() tea.Cmd {
	r.quitting = true
	ctx, cancel := context.WithTimeout(context.Background(), r.quitTimeout)
	defer cancel()
	if err := r.engine.Quit(ctx); err != nil {
		r.err = err
		r.logger.Error("ui.quit", "err", err)
	}
	return tea.Quit
}

func (r *Root) View() (view tea.View) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("ui.panic_recovered", "where", "view", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			view = tea.NewView(r.theme.Fail.Render("UI recovered from a rendering panic. Check logs."))
		}
	}()

	var body string
	if r.layout == LayoutTooSmall {
		body = r.renderTooSmall()
	} else {
		body = r.render()
	}
	v := tea.NewView(body)
	v.AltScreen = true
	return v
}

// Run blocks until the learner quits. The returned error includes a failed
// final flush of progress.
func (r *Root) Run() error {
	if _, err := tea.NewProgram(r).Run(); err != nil {
		return err
	}
	return r.err
}

func pollCmd() tea.Cmd {
	return tea.Tick(PollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

func spinnerTickCmd(model spinner.Model) tea.Cmd {
	return func() tea.Msg {
		return model.Tick()
	}
}

var _ tea.Model = (*Root)(nil)
