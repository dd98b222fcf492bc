package ui

import (
	"context"

	"codedojo/internal/session"
)

// Engine is the command surface the view drives. *session.Engine implements
// it.
type Engine interface {
	View() session.View
	Poll() session.View
	RunTests() session.View
	RevealHint() session.View
	SelectNextUnit() session.View
	SelectPrevUnit() session.View
	SelectNextTest() session.View
	SelectPrevTest() session.View
	TogglePanel(p session.Panel) session.View
	ClosePanel() session.View
	DismissBanners() session.View
	Quit(ctx context.Context) error
}

type LayoutMode int

const (
	LayoutWide LayoutMode = iota
	LayoutCompact
	LayoutTooSmall
)

var _ Engine = (*session.Engine)(nil)
