package ui

// DetermineLayoutMode picks between the side-by-side layout and a single
// stacked column.
func DetermineLayoutMode(cols, rows int) LayoutMode {
	if cols < 60 || rows < 16 {
		return LayoutTooSmall
	}
	if cols >= 100 && rows >= 24 {
		return LayoutWide
	}
	return LayoutCompact
}
