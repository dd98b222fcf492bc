package ui

import "charm.land/lipgloss/v2"

type Theme struct {
	Header     lipgloss.Style
	Footer     lipgloss.Style
	PanelTitle lipgloss.Style
	Border     lipgloss.Style
	Body       lipgloss.Style
	Selected   lipgloss.Style
	Accent     lipgloss.Style
	Pass       lipgloss.Style
	Fail       lipgloss.Style
	Errored    lipgloss.Style
	Pending    lipgloss.Style
	Muted      lipgloss.Style
	Banner     lipgloss.Style
	Overlay    lipgloss.Style
}

func DefaultTheme() Theme {
	amber := lipgloss.Color("#FFC857")
	mint := lipgloss.Color("#67F0A8")
	brick := lipgloss.Color("#FF6F91")
	ink := lipgloss.Color("#0E1420")
	slate := lipgloss.Color("#1B2740")
	powder := lipgloss.Color("#EAF2FF")
	blue := lipgloss.Color("#5EEBFF")
	border := lipgloss.Color("#4B5F8A")

	return Theme{
		Header:     lipgloss.NewStyle().Background(ink).Foreground(powder).Bold(true).Padding(0, 1),
		Footer:     lipgloss.NewStyle().Background(slate).Foreground(powder).Padding(0, 1),
		PanelTitle: lipgloss.NewStyle().Foreground(blue).Bold(true),
		Border:     lipgloss.NewStyle().Foreground(border),
		Body:       lipgloss.NewStyle().Foreground(powder),
		Selected:   lipgloss.NewStyle().Foreground(ink).Background(blue).Bold(true),
		Accent:     lipgloss.NewStyle().Foreground(blue).Bold(true),
		Pass:       lipgloss.NewStyle().Foreground(mint).Bold(true),
		Fail:       lipgloss.NewStyle().Foreground(brick).Bold(true),
		Errored:    lipgloss.NewStyle().Foreground(amber).Bold(true),
		Pending:    lipgloss.NewStyle().Foreground(amber),
		Muted:      lipgloss.NewStyle().Foreground(lipgloss.Color("#9CAAC6")),
		Banner:     lipgloss.NewStyle().Foreground(ink).Background(amber).Padding(0, 1),
		Overlay: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Foreground(powder).
			Padding(0, 1),
	}
}

// PlainTheme is used with --ascii: no colours, ASCII borders.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Header:     plain.Bold(true),
		Footer:     plain,
		PanelTitle: plain.Bold(true),
		Border:     plain,
		Body:       plain,
		Selected:   plain.Reverse(true),
		Accent:     plain.Bold(true),
		Pass:       plain,
		Fail:       plain.Bold(true),
		Errored:    plain.Bold(true),
		Pending:    plain,
		Muted:      plain,
		Banner:     plain.Reverse(true),
		Overlay:    plain.BorderStyle(lipgloss.ASCIIBorder()).Padding(0, 1),
	}
}
