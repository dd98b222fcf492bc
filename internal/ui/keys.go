package ui

import "charm.land/bubbles/v2/key"

type keyMap struct {
	Run      key.Binding
	Hint     key.Binding
	Info     key.Binding
	Docs     key.Binding
	Concepts key.Binding
	NextUnit key.Binding
	PrevUnit key.Binding
	NextTest key.Binding
	PrevTest key.Binding
	Close    key.Binding
	Dismiss  key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Run:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run")),
		Hint:     key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hint")),
		Info:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "info")),
		Docs:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "docs")),
		Concepts: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "concepts")),
		NextUnit: key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next unit")),
		PrevUnit: key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "prev unit")),
		NextTest: key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next test")),
		PrevTest: key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "prev test")),
		Close:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Dismiss:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Hint, k.Info, k.Docs, k.Concepts, k.NextUnit, k.NextTest, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Hint, k.Close, k.Dismiss},
		{k.Info, k.Docs, k.Concepts},
		{k.NextUnit, k.PrevUnit, k.NextTest, k.PrevTest},
		{k.Quit},
	}
}
