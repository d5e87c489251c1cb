package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Gaze     key.Binding
	Extended key.Binding
	Switch   key.Binding
	Start    key.Binding
	ScanNow  key.Binding
	Stop     key.Binding
	Faster   key.Binding
	Slower   key.Binding
	Sound    key.Binding
	Rest     key.Binding
	Target   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Gaze:     key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "gaze")),
		Extended: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "long gaze")),
		Switch:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle switch")),
		Start:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "listen")),
		ScanNow:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "scan now")),
		Stop:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Faster:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "faster")),
		Slower:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "slower")),
		Sound:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "sound")),
		Rest:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "capture rest")),
		Target:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "capture gaze")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Gaze, k.Extended, k.Switch, k.Start, k.Stop, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Gaze, k.Extended, k.Switch},
		{k.Start, k.ScanNow, k.Stop},
		{k.Faster, k.Slower, k.Sound},
		{k.Rest, k.Target, k.Help, k.Quit},
	}
}
