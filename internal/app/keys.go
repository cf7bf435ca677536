package app

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	TogglePause key.Binding
	Play        key.Binding
	Stop        key.Binding
	SeekBack    key.Binding
	SeekFwd     key.Binding
	SeekBackBig key.Binding
	SeekFwdBig  key.Binding
	VolumeUp    key.Binding
	VolumeDown  key.Binding
	Next        key.Binding
	Previous    key.Binding
	ClearQueue  key.Binding
	Repeat      key.Binding
	Shuffle     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		TogglePause: key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		Play:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		Stop:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		SeekBack:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "-5s")),
		SeekFwd:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "+5s")),
		SeekBackBig: key.NewBinding(key.WithKeys("shift+left", "H"), key.WithHelp("H", "-30s")),
		SeekFwdBig:  key.NewBinding(key.WithKeys("shift+right", "L"), key.WithHelp("L", "+30s")),
		VolumeUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		VolumeDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		Next:        key.NewBinding(key.WithKeys("n", ">"), key.WithHelp("n", "next")),
		Previous:    key.NewBinding(key.WithKeys("b", "<"), key.WithHelp("b", "previous")),
		ClearQueue:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear queue")),
		Repeat:      key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "cycle repeat")),
		Shuffle:     key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "toggle shuffle")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TogglePause, k.SeekBack, k.SeekFwd, k.Next, k.Previous, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TogglePause, k.Play, k.Stop},
		{k.SeekBack, k.SeekFwd, k.SeekBackBig, k.SeekFwdBig},
		{k.VolumeUp, k.VolumeDown},
		{k.Next, k.Previous, k.ClearQueue},
		{k.Repeat, k.Shuffle},
		{k.Help, k.Quit},
	}
}
