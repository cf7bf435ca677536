// Package styles holds the color theme shared by the TUI components.
package styles

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette and pre-built styles for the application.
type Theme struct {
	Primary   lipgloss.Color // focused items, playing entry
	Secondary lipgloss.Color // progress and secondary accent

	// Text hierarchy (most to least prominent)
	FgBase   lipgloss.Color
	FgMuted  lipgloss.Color
	FgSubtle lipgloss.Color

	Border lipgloss.Color

	// Spectrum gradient, low to high bins.
	SpectrumLow  lipgloss.Color
	SpectrumHigh lipgloss.Color

	Error   lipgloss.Color
	Warning lipgloss.Color

	styles *Styles
}

// Styles contains pre-built lipgloss styles for common UI patterns.
type Styles struct {
	Base    lipgloss.Style
	Muted   lipgloss.Style
	Subtle  lipgloss.Style
	Title   lipgloss.Style
	Playing lipgloss.Style // current queue entry
	Filled  lipgloss.Style // progress bar, played part
	Empty   lipgloss.Style // progress bar, remaining part
	Error   lipgloss.Style
	Warning lipgloss.Style
	Panel   lipgloss.Style
}

var defaultTheme = Theme{
	Primary:   lipgloss.Color("#a78bfa"),
	Secondary: lipgloss.Color("#f1a208"),

	FgBase:   lipgloss.Color("#c0c0c0"),
	FgMuted:  lipgloss.Color("#808080"),
	FgSubtle: lipgloss.Color("#585858"),

	Border: lipgloss.Color("#585858"),

	SpectrumLow:  lipgloss.Color("#42b883"),
	SpectrumHigh: lipgloss.Color("#a78bfa"),

	Error:   lipgloss.Color("#ff5555"),
	Warning: lipgloss.Color("#f1a208"),
}

// T returns the default theme.
func T() *Theme {
	return &defaultTheme
}

// S returns the pre-built styles for this theme.
func (t *Theme) S() *Styles {
	if t.styles == nil {
		t.styles = t.buildStyles()
	}
	return t.styles
}

func (t *Theme) buildStyles() *Styles {
	base := lipgloss.NewStyle().Foreground(t.FgBase)

	return &Styles{
		Base:   base,
		Muted:  lipgloss.NewStyle().Foreground(t.FgMuted),
		Subtle: lipgloss.NewStyle().Foreground(t.FgSubtle),
		Title:  base.Bold(true),
		Playing: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),
		Filled:  lipgloss.NewStyle().Foreground(t.Secondary),
		Empty:   lipgloss.NewStyle().Foreground(t.FgSubtle),
		Error:   lipgloss.NewStyle().Foreground(t.Error),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Border),
	}
}
