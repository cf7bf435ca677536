package styles

import (
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"
)

// ApplyBoldGradient renders bold text with a horizontal color gradient.
func ApplyBoldGradient(text string, from, to lipgloss.Color) string {
	if text == "" {
		return ""
	}

	var clusters []string
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		clusters = append(clusters, gr.Str())
	}

	colors := Blend(len(clusters), from, to)
	var b strings.Builder
	for i, cluster := range clusters {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(colors[i]).Render(cluster))
	}
	return b.String()
}

// Blend returns size colors going from from to to, blended in HCL space
// for perceptually even steps.
func Blend(size int, from, to lipgloss.Color) []lipgloss.Color {
	if size <= 0 {
		return nil
	}
	if size == 1 {
		return []lipgloss.Color{from}
	}

	c1, _ := colorful.MakeColor(toColor(from))
	c2, _ := colorful.MakeColor(toColor(to))

	colors := make([]lipgloss.Color, size)
	for i := range size {
		t := float64(i) / float64(size-1)
		colors[i] = lipgloss.Color(c1.BlendHcl(c2, t).Clamped().Hex())
	}
	return colors
}

// toColor converts a hex lipgloss.Color to a color.Color.
func toColor(c lipgloss.Color) color.Color {
	hex := string(c)
	if len(hex) == 7 && hex[0] == '#' {
		if col, err := colorful.Hex(hex); err == nil {
			return col
		}
	}
	// ANSI colors have no RGB value here; use a neutral gray.
	return color.RGBA{R: 128, G: 128, B: 128, A: 255}
}
