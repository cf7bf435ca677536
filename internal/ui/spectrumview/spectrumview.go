// Package spectrumview draws spectrum frames as vertical bars.
package spectrumview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/cadence/internal/ui/styles"
)

// levels are the partial block glyphs, one eighth of a cell apart.
var levels = []rune(" ▁▂▃▄▅▆▇█")

const steps = 8

// Columns maps bins onto width columns. Each column takes the value of the
// bin under its center.
func Columns(bins []float64, width int) []float64 {
	if width <= 0 || len(bins) == 0 {
		return nil
	}
	cols := make([]float64, width)
	for i := range cols {
		b := (2*i + 1) * len(bins) / (2 * width)
		cols[i] = min(max(bins[b], 0), 1)
	}
	return cols
}

// Render draws bins as height rows of width columns, colored from low to
// high frequency. Values are expected in [0, 1].
func Render(bins []float64, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	cols := Columns(bins, width)
	if cols == nil {
		cols = make([]float64, width)
	}

	t := styles.T()
	colors := styles.Blend(width, t.SpectrumLow, t.SpectrumHigh)

	rows := make([]string, height)
	for r := range height {
		// Row 0 is the top; the row's floor in eighths.
		floor := (height - 1 - r) * steps
		var b strings.Builder
		for c, v := range cols {
			n := int(v*float64(height*steps)+0.5) - floor
			glyph := levels[min(max(n, 0), steps)]
			if glyph == ' ' {
				b.WriteRune(glyph)
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(colors[c]).Render(string(glyph)))
		}
		rows[r] = b.String()
	}
	return strings.Join(rows, "\n")
}
