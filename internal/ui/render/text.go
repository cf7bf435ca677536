// Package render fits tag text into terminal cells.
package render

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const ellipsis = "…"

// Clean makes tag text safe to draw. Invalid UTF-8 and control characters
// are dropped; tabs and non-breaking spaces become plain spaces.
func Clean(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\u00a0':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

// Width is the number of cells s occupies once cleaned.
func Width(s string) int {
	return runewidth.StringWidth(Clean(s))
}

// Shorten cleans s and cuts it to width cells, ending with an ellipsis
// when something was cut.
func Shorten(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(Clean(s), width, ellipsis)
}

// Fit is Shorten padded with spaces to exactly width cells.
func Fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(Shorten(s, width), width)
}

// Row places left and right at the two ends of width cells, keeping at
// least one space between them. Both may be styled.
func Row(left, right string, width int) string {
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}
