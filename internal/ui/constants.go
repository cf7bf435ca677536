// Package ui provides shared UI constants and utilities.
package ui

// Layout constants for consistent sizing across UI components.
const (
	// ScrollMargin is the number of entries kept visible around the
	// current queue entry.
	ScrollMargin = 2

	// BorderHeight is the vertical space consumed by a standard panel border.
	BorderHeight = 2

	// PlayerBarHeight is the player bar content plus its border.
	PlayerBarHeight = 3 + BorderHeight

	// MinProgressBarWidth is the minimum width for a usable progress bar.
	MinProgressBarWidth = 5

	// MinSpectrumHeight is the smallest spectrum worth drawing.
	MinSpectrumHeight = 3
)
