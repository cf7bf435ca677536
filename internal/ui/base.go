package ui

// Base provides size management for UI components.
// Embed this in component models to get standard methods automatically.
type Base struct {
	width, height int
}

// SetSize sets the component dimensions.
func (b *Base) SetSize(width, height int) {
	b.width = width
	b.height = height
}

// Width returns the component width.
func (b Base) Width() int {
	return b.width
}

// Height returns the component height.
func (b Base) Height() int {
	return b.height
}

// InnerHeight returns the height left inside a standard panel border.
func (b Base) InnerHeight() int {
	return max(b.height-BorderHeight, 0)
}
