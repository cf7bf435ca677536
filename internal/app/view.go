package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/cadence/internal/ui"
	"github.com/llehouerou/cadence/internal/ui/playerbar"
	"github.com/llehouerou/cadence/internal/ui/render"
	"github.com/llehouerou/cadence/internal/ui/spectrumview"
	"github.com/llehouerou/cadence/internal/ui/styles"
)

const appTitle = "cadence"

// layout splits the space between the player bar, the spectrum and the
// queue panel.
func (m *Model) layout() {
	_, queueHeight := m.areas()
	m.queue.SetSize(m.width, queueHeight)
}

// areas returns the spectrum and queue panel heights.
func (m Model) areas() (spectrumHeight, queueHeight int) {
	helpHeight := lipgloss.Height(m.help.View(m.keys))
	avail := max(m.height-1-ui.PlayerBarHeight-helpHeight, 0)
	spectrumHeight = avail / 2
	if spectrumHeight < ui.MinSpectrumHeight {
		spectrumHeight = 0
	}
	return spectrumHeight, avail - spectrumHeight
}

// View renders the application UI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	t := styles.T()

	header := render.Row(
		styles.ApplyBoldGradient(appTitle, t.Primary, t.Secondary),
		m.renderStatus(m.width-len(appTitle)-1),
		m.width,
	)
	parts := []string{header, playerbar.Render(playerbar.NewState(m.snap), m.width)}

	spectrumHeight, _ := m.areas()
	if spectrumHeight > 0 {
		parts = append(parts, spectrumview.Render(m.bins, m.width, spectrumHeight))
	}
	if q := m.queue.View(); q != "" {
		parts = append(parts, q)
	}
	parts = append(parts, m.help.View(m.keys))

	return strings.Join(parts, "\n")
}

func (m Model) renderStatus(width int) string {
	if m.status == "" || width <= 0 {
		return ""
	}
	st := styles.T().S()
	text := render.Shorten(m.status, width)
	if m.statusIsError {
		return st.Error.Render(text)
	}
	return st.Warning.Render(text)
}
