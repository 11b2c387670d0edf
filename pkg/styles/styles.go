// Package styles defines the shared lipgloss color palette for console output.
package styles

import "github.com/charmbracelet/lipgloss"

// Adaptive colors picked to stay legible on both light and dark backgrounds.
var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#59636e", Dark: "#8b949e"}
	ColorCommand = lipgloss.AdaptiveColor{Light: "#8250df", Dark: "#bc8cff"}
)
