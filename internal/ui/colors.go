package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// SpinnerColors are cycled by the spinner animation.
var SpinnerColors = []lipgloss.Color{ColorInfo, ColorSecondary, ColorSuccess, ColorSecondary}

// DisableColors makes every style render plain text.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func SuccessStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorSuccess) }
func ErrorStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorError) }
func WarningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorWarning) }
func InfoStyle() lipgloss.Style    { return lipgloss.NewStyle().Foreground(ColorInfo) }
func MutedStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorMuted) }
func HeaderStyle() lipgloss.Style  { return lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary) }

// StatusColor maps a result or alert status string to its color.
func StatusColor(status string) lipgloss.Color {
	switch strings.ToLower(status) {
	case "ok", "connected", "success", "started", "stopped", "sent":
		return ColorSuccess
	case "alert", "failed", "error", "connection_failed", "vm_error", "container_error":
		return ColorError
	case "no_data", "not_found", "parse_error", "no_alerts":
		return ColorWarning
	default:
		return ColorMuted
	}
}

// StatusSymbol returns the symbol shown next to a status.
func StatusSymbol(status string) string {
	switch StatusColor(status) {
	case ColorSuccess:
		return SymbolSuccess
	case ColorError:
		return SymbolFail
	case ColorWarning:
		return SymbolSkipped
	default:
		return SymbolPending
	}
}

// RenderStatus renders "<symbol> <status>" in the status color.
func RenderStatus(status string) string {
	return lipgloss.NewStyle().Foreground(StatusColor(status)).Render(StatusSymbol(status) + " " + status)
}
