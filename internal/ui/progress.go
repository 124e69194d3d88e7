package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Progress bar block characters.
const (
	progressFilled = '█'
	progressEmpty  = '░'
)

// warnFraction of the threshold is where a bar turns yellow.
const warnFraction = 0.75

// UsageColor picks a bar color from a percentage and its alert threshold:
// red above the threshold, yellow from 75% of it, green below.
func UsageColor(percent, threshold float64) lipgloss.Color {
	switch {
	case threshold <= 0:
		return ColorInfo
	case percent > threshold:
		return ColorError
	case percent >= threshold*warnFraction:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// RenderUsageBar renders [████░░░░]  55% colored against threshold.
// Percent is clamped to 0-100 for drawing; the label shows the real value.
func RenderUsageBar(percent float64, width int, threshold float64) string {
	if width <= 0 {
		return ""
	}

	drawn := percent
	if drawn < 0 {
		drawn = 0
	} else if drawn > 100 {
		drawn = 100
	}

	filled := int((drawn / 100.0) * float64(width))

	var sb strings.Builder
	sb.Grow(width + 2)
	sb.WriteRune('[')
	sb.WriteString(strings.Repeat(string(progressFilled), filled))
	sb.WriteString(strings.Repeat(string(progressEmpty), width-filled))
	sb.WriteRune(']')

	style := lipgloss.NewStyle().Foreground(UsageColor(percent, threshold))
	return style.Render(sb.String()) + fmt.Sprintf(" %3.0f%%", percent)
}
