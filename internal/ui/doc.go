// Package ui renders vmw's human-readable terminal output.
//
// Styling goes through Lip Gloss. Colors are ANSI codes so output follows
// the terminal's theme:
//
//	ColorSuccess (green)  - ok, connected, started
//	ColorError   (red)    - alerts, failures
//	ColorWarning (yellow) - no data, not found
//	ColorMuted   (gray)   - secondary text, timing
//
// DisableColors switches every renderer to plain text for --no-color and
// non-terminal output.
//
// Usage bars color by distance to an alert threshold:
//
//	ui.RenderUsageBar(55, 20, 40) // [███████████░░░░░░░░░]  55%  (red)
//
// The Spinner shows progress for slow fleet-wide operations, and
// PickSSHHost offers the concrete entries of ~/.ssh/config during
// 'vmw host add'.
package ui
