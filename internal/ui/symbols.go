package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess = "✓" // ok, connected, started
	SymbolFail    = "✗" // alert or failure
	SymbolPending = "○" // unknown status
	SymbolSkipped = "⊘" // no data, not found
	SymbolBullet  = "●"
)
