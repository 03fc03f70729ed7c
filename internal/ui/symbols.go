package ui

// Unicode symbols for status indicators.
const (
	SymbolOnline   = "●" // Host or stream up
	SymbolOffline  = "✗" // Host or stream down
	SymbolDegraded = "◐" // Up, but the last report was an error
	SymbolPending  = "○" // Not reported yet
	SymbolDC       = "★" // Designated coordinator
	SymbolSync     = "⇄" // Replication connected
	SymbolSplit    = "⚡" // Split brain
)
