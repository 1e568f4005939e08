package diag

import (
	"rillc/internal/source"
)

type Note struct {
	Span source.Span
	Msg string
}

// FixEdit is a lightweight literal for the WithFix convenience helper; it
// carries no OldText guard, unlike TextEdit.
type FixEdit struct {
	Span source.Span
	NewText string
}

type Diagnostic struct {
	Severity Severity
	Code Code
	Message string
	Primary source.Span
	Notes []Note
	Fixes []Fix
}
