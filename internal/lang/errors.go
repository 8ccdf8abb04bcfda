package lang

import "fmt"

// ParseError reports a source line the parser could not accept. Lines are
// 1-based. Malformed input is never dropped silently; the first offending
// line aborts the parse.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func parseErrf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
