package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Every compilation failure wraps exactly one of these.
var (
	ErrLexical    = errors.New("lexical error")
	ErrSyntax     = errors.New("syntax error")
	ErrUndeclared = errors.New("undeclared identifier")
)

// sourceError formats a failure with the offending source line:
//
//	line 3: syntax error: expected ';', got '}'
//	  |> let x = 1
func sourceError(kind error, lines []string, line int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	snippet := "<source unavailable>"
	if idx := line - 1; idx >= 0 && idx < len(lines) {
		snippet = strings.TrimSpace(lines[idx])
	}

	return fmt.Errorf("line %d: %w: %s\n  |> %s", line, kind, msg, snippet)
}
