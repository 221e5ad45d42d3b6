package sv

import "fmt"

// Position is a file/line/column source location. Line and Column are
// 1-based; a zero Position means "location unknown".
type Position struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// The error taxonomy. A file either extracts to a complete Data or fails
// with exactly one of these; there is no partial output. Callers classify
// with errors.As.

// IoError reports an unreadable or undecodable source file.
type IoError struct {
	Path string
	Msg  string
	Err  error
}

func (e *IoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *IoError) Unwrap() error { return e.Err }

// LexError reports a malformed token.
type LexError struct {
	Pos Position
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: lex error: %s", e.Pos, e.Msg)
}

// PreprocessError reports an unterminated conditional, an unresolvable or
// circular include, or runaway macro expansion.
type PreprocessError struct {
	Pos Position
	Msg string
}

func (e *PreprocessError) Error() string {
	return fmt.Sprintf("%s: preprocess error: %s", e.Pos, e.Msg)
}

// ParseError reports a token sequence that matches no recognized
// declaration production in a strict-parsing position. Context names the
// production being parsed when the error was raised.
type ParseError struct {
	Pos     Position
	Msg     string
	Context string
}

func (e *ParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: parse error in %s: %s", e.Pos, e.Context, e.Msg)
	}
	return fmt.Sprintf("%s: parse error: %s", e.Pos, e.Msg)
}
