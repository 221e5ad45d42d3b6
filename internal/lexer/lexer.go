// Package lexer turns SystemVerilog source text into a lazy token stream.
//
// The lexer is deliberately shallow: it does not classify numeric literals
// beyond "number", and it emits comments and compiler directives as
// ordinary tokens so the preprocessor and the comment attacher can see
// them. Malformed input (unterminated string or block comment) fails with
// a LexError; nothing is silently dropped.
package lexer

import (
	"strings"

	"github.com/prokie/sv-lint/internal/sv"
)

// Lexer scans one file. It is restartable per file only: create a new
// Lexer for every input.
type Lexer struct {
	input   string
	file    string
	pos     int  // index of current char
	readPos int  // index after current char
	ch      byte // current char, 0 at EOF
	line    int  // 1-based line of current char
	col     int  // 1-based column of current char

	// startOfLine is set while skipping whitespace when a real (non
	// backslash-continued) newline was crossed; the next token is the
	// first on its logical line. The preprocessor uses this to find the
	// end of a `define replacement.
	startOfLine bool
}

// New creates a lexer over src. The file name is used only for positions.
func New(src, file string) *Lexer {
	l := &Lexer{input: src, file: file, line: 1, col: 0}
	l.readChar()
	// The very first token counts as first on its line.
	l.startOfLine = true
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		return
	}
	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++
	l.col++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) here() sv.Position {
	return sv.Position{File: l.file, Line: l.line, Column: l.col}
}

func (l *Lexer) errorf(pos sv.Position, msg string) error {
	return &sv.LexError{Pos: pos, Msg: msg}
}

// Next returns the next token. At end of input it returns an EOF token
// (repeatedly, if called again).
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespace()

	pos := l.here()
	first := l.startOfLine
	l.startOfLine = false

	tok := Token{Pos: pos, First: first}

	switch {
	case l.ch == 0:
		tok.Kind = EOF
		return tok, nil

	case l.ch == '/' && l.peekChar() == '/':
		tok.Kind = LineComment
		tok.Text = l.readLineComment()
		return tok, nil

	case l.ch == '/' && l.peekChar() == '*':
		text, err := l.readBlockComment(pos)
		if err != nil {
			return tok, err
		}
		tok.Kind = BlockComment
		tok.Text = text
		return tok, nil

	case l.ch == '"':
		text, err := l.readString(pos)
		if err != nil {
			return tok, err
		}
		tok.Kind = String
		tok.Text = text
		return tok, nil

	case l.ch == '`':
		l.readChar()
		if !isIdentStart(l.ch) {
			return tok, l.errorf(pos, "expected directive name after `")
		}
		tok.Kind = Directive
		tok.Text = l.readIdentText()
		return tok, nil

	case l.ch == '\\':
		// Escaped identifier: backslash up to the next whitespace.
		tok.Kind = EscapedIdent
		tok.Text = l.readEscapedIdent()
		return tok, nil

	case l.ch == '$' && isIdentStart(l.peekChar()):
		l.readChar()
		tok.Kind = SystemIdent
		tok.Text = "$" + l.readIdentText()
		return tok, nil

	case isIdentStart(l.ch):
		text := l.readIdentText()
		if keywords[text] {
			tok.Kind = Keyword
		} else {
			tok.Kind = Ident
		}
		tok.Text = text
		return tok, nil

	case isDigit(l.ch):
		tok.Kind = Number
		tok.Text = l.readNumber()
		return tok, nil

	case l.ch == '\'':
		if text, ok := l.readBasedLiteral(""); ok {
			tok.Kind = Number
			tok.Text = text
			return tok, nil
		}
		// Bare tick, e.g. the '{ of an assignment pattern.
		l.readChar()
		tok.Kind = Op
		tok.Text = "'"
		return tok, nil
	}

	return l.readOperator(pos)
}

func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '\n':
			l.startOfLine = true
			l.readChar()
		case l.ch == '\\' && (l.peekChar() == '\n' || l.peekChar() == '\r'):
			// Line continuation inside a `define replacement: the next
			// token still belongs to the current logical line.
			l.readChar()
			if l.ch == '\r' {
				l.readChar()
			}
			if l.ch == '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readLineComment() string {
	start := l.pos
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	return strings.TrimRight(l.input[start:l.pos], "\r")
}

func (l *Lexer) readBlockComment(pos sv.Position) (string, error) {
	start := l.pos
	l.readChar() // '/'
	l.readChar() // '*'
	for {
		if l.ch == 0 {
			return "", l.errorf(pos, "unterminated block comment")
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return l.input[start:l.pos], nil
		}
		l.readChar()
	}
}

func (l *Lexer) readString(pos sv.Position) (string, error) {
	start := l.pos
	l.readChar() // opening quote
	for {
		switch l.ch {
		case 0:
			return "", l.errorf(pos, "unterminated string literal")
		case '\n':
			return "", l.errorf(pos, "newline in string literal")
		case '\\':
			l.readChar()
			if l.ch != 0 {
				l.readChar()
			}
		case '"':
			l.readChar()
			return l.input[start:l.pos], nil
		default:
			l.readChar()
		}
	}
}

func (l *Lexer) readEscapedIdent() string {
	start := l.pos
	l.readChar() // backslash
	for l.ch != 0 && l.ch != ' ' && l.ch != '\t' && l.ch != '\r' && l.ch != '\n' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readIdentText() string {
	start := l.pos
	for isIdentStart(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber scans decimal, real, and sized based literals. A size prefix
// directly followed by a base ('h, 'sb, ...) is kept as one token so the
// literal text round-trips exactly.
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	// Real literal: 3.14, 1e9, 2.5e-3.
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		if isDigit(l.peekChar()) || ((l.peekChar() == '+' || l.peekChar() == '-') && l.readPos+1 < len(l.input) && isDigit(l.input[l.readPos+1])) {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
			return l.input[start:l.pos]
		}
	}

	// Sized based literal: 8'hFF.
	if l.ch == '\'' {
		if text, ok := l.readBasedLiteral(l.input[start:l.pos]); ok {
			return text
		}
	}

	return l.input[start:l.pos]
}

// readBasedLiteral consumes a based literal starting at a tick: 'b101,
// 'sh3A, '0, 'x. prefix is the already-consumed size text. Returns ok
// false (consuming nothing) when the tick does not open a literal.
func (l *Lexer) readBasedLiteral(prefix string) (string, bool) {
	next := l.peekChar()
	switch next {
	case '0', '1', 'x', 'X', 'z', 'Z':
		if prefix == "" {
			// Unbased unsized literal.
			start := l.pos
			l.readChar()
			l.readChar()
			return l.input[start:l.pos], true
		}
	}

	i := l.readPos
	if i < len(l.input) && (l.input[i] == 's' || l.input[i] == 'S') {
		i++
	}
	if i >= len(l.input) || !isBaseChar(l.input[i]) {
		return "", false
	}

	start := l.pos
	l.readChar() // tick
	if l.ch == 's' || l.ch == 'S' {
		l.readChar()
	}
	l.readChar() // base char
	for isBasedDigit(l.ch) {
		l.readChar()
	}
	return prefix + l.input[start:l.pos], true
}

// Multi-character operators, longest first.
var operators3 = []string{"===", "!==", "<<<", ">>>", "<->", "==?", "!=?"}
var operators2 = []string{
	"==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "**",
	"+:", "-:", "->", "~&", "~|", "~^", "^~", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "##",
}

func (l *Lexer) readOperator(pos sv.Position) (Token, error) {
	tok := Token{Pos: pos, First: false}

	rest := l.input[l.pos:]
	for _, op := range operators3 {
		if strings.HasPrefix(rest, op) {
			l.readChar()
			l.readChar()
			l.readChar()
			tok.Kind = Op
			tok.Text = op
			return tok, nil
		}
	}

	if strings.HasPrefix(rest, "::") {
		l.readChar()
		l.readChar()
		tok.Kind = ColonColon
		tok.Text = "::"
		return tok, nil
	}
	if strings.HasPrefix(rest, ".*") {
		l.readChar()
		l.readChar()
		tok.Kind = DotStar
		tok.Text = ".*"
		return tok, nil
	}
	for _, op := range operators2 {
		if strings.HasPrefix(rest, op) {
			l.readChar()
			l.readChar()
			tok.Kind = Op
			tok.Text = op
			return tok, nil
		}
	}

	ch := l.ch
	l.readChar()
	tok.Text = string(ch)
	switch ch {
	case '(':
		tok.Kind = LParen
	case ')':
		tok.Kind = RParen
	case '[':
		tok.Kind = LBracket
	case ']':
		tok.Kind = RBracket
	case '{':
		tok.Kind = LBrace
	case '}':
		tok.Kind = RBrace
	case ';':
		tok.Kind = Semi
	case ',':
		tok.Kind = Comma
	case '.':
		tok.Kind = Dot
	case '#':
		tok.Kind = Hash
	case '@':
		tok.Kind = At
	case ':':
		tok.Kind = Colon
	case '?':
		tok.Kind = Question
	case '=':
		tok.Kind = Assign
	case '+', '-', '*', '/', '%', '!', '~', '&', '|', '^', '<', '>', '$':
		tok.Kind = Op
	default:
		return tok, l.errorf(pos, "unexpected character "+string(ch))
	}
	return tok, nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isBaseChar(ch byte) bool {
	switch ch {
	case 'b', 'B', 'o', 'O', 'd', 'D', 'h', 'H':
		return true
	}
	return false
}

func isBasedDigit(ch byte) bool {
	return isDigit(ch) || ch == '_' ||
		('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F') ||
		ch == 'x' || ch == 'X' || ch == 'z' || ch == 'Z' || ch == '?'
}
