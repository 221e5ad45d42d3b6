package extractor

import (
	"strings"

	"github.com/prokie/sv-lint/internal/lexer"
)

// exprText renders a preserved expression back to source-like text.
// Preprocessed token streams have no original spacing, so rendering
// follows fixed rules: binary operators spaced, brackets and selects
// tight. The result is stable for a given token sequence, which is what
// the facts cache and the diff layer rely on.
func exprText(toks []lexer.Token) string {
	var b strings.Builder
	for i, tok := range toks {
		if i > 0 && needSpace(toks[i-1], tok) {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Text)
	}
	return b.String()
}

func needSpace(a, b lexer.Token) bool {
	switch b.Kind {
	case lexer.RParen, lexer.RBracket, lexer.RBrace, lexer.Comma, lexer.Semi,
		lexer.Colon, lexer.ColonColon, lexer.Dot, lexer.LBracket:
		return false
	}
	switch a.Kind {
	case lexer.LParen, lexer.LBracket, lexer.LBrace, lexer.Dot,
		lexer.ColonColon, lexer.Hash:
		return false
	case lexer.Colon:
		// Range bounds read [msb:lsb].
		return false
	}
	if b.Kind == lexer.LParen {
		switch a.Kind {
		case lexer.Ident, lexer.EscapedIdent, lexer.SystemIdent,
			lexer.RParen, lexer.RBracket:
			return false
		}
	}
	return true
}
