package extractor

import (
	"github.com/prokie/sv-lint/internal/lexer"
	"github.com/prokie/sv-lint/internal/sv"
)

// Balanced skipping of body constructs the extractor does not interpret
// (always blocks, assigns, functions, assertions, ...). Skipping tracks
// bracket depth and the keyword block pairs (begin/end, case/endcase,
// function/endfunction, fork/join, ...) so a semicolon inside a block
// never ends the item early.

// skipFileItem discards one file-level item outside any module or
// package. The first token is always consumed, so a stray closer keyword
// at file level cannot stall the parse.
func (p *parser) skipFileItem() error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Kind == lexer.Semi {
		return nil
	}
	var stack []string
	if closer, ok := lexer.CloserFor(tok.Text); ok && tok.Kind == lexer.Keyword {
		stack = append(stack, closer)
	}
	proto := tok.Kind == lexer.Keyword && prototypeStarter(tok.Text)
	return p.skipRest("file scope", stack, tok.Pos, proto)
}

// skipItem discards one module or package body item.
func (p *parser) skipItem(ctx string) error {
	return p.skipRest(ctx, nil, p.last.Pos, false)
}

// skipRest consumes tokens until the current item ends: a semicolon at
// depth zero, or the close of the item's outermost keyword block. It
// stops without consuming at the enclosing scope's end keyword so the
// caller can recover from a missing semicolon. While proto is set the
// item is a bodiless prototype, so block keywords do not push a closer.
func (p *parser) skipRest(ctx string, stack []string, start sv.Position, proto bool) error {
	depth := 0
	opened := len(stack) > 0
	prev := ""
	for {
		tok, err := p.peek(0)
		if err != nil {
			return err
		}

		if depth == 0 && len(stack) == 0 && tok.Kind == lexer.Keyword {
			switch tok.Text {
			case "endmodule", "endpackage", "endgenerate":
				return nil
			}
		}
		if tok.Kind == lexer.EOF {
			return p.errorf(start, ctx, "unexpected end of file while skipping item")
		}

		if _, err := p.next(); err != nil {
			return err
		}

		switch tok.Kind {
		case lexer.LParen, lexer.LBracket, lexer.LBrace:
			depth++
		case lexer.RParen, lexer.RBracket, lexer.RBrace:
			if depth > 0 {
				depth--
			}
		case lexer.Semi:
			if depth == 0 && len(stack) == 0 {
				return nil
			}
			if depth == 0 {
				proto = false
			}
		case lexer.Keyword:
			if depth == 0 && prototypeStarter(tok.Text) {
				proto = true
			}
			if closer, ok := lexer.CloserFor(tok.Text); ok && depth == 0 && !proto && opensBlockAfter(prev, tok.Text) {
				stack = append(stack, closer)
				opened = true
				prev = tok.Text
				continue
			}
			if depth == 0 && len(stack) > 0 {
				top := stack[len(stack)-1]
				if tok.Text == top || (top == "join" && lexer.ForkClosers[tok.Text]) {
					stack = stack[:len(stack)-1]
					if len(stack) == 0 && opened {
						return p.finishBlockTail()
					}
				}
			}
		}

		if tok.Kind == lexer.Keyword {
			prev = tok.Text
		} else {
			prev = ""
		}
	}
}

// opensBlockAfter filters block-opening keywords by their left context:
// property and sequence open a declaration block only when they are not
// the operand of an assertion statement, and fork after wait or disable
// is a statement terminator, not a block.
func opensBlockAfter(prev, kw string) bool {
	switch kw {
	case "property", "sequence":
		switch prev {
		case "assert", "assume", "cover", "restrict", "expect":
			return false
		}
	case "fork":
		switch prev {
		case "wait", "disable":
			return false
		}
	}
	return true
}

// prototypeStarter reports keywords that introduce a declaration ending
// at the next semicolon with no body: DPI and package import/export
// prototypes, extern and pure virtual method prototypes, and typedef
// forward declarations ("typedef class C;").
func prototypeStarter(kw string) bool {
	switch kw {
	case "import", "export", "extern", "pure", "typedef":
		return true
	}
	return false
}

// finishBlockTail consumes the optional ": label" after a block closer
// and continues skipping when an else branch follows.
func (p *parser) finishBlockTail() error {
	if err := p.acceptEndLabel(); err != nil {
		return err
	}
	ok, err := p.acceptKeyword("else")
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return p.skipRest("else branch", nil, p.last.Pos, false)
}

// skipToSemi consumes tokens through the next top-level semicolon,
// balancing brackets only. Used for items that always end in a
// semicolon, such as import declarations.
func (p *parser) skipToSemi(ctx string) error {
	depth := 0
	for {
		tok, err := p.peek(0)
		if err != nil {
			return err
		}
		if tok.Kind == lexer.EOF {
			return p.errorf(p.last.Pos, ctx, "unexpected end of file, expected ;")
		}
		if depth == 0 && tok.Is("endmodule") {
			return nil
		}
		if _, err := p.next(); err != nil {
			return err
		}
		switch tok.Kind {
		case lexer.LParen, lexer.LBracket, lexer.LBrace:
			depth++
		case lexer.RParen, lexer.RBracket, lexer.RBrace:
			if depth > 0 {
				depth--
			}
		case lexer.Semi:
			if depth == 0 {
				return nil
			}
		}
	}
}

// skipBalancedParens consumes a parenthesized group, nesting included.
func (p *parser) skipBalancedParens() error {
	return p.skipBalanced(lexer.LParen, lexer.RParen, "parenthesized group")
}

// skipBalancedBraces consumes a braced group, e.g. an enum body.
func (p *parser) skipBalancedBraces() error {
	return p.skipBalanced(lexer.LBrace, lexer.RBrace, "braced group")
}

// skipBalancedBrackets consumes a bracketed group, e.g. an instance range.
func (p *parser) skipBalancedBrackets() error {
	return p.skipBalanced(lexer.LBracket, lexer.RBracket, "bracketed group")
}

func (p *parser) skipBalanced(open, close lexer.Kind, ctx string) error {
	first, err := p.next()
	if err != nil {
		return err
	}
	if first.Kind != open {
		return p.errorf(first.Pos, ctx, "expected "+open.String()+", found "+first.String())
	}
	depth := 1
	for depth > 0 {
		tok, err := p.next()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case lexer.EOF:
			return p.errorf(first.Pos, ctx, "unexpected end of file, unbalanced "+first.Text)
		case open:
			depth++
		case close:
			depth--
		}
	}
	return nil
}

// collectBalanced gathers tokens until stop matches at depth zero. The
// stop token is left unconsumed. A closing bracket at depth zero that
// stop does not accept is a parse error.
func (p *parser) collectBalanced(ctx string, stop func(lexer.Token) bool) ([]lexer.Token, error) {
	var toks []lexer.Token
	depth := 0
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if depth == 0 && stop(tok) {
			return toks, nil
		}
		switch tok.Kind {
		case lexer.EOF:
			return nil, p.errorf(tok.Pos, ctx, "unexpected end of file in expression")
		case lexer.LParen, lexer.LBracket, lexer.LBrace:
			depth++
		case lexer.RParen, lexer.RBracket, lexer.RBrace:
			if depth == 0 {
				return nil, p.errorf(tok.Pos, ctx, "unexpected "+tok.Text+" in expression")
			}
			depth--
		}
		if _, err := p.next(); err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
}
