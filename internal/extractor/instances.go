package extractor

import (
	"github.com/prokie/sv-lint/internal/lexer"
	"github.com/prokie/sv-lint/internal/sv"
)

// looksLikeInstantiation decides from lookahead whether an identifier at
// body level opens a module instantiation rather than a data declaration
// with a user-defined type.
func (p *parser) looksLikeInstantiation() (bool, error) {
	next, err := p.peek(1)
	if err != nil {
		return false, err
	}
	switch {
	case next.Kind == lexer.Hash:
		// name #(...) u (...), or a primitive delay.
		return true, nil
	case isIdentTok(next):
		after, err := p.peek(2)
		if err != nil {
			return false, err
		}
		return after.Kind == lexer.LParen || after.Kind == lexer.LBracket, nil
	}
	return false, nil
}

// parseInstantiation parses name [#(overrides)] inst [range] (conns)
// {, inst [range] (conns)} ; recording one Instance per instance name.
// Parameter overrides are consumed but not recorded. labels is the
// enclosing generate label stack.
func (p *parser) parseInstantiation(mod *sv.ModuleDeclaration, labels []string) error {
	ctx := "module " + mod.Identifier
	p.dropComments()

	modName, err := p.expectIdent(ctx)
	if err != nil {
		return err
	}

	if tok, err := p.peek(0); err != nil {
		return err
	} else if tok.Kind == lexer.Hash {
		if _, err := p.next(); err != nil {
			return err
		}
		if tok, err := p.peek(0); err != nil {
			return err
		} else if tok.Kind == lexer.LParen {
			if err := p.skipBalancedParens(); err != nil {
				return err
			}
		} else if _, err := p.next(); err != nil {
			// Bare delay value, e.g. #10 on a primitive.
			return err
		}
	}

	for {
		instName, err := p.expectIdent(ctx)
		if err != nil {
			return err
		}
		if tok, err := p.peek(0); err != nil {
			return err
		} else if tok.Kind == lexer.LBracket {
			// Arrayed instance range; the base name identifies it.
			if err := p.skipBalancedBrackets(); err != nil {
				return err
			}
		}

		conns, err := p.parseConnections(ctx + " instance " + instName)
		if err != nil {
			return err
		}

		hierarchy := append([]string{mod.Identifier}, cleanLabels(labels)...)
		hierarchy = append(hierarchy, instName)
		mod.Instances = append(mod.Instances, sv.Instance{
			ModuleIdentifier:     modName,
			HierarchicalInstance: sv.HierarchicalPath(hierarchy),
			Hierarchy:            hierarchy,
			Connections:          conns,
		})

		sep, err := p.next()
		if err != nil {
			return err
		}
		switch sep.Kind {
		case lexer.Comma:
			continue
		case lexer.Semi:
			return nil
		default:
			return p.errorf(sep.Pos, ctx, "expected , or ;, found "+sep.String())
		}
	}
}

// parseConnections parses the ( ... ) port connection list. Named
// connections record (port, expr); positional connections record an
// empty port name; a .name shorthand connects the like-named signal.
func (p *parser) parseConnections(ctx string) ([]sv.Connection, error) {
	if _, err := p.expectKind(lexer.LParen, ctx); err != nil {
		return nil, err
	}
	conns := []sv.Connection{}

	if tok, err := p.peek(0); err != nil {
		return nil, err
	} else if tok.Kind == lexer.RParen {
		_, err := p.next()
		return conns, err
	}

	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case lexer.DotStar:
			if _, err := p.next(); err != nil {
				return nil, err
			}
			conns = append(conns, sv.Connection{Port: "*"})

		case lexer.Dot:
			if _, err := p.next(); err != nil {
				return nil, err
			}
			port, err := p.expectIdent(ctx)
			if err != nil {
				return nil, err
			}
			conn := sv.Connection{Port: port}
			if tok, err := p.peek(0); err != nil {
				return nil, err
			} else if tok.Kind == lexer.LParen {
				if _, err := p.next(); err != nil {
					return nil, err
				}
				expr, err := p.collectBalanced(ctx, func(t lexer.Token) bool {
					return t.Kind == lexer.RParen
				})
				if err != nil {
					return nil, err
				}
				if _, err := p.next(); err != nil { // )
					return nil, err
				}
				conn.Expr = exprText(expr)
			} else {
				// .name shorthand.
				conn.Expr = port
			}
			conns = append(conns, conn)

		default:
			expr, err := p.collectBalanced(ctx, func(t lexer.Token) bool {
				return t.Kind == lexer.Comma || t.Kind == lexer.RParen
			})
			if err != nil {
				return nil, err
			}
			conns = append(conns, sv.Connection{Expr: exprText(expr)})
		}

		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		switch sep.Kind {
		case lexer.Comma:
			continue
		case lexer.RParen:
			return conns, nil
		default:
			return nil, p.errorf(sep.Pos, ctx, "expected , or ), found "+sep.String())
		}
	}
}
