package extractor

import (
	"github.com/prokie/sv-lint/internal/lexer"
	"github.com/prokie/sv-lint/internal/sv"
)

// paramRun carries declaration state across a comma list: a keyword or
// data type written once applies to every following name until the next
// keyword or type resets it.
type paramRun struct {
	kind   sv.ParamKind
	spec   *typeSpec
	isType bool
}

// parseParameterPortList parses the #( ... ) parameter port list; the
// hash is already consumed.
func (p *parser) parseParameterPortList(mod *sv.ModuleDeclaration) error {
	ctx := "parameter list of " + mod.Identifier
	if _, err := p.expectKind(lexer.LParen, ctx); err != nil {
		return err
	}
	if tok, err := p.peek(0); err != nil {
		return err
	} else if tok.Kind == lexer.RParen {
		_, err := p.next()
		return err
	}

	run := paramRun{kind: sv.ParamKindParameter}
	for {
		param, err := p.parseParamEntry(&run, ctx, lexer.RParen)
		if err != nil {
			return err
		}
		if err := appendParam(&mod.Parameters, param, p, ctx); err != nil {
			return err
		}

		sep, err := p.next()
		if err != nil {
			return err
		}
		switch sep.Kind {
		case lexer.Comma:
			continue
		case lexer.RParen:
			return nil
		default:
			return p.errorf(sep.Pos, ctx, "expected , or ), found "+sep.String())
		}
	}
}

// parseParamDeclaration parses a body or package item of the form
// parameter/localparam [type] name [= default] {, name [= default]} ;
func (p *parser) parseParamDeclaration(into *[]sv.Parameter, ctx string) error {
	run := paramRun{kind: sv.ParamKindParameter}
	for {
		param, err := p.parseParamEntry(&run, ctx, lexer.Semi)
		if err != nil {
			return err
		}
		if err := appendParam(into, param, p, ctx); err != nil {
			return err
		}

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

func appendParam(into *[]sv.Parameter, param sv.Parameter, p *parser, ctx string) error {
	for _, existing := range *into {
		if existing.Identifier == param.Identifier {
			return p.errorf(p.last.Pos, ctx, "duplicate parameter "+param.Identifier)
		}
	}
	*into = append(*into, param)
	return nil
}

// parseParamEntry parses one parameter assignment. terminator is the
// token kind that ends the whole list (RParen or Semi); it and the comma
// delimit the default expression.
func (p *parser) parseParamEntry(run *paramRun, ctx string, terminator lexer.Kind) (sv.Parameter, error) {
	// Peek first so the lookahead skims a preceding comment run into
	// the pending buffer; this entry claims it.
	tok, err := p.peek(0)
	if err != nil {
		return sv.Parameter{}, err
	}
	comments := p.takeComments()
	switch {
	case tok.Is("parameter"):
		if _, err := p.next(); err != nil {
			return sv.Parameter{}, err
		}
		run.kind = sv.ParamKindParameter
		run.spec = nil
		run.isType = false
	case tok.Is("localparam"):
		if _, err := p.next(); err != nil {
			return sv.Parameter{}, err
		}
		run.kind = sv.ParamKindLocalParam
		run.spec = nil
		run.isType = false
	}

	if ok, err := p.acceptKeyword("type"); err != nil {
		return sv.Parameter{}, err
	} else if ok {
		run.spec = nil
		run.isType = true
	} else if starts, err := p.startsTypeSpec(); err != nil {
		return sv.Parameter{}, err
	} else if starts {
		spec, err := p.parseTypeSpec(ctx)
		if err != nil {
			return sv.Parameter{}, err
		}
		run.spec = &spec
		run.isType = false
	}

	name, err := p.expectIdent(ctx)
	if err != nil {
		return sv.Parameter{}, err
	}
	namePos := p.last.Pos

	udims, err := p.parseUnpackedDims(ctx)
	if err != nil {
		return sv.Parameter{}, err
	}

	var exprToks []lexer.Token
	hasDefault := false
	if tok, err := p.peek(0); err != nil {
		return sv.Parameter{}, err
	} else if tok.Kind == lexer.Assign {
		if _, err := p.next(); err != nil {
			return sv.Parameter{}, err
		}
		exprToks, err = p.collectBalanced(ctx, func(t lexer.Token) bool {
			return t.Kind == lexer.Comma || t.Kind == terminator
		})
		if err != nil {
			return sv.Parameter{}, err
		}
		hasDefault = true
	}

	if run.kind == sv.ParamKindLocalParam && !hasDefault {
		return sv.Parameter{}, p.errorf(namePos, ctx, "localparam "+name+" requires a default value")
	}

	return resolveParameter(run, name, udims, exprToks, hasDefault, comments), nil
}
