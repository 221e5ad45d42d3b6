package extractor

import (
	"strings"

	"github.com/prokie/sv-lint/internal/lexer"
	"github.com/prokie/sv-lint/internal/preprocess"
	"github.com/prokie/sv-lint/internal/sv"
)

// parser is a recursive-descent cursor over the preprocessed token
// stream. It buffers lookahead tokens and skims comment tokens into a
// pending run so the declaration that follows can claim them.
type parser struct {
	pp   *preprocess.Preprocessor
	file string
	buf  []lexer.Token

	// pending holds the comment run seen since the last consumed
	// non-comment token, markers stripped. Consuming any token clears
	// it; takeComments claims it for the declaration about to start.
	pending []string

	last lexer.Token // last consumed token, for error positions

	// rawPorts accumulates the port records of the module being parsed.
	rawPorts []rawPort
}

func newParser(pp *preprocess.Preprocessor, file string) *parser {
	return &parser{pp: pp, file: file}
}

func (p *parser) errorf(pos sv.Position, ctx, msg string) error {
	return &sv.ParseError{Pos: pos, Msg: msg, Context: ctx}
}

// fill buffers lookahead tokens up to index n, folding comment tokens
// into the pending run as they are crossed.
func (p *parser) fill(n int) error {
	for len(p.buf) <= n {
		tok, err := p.pp.Next()
		if err != nil {
			return err
		}
		if tok.IsComment() {
			p.pending = append(p.pending, stripComment(tok)...)
			continue
		}
		p.buf = append(p.buf, tok)
	}
	return nil
}

func (p *parser) peek(n int) (lexer.Token, error) {
	if err := p.fill(n); err != nil {
		return lexer.Token{}, err
	}
	return p.buf[n], nil
}

// next consumes one token. Consuming breaks any comment run in flight:
// a comment only documents a declaration when nothing but comments sit
// between it and the declaration's first token.
func (p *parser) next() (lexer.Token, error) {
	if err := p.fill(0); err != nil {
		return lexer.Token{}, err
	}
	tok := p.buf[0]
	p.buf = p.buf[1:]
	p.pending = nil
	p.last = tok
	return tok, nil
}

// takeComments claims the pending comment run for the declaration whose
// first token is about to be consumed.
func (p *parser) takeComments() []string {
	cs := p.pending
	p.pending = nil
	if cs == nil {
		return []string{}
	}
	return cs
}

func (p *parser) dropComments() { p.pending = nil }

// stripComment removes the comment markers and surrounding space,
// splitting block comments into one entry per line.
func stripComment(tok lexer.Token) []string {
	switch tok.Kind {
	case lexer.LineComment:
		return []string{strings.TrimSpace(strings.TrimPrefix(tok.Text, "//"))}
	case lexer.BlockComment:
		inner := strings.TrimSuffix(strings.TrimPrefix(tok.Text, "/*"), "*/")
		var out []string
		for _, line := range strings.Split(inner, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "*"))
			if line != "" {
				out = append(out, line)
			}
		}
		if out == nil {
			return []string{}
		}
		return out
	}
	return nil
}

// expectIdent consumes an identifier (plain or escaped) and returns its
// declared name.
func (p *parser) expectIdent(ctx string) (string, error) {
	tok, err := p.next()
	if err != nil {
		return "", err
	}
	switch tok.Kind {
	case lexer.Ident:
		return tok.Text, nil
	case lexer.EscapedIdent:
		return strings.TrimPrefix(tok.Text, "\\"), nil
	}
	return "", p.errorf(tok.Pos, ctx, "expected identifier, found "+tok.String())
}

func (p *parser) expectKind(k lexer.Kind, ctx string) (lexer.Token, error) {
	tok, err := p.next()
	if err != nil {
		return lexer.Token{}, err
	}
	if tok.Kind != k {
		return tok, p.errorf(tok.Pos, ctx, "expected "+k.String()+", found "+tok.String())
	}
	return tok, nil
}

func (p *parser) acceptKeyword(kw string) (bool, error) {
	tok, err := p.peek(0)
	if err != nil {
		return false, err
	}
	if !tok.Is(kw) {
		return false, nil
	}
	_, err = p.next()
	return err == nil, err
}

func isIdentTok(tok lexer.Token) bool {
	return tok.Kind == lexer.Ident || tok.Kind == lexer.EscapedIdent
}

func identText(tok lexer.Token) string {
	return strings.TrimPrefix(tok.Text, "\\")
}

// parseModule parses module ... endmodule, including the parameter port
// list, the port list, and the body items the extractor understands.
func (p *parser) parseModule() (sv.ModuleDeclaration, error) {
	comments := p.takeComments()

	if _, err := p.next(); err != nil { // module or macromodule
		return sv.ModuleDeclaration{}, err
	}

	// Optional lifetime qualifier.
	if ok, err := p.acceptKeyword("static"); err != nil {
		return sv.ModuleDeclaration{}, err
	} else if !ok {
		if _, err := p.acceptKeyword("automatic"); err != nil {
			return sv.ModuleDeclaration{}, err
		}
	}

	name, err := p.expectIdent("module header")
	if err != nil {
		return sv.ModuleDeclaration{}, err
	}

	mod := sv.ModuleDeclaration{
		Identifier: name,
		Parameters: []sv.Parameter{},
		Ports:      []sv.Port{},
		Instances:  []sv.Instance{},
		Comments:   comments,
	}
	p.rawPorts = nil

	// Package import declarations between the name and the lists.
	for {
		ok, err := p.acceptKeyword("import")
		if err != nil {
			return sv.ModuleDeclaration{}, err
		}
		if !ok {
			break
		}
		if err := p.skipToSemi("module import"); err != nil {
			return sv.ModuleDeclaration{}, err
		}
	}

	// #( parameter port list )
	if tok, err := p.peek(0); err != nil {
		return sv.ModuleDeclaration{}, err
	} else if tok.Kind == lexer.Hash {
		if _, err := p.next(); err != nil {
			return sv.ModuleDeclaration{}, err
		}
		if err := p.parseParameterPortList(&mod); err != nil {
			return sv.ModuleDeclaration{}, err
		}
	}

	// ( port list )
	if tok, err := p.peek(0); err != nil {
		return sv.ModuleDeclaration{}, err
	} else if tok.Kind == lexer.LParen {
		if err := p.parsePortList(&mod); err != nil {
			return sv.ModuleDeclaration{}, err
		}
	}

	if _, err := p.expectKind(lexer.Semi, "module header"); err != nil {
		return sv.ModuleDeclaration{}, err
	}

	if err := p.parseModuleBody(&mod, nil); err != nil {
		return sv.ModuleDeclaration{}, err
	}

	// endmodule [: name]
	end, err := p.next()
	if err != nil {
		return sv.ModuleDeclaration{}, err
	}
	if !end.Is("endmodule") {
		return sv.ModuleDeclaration{}, p.errorf(end.Pos, "module "+name, "expected endmodule, found "+end.String())
	}
	if err := p.acceptEndLabel(); err != nil {
		return sv.ModuleDeclaration{}, err
	}

	p.resolvePorts(&mod)
	return mod, nil
}

// parsePackage parses package ... endpackage, extracting parameter and
// localparam declarations and skipping everything else balanced.
func (p *parser) parsePackage() (sv.PackageDeclaration, error) {
	p.dropComments()
	if _, err := p.next(); err != nil { // package
		return sv.PackageDeclaration{}, err
	}
	if ok, err := p.acceptKeyword("static"); err != nil {
		return sv.PackageDeclaration{}, err
	} else if !ok {
		if _, err := p.acceptKeyword("automatic"); err != nil {
			return sv.PackageDeclaration{}, err
		}
	}

	name, err := p.expectIdent("package header")
	if err != nil {
		return sv.PackageDeclaration{}, err
	}
	if _, err := p.expectKind(lexer.Semi, "package header"); err != nil {
		return sv.PackageDeclaration{}, err
	}

	pkg := sv.PackageDeclaration{Identifier: name, Parameters: []sv.Parameter{}}
	for {
		tok, err := p.peek(0)
		if err != nil {
			return sv.PackageDeclaration{}, err
		}
		switch {
		case tok.Kind == lexer.EOF:
			return sv.PackageDeclaration{}, p.errorf(tok.Pos, "package "+name, "missing endpackage")
		case tok.Is("endpackage"):
			if _, err := p.next(); err != nil {
				return sv.PackageDeclaration{}, err
			}
			if err := p.acceptEndLabel(); err != nil {
				return sv.PackageDeclaration{}, err
			}
			return pkg, nil
		case tok.Is("parameter") || tok.Is("localparam"):
			if err := p.parseParamDeclaration(&pkg.Parameters, "package "+name); err != nil {
				return sv.PackageDeclaration{}, err
			}
		default:
			if err := p.skipItem("package " + name); err != nil {
				return sv.PackageDeclaration{}, err
			}
		}
	}
}

// acceptEndLabel consumes an optional ": identifier" after an end
// keyword.
func (p *parser) acceptEndLabel() error {
	tok, err := p.peek(0)
	if err != nil {
		return err
	}
	if tok.Kind != lexer.Colon {
		return nil
	}
	if _, err := p.next(); err != nil {
		return err
	}
	_, err = p.expectIdent("end label")
	return err
}

// parseModuleBody walks body items until endmodule (left unconsumed) or,
// inside a generate scope, until the scope closer. labels is the stack of
// enclosing generate block labels, outermost first.
func (p *parser) parseModuleBody(mod *sv.ModuleDeclaration, labels []string) error {
	for {
		tok, err := p.peek(0)
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == lexer.EOF:
			return p.errorf(tok.Pos, "module "+mod.Identifier, "missing endmodule")

		case tok.Is("endmodule"):
			if len(labels) > 0 {
				return p.errorf(tok.Pos, "module "+mod.Identifier, "endmodule inside unclosed generate block")
			}
			return nil

		case tok.Is("end") || tok.Is("endgenerate"):
			// Closers are handled by the generate-scope caller.
			if len(labels) == 0 {
				return p.errorf(tok.Pos, "module "+mod.Identifier, "unmatched "+tok.Text)
			}
			return nil

		case tok.Is("parameter") || tok.Is("localparam"):
			if err := p.parseParamDeclaration(&mod.Parameters, "module "+mod.Identifier); err != nil {
				return err
			}

		case tok.Is("input") || tok.Is("output") || tok.Is("inout") || tok.Is("ref"):
			if err := p.parseBodyPortDeclaration(mod); err != nil {
				return err
			}

		case tok.Is("generate"):
			if _, err := p.next(); err != nil {
				return err
			}
			if err := p.parseGenerateRegion(mod, labels); err != nil {
				return err
			}

		case tok.Is("for") || tok.Is("if"):
			if err := p.parseGenerateConstruct(mod, labels); err != nil {
				return err
			}

		case tok.Is("begin"):
			if err := p.parseGenerateBlock(mod, labels); err != nil {
				return err
			}

		case isNetOrVarDeclStart(tok):
			if err := p.parseBodySignalDeclaration(mod); err != nil {
				return err
			}

		case isIdentTok(tok):
			isInst, err := p.looksLikeInstantiation()
			if err != nil {
				return err
			}
			if isInst {
				if err := p.parseInstantiation(mod, labels); err != nil {
					return err
				}
			} else {
				if err := p.skipItem("module " + mod.Identifier); err != nil {
					return err
				}
			}

		default:
			if err := p.skipItem("module " + mod.Identifier); err != nil {
				return err
			}
		}
	}
}

// parseGenerateRegion walks items between generate and endgenerate.
func (p *parser) parseGenerateRegion(mod *sv.ModuleDeclaration, labels []string) error {
	inner := append(append([]string{}, labels...), "")
	if err := p.parseModuleBody(mod, inner); err != nil {
		return err
	}
	tok, err := p.next()
	if err != nil {
		return err
	}
	if !tok.Is("endgenerate") {
		return p.errorf(tok.Pos, "generate region", "expected endgenerate, found "+tok.String())
	}
	return nil
}

// parseGenerateConstruct handles a body-level for/if generate construct:
// the header parentheses are consumed balanced, then the controlled block
// (or single item) is parsed transparently so instances inside keep their
// generate labels. else-chains of an if are walked the same way.
func (p *parser) parseGenerateConstruct(mod *sv.ModuleDeclaration, labels []string) error {
	for {
		if _, err := p.next(); err != nil { // for / if / else-if's if
			return err
		}
		if tok, err := p.peek(0); err != nil {
			return err
		} else if tok.Kind == lexer.LParen {
			if err := p.skipBalancedParens(); err != nil {
				return err
			}
		}
		if err := p.parseGenerateControlled(mod, labels); err != nil {
			return err
		}

		// else / else if chain.
		ok, err := p.acceptKeyword("else")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		tok, err := p.peek(0)
		if err != nil {
			return err
		}
		if tok.Is("if") {
			continue
		}
		if err := p.parseGenerateControlled(mod, labels); err != nil {
			return err
		}
		return nil
	}
}

// parseGenerateControlled parses the item controlled by a generate
// for/if/else: either a labeled begin/end block or a single body item.
func (p *parser) parseGenerateControlled(mod *sv.ModuleDeclaration, labels []string) error {
	tok, err := p.peek(0)
	if err != nil {
		return err
	}
	if tok.Is("begin") {
		return p.parseGenerateBlock(mod, labels)
	}
	return p.parseSingleBodyItem(mod, labels)
}

// parseGenerateBlock parses begin [: label] ... end [: label], pushing
// the label (if any) onto the hierarchy stack for instances inside.
func (p *parser) parseGenerateBlock(mod *sv.ModuleDeclaration, labels []string) error {
	if _, err := p.next(); err != nil { // begin
		return err
	}

	label := ""
	if tok, err := p.peek(0); err != nil {
		return err
	} else if tok.Kind == lexer.Colon {
		if _, err := p.next(); err != nil {
			return err
		}
		label, err = p.expectIdent("generate block label")
		if err != nil {
			return err
		}
	}

	// Unlabeled blocks push an empty segment that cleanLabels drops.
	inner := append(append([]string{}, labels...), label)

	if err := p.parseModuleBody(mod, inner); err != nil {
		return err
	}

	tok, err := p.next()
	if err != nil {
		return err
	}
	if !tok.Is("end") {
		return p.errorf(tok.Pos, "generate block", "expected end, found "+tok.String())
	}
	return p.acceptEndLabel()
}

// parseSingleBodyItem parses exactly one body item in a generate scope.
func (p *parser) parseSingleBodyItem(mod *sv.ModuleDeclaration, labels []string) error {
	tok, err := p.peek(0)
	if err != nil {
		return err
	}
	switch {
	case tok.Is("for") || tok.Is("if"):
		return p.parseGenerateConstruct(mod, labels)
	case tok.Is("begin"):
		return p.parseGenerateBlock(mod, labels)
	case tok.Is("parameter") || tok.Is("localparam"):
		return p.parseParamDeclaration(&mod.Parameters, "module "+mod.Identifier)
	case isIdentTok(tok):
		isInst, err := p.looksLikeInstantiation()
		if err != nil {
			return err
		}
		if isInst {
			return p.parseInstantiation(mod, labels)
		}
		return p.skipItem("module " + mod.Identifier)
	default:
		return p.skipItem("module " + mod.Identifier)
	}
}

// cleanLabels drops the unnamed scope markers from a generate label
// stack, keeping only real labels for the instance hierarchy.
func cleanLabels(labels []string) []string {
	out := []string{}
	for _, l := range labels {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
