package extractor

import (
	"github.com/prokie/sv-lint/internal/lexer"
	"github.com/prokie/sv-lint/internal/sv"
)

// rawPort is the pre-resolution record of a port. Header entries,
// inherited attributes, and body refinements all land here; the resolver
// turns the accumulated record into an sv.Port once the module closes.
type rawPort struct {
	name     string
	pos      sv.Position
	comments []string

	dir   sv.PortDirection // "" when the source never wrote one
	netKw string           // net type keyword, "" when none
	isVar bool
	spec  typeSpec

	unpacked []sv.UnpackedDimension

	// ansi: fully declared in the header. headerBare: name-only header
	// entry awaiting a body declaration. inherited: attributes copied
	// from the previous header entry, still overridable by the body.
	ansi       bool
	headerBare bool
	inherited  bool
	refined    bool

	// `default_nettype in effect where the port was declared.
	defaultNet string
}

func (p *parser) findRawPort(name string) *rawPort {
	for i := range p.rawPorts {
		if p.rawPorts[i].name == name {
			return &p.rawPorts[i]
		}
	}
	return nil
}

func (p *parser) appendRawPort(r rawPort, ctx string) error {
	if p.findRawPort(r.name) != nil {
		return p.errorf(r.pos, ctx, "duplicate port "+r.name)
	}
	p.rawPorts = append(p.rawPorts, r)
	return nil
}

// parsePortList parses the header port list ( ... ), ANSI entries and
// name-only non-ANSI entries alike.
func (p *parser) parsePortList(mod *sv.ModuleDeclaration) error {
	ctx := "port list of " + mod.Identifier
	if _, err := p.expectKind(lexer.LParen, ctx); err != nil {
		return err
	}
	if tok, err := p.peek(0); err != nil {
		return err
	} else if tok.Kind == lexer.RParen {
		_, err := p.next()
		return err
	}

	var prev *rawPort
	for {
		if err := p.parsePortEntry(ctx, &prev); err != nil {
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

// parsePortEntry parses one header entry. prev carries the last fully
// declared entry so name-only and direction-less entries can inherit
// its attributes, as the language requires for comma runs.
func (p *parser) parsePortEntry(ctx string, prev **rawPort) error {
	// Peek first: filling the lookahead skims any comment run into the
	// pending buffer, and this entry claims it.
	tok, err := p.peek(0)
	if err != nil {
		return err
	}
	comments := p.takeComments()

	switch {
	case tok.Kind == lexer.Dot:
		// Port expression header: .name(expr). Recorded by name only.
		return p.parsePortExpression(ctx, comments, prev)

	case tok.Is("input") || tok.Is("output") || tok.Is("inout") || tok.Is("ref"):
		dirTok, err := p.next()
		if err != nil {
			return err
		}
		return p.parseDeclaredPortEntry(ctx, directionFor(dirTok.Text), dirTok.Pos, comments, prev)

	case tok.Is("interface"):
		return p.parseInterfacePort(ctx, comments, prev)

	case isIdentTok(tok):
		next, err := p.peek(1)
		if err != nil {
			return err
		}
		if next.Kind == lexer.Dot {
			return p.parseInterfacePort(ctx, comments, prev)
		}
		if isIdentTok(next) || next.Kind == lexer.ColonColon {
			// Type reference without a direction keyword.
			return p.parseUndirectedTypedEntry(ctx, tok.Pos, comments, prev)
		}
		return p.parseBarePortEntry(ctx, comments, prev)

	default:
		// Net type, var, data type keyword, signing, or packed
		// dimension without a direction keyword.
		return p.parseUndirectedTypedEntry(ctx, tok.Pos, comments, prev)
	}
}

// parseUndirectedTypedEntry handles a header entry with type information
// but no direction keyword: the direction is inherited from the previous
// entry, or left open for a first port.
func (p *parser) parseUndirectedTypedEntry(ctx string, pos sv.Position, comments []string, prev **rawPort) error {
	dir := sv.PortDirection("")
	if *prev != nil {
		dir = (*prev).dir
	}
	return p.parseDeclaredPortEntry(ctx, dir, pos, comments, prev)
}

// parseBarePortEntry handles a name-only entry: inherit from the
// previous declared entry when there is one, otherwise record a
// provisional port awaiting its body declaration.
func (p *parser) parseBarePortEntry(ctx string, comments []string, prev **rawPort) error {
	name, err := p.expectIdent(ctx)
	if err != nil {
		return err
	}
	pos := p.last.Pos
	udims, err := p.parseUnpackedDims(ctx)
	if err != nil {
		return err
	}
	if err := p.discardDefaultValue(ctx); err != nil {
		return err
	}

	r := rawPort{
		name:       name,
		pos:        pos,
		comments:   comments,
		unpacked:   udims,
		defaultNet: p.pp.DefaultNetType(),
	}
	if *prev != nil {
		r.dir = (*prev).dir
		r.netKw = (*prev).netKw
		r.isVar = (*prev).isVar
		r.spec = (*prev).spec
		r.inherited = true
	} else {
		r.headerBare = true
	}
	return p.appendRawPort(r, ctx)
}

// parseDeclaredPortEntry parses [net|var] [type spec] name [dims]
// [= default] and records a fully declared header entry.
func (p *parser) parseDeclaredPortEntry(ctx string, dir sv.PortDirection, pos sv.Position, comments []string, prev **rawPort) error {
	netKw, isVar, spec, err := p.parsePortTypePrefix(ctx)
	if err != nil {
		return err
	}
	name, err := p.expectIdent(ctx)
	if err != nil {
		return err
	}
	udims, err := p.parseUnpackedDims(ctx)
	if err != nil {
		return err
	}
	if err := p.discardDefaultValue(ctx); err != nil {
		return err
	}

	r := rawPort{
		name:       name,
		pos:        pos,
		comments:   comments,
		dir:        dir,
		netKw:      netKw,
		isVar:      isVar,
		spec:       spec,
		unpacked:   udims,
		ansi:       true,
		defaultNet: p.pp.DefaultNetType(),
	}
	if err := p.appendRawPort(r, ctx); err != nil {
		return err
	}
	// prev holds a copy: later appends may move the backing array, and
	// inheritance only ever reads the header-time attributes anyway.
	cp := r
	*prev = &cp
	return nil
}

// parsePortExpression handles .name(expr) header entries.
func (p *parser) parsePortExpression(ctx string, comments []string, prev **rawPort) error {
	if _, err := p.next(); err != nil { // dot
		return err
	}
	name, err := p.expectIdent(ctx)
	if err != nil {
		return err
	}
	pos := p.last.Pos
	if tok, err := p.peek(0); err != nil {
		return err
	} else if tok.Kind == lexer.LParen {
		if err := p.skipBalancedParens(); err != nil {
			return err
		}
	}

	unsupported := sv.TypeUnsupported
	r := rawPort{
		name:       name,
		pos:        pos,
		comments:   comments,
		spec:       typeSpec{explicit: true, dataType: &unsupported},
		ansi:       true,
		defaultNet: p.pp.DefaultNetType(),
	}
	*prev = nil
	return p.appendRawPort(r, ctx)
}

// parseInterfacePort handles iface.modport name, interface.modport name,
// and interface name entries. Only the declaration shape is recorded.
func (p *parser) parseInterfacePort(ctx string, comments []string, prev **rawPort) error {
	first, err := p.next() // interface keyword or interface type name
	if err != nil {
		return err
	}
	ref := identText(first)
	if tok, err := p.peek(0); err != nil {
		return err
	} else if tok.Kind == lexer.Dot {
		if _, err := p.next(); err != nil {
			return err
		}
		modport, err := p.expectIdent(ctx)
		if err != nil {
			return err
		}
		ref += "." + modport
	}

	name, err := p.expectIdent(ctx)
	if err != nil {
		return err
	}
	pos := p.last.Pos
	udims, err := p.parseUnpackedDims(ctx)
	if err != nil {
		return err
	}

	unsupported := sv.TypeUnsupported
	r := rawPort{
		name:       name,
		pos:        pos,
		comments:   comments,
		spec:       typeSpec{explicit: true, dataType: &unsupported, classID: &ref},
		unpacked:   udims,
		ansi:       true,
		defaultNet: p.pp.DefaultNetType(),
	}
	*prev = nil
	return p.appendRawPort(r, ctx)
}

// parsePortTypePrefix parses the optional net type or var keyword and
// the data type spec that precede a declared port name.
func (p *parser) parsePortTypePrefix(ctx string) (netKw string, isVar bool, spec typeSpec, err error) {
	tok, err := p.peek(0)
	if err != nil {
		return "", false, typeSpec{}, err
	}
	if tok.Kind == lexer.Keyword {
		if _, ok := sv.NetTypeFromKeyword(tok.Text); ok {
			if _, err := p.next(); err != nil {
				return "", false, typeSpec{}, err
			}
			netKw = tok.Text
		} else if tok.Is("var") {
			if _, err := p.next(); err != nil {
				return "", false, typeSpec{}, err
			}
			isVar = true
		}
	}

	starts, err := p.startsTypeSpec()
	if err != nil {
		return "", false, typeSpec{}, err
	}
	if starts {
		spec, err = p.parseTypeSpec(ctx)
		if err != nil {
			return "", false, typeSpec{}, err
		}
	}
	return netKw, isVar, spec, nil
}

// discardDefaultValue consumes an optional "= expr" port default.
func (p *parser) discardDefaultValue(ctx string) error {
	tok, err := p.peek(0)
	if err != nil {
		return err
	}
	if tok.Kind != lexer.Assign {
		return nil
	}
	if _, err := p.next(); err != nil {
		return err
	}
	_, err = p.collectBalanced(ctx, func(t lexer.Token) bool {
		return t.Kind == lexer.Comma || t.Kind == lexer.RParen || t.Kind == lexer.Semi
	})
	return err
}

// parseBodyPortDeclaration parses a non-ANSI direction declaration in
// the module body and merges it into the matching header entry. A port
// already fully declared in the header cannot be declared again.
func (p *parser) parseBodyPortDeclaration(mod *sv.ModuleDeclaration) error {
	ctx := "module " + mod.Identifier
	comments := p.takeComments()

	dirTok, err := p.next()
	if err != nil {
		return err
	}
	dir := directionFor(dirTok.Text)

	netKw, isVar, spec, err := p.parsePortTypePrefix(ctx)
	if err != nil {
		return err
	}

	for {
		name, err := p.expectIdent(ctx)
		if err != nil {
			return err
		}
		pos := p.last.Pos
		udims, err := p.parseUnpackedDims(ctx)
		if err != nil {
			return err
		}
		if err := p.discardDefaultValue(ctx); err != nil {
			return err
		}

		if r := p.findRawPort(name); r != nil {
			if (r.ansi && !r.inherited) || r.refined {
				return p.errorf(pos, ctx, "port "+name+" already declared")
			}
			r.dir = dir
			r.netKw = netKw
			r.isVar = isVar
			r.spec = spec
			if len(udims) > 0 {
				r.unpacked = udims
			}
			if len(comments) > 0 {
				r.comments = comments
			}
			r.refined = true
			r.defaultNet = p.pp.DefaultNetType()
		} else {
			// Direction declared for a name the header never listed;
			// record it anyway so the report shows the declaration.
			r := rawPort{
				name:       name,
				pos:        pos,
				comments:   comments,
				dir:        dir,
				netKw:      netKw,
				isVar:      isVar,
				spec:       spec,
				unpacked:   udims,
				refined:    true,
				defaultNet: p.pp.DefaultNetType(),
			}
			p.rawPorts = append(p.rawPorts, r)
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

// parseBodySignalDeclaration parses a net or variable declaration in the
// module body. When a declared name matches a header port that still
// lacks kind or type information, the declaration completes it; other
// names are plain internal signals and are not recorded.
func (p *parser) parseBodySignalDeclaration(mod *sv.ModuleDeclaration) error {
	ctx := "module " + mod.Identifier
	p.dropComments()

	netKw, isVar, spec, err := p.parsePortTypePrefix(ctx)
	if err != nil {
		return err
	}
	if netKw == "" && !isVar && !spec.explicit {
		// Not a declaration shape after all.
		return p.skipItem(ctx)
	}

	for {
		tok, err := p.peek(0)
		if err != nil {
			return err
		}
		if !isIdentTok(tok) {
			// Declaration with a shape this parser does not model
			// (e.g. an assignment pattern); skip the rest.
			return p.skipItem(ctx)
		}
		name, err := p.expectIdent(ctx)
		if err != nil {
			return err
		}
		udims, err := p.parseUnpackedDims(ctx)
		if err != nil {
			return err
		}
		if tok, err := p.peek(0); err != nil {
			return err
		} else if tok.Kind == lexer.Assign {
			if _, err := p.next(); err != nil {
				return err
			}
			if _, err := p.collectBalanced(ctx, func(t lexer.Token) bool {
				return t.Kind == lexer.Comma || t.Kind == lexer.Semi
			}); err != nil {
				return err
			}
		}

		if r := p.findRawPort(name); r != nil && !r.ansi {
			if r.netKw == "" && !r.isVar {
				r.netKw = netKw
				r.isVar = isVar
			}
			if !r.spec.explicit && spec.explicit {
				r.spec = spec
			}
			if len(r.unpacked) == 0 {
				r.unpacked = udims
			}
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

func directionFor(kw string) sv.PortDirection {
	switch kw {
	case "input":
		return sv.DirectionInput
	case "output":
		return sv.DirectionOutput
	case "inout":
		return sv.DirectionInout
	case "ref":
		return sv.DirectionRef
	}
	return sv.DirectionImplicit
}

// isNetOrVarDeclStart reports whether a body keyword opens a net or
// variable declaration that may complete a non-ANSI port.
func isNetOrVarDeclStart(tok lexer.Token) bool {
	if tok.Kind != lexer.Keyword {
		return false
	}
	if _, ok := sv.NetTypeFromKeyword(tok.Text); ok {
		return true
	}
	if _, ok := sv.DataTypeFromKeyword(tok.Text); ok {
		return true
	}
	return tok.Text == "var"
}
