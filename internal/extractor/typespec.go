package extractor

import (
	"github.com/prokie/sv-lint/internal/lexer"
	"github.com/prokie/sv-lint/internal/sv"
)

// typeSpec is the parsed data-type portion of a port or parameter
// declaration. dataType is nil for an implicit type (only signing or
// packed dimensions written, or nothing at all).
type typeSpec struct {
	explicit bool
	dataType *sv.DataType
	classID  *string
	signing  *sv.Signedness
	packed   []sv.PackedDimension
}

// startsTypeSpec reports whether the lookahead opens a data-type spec
// rather than a declared name. An identifier counts only when followed
// by another identifier or a scope operator, so a bare name is never
// mistaken for a type reference.
func (p *parser) startsTypeSpec() (bool, error) {
	tok, err := p.peek(0)
	if err != nil {
		return false, err
	}
	switch {
	case tok.Kind == lexer.LBracket:
		return true, nil
	case tok.Kind == lexer.Keyword:
		if _, ok := sv.DataTypeFromKeyword(tok.Text); ok {
			return true, nil
		}
		return tok.Is("signed") || tok.Is("unsigned"), nil
	case isIdentTok(tok):
		next, err := p.peek(1)
		if err != nil {
			return false, err
		}
		return isIdentTok(next) || next.Kind == lexer.ColonColon, nil
	}
	return false, nil
}

// parseTypeSpec parses [datatype] [signing] [packed dims]. Enum, struct,
// and union bodies are consumed balanced; only the category survives.
func (p *parser) parseTypeSpec(ctx string) (typeSpec, error) {
	var spec typeSpec
	for {
		tok, err := p.peek(0)
		if err != nil {
			return spec, err
		}
		switch {
		case tok.Kind == lexer.Keyword && spec.dataType == nil && spec.signing == nil && len(spec.packed) == 0:
			dt, ok := sv.DataTypeFromKeyword(tok.Text)
			if !ok {
				if tok.Is("signed") || tok.Is("unsigned") {
					break // handled below
				}
				return spec, nil
			}
			if _, err := p.next(); err != nil {
				return spec, err
			}
			spec.explicit = true
			spec.dataType = &dt
			if dt == sv.TypeEnum || dt == sv.TypeStruct || dt == sv.TypeUnion {
				if err := p.consumeAggregateBody(ctx); err != nil {
					return spec, err
				}
			}
			continue

		case isIdentTok(tok) && spec.dataType == nil && spec.signing == nil && len(spec.packed) == 0:
			ref, classed, err := p.parseTypeReference(ctx)
			if err != nil {
				return spec, err
			}
			spec.explicit = true
			dt := sv.TypeTypeRef
			if classed {
				dt = sv.TypeClass
			}
			spec.dataType = &dt
			spec.classID = &ref
			continue
		}

		switch {
		case tok.Is("signed"):
			if _, err := p.next(); err != nil {
				return spec, err
			}
			s := sv.SignednessSigned
			spec.explicit = true
			spec.signing = &s
		case tok.Is("unsigned"):
			if _, err := p.next(); err != nil {
				return spec, err
			}
			s := sv.SignednessUnsigned
			spec.explicit = true
			spec.signing = &s
		case tok.Kind == lexer.LBracket:
			dim, err := p.parsePackedDimension(ctx)
			if err != nil {
				return spec, err
			}
			spec.explicit = true
			spec.packed = append(spec.packed, dim)
		default:
			return spec, nil
		}
	}
}

// consumeAggregateBody eats the optional base type and the braced body
// of an enum, struct, or union declaration.
func (p *parser) consumeAggregateBody(ctx string) error {
	for {
		tok, err := p.peek(0)
		if err != nil {
			return err
		}
		switch tok.Kind {
		case lexer.LBrace:
			return p.skipBalancedBraces()
		case lexer.EOF:
			return p.errorf(tok.Pos, ctx, "unexpected end of file in type body")
		case lexer.Semi:
			return p.errorf(tok.Pos, ctx, "expected { before ;")
		}
		if _, err := p.next(); err != nil {
			return err
		}
	}
}

// parseTypeReference reads ident or pkg::ident (arbitrarily deep scope
// chains) and reports whether the reference was scope-qualified.
func (p *parser) parseTypeReference(ctx string) (string, bool, error) {
	name, err := p.expectIdent(ctx)
	if err != nil {
		return "", false, err
	}
	classed := false
	for {
		tok, err := p.peek(0)
		if err != nil {
			return "", false, err
		}
		if tok.Kind != lexer.ColonColon {
			return name, classed, nil
		}
		if _, err := p.next(); err != nil {
			return "", false, err
		}
		part, err := p.expectIdent(ctx)
		if err != nil {
			return "", false, err
		}
		name += "::" + part
		classed = true
	}
}

// parsePackedDimension parses [msb:lsb], bounds kept as text.
func (p *parser) parsePackedDimension(ctx string) (sv.PackedDimension, error) {
	if _, err := p.expectKind(lexer.LBracket, ctx); err != nil {
		return sv.PackedDimension{}, err
	}
	left, err := p.collectBalanced(ctx, func(t lexer.Token) bool {
		return t.Kind == lexer.Colon || t.Kind == lexer.RBracket
	})
	if err != nil {
		return sv.PackedDimension{}, err
	}
	tok, err := p.next()
	if err != nil {
		return sv.PackedDimension{}, err
	}
	dim := sv.PackedDimension{Left: exprText(left)}
	if tok.Kind == lexer.Colon {
		right, err := p.collectBalanced(ctx, func(t lexer.Token) bool {
			return t.Kind == lexer.RBracket
		})
		if err != nil {
			return sv.PackedDimension{}, err
		}
		dim.Right = exprText(right)
		if _, err := p.next(); err != nil { // ]
			return sv.PackedDimension{}, err
		}
	}
	return dim, nil
}

// parseUnpackedDims parses zero or more trailing [size] or [l:r]
// dimensions after a declared name.
func (p *parser) parseUnpackedDims(ctx string) ([]sv.UnpackedDimension, error) {
	var dims []sv.UnpackedDimension
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind != lexer.LBracket {
			return dims, nil
		}
		if _, err := p.next(); err != nil {
			return nil, err
		}
		left, err := p.collectBalanced(ctx, func(t lexer.Token) bool {
			return t.Kind == lexer.Colon || t.Kind == lexer.RBracket
		})
		if err != nil {
			return nil, err
		}
		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		dim := sv.UnpackedDimension{Left: exprText(left)}
		if sep.Kind == lexer.Colon {
			right, err := p.collectBalanced(ctx, func(t lexer.Token) bool {
				return t.Kind == lexer.RBracket
			})
			if err != nil {
				return nil, err
			}
			r := exprText(right)
			dim.Right = &r
			if _, err := p.next(); err != nil { // ]
				return nil, err
			}
		}
		dims = append(dims, dim)
	}
}
