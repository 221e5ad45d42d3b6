package extractor

import (
	"strconv"
	"strings"

	"github.com/prokie/sv-lint/internal/lexer"
	"github.com/prokie/sv-lint/internal/sv"
)

// The resolver applies the language's default rules to the raw parse
// records. Every resolved attribute is one of three things: the declared
// value, the value a defaulting rule determines, or the Implicit
// sentinel when only elaboration could know. Nothing here guesses.

// resolvePorts converts the module's accumulated raw port records into
// their final form, in header order.
func (p *parser) resolvePorts(mod *sv.ModuleDeclaration) {
	for i := range p.rawPorts {
		mod.Ports = append(mod.Ports, resolvePort(&p.rawPorts[i]))
	}
}

func resolvePort(r *rawPort) sv.Port {
	port := sv.Port{
		Identifier:         r.name,
		ClassID:            r.spec.classID,
		PackedDimensions:   packedOrEmpty(r.spec.packed),
		UnpackedDimensions: unpackedOrEmpty(r.unpacked),
		Comment:            r.comments,
	}
	if port.Comment == nil {
		port.Comment = []string{}
	}

	if r.dir == "" {
		port.Direction = sv.DirectionImplicit
	} else {
		port.Direction = r.dir
	}

	// A name-only header entry that no body declaration completed is
	// entirely open.
	if r.headerBare && !r.refined && !r.spec.explicit && r.netKw == "" && !r.isVar {
		port.DataKind = sv.KindImplicit
		port.DataType = sv.TypeImplicit
		return port
	}

	ambiguousNet := false
	switch {
	case r.netKw != "":
		port.DataKind = sv.KindNet
		if nt, ok := sv.NetTypeFromKeyword(r.netKw); ok {
			port.NetType = &nt
		}
	case r.isVar:
		port.DataKind = sv.KindVariable
	default:
		switch port.Direction {
		case sv.DirectionInput, sv.DirectionInout:
			ambiguousNet = !applyDefaultNet(&port, r.defaultNet)
		case sv.DirectionOutput:
			if r.spec.dataType != nil {
				port.DataKind = sv.KindVariable
			} else {
				ambiguousNet = !applyDefaultNet(&port, r.defaultNet)
			}
		case sv.DirectionRef:
			port.DataKind = sv.KindVariable
		default:
			port.DataKind = sv.KindImplicit
		}
	}

	switch {
	case r.spec.dataType != nil:
		port.DataType = *r.spec.dataType
	case ambiguousNet:
		// `default_nettype none leaves an implicit net undeclarable;
		// recoverable ambiguity, not an error.
		port.DataType = sv.TypeImplicit
	case port.DataKind == sv.KindNet || port.DataKind == sv.KindVariable:
		port.DataType = sv.TypeLogic
	default:
		port.DataType = sv.TypeImplicit
	}

	port.Signedness = resolveSignedness(r.spec.signing, port.DataType)
	return port
}

// applyDefaultNet resolves an implicit net against the active
// `default_nettype. Returns false when the directive is none, leaving
// the caller to mark the port open.
func applyDefaultNet(port *sv.Port, defaultNet string) bool {
	if defaultNet == "none" {
		port.DataKind = sv.KindImplicit
		return false
	}
	if nt, ok := sv.NetTypeFromKeyword(defaultNet); ok {
		port.DataKind = sv.KindNet
		port.NetType = &nt
		return true
	}
	port.DataKind = sv.KindImplicit
	return false
}

func resolveSignedness(explicit *sv.Signedness, dt sv.DataType) *sv.Signedness {
	if explicit != nil {
		return explicit
	}
	switch dt {
	case sv.TypeImplicit, sv.TypeUnsupported:
		return nil
	}
	if !dt.HasSignedness() {
		return nil
	}
	s := sv.SignednessUnsigned
	if dt.DefaultSigned() {
		s = sv.SignednessSigned
	}
	return &s
}

// resolveParameter builds the final parameter record from a run state,
// the declared name and dimensions, and the default expression tokens.
func resolveParameter(run *paramRun, name string, udims []sv.UnpackedDimension, exprToks []lexer.Token, hasDefault bool, comments []string) sv.Parameter {
	param := sv.Parameter{
		Identifier:         name,
		ParamKind:          run.kind,
		PackedDimensions:   []sv.PackedDimension{},
		UnpackedDimensions: unpackedOrEmpty(udims),
		Comment:            comments,
	}
	if param.Comment == nil {
		param.Comment = []string{}
	}
	if hasDefault {
		s := exprText(exprToks)
		param.Expression = &s
	}

	if run.isType {
		// Type parameter: the default, if any, is a type expression.
		param.DataTypeOverridable = run.kind == sv.ParamKindParameter
		return param
	}

	inferred := false
	var inferredSign *sv.Signedness
	switch {
	case run.spec != nil && run.spec.dataType != nil:
		param.DataType = run.spec.dataType
		param.ClassID = run.spec.classID
		param.PackedDimensions = packedOrEmpty(run.spec.packed)
	case run.spec != nil:
		// Signing or dimensions with an implicit base type.
		dt := sv.TypeLogic
		param.DataType = &dt
		param.PackedDimensions = packedOrEmpty(run.spec.packed)
	case run.kind == sv.ParamKindLocalParam:
		dt := sv.TypeLogic
		param.DataType = &dt
	case hasDefault:
		dt, sign := inferFromExpr(exprToks)
		param.DataType = &dt
		param.DataTypeOverridable = true
		inferred = true
		inferredSign = sign
	default:
		// parameter with neither type nor default: the override
		// decides everything.
		param.DataTypeOverridable = true
		return param
	}

	switch {
	case run.spec != nil && run.spec.signing != nil:
		param.Signedness = run.spec.signing
	case param.DataType != nil && !param.DataType.HasSignedness():
		// real, string, time and friends carry no signedness.
	case param.DataType != nil && *param.DataType == sv.TypeUnsupported:
		u := sv.SignednessUnsupported
		param.Signedness = &u
		param.SignednessOverridable = true
	case inferred:
		param.Signedness = inferredSign
		param.SignednessOverridable = true
	case param.DataType != nil:
		s := sv.SignednessUnsigned
		if param.DataType.DefaultSigned() {
			s = sv.SignednessSigned
		}
		param.Signedness = &s
		param.SignednessOverridable = true
	}

	param.NumBits = numBitsFor(param.DataType, param.PackedDimensions, exprToks, hasDefault, inferred)
	return param
}

// inferFromExpr classifies an untyped parameter's default expression by
// its first literal: integral literals make it a logic parameter, reals
// real, strings string, time literals time. An expression with no
// literal at all is beyond declaration-level analysis.
func inferFromExpr(toks []lexer.Token) (sv.DataType, *sv.Signedness) {
	for i, tok := range toks {
		switch tok.Kind {
		case lexer.String:
			return sv.TypeString, nil
		case lexer.Number:
			if isRealLiteral(tok.Text) {
				return sv.TypeReal, nil
			}
			if i+1 < len(toks) && toks[i+1].Kind == lexer.Ident && timeUnits[toks[i+1].Text] {
				return sv.TypeTime, nil
			}
			s := literalSignedness(tok.Text)
			return sv.TypeLogic, &s
		}
	}
	u := sv.SignednessUnsupported
	return sv.TypeUnsupported, &u
}

var timeUnits = map[string]bool{
	"s": true, "ms": true, "us": true, "ns": true, "ps": true, "fs": true,
}

func isRealLiteral(text string) bool {
	if strings.ContainsRune(text, '\'') {
		return false
	}
	return strings.ContainsAny(text, ".eE")
}

// literalSignedness: plain decimal literals are signed, based literals
// follow their s flag, unbased unsized literals are unsigned.
func literalSignedness(text string) sv.Signedness {
	tick := strings.IndexByte(text, '\'')
	if tick < 0 {
		return sv.SignednessSigned
	}
	rest := text[tick+1:]
	if rest != "" && (rest[0] == 's' || rest[0] == 'S') {
		return sv.SignednessSigned
	}
	return sv.SignednessUnsigned
}

// numBitsFor computes the declared width when it is knowable without
// elaboration: literal packed bounds, fixed-width base types, or the
// width a literal default implies. Anything else stays nil.
func numBitsFor(dt *sv.DataType, packed []sv.PackedDimension, exprToks []lexer.Token, hasDefault, inferred bool) *uint64 {
	if len(packed) > 0 {
		total := uint64(1)
		for _, dim := range packed {
			l, okL := parseIntLiteral(dim.Left)
			r, okR := parseIntLiteral(dim.Right)
			if !okL || !okR {
				return nil
			}
			width := l - r
			if width < 0 {
				width = -width
			}
			total *= uint64(width) + 1
		}
		return &total
	}
	if dt == nil {
		return nil
	}
	if w, ok := dt.FixedWidth(); ok {
		return &w
	}

	switch *dt {
	case sv.TypeString:
		if hasDefault && len(exprToks) == 1 && exprToks[0].Kind == lexer.String {
			n := uint64(len(exprToks[0].Text)-2) * 8
			return &n
		}
	case sv.TypeLogic, sv.TypeReg:
		if inferred {
			return literalWidth(exprToks)
		}
		one := uint64(1)
		return &one
	}
	return nil
}

// literalWidth finds the width the first integral literal carries: an
// explicit size prefix, 1 for unbased unsized, 32 otherwise.
func literalWidth(toks []lexer.Token) *uint64 {
	for _, tok := range toks {
		if tok.Kind != lexer.Number {
			continue
		}
		text := tok.Text
		tick := strings.IndexByte(text, '\'')
		switch {
		case tick > 0:
			if size, ok := parseIntLiteral(text[:tick]); ok && size > 0 {
				n := uint64(size)
				return &n
			}
			return nil
		case tick == 0:
			if len(text) == 2 {
				one := uint64(1)
				return &one
			}
			n := uint64(32)
			return &n
		default:
			n := uint64(32)
			return &n
		}
	}
	return nil
}

func parseIntLiteral(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func packedOrEmpty(dims []sv.PackedDimension) []sv.PackedDimension {
	if dims == nil {
		return []sv.PackedDimension{}
	}
	return dims
}

func unpackedOrEmpty(dims []sv.UnpackedDimension) []sv.UnpackedDimension {
	if dims == nil {
		return []sv.UnpackedDimension{}
	}
	return dims
}
