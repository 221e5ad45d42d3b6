// Package preprocess expands compiler directives over the lexer's token
// stream: `define/`undef macros (object-like and function-like),
// `ifdef/`ifndef/`elsif/`else/`endif conditionals, and `include via the
// storage collaborator. The parser downstream only ever sees flattened
// tokens; macro names never survive expansion.
//
// A preprocessor instance owns its macro table and include chain and is
// used for exactly one extraction; nothing is shared between invocations.
package preprocess

import (
	"fmt"

	"github.com/prokie/sv-lint/internal/lexer"
	"github.com/prokie/sv-lint/internal/sv"
)

// maxExpandDepth bounds recursive macro expansion so that self-referential
// macros terminate with an error instead of hanging.
const maxExpandDepth = 128

// Source is the storage collaborator: it resolves an `include reference
// against the including file and fetches raw text. The preprocessor never
// touches the filesystem directly.
type Source interface {
	Resolve(fromFile, include string) (string, error)
	ReadFile(path string) (string, error)
}

type objMacro struct {
	tokens []lexer.Token
}

type funcMacro struct {
	params []string
	tokens []lexer.Token
}

type condFrame struct {
	// active: the region currently being emitted. parentActive: whether
	// the enclosing region was active. taken: a branch of this
	// conditional already matched.
	active       bool
	parentActive bool
	taken        bool
	inElse       bool
	pos          sv.Position
}

type frame struct {
	lx   *lexer.Lexer
	path string
}

type pending struct {
	tok   lexer.Token
	depth int
}

// Preprocessor flattens one file's token stream.
type Preprocessor struct {
	src    Source
	frames []frame // include stack, innermost last
	queue  []pending

	objMacros  map[string]objMacro
	funcMacros map[string]funcMacro
	conds      []condFrame

	open map[string]bool // files on the include chain, for cycle detection

	defaultNetType string // "wire" unless a `default_nettype changed it
}

// New creates a preprocessor over an already-lexed top file.
func New(lx *lexer.Lexer, path string, src Source) *Preprocessor {
	return &Preprocessor{
		src:            src,
		frames:         []frame{{lx: lx, path: path}},
		objMacros:      make(map[string]objMacro),
		funcMacros:     make(map[string]funcMacro),
		open:           map[string]bool{path: true},
		defaultNetType: "wire",
	}
}

// DefaultNetType returns the net type keyword currently in force from
// `default_nettype, or "none" when implicit nets are disabled.
func (pp *Preprocessor) DefaultNetType() string {
	return pp.defaultNetType
}

func (pp *Preprocessor) errorf(pos sv.Position, format string, args ...any) error {
	return &sv.PreprocessError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// nextRaw pulls one token without macro expansion, popping finished
// include frames.
func (pp *Preprocessor) nextRaw() (lexer.Token, int, error) {
	if n := len(pp.queue); n > 0 {
		p := pp.queue[n-1]
		pp.queue = pp.queue[:n-1]
		return p.tok, p.depth, nil
	}
	for {
		fr := &pp.frames[len(pp.frames)-1]
		tok, err := fr.lx.Next()
		if err != nil {
			return tok, 0, err
		}
		if tok.Kind == lexer.EOF && len(pp.frames) > 1 {
			delete(pp.open, fr.path)
			pp.frames = pp.frames[:len(pp.frames)-1]
			continue
		}
		return tok, 0, nil
	}
}

func (pp *Preprocessor) unget(toks []lexer.Token, depth int) {
	for i := len(toks) - 1; i >= 0; i-- {
		pp.queue = append(pp.queue, pending{tok: toks[i], depth: depth})
	}
}

func (pp *Preprocessor) active() bool {
	for _, c := range pp.conds {
		if !c.active {
			return false
		}
	}
	return true
}

// Next returns the next flattened token. Conditionally excluded regions
// are swallowed; macro invocations are replaced by their expansion.
func (pp *Preprocessor) Next() (lexer.Token, error) {
	for {
		tok, depth, err := pp.nextRaw()
		if err != nil {
			return tok, err
		}

		if tok.Kind == lexer.EOF {
			if len(pp.conds) > 0 {
				return tok, pp.errorf(pp.conds[len(pp.conds)-1].pos, "unterminated conditional directive")
			}
			return tok, nil
		}

		if tok.Kind == lexer.Directive {
			consumed, err := pp.handleDirective(tok)
			if err != nil {
				return tok, err
			}
			if consumed {
				continue
			}
			// Not a known directive: a macro invocation.
			if !pp.active() {
				continue
			}
			if err := pp.expandMacro(tok, depth); err != nil {
				return tok, err
			}
			continue
		}

		if !pp.active() {
			continue
		}
		return tok, nil
	}
}

// handleDirective processes a built-in directive, returning false when the
// token is not a built-in and should be treated as a macro invocation.
func (pp *Preprocessor) handleDirective(tok lexer.Token) (bool, error) {
	switch tok.Text {
	case "define":
		if !pp.active() {
			pp.skipLine()
			return true, nil
		}
		return true, pp.handleDefine(tok)
	case "undef":
		name, err := pp.directiveName(tok)
		if err != nil {
			return true, err
		}
		if pp.active() {
			delete(pp.objMacros, name)
			delete(pp.funcMacros, name)
		}
		return true, nil
	case "undefineall":
		if pp.active() {
			pp.objMacros = make(map[string]objMacro)
			pp.funcMacros = make(map[string]funcMacro)
		}
		return true, nil
	case "ifdef", "ifndef":
		name, err := pp.directiveName(tok)
		if err != nil {
			return true, err
		}
		defined := pp.isDefined(name)
		if tok.Text == "ifndef" {
			defined = !defined
		}
		parent := pp.active()
		pp.conds = append(pp.conds, condFrame{
			active:       parent && defined,
			parentActive: parent,
			taken:        defined,
			pos:          tok.Pos,
		})
		return true, nil
	case "elsif":
		name, err := pp.directiveName(tok)
		if err != nil {
			return true, err
		}
		if len(pp.conds) == 0 {
			return true, pp.errorf(tok.Pos, "`elsif without matching `ifdef")
		}
		c := &pp.conds[len(pp.conds)-1]
		if c.inElse {
			return true, pp.errorf(tok.Pos, "`elsif after `else")
		}
		match := !c.taken && pp.isDefined(name)
		c.active = c.parentActive && match
		if match {
			c.taken = true
		}
		return true, nil
	case "else":
		if len(pp.conds) == 0 {
			return true, pp.errorf(tok.Pos, "`else without matching `ifdef")
		}
		c := &pp.conds[len(pp.conds)-1]
		if c.inElse {
			return true, pp.errorf(tok.Pos, "duplicate `else")
		}
		c.inElse = true
		c.active = c.parentActive && !c.taken
		return true, nil
	case "endif":
		if len(pp.conds) == 0 {
			return true, pp.errorf(tok.Pos, "`endif without matching `ifdef")
		}
		pp.conds = pp.conds[:len(pp.conds)-1]
		return true, nil
	case "include":
		if !pp.active() {
			pp.skipLine()
			return true, nil
		}
		return true, pp.handleInclude(tok)
	case "default_nettype":
		next, _, err := pp.nextRaw()
		if err != nil {
			return true, err
		}
		if next.Kind != lexer.Keyword && next.Kind != lexer.Ident {
			return true, pp.errorf(tok.Pos, "expected net type after `default_nettype")
		}
		if pp.active() {
			pp.defaultNetType = next.Text
		}
		return true, nil
	case "resetall":
		if pp.active() {
			pp.defaultNetType = "wire"
		}
		return true, nil
	case "timescale":
		pp.skipLine()
		return true, nil
	case "celldefine", "endcelldefine", "nounconnected_drive":
		return true, nil
	}
	return false, nil
}

func (pp *Preprocessor) isDefined(name string) bool {
	if _, ok := pp.objMacros[name]; ok {
		return true
	}
	_, ok := pp.funcMacros[name]
	return ok
}

// directiveName reads the identifier argument of a directive.
func (pp *Preprocessor) directiveName(dir lexer.Token) (string, error) {
	tok, _, err := pp.nextRaw()
	if err != nil {
		return "", err
	}
	if (tok.Kind != lexer.Ident && tok.Kind != lexer.Keyword) || tok.First {
		return "", pp.errorf(dir.Pos, "expected name after `%s", dir.Text)
	}
	return tok.Text, nil
}

// skipLine discards tokens to the end of the current logical line.
func (pp *Preprocessor) skipLine() {
	for {
		tok, depth, err := pp.nextRaw()
		if err != nil {
			return
		}
		if tok.Kind == lexer.EOF || tok.First {
			pp.unget([]lexer.Token{tok}, depth)
			return
		}
	}
}

func (pp *Preprocessor) handleDefine(dir lexer.Token) error {
	name, err := pp.directiveName(dir)
	if err != nil {
		return err
	}

	var body []lexer.Token
	for {
		tok, depth, err := pp.nextRaw()
		if err != nil {
			return err
		}
		if tok.Kind == lexer.EOF || tok.First {
			pp.unget([]lexer.Token{tok}, depth)
			break
		}
		if tok.IsComment() {
			continue
		}
		body = append(body, tok)
	}

	// A parenthesized run of plain identifiers directly after the name is
	// a parameter list; anything else is object-like replacement text.
	if params, rest, ok := splitParams(body); ok {
		pp.funcMacros[name] = funcMacro{params: params, tokens: rest}
		delete(pp.objMacros, name)
		return nil
	}
	pp.objMacros[name] = objMacro{tokens: body}
	delete(pp.funcMacros, name)
	return nil
}

func splitParams(body []lexer.Token) (params []string, rest []lexer.Token, ok bool) {
	if len(body) == 0 || body[0].Kind != lexer.LParen {
		return nil, nil, false
	}
	i := 1
	if i < len(body) && body[i].Kind == lexer.RParen {
		return []string{}, body[i+1:], true
	}
	for {
		if i >= len(body) || body[i].Kind != lexer.Ident {
			return nil, nil, false
		}
		params = append(params, body[i].Text)
		i++
		if i >= len(body) {
			return nil, nil, false
		}
		switch body[i].Kind {
		case lexer.Comma:
			i++
		case lexer.RParen:
			return params, body[i+1:], true
		default:
			return nil, nil, false
		}
	}
}

func (pp *Preprocessor) expandMacro(tok lexer.Token, depth int) error {
	if depth+1 > maxExpandDepth {
		return pp.errorf(tok.Pos, "macro expansion depth exceeded expanding `%s", tok.Text)
	}

	if m, ok := pp.objMacros[tok.Text]; ok {
		out := make([]lexer.Token, len(m.tokens))
		for i, t := range m.tokens {
			t.Pos = tok.Pos
			t.First = false
			out[i] = t
		}
		pp.unget(out, depth+1)
		return nil
	}

	if m, ok := pp.funcMacros[tok.Text]; ok {
		args, err := pp.readMacroArguments(tok)
		if err != nil {
			return err
		}
		if len(args) != len(m.params) {
			return pp.errorf(tok.Pos, "macro `%s expects %d arguments, got %d", tok.Text, len(m.params), len(args))
		}
		byName := make(map[string][]lexer.Token, len(m.params))
		for i, p := range m.params {
			byName[p] = args[i]
		}
		var out []lexer.Token
		for _, t := range m.tokens {
			if t.Kind == lexer.Ident {
				if arg, isParam := byName[t.Text]; isParam {
					for _, a := range arg {
						a.Pos = tok.Pos
						a.First = false
						out = append(out, a)
					}
					continue
				}
			}
			t.Pos = tok.Pos
			t.First = false
			out = append(out, t)
		}
		pp.unget(out, depth+1)
		return nil
	}

	return pp.errorf(tok.Pos, "undefined macro `%s", tok.Text)
}

// readMacroArguments consumes "(...)" after a function-like macro name,
// splitting on top-level commas and keeping nested groups intact.
func (pp *Preprocessor) readMacroArguments(name lexer.Token) ([][]lexer.Token, error) {
	tok, _, err := pp.nextRaw()
	if err != nil {
		return nil, err
	}
	if tok.Kind != lexer.LParen {
		return nil, pp.errorf(name.Pos, "macro `%s requires an argument list", name.Text)
	}

	var args [][]lexer.Token
	var cur []lexer.Token
	nesting := 0
	for {
		tok, _, err := pp.nextRaw()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Kind == lexer.EOF:
			return nil, pp.errorf(name.Pos, "unterminated argument list for macro `%s", name.Text)
		case tok.Kind == lexer.LParen || tok.Kind == lexer.LBracket || tok.Kind == lexer.LBrace:
			nesting++
			cur = append(cur, tok)
		case tok.Kind == lexer.RBracket || tok.Kind == lexer.RBrace:
			nesting--
			cur = append(cur, tok)
		case tok.Kind == lexer.RParen:
			if nesting == 0 {
				args = append(args, cur)
				return args, nil
			}
			nesting--
			cur = append(cur, tok)
		case tok.Kind == lexer.Comma && nesting == 0:
			args = append(args, cur)
			cur = nil
		default:
			cur = append(cur, tok)
		}
	}
}

func (pp *Preprocessor) handleInclude(dir lexer.Token) error {
	tok, _, err := pp.nextRaw()
	if err != nil {
		return err
	}

	var name string
	switch {
	case tok.Kind == lexer.String:
		name = tok.Text[1 : len(tok.Text)-1]
	case tok.Kind == lexer.Op && tok.Text == "<":
		// <system/path.svh> form: glue tokens until the closing angle.
		for {
			t, _, err := pp.nextRaw()
			if err != nil {
				return err
			}
			if t.Kind == lexer.EOF || t.First {
				return pp.errorf(dir.Pos, "unterminated `include path")
			}
			if t.Kind == lexer.Op && t.Text == ">" {
				break
			}
			name += t.Text
		}
	default:
		return pp.errorf(dir.Pos, "expected file name after `include")
	}

	from := pp.frames[len(pp.frames)-1].path
	resolved, err := pp.src.Resolve(from, name)
	if err != nil {
		return pp.errorf(dir.Pos, "cannot resolve `include %q: %v", name, err)
	}
	if pp.open[resolved] {
		return pp.errorf(dir.Pos, "circular `include of %q", resolved)
	}
	text, err := pp.src.ReadFile(resolved)
	if err != nil {
		return pp.errorf(dir.Pos, "cannot read `include %q: %v", resolved, err)
	}

	pp.open[resolved] = true
	pp.frames = append(pp.frames, frame{lx: lexer.New(text, resolved), path: resolved})
	return nil
}
