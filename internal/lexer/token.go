package lexer

import (
	"fmt"

	"github.com/prokie/sv-lint/internal/sv"
)

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Ident
	EscapedIdent
	SystemIdent
	Keyword
	Number
	String
	LineComment
	BlockComment
	Directive

	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Semi
	Comma
	Dot
	DotStar
	Hash
	At
	Colon
	ColonColon
	Question
	Assign
	Op
)

var kindNames = map[Kind]string{
	EOF:          "EOF",
	Ident:        "IDENT",
	EscapedIdent: "ESCAPED_IDENT",
	SystemIdent:  "SYSTEM_IDENT",
	Keyword:      "KEYWORD",
	Number:       "NUMBER",
	String:       "STRING",
	LineComment:  "LINE_COMMENT",
	BlockComment: "BLOCK_COMMENT",
	Directive:    "DIRECTIVE",
	LParen:       "LPAREN",
	RParen:       "RPAREN",
	LBracket:     "LBRACKET",
	RBracket:     "RBRACKET",
	LBrace:       "LBRACE",
	RBrace:       "RBRACE",
	Semi:         "SEMI",
	Comma:        "COMMA",
	Dot:          "DOT",
	DotStar:      "DOT_STAR",
	Hash:         "HASH",
	At:           "AT",
	Colon:        "COLON",
	ColonColon:   "COLON_COLON",
	Question:     "QUESTION",
	Assign:       "ASSIGN",
	Op:           "OP",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(k))
}

// Token is one lexical token with its source position. Text is the exact
// source spelling except for escaped identifiers, where the leading
// backslash is kept so the parser can recover the declared name.
type Token struct {
	Kind Kind
	Text string
	Pos  sv.Position

	// First marks the first token on a logical line. Backslash-continued
	// lines do not reset it; the preprocessor relies on this to delimit
	// `define replacement text.
	First bool
}

func (t Token) String() string {
	return fmt.Sprintf("{%s %q %s}", t.Kind, t.Text, t.Pos)
}

// Is reports whether the token is a keyword with the given spelling.
func (t Token) Is(kw string) bool {
	return t.Kind == Keyword && t.Text == kw
}

// IsComment reports whether the token is a line or block comment.
func (t Token) IsComment() bool {
	return t.Kind == LineComment || t.Kind == BlockComment
}

// keywords lists the reserved words the declaration parser reacts to,
// including the pair keywords used for balanced skipping of unsupported
// body constructs.
var keywords = map[string]bool{
	"module": true, "endmodule": true, "macromodule": true,
	"package": true, "endpackage": true,
	"interface": true, "endinterface": true,
	"program": true, "endprogram": true,
	"class": true, "endclass": true,
	"checker": true, "endchecker": true,
	"clocking": true, "endclocking": true,
	"config": true, "endconfig": true,
	"function": true, "endfunction": true,
	"task": true, "endtask": true,
	"property": true, "endproperty": true,
	"sequence": true, "endsequence": true,
	"covergroup": true, "endgroup": true,
	"primitive": true, "endprimitive": true,
	"specify": true, "endspecify": true,
	"generate": true, "endgenerate": true,
	"case": true, "casex": true, "casez": true, "endcase": true,
	"begin": true, "end": true,
	"fork": true, "join": true, "join_any": true, "join_none": true,
	"randsequence": true,

	"parameter": true, "localparam": true, "defparam": true,
	"input": true, "output": true, "inout": true, "ref": true,
	"wire": true, "uwire": true, "tri": true, "wor": true, "wand": true,
	"triand": true, "trior": true, "trireg": true, "tri0": true,
	"tri1": true, "supply0": true, "supply1": true,
	"logic": true, "reg": true, "bit": true, "byte": true,
	"integer": true, "int": true, "shortint": true, "longint": true,
	"time": true, "real": true, "shortreal": true, "realtime": true,
	"string": true, "enum": true, "struct": true, "union": true,
	"signed": true, "unsigned": true,
	"var": true, "type": true, "typedef": true, "genvar": true,
	"assign": true, "alias": true,
	"always": true, "always_comb": true, "always_ff": true,
	"always_latch": true, "initial": true, "final": true,
	"if": true, "else": true, "for": true, "foreach": true,
	"while": true, "do": true, "repeat": true, "forever": true,
	"import": true, "export": true, "virtual": true,
	"static": true, "automatic": true, "const": true,
	"modport": true, "timeunit": true, "timeprecision": true,
	"extern": true, "pure": true, "context": true,
	"assert": true, "assume": true, "cover": true, "restrict": true, "expect": true,
	"bind": true, "wait": true, "event": true,
	"posedge": true, "negedge": true, "edge": true,
	"return": true, "break": true, "continue": true,
	"unique": true, "unique0": true, "priority": true,
	"default": true, "disable": true, "force": true, "release": true,
	"deassign": true, "new": true, "null": true, "this": true, "super": true,
	"local": true, "protected": true, "rand": true, "randc": true,
	"constraint": true, "extends": true, "implements": true,
}

// openKeywords maps each block-opening keyword to its closer, used by the
// balanced skip of unsupported body constructs.
var openKeywords = map[string]string{
	"begin":        "end",
	"fork":         "join",
	"function":     "endfunction",
	"task":         "endtask",
	"case":         "endcase",
	"casex":        "endcase",
	"casez":        "endcase",
	"generate":     "endgenerate",
	"specify":      "endspecify",
	"property":     "endproperty",
	"sequence":     "endsequence",
	"covergroup":   "endgroup",
	"clocking":     "endclocking",
	"randsequence": "endsequence",
	"interface":    "endinterface",
	"class":        "endclass",
	"checker":      "endchecker",
	"primitive":    "endprimitive",
	"program":      "endprogram",
}

// CloserFor returns the closing keyword paired with an opening keyword.
func CloserFor(open string) (string, bool) {
	c, ok := openKeywords[open]
	return c, ok
}

// ForkClosers are the accepted closers of a fork block.
var ForkClosers = map[string]bool{"join": true, "join_any": true, "join_none": true}
