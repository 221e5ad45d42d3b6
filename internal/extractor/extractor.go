// Package extractor turns one SystemVerilog source file into its
// declaration set: modules, packages, their parameters, ports, and
// instantiations. It is a shallow declaration parser, not an elaborator:
// expressions stay as source text, instance targets stay as names, and
// attributes only elaboration could settle are marked IMPLICIT.
//
// Extraction is fail-fast. A file either yields a complete sv.Data or a
// single structured error (IoError, LexError, PreprocessError,
// ParseError); there is no partial output.
package extractor

import (
	"unicode/utf8"

	"github.com/prokie/sv-lint/internal/lexer"
	"github.com/prokie/sv-lint/internal/preprocess"
	"github.com/prokie/sv-lint/internal/sv"
)

// Extractor extracts declaration data from SystemVerilog files. An
// Extractor holds no per-file state, so one instance may serve many
// goroutines, each extraction owning its own lexer, macro table, and
// parser.
type Extractor struct {
	source preprocess.Source
}

// New creates an Extractor whose `include resolution searches the
// including file's directory and then includeDirs in order.
func New(includeDirs ...string) *Extractor {
	return &Extractor{source: &preprocess.DirSource{IncludeDirs: includeDirs}}
}

// NewWithSource creates an Extractor over a caller-supplied storage
// collaborator. Tests and in-memory callers use this to avoid the disk.
func NewWithSource(src preprocess.Source) *Extractor {
	return &Extractor{source: src}
}

// Extract reads and parses one file and returns its declaration set.
func (e *Extractor) Extract(path string) (sv.Data, error) {
	text, err := e.source.ReadFile(path)
	if err != nil {
		return sv.Data{}, &sv.IoError{Path: path, Msg: "cannot read file", Err: err}
	}
	return e.ExtractSource(text, path)
}

// ExtractSource parses source text directly, stamping records with path.
func (e *Extractor) ExtractSource(text, path string) (sv.Data, error) {
	if !utf8.ValidString(text) {
		return sv.Data{}, &sv.IoError{Path: path, Msg: "file is not valid UTF-8"}
	}

	pp := preprocess.New(lexer.New(text, path), path, e.source)
	p := newParser(pp, path)

	data := sv.Data{Modules: []sv.ModuleDeclaration{}, Packages: []sv.PackageDeclaration{}}
	for {
		tok, err := p.peek(0)
		if err != nil {
			return sv.Data{}, err
		}
		switch {
		case tok.Kind == lexer.EOF:
			return data, nil
		case tok.Is("module") || tok.Is("macromodule"):
			mod, err := p.parseModule()
			if err != nil {
				return sv.Data{}, err
			}
			mod.Filepath = path
			data.Modules = append(data.Modules, mod)
		case tok.Is("package"):
			pkg, err := p.parsePackage()
			if err != nil {
				return sv.Data{}, err
			}
			pkg.Filepath = path
			data.Packages = append(data.Packages, pkg)
		default:
			// File-level items outside module/package scope (imports,
			// typedefs, bind directives, classes) are not extracted.
			if err := p.skipFileItem(); err != nil {
				return sv.Data{}, err
			}
		}
	}
}
