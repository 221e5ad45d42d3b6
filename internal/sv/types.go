// Package sv defines the declaration data model produced by the extractor.
//
// Every record is built once during a single parse pass and is immutable
// afterwards. Expressions and dimension bounds are kept as unevaluated
// source text because their values may depend on parameters that only
// elaboration could resolve.
package sv

import (
	"fmt"
	"strings"
)

// Data is the per-file result: every module and package declared in one
// source file, in textual order of first appearance.
type Data struct {
	Modules  []ModuleDeclaration  `json:"modules"`
	Packages []PackageDeclaration `json:"packages"`
}

// ModuleDeclaration describes one module and its declaration surface.
type ModuleDeclaration struct {
	Identifier string      `json:"identifier"`
	Parameters []Parameter `json:"parameters"`
	Ports      []Port      `json:"ports"`
	Instances  []Instance  `json:"instances"`
	Filepath   string      `json:"filepath"`
	Comments   []string    `json:"comments"`
}

// PackageDeclaration describes one package and its parameters.
type PackageDeclaration struct {
	Identifier string      `json:"identifier"`
	Parameters []Parameter `json:"parameters"`
	Filepath   string      `json:"filepath"`
}

// Parameter describes a parameter or localparam declaration.
// Expression is nil when the declaration carries no default value.
// NumBits is set only when every packed bound is a literal integer or the
// base type has a fixed width; it is never a computed guess.
type Parameter struct {
	Identifier             string              `json:"identifier"`
	Expression             *string             `json:"expression"`
	ParamKind              ParamKind           `json:"paramtype"`
	DataType               *DataType           `json:"datatype"`
	DataTypeOverridable    bool                `json:"datatype_overridable"`
	ClassID                *string             `json:"classid"`
	Signedness             *Signedness         `json:"signedness"`
	SignednessOverridable  bool                `json:"signedness_overridable"`
	NumBits                *uint64             `json:"num_bits"`
	PackedDimensions       []PackedDimension   `json:"packed_dimensions"`
	UnpackedDimensions     []UnpackedDimension `json:"unpacked_dimensions"`
	Comment                []string            `json:"comment"`
}

// Port describes one module port. Attributes the source leaves open and
// that the default rules cannot settle without elaboration carry the
// Implicit sentinel instead of a guessed value.
type Port struct {
	Identifier         string              `json:"identifier"`
	Direction          PortDirection       `json:"direction"`
	DataKind           DataKind            `json:"datakind"`
	DataType           DataType            `json:"datatype"`
	ClassID            *string             `json:"classid"`
	NetType            *NetType            `json:"nettype"`
	Signedness         *Signedness         `json:"signedness"`
	PackedDimensions   []PackedDimension   `json:"packed_dimensions"`
	UnpackedDimensions []UnpackedDimension `json:"unpacked_dimensions"`
	Comment            []string            `json:"comment"`
}

// Instance records one module instantiation. ModuleIdentifier is a named
// reference only; resolving it to a declaration in another file is the
// indexer's job, never the extractor's.
type Instance struct {
	ModuleIdentifier     string       `json:"module_identifier"`
	HierarchicalInstance string       `json:"hierarchical_instance"`
	Hierarchy            []string     `json:"hierarchy"`
	Connections          []Connection `json:"connections"`
}

// Connection is one port hookup of an instance, exactly as written.
// Positional connections carry an empty Port name.
type Connection struct {
	Port string `json:"port"`
	Expr string `json:"expr"`
}

// PackedDimension is a bit-range qualifier, bounds kept as source text.
type PackedDimension struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// UnpackedDimension is an array dimension outside the packed vector.
// Right is nil for single-expression dimensions such as [DEPTH].
type UnpackedDimension struct {
	Left  string  `json:"left"`
	Right *string `json:"right"`
}

func (d PackedDimension) String() string {
	return fmt.Sprintf("[%s:%s]", d.Left, d.Right)
}

func (d UnpackedDimension) String() string {
	if d.Right == nil {
		return fmt.Sprintf("[%s]", d.Left)
	}
	return fmt.Sprintf("[%s:%s]", d.Left, *d.Right)
}

// HierarchicalPath joins hierarchy segments with dots, producing the
// instance path used in reports, e.g. "top.gen_cores.u_core".
func HierarchicalPath(segments []string) string {
	return strings.Join(segments, ".")
}
