package facts

import (
	"sort"
	"strings"

	"github.com/prokie/sv-lint/internal/config"
	"github.com/prokie/sv-lint/internal/sv"
)

// Tables is the relational fact model the policy engine consumes.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Files       []FileRow       `json:"files"`
	Modules     []ModuleRow     `json:"modules"`
	Packages    []PackageRow    `json:"packages"`
	Ports       []PortRow       `json:"ports"`
	Parameters  []ParameterRow  `json:"parameters"`
	Instances   []InstanceRow   `json:"instances"`
	Connections []ConnectionRow `json:"connections"`
	Symbols     []SymbolRow     `json:"symbols"`
}

type FileRow struct {
	Path         string `json:"path"`
	Library      string `json:"library"`
	IsThirdParty bool   `json:"is_third_party"`
}

type ModuleRow struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	Documented bool   `json:"documented"`
	NumPorts   int    `json:"num_ports"`
	NumParams  int    `json:"num_params"`
}

type PackageRow struct {
	Name      string `json:"name"`
	File      string `json:"file"`
	NumParams int    `json:"num_params"`
}

type PortRow struct {
	Module     string `json:"module"`
	Name       string `json:"name"`
	Direction  string `json:"direction"`
	DataKind   string `json:"datakind"`
	DataType   string `json:"datatype"`
	NetType    string `json:"nettype"`
	Signedness string `json:"signedness"`
	Packed     string `json:"packed"`
	Unpacked   string `json:"unpacked"`
	Documented bool   `json:"documented"`
	File       string `json:"file"`
}

type ParameterRow struct {
	Scope      string `json:"scope"`
	ScopeKind  string `json:"scope_kind"` // "module" or "package"
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	DataType   string `json:"datatype"`
	Value      string `json:"value"`
	HasDefault bool   `json:"has_default"`
	Documented bool   `json:"documented"`
	File       string `json:"file"`
}

type InstanceRow struct {
	Module string `json:"module"` // enclosing module
	Name   string `json:"name"`   // instance identifier
	Target string `json:"target"` // instantiated module reference
	Path   string `json:"path"`   // dotted hierarchical path
	File   string `json:"file"`
}

type ConnectionRow struct {
	Instance   string `json:"instance"` // hierarchical instance path
	Port       string `json:"port"`     // "" for positional
	Expr       string `json:"expr"`
	Positional bool   `json:"positional"`
	File       string `json:"file"`
}

// SymbolRow is the cross-file symbol table the indexer builds: every
// module and package definition, by name.
type SymbolRow struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "module" or "package"
	File string `json:"file"`
}

// FileFacts pairs one source file with its extracted declaration set.
type FileFacts struct {
	File string
	Data sv.Data
}

// BuildTables flattens per-file declaration sets into the relational model.
func BuildTables(facts []FileFacts, fileLibs map[string]config.FileLibraryInfo, thirdParty map[string]bool, symbols []SymbolRow) Tables {
	tables := emptyTables()

	seenFiles := make(map[string]bool)
	for _, f := range facts {
		if !seenFiles[f.File] {
			seenFiles[f.File] = true
			libName := ""
			if info, ok := fileLibs[f.File]; ok {
				libName = info.LibraryName
			}
			tables.Files = append(tables.Files, FileRow{
				Path:         f.File,
				Library:      libName,
				IsThirdParty: thirdParty[f.File],
			})
		}

		for _, m := range f.Data.Modules {
			tables.Modules = append(tables.Modules, ModuleRow{
				Name:       m.Identifier,
				File:       f.File,
				Documented: len(m.Comments) > 0,
				NumPorts:   len(m.Ports),
				NumParams:  len(m.Parameters),
			})

			for _, p := range m.Ports {
				tables.Ports = append(tables.Ports, portRow(m.Identifier, p, f.File))
			}
			for _, param := range m.Parameters {
				tables.Parameters = append(tables.Parameters, paramRow(m.Identifier, "module", param, f.File))
			}
			for _, inst := range m.Instances {
				tables.Instances = append(tables.Instances, InstanceRow{
					Module: m.Identifier,
					Name:   lastSegment(inst.Hierarchy),
					Target: inst.ModuleIdentifier,
					Path:   inst.HierarchicalInstance,
					File:   f.File,
				})
				for _, conn := range inst.Connections {
					tables.Connections = append(tables.Connections, ConnectionRow{
						Instance:   inst.HierarchicalInstance,
						Port:       conn.Port,
						Expr:       conn.Expr,
						Positional: conn.Port == "",
						File:       f.File,
					})
				}
			}
		}

		for _, pkg := range f.Data.Packages {
			tables.Packages = append(tables.Packages, PackageRow{
				Name:      pkg.Identifier,
				File:      f.File,
				NumParams: len(pkg.Parameters),
			})
			for _, param := range pkg.Parameters {
				tables.Parameters = append(tables.Parameters, paramRow(pkg.Identifier, "package", param, f.File))
			}
		}
	}

	if len(symbols) > 0 {
		tables.Symbols = append(tables.Symbols, symbols...)
	}

	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}

func portRow(module string, p sv.Port, file string) PortRow {
	row := PortRow{
		Module:     module,
		Name:       p.Identifier,
		Direction:  string(p.Direction),
		DataKind:   string(p.DataKind),
		DataType:   string(p.DataType),
		Packed:     dimsText(p.PackedDimensions),
		Unpacked:   unpackedText(p.UnpackedDimensions),
		Documented: len(p.Comment) > 0,
		File:       file,
	}
	if p.NetType != nil {
		row.NetType = string(*p.NetType)
	}
	if p.Signedness != nil {
		row.Signedness = string(*p.Signedness)
	}
	return row
}

func paramRow(scope, scopeKind string, p sv.Parameter, file string) ParameterRow {
	row := ParameterRow{
		Scope:      scope,
		ScopeKind:  scopeKind,
		Name:       p.Identifier,
		Kind:       string(p.ParamKind),
		HasDefault: p.Expression != nil,
		Documented: len(p.Comment) > 0,
		File:       file,
	}
	if p.DataType != nil {
		row.DataType = string(*p.DataType)
	}
	if p.Expression != nil {
		row.Value = *p.Expression
	}
	return row
}

func dimsText(dims []sv.PackedDimension) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = d.String()
	}
	return strings.Join(parts, "")
}

func unpackedText(dims []sv.UnpackedDimension) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = d.String()
	}
	return strings.Join(parts, "")
}

func lastSegment(hierarchy []string) string {
	if len(hierarchy) == 0 {
		return ""
	}
	return hierarchy[len(hierarchy)-1]
}
