package facts

import "testing"

func TestFilterTablesByFiles(t *testing.T) {
	tables := Tables{
		Files: []FileRow{
			{Path: "a.sv"},
			{Path: "b.sv"},
		},
		Modules: []ModuleRow{
			{Name: "a", File: "a.sv"},
			{Name: "b", File: "b.sv"},
		},
		Ports: []PortRow{
			{Module: "a", Name: "clk", File: "a.sv"},
			{Module: "b", Name: "rst", File: "b.sv"},
		},
		Symbols: []SymbolRow{
			{Name: "a", Kind: "module", File: "a.sv"},
			{Name: "b", Kind: "module", File: "b.sv"},
		},
	}

	files := map[string]bool{"a.sv": true}
	filtered := FilterTablesByFiles(tables, files)

	if len(filtered.Files) != 1 || filtered.Files[0].Path != "a.sv" {
		t.Fatalf("expected only a.sv file row, got %#v", filtered.Files)
	}
	if len(filtered.Modules) != 1 || filtered.Modules[0].File != "a.sv" {
		t.Fatalf("expected only a.sv module rows, got %#v", filtered.Modules)
	}
	if len(filtered.Ports) != 1 || filtered.Ports[0].File != "a.sv" {
		t.Fatalf("expected only a.sv port rows, got %#v", filtered.Ports)
	}
	if len(filtered.Symbols) != 1 || filtered.Symbols[0].File != "a.sv" {
		t.Fatalf("expected only a.sv symbol rows, got %#v", filtered.Symbols)
	}
}

func TestFilterDeltaByFilesEmpty(t *testing.T) {
	delta := Delta{
		Added: Tables{
			Files: []FileRow{{Path: "a.sv"}},
		},
		Removed: Tables{
			Files: []FileRow{{Path: "b.sv"}},
		},
	}

	filtered := FilterDeltaByFiles(delta, map[string]bool{})
	if len(filtered.Added.Files) != 0 || len(filtered.Removed.Files) != 0 {
		t.Fatalf("expected empty delta, got %#v", filtered)
	}
}
