package indexer

import (
	"reflect"
	"testing"

	"github.com/prokie/sv-lint/internal/facts"
)

func TestFactTablesCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tables := facts.Tables{
		Files: []facts.FileRow{
			{Path: "a.sv", Library: "work", IsThirdParty: false},
		},
		Modules: []facts.ModuleRow{
			{Name: "a", File: "a.sv", NumPorts: 1},
		},
		Packages:    []facts.PackageRow{},
		Ports:       []facts.PortRow{},
		Parameters:  []facts.ParameterRow{},
		Instances:   []facts.InstanceRow{},
		Connections: []facts.ConnectionRow{},
		Symbols:     []facts.SymbolRow{},
	}

	if err := saveFactTablesCache(dir, tables); err != nil {
		t.Fatalf("saveFactTablesCache error: %v", err)
	}

	loaded, ok, err := loadFactTablesCache(dir)
	if err != nil {
		t.Fatalf("loadFactTablesCache error: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache to be present")
	}
	if !reflect.DeepEqual(tables, loaded) {
		t.Fatalf("tables mismatch: expected %#v got %#v", tables, loaded)
	}
}

func TestFactTablesCacheMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := loadFactTablesCache(dir)
	if err != nil {
		t.Fatalf("loadFactTablesCache error: %v", err)
	}
	if ok {
		t.Fatalf("expected no cache in empty directory")
	}
}
