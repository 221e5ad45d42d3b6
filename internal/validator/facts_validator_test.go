package validator

import (
	"testing"

	"github.com/prokie/sv-lint/internal/facts"
)

func TestFactsValidatorAcceptsValidTables(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}

	tables := facts.Tables{
		Files: []facts.FileRow{{
			Path:         "test/a.sv",
			Library:      "work",
			IsThirdParty: false,
		}},
		Modules: []facts.ModuleRow{{
			Name:     "my_module",
			File:     "test/a.sv",
			NumPorts: 2,
		}},
		Packages:    []facts.PackageRow{},
		Ports:       []facts.PortRow{},
		Parameters:  []facts.ParameterRow{},
		Instances:   []facts.InstanceRow{},
		Connections: []facts.ConnectionRow{},
		Symbols:     []facts.SymbolRow{},
	}

	if err := v.Validate(tables); err != nil {
		t.Fatalf("expected valid tables, got error: %v", err)
	}
}

func TestFactsValidatorRejectsInvalidTables(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}

	tables := facts.Tables{
		Files: []facts.FileRow{{
			Path:    "test/a.sv",
			Library: "work",
		}},
		Modules: []facts.ModuleRow{{
			Name: "", // empty name violates the schema
			File: "test/a.sv",
		}},
	}

	if err := v.Validate(tables); err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

func TestFactsValidatorRejectsBadScopeKind(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}

	tables := facts.Tables{
		Parameters: []facts.ParameterRow{{
			Scope:     "m",
			ScopeKind: "interface",
			Name:      "W",
			File:      "a.sv",
		}},
	}

	if err := v.Validate(tables); err == nil {
		t.Fatalf("expected scope_kind enum violation, got nil")
	}
}
