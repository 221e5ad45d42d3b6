package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prokie/sv-lint/internal/facts"
	"github.com/prokie/sv-lint/internal/policy"
)

func findPolicyDir(t *testing.T) string {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	dir := start
	for {
		candidate := filepath.Join(dir, "policies", "compliance.rego")
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Join(dir, "policies")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("policies dir not found from %s", start)
		}
		dir = parent
	}
}

func evaluate(t *testing.T, tables facts.Tables) *policy.Result {
	t.Helper()
	engine, err := policy.New(findPolicyDir(t))
	if err != nil {
		t.Fatalf("load policies: %v", err)
	}
	result, err := engine.Evaluate(tables)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return result
}

func hasRule(result *policy.Result, rule string) bool {
	for _, v := range result.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

func collectRules(result *policy.Result) []string {
	rules := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		rules = append(rules, v.Rule)
	}
	return rules
}

func TestShippedRulesFlagViolations(t *testing.T) {
	tables := facts.BuildTables([]facts.FileFacts{{File: "bad.sv"}}, nil, nil, []facts.SymbolRow{
		{Name: "core", Kind: "module", File: "bad.sv"},
	})
	tables.Modules = append(tables.Modules, facts.ModuleRow{
		Name: "BadName", File: "bad.sv", Documented: true,
	})
	tables.Ports = append(tables.Ports,
		facts.PortRow{Module: "BadName", Name: "d", Direction: "IMPLICIT", DataKind: "IMPLICIT", File: "bad.sv"},
		facts.PortRow{Module: "BadName", Name: "q", Direction: "Output", DataKind: "IMPLICIT", File: "bad.sv"},
	)
	tables.Parameters = append(tables.Parameters, facts.ParameterRow{
		Scope: "BadName", ScopeKind: "module", Name: "width", Kind: "Parameter", File: "bad.sv",
	})
	tables.Instances = append(tables.Instances, facts.InstanceRow{
		Module: "BadName", Name: "u_x", Target: "missing_mod", Path: "BadName.u_x", File: "bad.sv",
	})

	result := evaluate(t, tables)

	for _, rule := range []string{
		"implicit_port_direction",
		"implicit_port_kind",
		"undocumented_port",
		"module_naming",
		"parameter_naming",
		"unresolved_instance",
	} {
		if !hasRule(result, rule) {
			t.Fatalf("expected rule %q, got %v", rule, collectRules(result))
		}
	}

	if result.Summary.TotalViolations != len(result.Violations) {
		t.Fatalf("summary total %d does not match %d violations",
			result.Summary.TotalViolations, len(result.Violations))
	}
	if result.Summary.Errors == 0 {
		t.Fatalf("implicit direction should count as error: %+v", result.Summary)
	}
}

func TestCleanFactsProduceNoViolations(t *testing.T) {
	tables := facts.BuildTables([]facts.FileFacts{{File: "ok.sv"}}, nil, nil, []facts.SymbolRow{
		{Name: "fifo", Kind: "module", File: "ok.sv"},
	})
	tables.Modules = append(tables.Modules, facts.ModuleRow{
		Name: "fifo", File: "ok.sv", Documented: true, NumPorts: 1,
	})
	tables.Ports = append(tables.Ports, facts.PortRow{
		Module: "fifo", Name: "clk", Direction: "Input", DataKind: "Net",
		DataType: "Logic", NetType: "Wire", Documented: true, File: "ok.sv",
	})
	tables.Parameters = append(tables.Parameters, facts.ParameterRow{
		Scope: "fifo", ScopeKind: "module", Name: "WIDTH", Kind: "Parameter",
		Value: "8", HasDefault: true, Documented: true, File: "ok.sv",
	})
	tables.Instances = append(tables.Instances, facts.InstanceRow{
		Module: "fifo", Name: "u_self", Target: "fifo", Path: "fifo.u_self", File: "ok.sv",
	})

	result := evaluate(t, tables)
	if len(result.Violations) != 0 {
		t.Fatalf("expected no violations, got %v", collectRules(result))
	}
	if result.Summary.TotalViolations != 0 {
		t.Fatalf("expected empty summary, got %+v", result.Summary)
	}
}

func TestThirdPartyFilesSuppressStyleRules(t *testing.T) {
	tables := facts.BuildTables(
		[]facts.FileFacts{{File: "vendor.sv"}},
		nil,
		map[string]bool{"vendor.sv": true},
		nil,
	)
	tables.Modules = append(tables.Modules, facts.ModuleRow{
		Name: "VendorIP", File: "vendor.sv",
	})
	tables.Ports = append(tables.Ports, facts.PortRow{
		Module: "VendorIP", Name: "clk", Direction: "Input", DataKind: "Net", File: "vendor.sv",
	})

	result := evaluate(t, tables)
	if hasRule(result, "module_naming") || hasRule(result, "undocumented_port") {
		t.Fatalf("third-party file should suppress style rules, got %v", collectRules(result))
	}
}

func TestImplicitDirectionFlaggedEvenForThirdParty(t *testing.T) {
	tables := facts.BuildTables(
		[]facts.FileFacts{{File: "vendor.sv"}},
		nil,
		map[string]bool{"vendor.sv": true},
		nil,
	)
	tables.Ports = append(tables.Ports, facts.PortRow{
		Module: "ip", Name: "d", Direction: "IMPLICIT", File: "vendor.sv",
	})

	result := evaluate(t, tables)
	if !hasRule(result, "implicit_port_direction") {
		t.Fatalf("implicit direction must be reported regardless of library, got %v", collectRules(result))
	}
}

func TestNewFailsWithoutPolicies(t *testing.T) {
	if _, err := policy.New(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty policy dir")
	}
}
