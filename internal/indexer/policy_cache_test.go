package indexer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/prokie/sv-lint/internal/config"
	"github.com/prokie/sv-lint/internal/policy"
)

func TestPolicyCacheRoundTripAndValidity(t *testing.T) {
	dir := t.TempDir()
	policyDir := testPolicyDir(t)

	cfg := config.DefaultConfig()
	cfg.Standard = "2017"
	cfg.Lint.Rules = map[string]string{
		"undocumented_port": "warning",
	}
	thirdParty := map[string]bool{"third_party/fifo.sv": true}

	hash, err := policyConfigHash(cfg, thirdParty, policyDir)
	if err != nil {
		t.Fatalf("policyConfigHash error: %v", err)
	}

	entry := policyCacheEntry{
		Version:    policyCacheVersion,
		ConfigHash: hash,
		Files:      []string{"a.sv"},
		Result: policy.Result{
			Violations: []policy.Violation{
				{
					Rule:     "undocumented_port",
					Severity: "warning",
					File:     "a.sv",
					Item:     "a.clk",
					Message:  "Port 'clk' of module 'a' has no doc comment",
				},
			},
			Summary: policy.Summary{
				TotalViolations: 1,
				Warnings:        1,
			},
		},
	}

	if err := savePolicyCache(dir, entry); err != nil {
		t.Fatalf("savePolicyCache error: %v", err)
	}
	loaded, err := loadPolicyCache(dir)
	if err != nil {
		t.Fatalf("loadPolicyCache error: %v", err)
	}
	if !reflect.DeepEqual(entry, *loaded) {
		t.Fatalf("policy cache mismatch: expected %#v got %#v", entry, loaded)
	}
	if !policyCacheValid(loaded, hash, []string{"a.sv"}) {
		t.Fatalf("expected cache to be valid")
	}

	cfg.Standard = "2012"
	changedHash, err := policyConfigHash(cfg, thirdParty, policyDir)
	if err != nil {
		t.Fatalf("policyConfigHash error: %v", err)
	}
	if policyCacheValid(loaded, changedHash, []string{"a.sv"}) {
		t.Fatalf("expected cache to be invalid after config change")
	}
	if policyCacheValid(loaded, hash, []string{"a.sv", "b.sv"}) {
		t.Fatalf("expected cache to be invalid after file set change")
	}
}

func TestPolicyConfigHashTracksRegoSources(t *testing.T) {
	policyDir := t.TempDir()
	regoPath := filepath.Join(policyDir, "rules.rego")
	if err := os.WriteFile(regoPath, []byte("package sv.compliance\n"), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}

	cfg := config.DefaultConfig()
	before, err := policyConfigHash(cfg, nil, policyDir)
	if err != nil {
		t.Fatalf("policyConfigHash error: %v", err)
	}

	if err := os.WriteFile(regoPath, []byte("package sv.compliance\n\n# changed\n"), 0o644); err != nil {
		t.Fatalf("rewrite rego: %v", err)
	}
	after, err := policyConfigHash(cfg, nil, policyDir)
	if err != nil {
		t.Fatalf("policyConfigHash error: %v", err)
	}
	if before == after {
		t.Fatalf("expected hash to change when rego sources change")
	}
}

func TestClearPolicyCache(t *testing.T) {
	dir := t.TempDir()
	entry := policyCacheEntry{
		Version:    policyCacheVersion,
		ConfigHash: "hash",
		Files:      []string{"a.sv"},
		Result:     policy.Result{},
	}
	if err := savePolicyCache(dir, entry); err != nil {
		t.Fatalf("savePolicyCache error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "policy_cache.json")); err != nil {
		t.Fatalf("expected cache file to exist: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Analysis.Cache.Dir = dir
	if _, err := ClearPolicyCache(dir, cfg); err != nil {
		t.Fatalf("ClearPolicyCache error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "policy_cache.json")); !os.IsNotExist(err) {
		t.Fatalf("expected cache file to be removed, got err: %v", err)
	}
}
