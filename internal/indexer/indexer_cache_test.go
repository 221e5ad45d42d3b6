package indexer

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/prokie/sv-lint/internal/config"
	"github.com/prokie/sv-lint/internal/extractor"
	"github.com/prokie/sv-lint/internal/sv"
)

type countingExtractor struct {
	inner FactsExtractor
	count *int32
}

func (c *countingExtractor) Extract(path string) (sv.Data, error) {
	atomic.AddInt32(c.count, 1)
	return c.inner.Extract(path)
}

func writeSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func testPolicyDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		candidate := filepath.Join(dir, "policies")
		if matches, _ := filepath.Glob(filepath.Join(candidate, "*.rego")); len(matches) > 0 {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("policies directory not found above %s", dir)
		}
		dir = parent
	}
}

func defaultTestConfig(files []string, cacheDir string, cacheEnabled bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Libraries = map[string]config.LibraryConfig{
		"work": {
			Files:        files,
			Exclude:      []string{},
			IsThirdParty: false,
		},
	}
	cfg.Lint.Rules = map[string]string{}
	cfg.Analysis.Cache.Dir = cacheDir
	enabled := cacheEnabled
	cfg.Analysis.Cache.Enabled = &enabled
	return cfg
}

func runIndexerForTest(t *testing.T, idx *Indexer, rootPath string) LintResult {
	t.Helper()
	idx.JSONOutput = true
	idx.PolicyDir = testPolicyDir(t)

	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe stdout: %v", err)
	}
	oldStdout := os.Stdout
	os.Stdout = writer

	runErr := idx.Run(rootPath)
	_ = writer.Close()
	os.Stdout = oldStdout

	if runErr != nil {
		t.Fatalf("lint failed: %v", runErr)
	}

	output, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	var result LintResult
	if err := json.Unmarshal(output, &result); err != nil {
		t.Fatalf("parse lint result: %v", err)
	}

	return result
}

func normalizeResult(result LintResult) LintResult {
	sort.Slice(result.Violations, func(i, j int) bool {
		if result.Violations[i].Rule != result.Violations[j].Rule {
			return result.Violations[i].Rule < result.Violations[j].Rule
		}
		if result.Violations[i].File != result.Violations[j].File {
			return result.Violations[i].File < result.Violations[j].File
		}
		return result.Violations[i].Item < result.Violations[j].Item
	})
	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})
	return result
}

func TestCacheReuseAvoidsReextract(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", "module a;\nendmodule\n")
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{file}, cacheDir, true)

	var count int32
	idx := NewWithConfig(cfg)
	idx.extractorFactory = func() FactsExtractor {
		return &countingExtractor{inner: extractor.New(), count: &count}
	}
	runIndexerForTest(t, idx, dir)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected 1 extract on first run, got %d", got)
	}

	var count2 int32
	idx2 := NewWithConfig(cfg)
	idx2.extractorFactory = func() FactsExtractor {
		return &countingExtractor{inner: extractor.New(), count: &count2}
	}
	runIndexerForTest(t, idx2, dir)
	if got := atomic.LoadInt32(&count2); got != 0 {
		t.Fatalf("expected 0 extracts on cached run, got %d", got)
	}
}

func TestCacheInvalidationOnChange(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", "module a;\nendmodule\n")
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{file}, cacheDir, true)

	idx := NewWithConfig(cfg)
	runIndexerForTest(t, idx, dir)

	// Modify file contents
	if err := os.WriteFile(file, []byte("module a; // change\nendmodule\n"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	var count int32
	idx2 := NewWithConfig(cfg)
	idx2.extractorFactory = func() FactsExtractor {
		return &countingExtractor{inner: extractor.New(), count: &count}
	}
	runIndexerForTest(t, idx2, dir)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected re-extract after change, got %d", got)
	}
}

func TestCacheInvalidationOnVersionChange(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", "module a;\nendmodule\n")
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{file}, cacheDir, true)

	idx := NewWithConfig(cfg)
	idx.cacheVersionOverride = &cacheVersions{parser: "p1", extractor: "e1"}
	runIndexerForTest(t, idx, dir)

	var count int32
	idx2 := NewWithConfig(cfg)
	idx2.cacheVersionOverride = &cacheVersions{parser: "p2", extractor: "e1"}
	idx2.extractorFactory = func() FactsExtractor {
		return &countingExtractor{inner: extractor.New(), count: &count}
	}
	runIndexerForTest(t, idx2, dir)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected re-extract after version change, got %d", got)
	}
}

func TestCachedRunMatchesFresh(t *testing.T) {
	dir := t.TempDir()
	file1 := writeSV(t, dir, "fifo.sv", "module fifo (\n  input logic clk,\n  output logic full\n);\nendmodule\n")
	file2 := writeSV(t, dir, "top.sv", "module top (\n  input logic clk\n);\n  logic full;\n  fifo u_fifo (.clk(clk), .full(full));\nendmodule\n")
	cacheDir := filepath.Join(dir, ".cache")

	cfgNoCache := defaultTestConfig([]string{file1, file2}, cacheDir, false)
	idxNoCache := NewWithConfig(cfgNoCache)
	fresh := normalizeResult(runIndexerForTest(t, idxNoCache, dir))

	cfgCache := defaultTestConfig([]string{file1, file2}, cacheDir, true)
	idxCache := NewWithConfig(cfgCache)
	cached := normalizeResult(runIndexerForTest(t, idxCache, dir))

	if fresh.Summary != cached.Summary {
		t.Fatalf("summary mismatch: fresh=%+v cached=%+v", fresh.Summary, cached.Summary)
	}
	if len(fresh.Violations) != len(cached.Violations) {
		t.Fatalf("violation count mismatch: fresh=%d cached=%d", len(fresh.Violations), len(cached.Violations))
	}
	for i := range fresh.Violations {
		if fresh.Violations[i] != cached.Violations[i] {
			t.Fatalf("violation mismatch at %d: fresh=%+v cached=%+v", i, fresh.Violations[i], cached.Violations[i])
		}
	}
}

func TestParseFailureDoesNotAbortRun(t *testing.T) {
	dir := t.TempDir()
	good := writeSV(t, dir, "good.sv", "module good;\nendmodule\n")
	bad := writeSV(t, dir, "bad.sv", "module bad (\n  input logic clk\n")
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{good, bad}, cacheDir, false)

	idx := NewWithConfig(cfg)
	result := runIndexerForTest(t, idx, dir)

	if len(result.ParseFailures) != 1 {
		t.Fatalf("expected 1 parse failure, got %d", len(result.ParseFailures))
	}
	failure := result.ParseFailures[0]
	if failure.File != bad {
		t.Fatalf("expected failure for %s, got %s", bad, failure.File)
	}
	if failure.Kind != "ParseError" {
		t.Fatalf("expected ParseError kind, got %s", failure.Kind)
	}
	if result.Stats.Modules != 1 {
		t.Fatalf("expected the good module to survive, got %d modules", result.Stats.Modules)
	}
}

func TestRuleSeverityOverride(t *testing.T) {
	dir := t.TempDir()
	// Implicit port direction is an error by default.
	file := writeSV(t, dir, "a.sv", "module a (d);\nendmodule\n")
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{file}, cacheDir, false)
	cfg.Lint.Rules = map[string]string{"implicit_port_direction": "warning"}

	idx := NewWithConfig(cfg)
	result := runIndexerForTest(t, idx, dir)

	found := false
	for _, v := range result.Violations {
		if v.Rule == "implicit_port_direction" {
			found = true
			if v.Severity != "warning" {
				t.Fatalf("expected overridden severity warning, got %s", v.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("expected implicit_port_direction violation")
	}
	if result.Summary.Errors != 0 {
		t.Fatalf("expected no errors after override, got %d", result.Summary.Errors)
	}
}

func TestDisabledRuleIsDropped(t *testing.T) {
	dir := t.TempDir()
	file := writeSV(t, dir, "a.sv", "module a (d);\nendmodule\n")
	cacheDir := filepath.Join(dir, ".cache")
	cfg := defaultTestConfig([]string{file}, cacheDir, false)
	cfg.Lint.Rules = map[string]string{"implicit_port_direction": "off"}

	idx := NewWithConfig(cfg)
	result := runIndexerForTest(t, idx, dir)

	for _, v := range result.Violations {
		if v.Rule == "implicit_port_direction" {
			t.Fatalf("expected disabled rule to be dropped, got %+v", v)
		}
	}
}
