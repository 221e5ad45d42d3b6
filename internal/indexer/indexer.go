package indexer

// =============================================================================
// INDEXER PHILOSOPHY: TRUST THE EXTRACTOR, VALIDATE WITH CUE
// =============================================================================
//
// The indexer sits between extraction and policy evaluation. Its job is to:
// 1. Aggregate declaration data from multiple files into a unified view
// 2. Build the cross-file symbol table (modules and packages)
// 3. Resolve instantiation targets between files
// 4. Flatten declarations into relational fact tables for OPA
//
// IMPORTANT: The indexer should NOT work around extraction bugs!
//
// If the indexer needs to "fix" or "clean up" extracted data, that's a sign
// that either:
// - The LEXER/PREPROCESSOR is mishandling a token stream (fix those first!)
// - The PARSER is missing a declaration production (fix the extractor second!)
//
// The CUE validator (internal/validator) catches schema mismatches between
// what we produce here and what the rego rules expect. If validation fails,
// it means our contract is broken - fix the source, don't suppress the error.
// =============================================================================

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prokie/sv-lint/internal/config"
	"github.com/prokie/sv-lint/internal/extractor"
	"github.com/prokie/sv-lint/internal/facts"
	"github.com/prokie/sv-lint/internal/policy"
	"github.com/prokie/sv-lint/internal/sv"
	"github.com/prokie/sv-lint/internal/validator"
)

// Indexer is the cross-file linker that builds the symbol table
// and resolves instantiation targets between SystemVerilog files.
type Indexer struct {
	// Configuration loaded from sv_lint.json
	Config *config.Config

	// Global symbol table: module/package name -> location
	Symbols *SymbolTable

	// Extracted declaration data from all files
	Facts []facts.FileFacts

	// Resolved library information (file -> library mapping)
	FileLibraries map[string]config.FileLibraryInfo

	// Third-party files (for suppressing warnings)
	ThirdPartyFiles map[string]bool

	// Verbose output
	Verbose bool

	// Progress output (lightweight, streaming)
	Progress bool

	// Trace output (progress + per-file declaration summaries)
	Trace bool

	// JSON output mode
	JSONOutput bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// Result of the last Run (for exit-code decisions by callers)
	Result *LintResult

	// Optional policy directory override (normally resolved by walking up
	// from the lint root)
	PolicyDir string

	// Optional extractor factory (for tests)
	extractorFactory func() FactsExtractor

	// Optional cache version override (for tests)
	cacheVersionOverride *cacheVersions
}

// LintResult is the structured result of running the linter
// This can be serialized to JSON for programmatic consumption
type LintResult struct {
	// Violations found by policy evaluation
	Violations []policy.Violation `json:"violations"`

	// Summary counts
	Summary ResultSummary `json:"summary"`

	// Extraction statistics
	Stats ExtractionStats `json:"stats"`

	// Per-file breakdown
	Files []FileResult `json:"files"`

	// Files that failed extraction, with the error taxonomy kind
	ParseFailures []ParseFailure `json:"parse_failures,omitempty"`
}

// ResultSummary provides aggregate violation counts
type ResultSummary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// ExtractionStats provides counts of extracted elements
type ExtractionStats struct {
	Files      int `json:"files"`
	Symbols    int `json:"symbols"`
	Modules    int `json:"modules"`
	Packages   int `json:"packages"`
	Ports      int `json:"ports"`
	Parameters int `json:"parameters"`
	Instances  int `json:"instances"`
}

// FileResult provides per-file violation counts
type FileResult struct {
	Path     string `json:"path"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
	Info     int    `json:"info"`
}

// ParseFailure represents a file that failed to extract. Kind is one of
// IoError, LexError, PreprocessError, ParseError.
type ParseFailure struct {
	File    string `json:"file"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SymbolTable holds all exported symbols across files
type SymbolTable struct {
	mu      sync.RWMutex
	symbols map[string]Symbol
}

// Symbol represents a design unit visible across files
type Symbol struct {
	Name string // module or package identifier
	Kind string // "module" or "package"
	File string // Source file path
}

// FactsExtractor abstracts extraction for caching tests
type FactsExtractor interface {
	Extract(path string) (sv.Data, error)
}

type cacheVersions struct {
	parser    string
	extractor string
}

// New creates a new Indexer with default configuration
func New() *Indexer {
	return &Indexer{
		Config: config.DefaultConfig(),
		Symbols: &SymbolTable{
			symbols: make(map[string]Symbol),
		},
		FileLibraries:   make(map[string]config.FileLibraryInfo),
		ThirdPartyFiles: make(map[string]bool),
	}
}

// NewWithConfig creates a new Indexer with the given configuration
func NewWithConfig(cfg *config.Config) *Indexer {
	idx := New()
	idx.Config = cfg
	return idx
}

func (idx *Indexer) newExtractor(rootPath string) FactsExtractor {
	if idx.extractorFactory != nil {
		return idx.extractorFactory()
	}
	return extractor.New(idx.Config.ResolveIncludeDirs(rootPath)...)
}

func (idx *Indexer) cacheVersions(rootPath string) cacheVersions {
	if idx.cacheVersionOverride != nil {
		return *idx.cacheVersionOverride
	}
	return computeCacheVersions(rootPath)
}

func (idx *Indexer) maxWorkers() int {
	if idx.Config != nil && idx.Config.Analysis.MaxParallelFiles > 0 {
		return idx.Config.Analysis.MaxParallelFiles
	}
	return runtime.NumCPU()
}

// registerSymbolsForData records the design units a file declares.
// SystemVerilog modules and packages live in a single global namespace,
// so the symbol key is the bare identifier, case-sensitive.
func (idx *Indexer) registerSymbolsForData(data sv.Data, filePath string) {
	for _, mod := range data.Modules {
		idx.Symbols.Add(Symbol{
			Name: mod.Identifier,
			Kind: "module",
			File: filePath,
		})
	}
	for _, pkg := range data.Packages {
		idx.Symbols.Add(Symbol{
			Name: pkg.Identifier,
			Kind: "package",
			File: filePath,
		})
	}
}

// Run executes the indexing pipeline
func (idx *Indexer) Run(rootPath string) error {
	runStart := time.Now()
	pipelineErrs := make([]error, 0)
	recordPipelineErr := func(err error) {
		pipelineErrs = append(pipelineErrs, err)
	}
	timing := openTimeline(runStart, idx.resolveTimingPath(rootPath))
	if err := timing.Err(); err != nil {
		recordPipelineErr(fmt.Errorf("timing output disabled: %w", err))
	}
	defer timing.Close()

	// 0. Load configuration if not already loaded
	if idx.Config == nil {
		cfg, err := config.Load(rootPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		idx.Config = cfg
	}

	// Reset per-run state
	idx.Symbols = &SymbolTable{symbols: make(map[string]Symbol)}
	idx.Facts = nil
	idx.FileLibraries = make(map[string]config.FileLibraryInfo)
	idx.ThirdPartyFiles = make(map[string]bool)

	// 1. Find all SystemVerilog files using configuration
	stepStart := time.Now()
	var files []string
	var err error

	if len(idx.Config.Libraries) > 0 || len(idx.Config.Files) > 0 {
		libs, resolveErr := idx.Config.ResolveLibraries(rootPath)
		if resolveErr != nil {
			return fmt.Errorf("resolve libraries: %w", resolveErr)
		}

		fileSet := make(map[string]bool)
		for _, lib := range libs {
			for _, f := range lib.Files {
				if !fileSet[f] {
					fileSet[f] = true
					files = append(files, f)

					idx.FileLibraries[f] = config.FileLibraryInfo{
						LibraryName:  lib.Name,
						IsThirdParty: lib.IsThirdParty,
					}

					if lib.IsThirdParty {
						idx.ThirdPartyFiles[f] = true
					}
				}
			}
		}

		if !idx.JSONOutput {
			fmt.Printf("Loaded configuration with %d libraries\n", len(libs))
			for _, lib := range libs {
				thirdParty := ""
				if lib.IsThirdParty {
					thirdParty = " (third-party)"
				}
				fmt.Printf("  %s: %d files%s\n", lib.Name, len(lib.Files), thirdParty)
			}
		}
	}

	// Fallback to directory scan if no files from config
	if len(files) == 0 {
		files, err = idx.findSourceFiles(rootPath)
		if err != nil {
			return fmt.Errorf("scanning files: %w", err)
		}
	}

	// Filter out ignored files
	var filteredFiles []string
	for _, f := range files {
		if !idx.Config.ShouldIgnoreFile(f) {
			filteredFiles = append(filteredFiles, f)
		}
	}
	files = filteredFiles

	if !idx.JSONOutput {
		fmt.Printf("Found %d SystemVerilog files\n", len(files))
	}
	scanDuration := time.Since(stepStart)
	timing.Stage("scan", stepStart, scanDuration, "")

	// 2. Pass 1: Bounded parallel extraction (with optional cache)
	stepStart = time.Now()
	ext := idx.newExtractor(rootPath)
	var cache *factsCache
	var cacheDir string
	if cacheEnabled(idx.Config) {
		cacheDir = resolveCacheDir(rootPath, idx.Config)
		versions := idx.cacheVersions(rootPath)
		cache = newFactsCache(cacheDir, versions.parser, versions.extractor)
		if err := cache.Load(); err != nil {
			recordPipelineErr(fmt.Errorf("cache disabled: %w", err))
			cache = nil
		}
	}
	var wg sync.WaitGroup
	var progressMu sync.Mutex
	progress := 0
	progressEnabled := (idx.Verbose || idx.Progress || idx.Trace) && !idx.JSONOutput
	if progressEnabled {
		fmt.Printf("\n=== Extraction Progress ===\n")
	}
	factsChan := make(chan facts.FileFacts, len(files))
	failureChan := make(chan ParseFailure, len(files))
	pipelineErrChan := make(chan error, len(files))
	var changedMu sync.Mutex
	changedFiles := make(map[string]bool)
	sem := make(chan struct{}, idx.maxWorkers())

	for _, file := range files {
		wg.Add(1)
		go func(f string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fileStart := time.Now()
			var contentHash string
			if cache != nil {
				h, err := hashFile(f)
				if err != nil {
					failureChan <- classifyExtractFailure(f, &sv.IoError{Path: f, Msg: "cannot hash file", Err: err})
					return
				}
				contentHash = h
				if data, ok, err := cache.Get(f, contentHash); err == nil && ok {
					factsChan <- facts.FileFacts{File: f, Data: data}
					idx.registerSymbolsForData(data, f)
					fileDuration := time.Since(fileStart)
					timing.File("extract", f, "cache_hit", fileStart, fileDuration)
					if progressEnabled {
						emitProgress(&progressMu, &progress, len(files), f, data, "cache hit", idx.Trace, fileDuration)
					}
					return
				} else if err != nil {
					pipelineErrChan <- fmt.Errorf("cache read failed for %s: %w", f, err)
				}
			}

			data, err := ext.Extract(f)
			if err != nil {
				failureChan <- classifyExtractFailure(f, err)
				return
			}
			if cache != nil && contentHash != "" {
				if err := cache.Put(f, contentHash, data); err != nil {
					pipelineErrChan <- fmt.Errorf("cache write failed for %s: %w", f, err)
				}
			}
			if cache != nil {
				changedMu.Lock()
				changedFiles[f] = true
				changedMu.Unlock()
			}
			fileDuration := time.Since(fileStart)
			timing.File("extract", f, "extracted", fileStart, fileDuration)
			if progressEnabled {
				emitProgress(&progressMu, &progress, len(files), f, data, "extracted", idx.Trace, fileDuration)
			}
			factsChan <- facts.FileFacts{File: f, Data: data}
			idx.registerSymbolsForData(data, f)
		}(file)
	}

	wg.Wait()
	close(factsChan)
	close(failureChan)
	close(pipelineErrChan)

	// Collect extraction failures; a broken file never aborts the run
	var parseFailures []ParseFailure
	for failure := range failureChan {
		parseFailures = append(parseFailures, failure)
	}
	sort.Slice(parseFailures, func(i, j int) bool {
		return parseFailures[i].File < parseFailures[j].File
	})
	for err := range pipelineErrChan {
		recordPipelineErr(err)
	}

	// Collect facts
	factsByFile := make(map[string]facts.FileFacts)
	for ff := range factsChan {
		idx.Facts = append(idx.Facts, ff)
		factsByFile[ff.File] = ff
	}
	sort.Slice(idx.Facts, func(i, j int) bool {
		return idx.Facts[i].File < idx.Facts[j].File
	})
	if cache != nil {
		if err := cache.Save(); err != nil {
			recordPipelineErr(fmt.Errorf("cache save failed: %w", err))
		}
	}
	extractDuration := time.Since(stepStart)
	timing.Stage("extract", stepStart, extractDuration, "")

	// Cache impact visualization (verbose/progress/trace)
	if cache != nil && progressEnabled && len(changedFiles) > 0 {
		fmt.Printf("\n=== Cache Impact ===\n")
		dependents := buildDependentsGraph(factsByFile, idx.Symbols)
		changedList := make([]string, 0, len(changedFiles))
		for f := range changedFiles {
			changedList = append(changedList, f)
		}
		sort.Strings(changedList)
		for _, f := range changedList {
			report := computeImpact(f, dependents)
			fmt.Print(formatImpactReport(report))
		}
	}

	if idx.Verbose {
		idx.printVerboseFacts()
	}

	// 3. Pass 2: Resolution (check instantiation targets)
	stepStart = time.Now()
	var unresolved []string
	if idx.Config.Analysis.ResolveInstances {
		for _, ff := range idx.Facts {
			for _, mod := range ff.Data.Modules {
				for _, inst := range mod.Instances {
					if !idx.Symbols.Has(inst.ModuleIdentifier) {
						unresolved = append(unresolved, fmt.Sprintf("%s: unresolved instance target %q", ff.File, inst.ModuleIdentifier))
					}
				}
			}
		}
	}
	if idx.Verbose && len(unresolved) > 0 {
		fmt.Printf("\n=== Verbose: Unresolved Instances ===\n")
		for _, line := range unresolved {
			fmt.Printf("  %s\n", line)
		}
	}
	resolveDuration := time.Since(stepStart)
	timing.Stage("resolve", stepStart, resolveDuration, "")

	// 4. Build and validate relational fact tables (CUE contract enforcement)
	stepStart = time.Now()
	var symbolRows []facts.SymbolRow
	if idx.Config.Analysis.ResolveInstances {
		symbolRows = idx.buildSymbolRows()
	}
	factTables := facts.BuildTables(idx.Facts, idx.FileLibraries, idx.ThirdPartyFiles, symbolRows)
	factFiles := sortedFactFiles(factTables)
	factsValidator, err := validator.NewFactsValidator()
	if err != nil {
		return fmt.Errorf("CRITICAL: Failed to initialize facts validator: %w", err)
	}
	if err := factsValidator.Validate(factTables); err != nil {
		return fmt.Errorf("CRITICAL: Fact table contract violation: %w", err)
	}
	factsValidateDuration := time.Since(stepStart)
	timing.Stage("facts_validate", stepStart, factsValidateDuration, "")

	// 5. Run policy evaluation and build result
	stepStart = time.Now()
	lintResult := LintResult{
		Violations:    []policy.Violation{},
		ParseFailures: parseFailures,
		Stats: ExtractionStats{
			Files:      len(files),
			Symbols:    idx.Symbols.Len(),
			Modules:    len(factTables.Modules),
			Packages:   len(factTables.Packages),
			Ports:      len(factTables.Ports),
			Parameters: len(factTables.Parameters),
			Instances:  len(factTables.Instances),
		},
		Files: []FileResult{},
	}

	policyDir, err := idx.resolvePolicyDir(rootPath)
	if err != nil {
		return fmt.Errorf("locate policy rules: %w", err)
	}

	policyCached := false
	policyUsedDaemon := false
	policyDelta := false

	if envBool("SV_POLICY_DAEMON") {
		if cache == nil {
			recordPipelineErr(fmt.Errorf("policy daemon requested but cache disabled"))
		}
		if result, usedDelta, err := runPolicyDaemon(policyDir, cacheDir, cache != nil, factTables, changedFiles); err != nil {
			recordPipelineErr(fmt.Errorf("policy daemon failed: %w", err))
		} else {
			idx.applyRuleConfig(result)
			applyPolicyResult(&lintResult, result)
			policyUsedDaemon = true
			policyDelta = usedDelta
		}
	}

	cacheHash := ""
	if !policyUsedDaemon && cache != nil {
		if hash, err := policyConfigHash(idx.Config, idx.ThirdPartyFiles, policyDir); err == nil {
			cacheHash = hash
		} else {
			recordPipelineErr(fmt.Errorf("policy cache disabled: %w", err))
		}
	}
	if !policyUsedDaemon && cache != nil && len(changedFiles) == 0 && cacheHash != "" {
		if entry, err := loadPolicyCache(cacheDir); err != nil {
			recordPipelineErr(fmt.Errorf("policy cache load failed: %w", err))
		} else if policyCacheValid(entry, cacheHash, factFiles) {
			result := entry.Result
			idx.applyRuleConfig(&result)
			applyPolicyResult(&lintResult, &result)
			policyCached = true
		}
	}

	if !policyCached && !policyUsedDaemon {
		policyEngine, err := policy.New(policyDir)
		if err != nil {
			return fmt.Errorf("initialize policy engine: %w", err)
		}
		result, err := policyEngine.Evaluate(factTables)
		if err != nil {
			return fmt.Errorf("policy evaluation failed: %w", err)
		}
		if cache != nil && cacheHash != "" {
			if err := savePolicyCache(cacheDir, policyCacheEntry{
				Version:    policyCacheVersion,
				ConfigHash: cacheHash,
				Files:      factFiles,
				Result:     *result,
			}); err != nil {
				recordPipelineErr(fmt.Errorf("policy cache save failed: %w", err))
			}
		}
		idx.applyRuleConfig(result)
		applyPolicyResult(&lintResult, result)
	}

	if cache != nil {
		if err := saveFactTablesCache(cacheDir, factTables); err != nil {
			recordPipelineErr(fmt.Errorf("fact tables cache save failed: %w", err))
		}
	}

	idx.Result = &lintResult

	// Output results
	if idx.JSONOutput {
		outputValidator, err := validator.NewOutputValidator()
		if err != nil {
			return fmt.Errorf("CRITICAL: Failed to initialize output validator: %w", err)
		}
		if err := outputValidator.Validate(lintResult); err != nil {
			return fmt.Errorf("CRITICAL: Output contract violation: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(lintResult); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	} else {
		idx.printTextReport(lintResult)
	}
	policyDuration := time.Since(stepStart)
	policyStatus := ""
	if policyUsedDaemon {
		if policyDelta {
			policyStatus = "daemon_delta"
		} else {
			policyStatus = "daemon_init"
		}
	} else if policyCached {
		policyStatus = "cached"
	}
	timing.Stage("policy", stepStart, policyDuration, policyStatus)

	if progressEnabled {
		fmt.Printf("\n=== Timing Summary ===\n")
		fmt.Printf("  scan:        %s\n", formatDuration(scanDuration))
		fmt.Printf("  extract:     %s\n", formatDuration(extractDuration))
		fmt.Printf("  resolve:     %s\n", formatDuration(resolveDuration))
		fmt.Printf("  facts:       %s\n", formatDuration(factsValidateDuration))
		if policyUsedDaemon {
			label := "daemon (init)"
			if policyDelta {
				label = "daemon (delta)"
			}
			fmt.Printf("  policy:      %s (%s)\n", label, formatDuration(policyDuration))
		} else if policyCached {
			fmt.Printf("  policy:      cached (%s)\n", formatDuration(policyDuration))
		} else {
			fmt.Printf("  policy:      %s\n", formatDuration(policyDuration))
		}
		fmt.Printf("  total:       %s\n", formatDuration(time.Since(runStart)))
	}
	timing.Stage("total", runStart, time.Since(runStart), "")

	if len(pipelineErrs) > 0 {
		return fmt.Errorf("pipeline errors:\n%s", formatPipelineErrors(pipelineErrs))
	}
	return nil
}

func (idx *Indexer) printVerboseFacts() {
	fmt.Printf("\n=== Verbose: Extracted Ports ===\n")
	for _, ff := range idx.Facts {
		for _, mod := range ff.Data.Modules {
			for _, p := range mod.Ports {
				fmt.Printf("  %s.%s: direction=%q kind=%q type=%q\n",
					mod.Identifier, p.Identifier, string(p.Direction), string(p.DataKind), string(p.DataType))
			}
		}
	}
	fmt.Printf("\n=== Verbose: Parameters ===\n")
	for _, ff := range idx.Facts {
		for _, mod := range ff.Data.Modules {
			for _, p := range mod.Parameters {
				value := ""
				if p.Expression != nil {
					value = fmt.Sprintf(" = %s", *p.Expression)
				}
				fmt.Printf("  %s.%s: %s%s\n", mod.Identifier, p.Identifier, string(p.ParamKind), value)
			}
		}
		for _, pkg := range ff.Data.Packages {
			for _, p := range pkg.Parameters {
				value := ""
				if p.Expression != nil {
					value = fmt.Sprintf(" = %s", *p.Expression)
				}
				fmt.Printf("  %s.%s: %s%s\n", pkg.Identifier, p.Identifier, string(p.ParamKind), value)
			}
		}
	}
	fmt.Printf("\n=== Verbose: Instances ===\n")
	for _, ff := range idx.Facts {
		for _, mod := range ff.Data.Modules {
			for _, inst := range mod.Instances {
				fmt.Printf("  %s: %s -> %s\n", mod.Identifier, inst.HierarchicalInstance, inst.ModuleIdentifier)
				for _, conn := range inst.Connections {
					fmt.Printf("    .%s(%s)\n", conn.Port, conn.Expr)
				}
			}
		}
	}
}

func (idx *Indexer) printTextReport(lintResult LintResult) {
	if len(lintResult.Violations) > 0 {
		fmt.Printf("\n=== Policy Violations ===\n")
		for _, v := range lintResult.Violations {
			icon := "ℹ"
			if v.Severity == "error" {
				icon = "✗"
			} else if v.Severity == "warning" {
				icon = "⚠"
			}
			fmt.Printf("%s [%s] %s: %s - %s\n", icon, v.Rule, v.File, v.Item, v.Message)
		}
	}

	fmt.Printf("\n=== Policy Summary ===\n")
	fmt.Printf("  Errors:   %d\n", lintResult.Summary.Errors)
	fmt.Printf("  Warnings: %d\n", lintResult.Summary.Warnings)
	fmt.Printf("  Info:     %d\n", lintResult.Summary.Info)

	fmt.Printf("\n=== Extraction Summary ===\n")
	fmt.Printf("  Files:      %d\n", lintResult.Stats.Files)
	fmt.Printf("  Symbols:    %d\n", lintResult.Stats.Symbols)
	fmt.Printf("  Modules:    %d\n", lintResult.Stats.Modules)
	fmt.Printf("  Packages:   %d\n", lintResult.Stats.Packages)
	fmt.Printf("  Ports:      %d\n", lintResult.Stats.Ports)
	fmt.Printf("  Parameters: %d\n", lintResult.Stats.Parameters)
	fmt.Printf("  Instances:  %d\n", lintResult.Stats.Instances)

	if len(lintResult.ParseFailures) > 0 {
		fmt.Printf("\n=== Parse Failures ===\n")
		for _, e := range lintResult.ParseFailures {
			fmt.Printf("  [%s] %s\n", e.Kind, e.Message)
		}
	}
}

// applyRuleConfig rewrites violations according to the lint rule
// configuration: disabled rules are dropped and severity overrides are
// applied, then the summary is recomputed.
func (idx *Indexer) applyRuleConfig(result *policy.Result) {
	if idx.Config == nil || result == nil {
		return
	}
	kept := result.Violations[:0]
	summary := policy.Summary{}
	for _, v := range result.Violations {
		if !idx.Config.IsRuleEnabled(v.Rule) {
			continue
		}
		v.Severity = idx.Config.GetRuleSeverity(v.Rule, v.Severity)
		kept = append(kept, v)
		summary.TotalViolations++
		switch v.Severity {
		case "error":
			summary.Errors++
		case "warning":
			summary.Warnings++
		case "info":
			summary.Info++
		}
	}
	result.Violations = kept
	result.Summary = summary
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func applyPolicyResult(lintResult *LintResult, result *policy.Result) {
	if lintResult == nil || result == nil {
		return
	}
	lintResult.Violations = result.Violations
	if lintResult.Violations == nil {
		lintResult.Violations = []policy.Violation{}
	}
	lintResult.Summary = ResultSummary{
		TotalViolations: result.Summary.TotalViolations,
		Errors:          result.Summary.Errors,
		Warnings:        result.Summary.Warnings,
		Info:            result.Summary.Info,
	}

	fileViolations := make(map[string]*FileResult)
	for _, v := range result.Violations {
		fr, ok := fileViolations[v.File]
		if !ok {
			fr = &FileResult{Path: v.File}
			fileViolations[v.File] = fr
		}
		switch v.Severity {
		case "error":
			fr.Errors++
		case "warning":
			fr.Warnings++
		case "info":
			fr.Info++
		}
	}
	lintResult.Files = lintResult.Files[:0]
	for _, fr := range fileViolations {
		lintResult.Files = append(lintResult.Files, *fr)
	}
	sort.Slice(lintResult.Files, func(i, j int) bool {
		return lintResult.Files[i].Path < lintResult.Files[j].Path
	})
}

func runPolicyDaemon(policyDir, cacheDir string, cacheEnabled bool, tables facts.Tables, changedFiles map[string]bool) (*policy.Result, bool, error) {
	daemon, err := policy.NewDaemon(policyDir)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = daemon.Close()
	}()

	if cacheEnabled {
		if prev, ok, err := loadFactTablesCache(cacheDir); err != nil {
			return nil, false, err
		} else if ok {
			if _, err := daemon.Init(prev); err != nil {
				return nil, false, err
			}
			delta := facts.ComputeDelta(prev, tables)
			if len(changedFiles) > 0 {
				delta = facts.FilterDeltaByFiles(delta, changedFiles)
			}
			result, err := daemon.Delta(delta)
			return result, true, err
		}
	}

	result, err := daemon.Init(tables)
	return result, false, err
}

// classifyExtractFailure maps an extraction error to its taxonomy kind.
func classifyExtractFailure(file string, err error) ParseFailure {
	kind := "ParseError"
	var ioErr *sv.IoError
	var lexErr *sv.LexError
	var ppErr *sv.PreprocessError
	var parseErr *sv.ParseError
	switch {
	case errors.As(err, &ioErr):
		kind = "IoError"
	case errors.As(err, &lexErr):
		kind = "LexError"
	case errors.As(err, &ppErr):
		kind = "PreprocessError"
	case errors.As(err, &parseErr):
		kind = "ParseError"
	}
	return ParseFailure{File: file, Kind: kind, Message: err.Error()}
}

// resolvePolicyDir finds the directory holding the rego rules. Order:
// explicit override, SV_LINT_POLICY_DIR, then a "policies" directory
// found by walking up from the lint root.
func (idx *Indexer) resolvePolicyDir(rootPath string) (string, error) {
	if idx.PolicyDir != "" {
		return idx.PolicyDir, nil
	}
	if envDir := os.Getenv("SV_LINT_POLICY_DIR"); envDir != "" {
		return envDir, nil
	}

	start := rootPath
	if info, err := os.Stat(start); err != nil || !info.IsDir() {
		start = filepath.Dir(start)
	}
	if abs, err := filepath.Abs(start); err == nil {
		start = abs
	}
	if dir := findPolicyDirFrom(start); dir != "" {
		return dir, nil
	}
	if cwd, err := os.Getwd(); err == nil {
		if dir := findPolicyDirFrom(cwd); dir != "" {
			return dir, nil
		}
	}
	return "", fmt.Errorf("no policies directory found above %s (set SV_LINT_POLICY_DIR)", rootPath)
}

func findPolicyDirFrom(start string) string {
	dir := start
	for {
		candidate := filepath.Join(dir, "policies")
		if matches, err := filepath.Glob(filepath.Join(candidate, "*.rego")); err == nil && len(matches) > 0 {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func envBool(key string) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return val == "1" || val == "true" || val == "yes" || val == "on"
}

func sortedFactFiles(tables facts.Tables) []string {
	files := make([]string, 0, len(tables.Files))
	for _, file := range tables.Files {
		files = append(files, file.Path)
	}
	sort.Strings(files)
	return files
}

func (idx *Indexer) buildSymbolRows() []facts.SymbolRow {
	if idx.Symbols == nil {
		return nil
	}
	all := idx.Symbols.All()
	rows := make([]facts.SymbolRow, 0, len(all))
	for _, sym := range all {
		rows = append(rows, facts.SymbolRow{
			Name: sym.Name,
			Kind: sym.Kind,
			File: sym.File,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name == rows[j].Name {
			return rows[i].File < rows[j].File
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

func (idx *Indexer) findSourceFiles(root string) ([]string, error) {
	var files []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if config.IsSourceFile(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// SymbolTable methods

func (st *SymbolTable) Add(sym Symbol) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.symbols[sym.Name] = sym
}

func (st *SymbolTable) Has(name string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.symbols[name]
	return ok
}

func (st *SymbolTable) Get(name string) (Symbol, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sym, ok := st.symbols[name]
	return sym, ok
}

func (st *SymbolTable) All() map[string]Symbol {
	st.mu.RLock()
	defer st.mu.RUnlock()
	// Return a copy
	result := make(map[string]Symbol)
	for k, v := range st.symbols {
		result[k] = v
	}
	return result
}

func (st *SymbolTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.symbols)
}

func formatInstanceTargets(mods []sv.ModuleDeclaration) string {
	seen := make(map[string]bool)
	var targets []string
	for _, mod := range mods {
		for _, inst := range mod.Instances {
			if inst.ModuleIdentifier == "" {
				continue
			}
			if !seen[inst.ModuleIdentifier] {
				seen[inst.ModuleIdentifier] = true
				targets = append(targets, inst.ModuleIdentifier)
			}
		}
	}
	if len(targets) == 0 {
		return ""
	}
	sort.Strings(targets)
	const max = 6
	if len(targets) > max {
		return fmt.Sprintf("%s, ... (+%d more)", strings.Join(targets[:max], ", "), len(targets)-max)
	}
	return strings.Join(targets, ", ")
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.2fm", d.Minutes())
	default:
		return fmt.Sprintf("%.2fh", d.Hours())
	}
}

func emitProgress(mu *sync.Mutex, progress *int, total int, file string, data sv.Data, status string, trace bool, duration time.Duration) {
	targets := formatInstanceTargets(data.Modules)
	mu.Lock()
	defer mu.Unlock()
	*progress = *progress + 1
	fmt.Printf("  [%d/%d] %s (%s, %s)\n", *progress, total, file, status, formatDuration(duration))
	if targets != "" {
		fmt.Printf("    instantiates: %s\n", targets)
	}
	if trace {
		for _, line := range formatFactsSummary(data) {
			fmt.Printf("    %s\n", line)
		}
	}
}

func formatFactsSummary(data sv.Data) []string {
	ports, params, instances := 0, 0, 0
	for _, mod := range data.Modules {
		ports += len(mod.Ports)
		params += len(mod.Parameters)
		instances += len(mod.Instances)
	}
	for _, pkg := range data.Packages {
		params += len(pkg.Parameters)
	}
	lines := []string{
		fmt.Sprintf("facts: modules=%d packages=%d ports=%d parameters=%d instances=%d",
			len(data.Modules), len(data.Packages), ports, params, instances),
	}

	if names := summarizeModules(data, 6); names != "" {
		lines = append(lines, "modules: "+names)
	}
	if names := summarizePackages(data, 6); names != "" {
		lines = append(lines, "packages: "+names)
	}
	if names := summarizeInstances(data, 4); names != "" {
		lines = append(lines, "instances: "+names)
	}

	return lines
}

func summarizeModules(data sv.Data, max int) string {
	var names []string
	for _, m := range data.Modules {
		if m.Identifier != "" {
			names = append(names, m.Identifier)
		}
	}
	return summarizeList(names, max)
}

func summarizePackages(data sv.Data, max int) string {
	var names []string
	for _, p := range data.Packages {
		if p.Identifier != "" {
			names = append(names, p.Identifier)
		}
	}
	return summarizeList(names, max)
}

func summarizeInstances(data sv.Data, max int) string {
	var names []string
	for _, mod := range data.Modules {
		for _, inst := range mod.Instances {
			if inst.HierarchicalInstance == "" {
				continue
			}
			if inst.ModuleIdentifier != "" {
				names = append(names, fmt.Sprintf("%s->%s", inst.HierarchicalInstance, inst.ModuleIdentifier))
			} else {
				names = append(names, inst.HierarchicalInstance)
			}
		}
	}
	return summarizeList(names, max)
}

func summarizeList(items []string, max int) string {
	if len(items) == 0 {
		return ""
	}
	sort.Strings(items)
	if len(items) > max {
		return fmt.Sprintf("%s, ... (+%d more)", strings.Join(items[:max], ", "), len(items)-max)
	}
	return strings.Join(items, ", ")
}
