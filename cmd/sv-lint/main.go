// =============================================================================
// SystemVerilog Linter - Main Entry Point
// =============================================================================
//
// This tool transforms SystemVerilog from "text files" into a "queryable
// database," enabling interface checks that are usually locked behind
// expensive proprietary tools.
//
// THE PIPELINE:
//   1. Lexer splits source text into tokens (line comments kept for docs)
//   2. Preprocessor resolves `define/`ifdef/`include on the token stream
//   3. Extractor parses module/package declarations into sv.Data
//   4. Indexer builds the cross-file symbol table and relational fact tables
//   5. CUE Validator enforces data contracts (crash on schema mismatch)
//   6. OPA evaluates rego rules against the fact tables
//   7. Violations are reported per file and item
//
// WHEN INVESTIGATING FALSE POSITIVES:
//   Start at the beginning of the pipeline, not the end!
//   Lexer/preprocessor issues → Extractor issues → Policy issues
// =============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/prokie/sv-lint/internal/config"
	"github.com/prokie/sv-lint/internal/indexer"
)

type options struct {
	verbose    bool
	progress   bool
	trace      bool
	jsonOutput bool
	timing     bool
	configPath string
	path       string
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
		return
	case "clear-cache":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		runClearCache(os.Args[2])
		return
	case "-h", "--help", "help":
		printUsage()
		return
	}

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printUsage()
		os.Exit(1)
	}
	runLint(opts)
}

func parseArgs(args []string) (options, error) {
	var opts options
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-v", "--verbose":
			opts.verbose = true
		case "--progress":
			opts.progress = true
		case "--trace":
			opts.trace = true
		case "--json":
			opts.jsonOutput = true
		case "--timing":
			opts.timing = true
		case "-c", "--config":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a file argument", args[i])
			}
			i++
			opts.configPath = args[i]
		default:
			if opts.path != "" {
				return opts, fmt.Errorf("unexpected argument %q", args[i])
			}
			opts.path = args[i]
		}
	}
	if opts.path == "" {
		return opts, fmt.Errorf("no path given")
	}
	return opts, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: sv-lint [command] [options] <path>

Commands:
  init              Create a sv_lint.json configuration file
  clear-cache       Remove the cached policy verdict for <path>
  <path>            Lint SystemVerilog files in the given path

Options:
  -v, --verbose     Enable verbose output
  --progress        Stream per-file extraction progress
  --trace           Progress plus per-file declaration summaries
  --json            Emit the lint report as JSON on stdout
  --timing          Write stage/file timings to timing.jsonl
  -c, --config      Specify config file: sv-lint -c config.json <path>
  -h, --help        Show this help message

Configuration:
  sv-lint looks for configuration in:
    1. ./sv_lint.json
    2. ./.sv_lint.json
    3. ~/.config/sv_lint/config.json

  Run 'sv-lint init' to create a default configuration file.`)
}

func runInit() {
	configPath := "sv_lint.json"

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Library file patterns")
	fmt.Println("  - Include directories for `include resolution")
	fmt.Println("  - Third-party library detection")
	fmt.Println("  - Lint rule severities")
}

func runClearCache(path string) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cacheDir, err := indexer.ClearPolicyCache(path, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error clearing policy cache: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Cleared policy cache in %s\n", cacheDir)
}

func runLint(opts options) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", opts.configPath, err)
			os.Exit(1)
		}
	} else {
		cfg, err = config.Load(opts.path)
		if err != nil {
			if !opts.jsonOutput {
				fmt.Printf("Warning: Could not load config: %v (using defaults)\n", err)
			}
			cfg = config.DefaultConfig()
		}
	}

	idx := indexer.NewWithConfig(cfg)
	idx.Verbose = opts.verbose
	idx.Progress = opts.progress
	idx.Trace = opts.trace
	idx.JSONOutput = opts.jsonOutput
	idx.Timing = opts.timing
	if err := idx.Run(opts.path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if idx.Result != nil && idx.Result.Summary.Errors > 0 {
		os.Exit(1)
	}
}
