// sv-extract parses a single SystemVerilog file and prints its extracted
// declaration set as JSON, validated against the per-file CUE contract.
// Handy when chasing an extraction bug: run it on the offending file and
// read exactly what the linter sees.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/prokie/sv-lint/internal/extractor"
	"github.com/prokie/sv-lint/internal/validator"
)

func main() {
	var includeDirs multiFlag
	flag.Var(&includeDirs, "I", "add a directory to the `include search path (repeatable)")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: sv-extract [-I dir]... <file.sv>")
		os.Exit(1)
	}

	ext := extractor.New(includeDirs...)
	data, err := ext.Extract(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	v, err := validator.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing validator: %v\n", err)
		os.Exit(1)
	}
	if err := v.Validate(data); err != nil {
		fmt.Fprintf(os.Stderr, "Error: extracted data violates the file contract: %v\n", err)
		for _, msg := range v.ValidationErrors(data) {
			fmt.Fprintf(os.Stderr, "  %s\n", msg)
		}
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprint([]string(*m)) }

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
