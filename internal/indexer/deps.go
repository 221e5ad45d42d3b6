package indexer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prokie/sv-lint/internal/facts"
)

// dependentsGraph maps a file to the set of files that instantiate one of
// its modules. Editing the key file may change the lint verdict of every
// file in the value set.
type dependentsGraph map[string]map[string]bool

func buildDependentsGraph(factsByFile map[string]facts.FileFacts, symbols *SymbolTable) dependentsGraph {
	graph := make(dependentsGraph)
	for file, ff := range factsByFile {
		deps := resolveDependencies(ff, symbols)
		for _, depFile := range deps {
			if depFile == "" || depFile == file {
				continue
			}
			if graph[depFile] == nil {
				graph[depFile] = make(map[string]bool)
			}
			graph[depFile][file] = true
		}
	}
	return graph
}

// resolveDependencies returns the files defining the modules this file
// instantiates.
func resolveDependencies(ff facts.FileFacts, symbols *SymbolTable) []string {
	var deps []string
	for _, mod := range ff.Data.Modules {
		for _, inst := range mod.Instances {
			if inst.ModuleIdentifier == "" {
				continue
			}
			if sym, ok := symbols.Get(inst.ModuleIdentifier); ok {
				deps = append(deps, sym.File)
			}
		}
	}
	return deps
}

type impactReport struct {
	Root   string
	Levels [][]string
}

func computeImpact(root string, dependents dependentsGraph) impactReport {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, f := range frontier {
			for dep := range dependents[f] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				next = append(next, dep)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}

	return impactReport{Root: root, Levels: levels}
}

func formatImpactReport(report impactReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n", report.Root))
	for i, level := range report.Levels {
		b.WriteString(fmt.Sprintf("    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", ")))
	}
	return b.String()
}
