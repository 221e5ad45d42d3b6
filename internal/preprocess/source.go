package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirSource resolves `include references against the including file's
// directory first, then each configured include directory in order.
type DirSource struct {
	IncludeDirs []string
}

// Resolve finds the on-disk path for an include reference.
func (s *DirSource) Resolve(fromFile, include string) (string, error) {
	if filepath.IsAbs(include) {
		if fileExists(include) {
			return include, nil
		}
		return "", fmt.Errorf("no such file: %s", include)
	}

	candidates := []string{filepath.Join(filepath.Dir(fromFile), include)}
	for _, dir := range s.IncludeDirs {
		candidates = append(candidates, filepath.Join(dir, include))
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("not found in %d search paths: %s", len(candidates), include)
}

// ReadFile fetches the raw text of a resolved path.
func (s *DirSource) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
