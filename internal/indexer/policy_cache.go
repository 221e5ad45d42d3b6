package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/prokie/sv-lint/internal/config"
	"github.com/prokie/sv-lint/internal/policy"
)

const policyCacheVersion = 2

type policyCacheEntry struct {
	Version    int           `json:"version"`
	ConfigHash string        `json:"config_hash"`
	Files      []string      `json:"files"`
	Result     policy.Result `json:"result"`
}

func loadPolicyCache(dir string) (*policyCacheEntry, error) {
	path := policyCachePath(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry policyCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse policy cache: %w", err)
	}
	return &entry, nil
}

func savePolicyCache(dir string, entry policyCacheEntry) error {
	path := policyCachePath(dir)
	if err := writeJSONAtomic(path, entry); err != nil {
		return fmt.Errorf("write policy cache: %w", err)
	}
	return nil
}

func policyCachePath(dir string) string {
	return filepath.Join(dir, "policy_cache.json")
}

func policyCacheValid(entry *policyCacheEntry, configHash string, files []string) bool {
	if entry == nil {
		return false
	}
	if entry.Version != policyCacheVersion {
		return false
	}
	if entry.ConfigHash != configHash {
		return false
	}
	if len(entry.Files) != len(files) {
		return false
	}
	for i := range files {
		if entry.Files[i] != files[i] {
			return false
		}
	}
	return true
}

// policyConfigHash fingerprints everything that changes a policy verdict
// without changing the fact tables: the standard, the lint rule config,
// the third-party file set, and the rego sources themselves.
func policyConfigHash(cfg *config.Config, thirdPartyFiles map[string]bool, policyDir string) (string, error) {
	policyVersion, err := policyRulesHash(policyDir)
	if err != nil {
		return "", err
	}
	thirdParty := make([]string, 0, len(thirdPartyFiles))
	for f := range thirdPartyFiles {
		thirdParty = append(thirdParty, f)
	}
	sort.Strings(thirdParty)
	payload := struct {
		Standard        string            `json:"standard"`
		LintConfig      config.LintConfig `json:"lint_config"`
		ThirdPartyFiles []string          `json:"third_party_files"`
		PolicyVersion   string            `json:"policy_version"`
	}{
		Standard:        cfg.Standard,
		LintConfig:      cfg.Lint,
		ThirdPartyFiles: thirdParty,
		PolicyVersion:   policyVersion,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal policy config hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func policyRulesHash(policyDir string) (string, error) {
	info, err := os.Stat(policyDir)
	if err != nil {
		return "", fmt.Errorf("policy rules hash: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("policy rules hash: %s is not a directory", policyDir)
	}

	var files []string
	err = filepath.WalkDir(policyDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".rego" {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("policy rules hash walk: %w", err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("policy rules hash: no rego sources found in %s", policyDir)
	}
	sort.Strings(files)

	hasher := sha256.New()
	for _, path := range files {
		rel, _ := filepath.Rel(policyDir, path)
		if _, err := hasher.Write([]byte(rel)); err != nil {
			return "", fmt.Errorf("policy rules hash: %w", err)
		}
		if _, err := hasher.Write([]byte{0}); err != nil {
			return "", fmt.Errorf("policy rules hash: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("policy rules hash read: %w", err)
		}
		if _, err := hasher.Write(data); err != nil {
			return "", fmt.Errorf("policy rules hash: %w", err)
		}
		if _, err := hasher.Write([]byte{0}); err != nil {
			return "", fmt.Errorf("policy rules hash: %w", err)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
