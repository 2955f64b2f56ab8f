package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"solverd/internal/common/fsutil"
	"solverd/pkg/types"
)

// Scanner discovers models on disk.
type Scanner interface {
	Scan(dir string) ([]types.Model, error)
}

// ggufScanner lists *.gguf files and derives metadata from filenames.
type ggufScanner struct{}

// NewGGUFScanner returns a Scanner for GGUF checkpoints.
func NewGGUFScanner() Scanner { return ggufScanner{} }

var quantRe = regexp.MustCompile(`(?i)(q\d(?:_[a-z0-9_]+)?|f(?:p)?16|f(?:p)?32|int[48])`)

func (ggufScanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		// Full filename is the ID (e.g. "phi-4-mini-q4_k_m.gguf").
		models = append(models, types.Model{
			ID:     name,
			Name:   name,
			Path:   filepath.Join(abs, name),
			Quant:  quantFromName(name),
			Family: familyFromName(name),
		})
	}
	return models, nil
}

// LoadDir scans a directory for *.gguf files and builds a registry from filenames.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

// Find returns the model with the given ID, matching the bare stem as a
// convenience so "phi-4-mini" resolves "phi-4-mini.gguf".
func Find(models []types.Model, id string) (types.Model, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	for _, m := range models {
		if strings.TrimSuffix(strings.ToLower(m.ID), ".gguf") == strings.ToLower(id) {
			return m, true
		}
	}
	return types.Model{}, false
}

func quantFromName(name string) string {
	stem := strings.TrimSuffix(strings.ToLower(name), ".gguf")
	if m := quantRe.FindString(stem); m != "" {
		return m
	}
	return ""
}

func familyFromName(name string) string {
	stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	// First token before a separator is usually the family ("phi-4-..." -> "phi").
	for i, r := range stem {
		if r == '-' || r == '_' || r == '.' {
			return stem[:i]
		}
	}
	return stem
}
