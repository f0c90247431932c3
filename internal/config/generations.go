package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var generationDirPattern = regexp.MustCompile(`^(\d+)-`)

// nextGenerationDir allocates generations/<NN>-<name> under baseDir, where
// NN is one greater than the highest existing generation number (or 0 if
// none exist), and creates the directory (and its output subdirectory).
func nextGenerationDir(baseDir, name string) (string, error) {
	root := filepath.Join(baseDir, "generations")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("config: create generations dir: %w", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("config: read generations dir: %w", err)
	}
	next := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := generationDirPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}

	dir := filepath.Join(root, fmt.Sprintf("%02d-%s", next, name))
	if err := os.MkdirAll(filepath.Join(dir, "output"), 0o755); err != nil {
		return "", fmt.Errorf("config: create generation output dir: %w", err)
	}
	return dir, nil
}
