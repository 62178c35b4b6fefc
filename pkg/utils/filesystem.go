package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureArgusDir ensures the .argus directory exists at the given base path.
// If basePath is empty or ".", it creates ./.argus in the current directory.
//
// Facilities that persist local state share this directory:
// - Episode and skill stores: ./.argus/argus.db or ./.argus/episodes.json
// - Semantic memory (chromem persistence): ./.argus/memory/
// - Screenshots: ./.argus/screenshots/
func EnsureArgusDir(basePath string) (string, error) {
	var dir string
	if basePath == "" || basePath == "." {
		dir = ".argus"
	} else {
		dir = filepath.Join(basePath, ".argus")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create .argus directory at '%s': %w", dir, err)
	}

	return dir, nil
}
