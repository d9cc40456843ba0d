package ingest

import (
	"path/filepath"
	"strings"
)

// isHidden checks if a file or directory is hidden (starts with '.').
func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
