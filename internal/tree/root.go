package tree

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrNoRoot is returned when no project root can be determined.
var ErrNoRoot = errors.New("tree: no project root")

// DetectRoot picks the tree root. A configured root always wins. Otherwise
// the workspace folder closest to file is used, measured by the length of
// file's path relative to the folder; folders that do not contain file are
// not candidates. Without a file the first folder is used.
func DetectRoot(configured string, folders []string, file string) (string, error) {
	if configured != "" {
		return filepath.Abs(configured)
	}
	if file == "" {
		if len(folders) > 0 {
			return filepath.Abs(folders[0])
		}
		return "", ErrNoRoot
	}

	file, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	best, bestLen := "", -1
	for _, folder := range folders {
		abs, err := filepath.Abs(folder)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(abs, file)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if bestLen < 0 || len(rel) < bestLen {
			best, bestLen = abs, len(rel)
		}
	}
	if best == "" {
		return "", ErrNoRoot
	}
	return best, nil
}
