// Package discover finds the PDF files a run will process.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotDirectory is returned when the input path is not a directory.
var ErrNotDirectory = errors.New("input path is not a directory")

// PDFs returns the PDF files under dir, matched by a case-insensitive .pdf
// extension and sorted lexicographically. Hidden files and directories are
// skipped. Subdirectories are walked only when recursive is set.
func PDFs(dir string, recursive bool) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("input directory is required")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == dir {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan input directory: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
