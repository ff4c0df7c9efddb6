// Package fsutil locates input files: doublestar glob expansion for batch
// runs and extension-based discovery for manifest directories.
package fsutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// FindFilesByExtension walks root and returns every file whose name ends in
// ext (e.g. ".hcl"), in walk order.
func FindFilesByExtension(root, ext string) ([]string, error) {
	if ext == "" {
		return nil, fmt.Errorf("empty file extension, want something like %q", ".hcl")
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
