package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// SourceFile is a knowledge document found under a source directory.
type SourceFile struct {
	SourceID string // derived from the file name, e.g. "mining_basics"
	RelPath  string // relative to the scanned root, forward slashes
	AbsPath  string
}

var sourceExtensions = map[string]bool{".md": true, ".txt": true}

var unsafeSourceChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ScanSources walks dir for .md and .txt files, skipping hidden files and directories.
// Results are ordered by relative path.
func ScanSources(ctx context.Context, dir string) ([]SourceFile, error) {
	var files []SourceFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		hidden := strings.HasPrefix(d.Name(), ".") && path != dir
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !sourceExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		files = append(files, SourceFile{
			SourceID: SourceIDFor(path),
			RelPath:  filepath.ToSlash(relPath),
			AbsPath:  path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// SourceIDFor derives a store-safe source id from a file name.
func SourceIDFor(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	id := strings.Trim(unsafeSourceChars.ReplaceAllString(name, "_"), "._-")
	if id == "" {
		return "source"
	}
	return id
}
