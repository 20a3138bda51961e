// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/schemareg/internal/ingest"
	"github.com/example/schemareg/internal/ports/secondary"
)

// DocumentLoader implements secondary.DocumentSource for local files.
type DocumentLoader struct {
	extensions map[string]bool
}

// NewDocumentLoader creates a loader picking up .json, .yaml and .yml files
// when walking directories.
func NewDocumentLoader() *DocumentLoader {
	return &DocumentLoader{extensions: map[string]bool{".json": true, ".yaml": true, ".yml": true}}
}

// Load reads the documents under paths, ordered by file path.
// Explicitly named files are read regardless of extension.
func (l *DocumentLoader) Load(ctx context.Context, paths []string) ([]ingest.Document, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if l.extensions[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	sort.Strings(files)

	docs := make([]ingest.Document, 0, len(files))
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		docs = append(docs, ingest.Document{Name: f, Raw: raw})
	}
	return docs, nil
}

// Ensure DocumentLoader implements the interface
var _ secondary.DocumentSource = (*DocumentLoader)(nil)
