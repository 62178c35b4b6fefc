// Package knowledge seeds semantic memory from operator documents: walk
// configured directories, extract text from txt, md, pdf, docx, and xlsx
// files, chunk it, and load each chunk as a semantic entry. Seeded entries
// flow through the memory manager, which also pushes them into the vector
// index when recall is configured.
package knowledge

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
)

// Extractor pulls plain text out of one document format.
type Extractor interface {
	// CanExtract reports whether this extractor handles the file.
	CanExtract(path string) bool

	// Extract returns the document's text content.
	Extract(ctx context.Context, path string) (string, error)

	// Extensions lists the file extensions this extractor handles.
	Extensions() []string
}

// ExtractorRegistry routes files to the extractor for their format.
type ExtractorRegistry struct {
	extractors []Extractor
}

// NewExtractorRegistry creates a registry with the built-in extractors.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{
		extractors: []Extractor{
			&textExtractor{},
			&pdfExtractor{},
			&docxExtractor{},
			&xlsxExtractor{},
		},
	}
}

// ForPath returns the extractor for the file, or nil when the format is
// unsupported.
func (r *ExtractorRegistry) ForPath(path string) Extractor {
	for _, e := range r.extractors {
		if e.CanExtract(path) {
			return e
		}
	}
	return nil
}

// Extract routes the file to its extractor.
func (r *ExtractorRegistry) Extract(ctx context.Context, path string) (string, error) {
	e := r.ForPath(path)
	if e == nil {
		return "", fmt.Errorf("no extractor for %s files", filepath.Ext(path))
	}
	return e.Extract(ctx, path)
}

// Supported returns every handled extension, sorted.
func (r *ExtractorRegistry) Supported() []string {
	seen := make(map[string]bool)
	for _, e := range r.extractors {
		for _, ext := range e.Extensions() {
			seen[ext] = true
		}
	}

	out := make([]string, 0, len(seen))
	for ext := range seen {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
