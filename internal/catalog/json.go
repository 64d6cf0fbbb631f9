package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hyperjump/mikake/internal/models"
)

// JSONSource reads catalog entries from a JSON array file.
type JSONSource struct {
	path string
}

// NewJSONSource creates a source backed by the JSON file at path.
// The file is read on every Entries call so rebuilds pick up edits.
func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

// Entries reads and parses the catalog file. A missing or unparsable file is
// a configuration error and fails the whole build.
func (s *JSONSource) Entries(ctx context.Context) ([]models.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []models.CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return entries, nil
}

// Close is a no-op for JSONSource.
func (s *JSONSource) Close() error {
	return nil
}
