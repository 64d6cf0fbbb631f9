// Package catalog provides catalog sources and the reference-image embedding pass.
package catalog

import (
	"context"
	"fmt"

	"github.com/hyperjump/mikake/internal/config"
	"github.com/hyperjump/mikake/internal/models"
)

// Source enumerates catalog entries. Implementations are read-only.
type Source interface {
	Entries(ctx context.Context) ([]models.CatalogEntry, error)
	Close() error
}

// NewSource creates a catalog source for the configured backend.
// Supported sources: "json" (default), "sqlite".
func NewSource(cfg *config.CatalogConfig) (Source, error) {
	switch cfg.Source {
	case "json", "":
		return NewJSONSource(cfg.Path), nil
	case "sqlite":
		return NewSQLiteSource(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown catalog source: %s (supported: json, sqlite)", cfg.Source)
	}
}
