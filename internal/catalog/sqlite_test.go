package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mikake/internal/config"
	"github.com/hyperjump/mikake/internal/models"
)

func TestSQLiteSource_Entries(t *testing.T) {
	src, err := NewSQLiteSource(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	ctx := context.Background()

	price := 9.99
	if err := src.AddProduct(ctx, &models.CatalogEntry{ID: "mug", Name: "Coffee Mug", Price: &price}); err != nil {
		t.Fatal(err)
	}
	if err := src.AddProduct(ctx, &models.CatalogEntry{Name: "Tea Cup"}); err != nil {
		t.Fatal(err)
	}

	entries, err := src.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "mug" || entries[0].Price == nil || *entries[0].Price != 9.99 {
		t.Errorf("first entry: %+v", entries[0])
	}
	if entries[1].ProductID() != "tea_cup" {
		t.Errorf("derived id: %s", entries[1].ProductID())
	}
	if entries[1].Price != nil {
		t.Errorf("missing price should stay nil, got %v", *entries[1].Price)
	}
}

func TestNewSource(t *testing.T) {
	dir := t.TempDir()
	src, err := NewSource(&config.CatalogConfig{Source: "json", Path: filepath.Join(dir, "p.json")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*JSONSource); !ok {
		t.Errorf("expected JSONSource, got %T", src)
	}

	src, err = NewSource(&config.CatalogConfig{Source: "sqlite", Path: filepath.Join(dir, "p.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if _, ok := src.(*SQLiteSource); !ok {
		t.Errorf("expected SQLiteSource, got %T", src)
	}

	if _, err := NewSource(&config.CatalogConfig{Source: "csv"}); err == nil {
		t.Error("expected error for unknown source type")
	}
}
