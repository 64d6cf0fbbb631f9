package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
catalog:
  path: "./catalog/products.json"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
catalog:
  path: "./catalog/products.json"
  references_dir: "./references"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantCatalog := filepath.Join(dir, "catalog", "products.json")
	if cfg.Catalog.Path != wantCatalog {
		t.Errorf("catalog path = %s, want %s", cfg.Catalog.Path, wantCatalog)
	}
	wantRefs := filepath.Join(dir, "references")
	if cfg.Catalog.ReferencesDir != wantRefs {
		t.Errorf("references_dir = %s, want %s", cfg.Catalog.ReferencesDir, wantRefs)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8001 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("default allowed_origins: got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Catalog.Source != "json" {
		t.Errorf("default catalog source: got %s", cfg.Catalog.Source)
	}
	if cfg.Embedding.Dimensions != 576 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.ResizeSize != 256 || cfg.Embedding.CropSize != 224 {
		t.Errorf("default preprocessing sizes: resize=%d crop=%d", cfg.Embedding.ResizeSize, cfg.Embedding.CropSize)
	}
	if cfg.Search.DefaultK != 5 || cfg.Search.MaxK != 50 {
		t.Errorf("default search config: %+v", cfg.Search)
	}
	if len(cfg.Catalog.Extensions) != 3 || cfg.Catalog.Extensions[0] != ".jpg" {
		t.Errorf("default extensions: got %v", cfg.Catalog.Extensions)
	}
	if cfg.Watch.DebounceMS != 2000 {
		t.Errorf("default debounce: got %d", cfg.Watch.DebounceMS)
	}
}
