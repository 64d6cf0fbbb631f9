package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mikake/internal/catalog"
	"github.com/hyperjump/mikake/internal/config"
	"github.com/hyperjump/mikake/internal/embedding"
	"github.com/hyperjump/mikake/internal/index"
	"github.com/hyperjump/mikake/internal/models"
)

func encodePNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// buildFixture writes a two-product catalog with distinct reference images
// and returns a ready manager plus the raw bytes of mug's reference image.
func buildFixture(t *testing.T, embedder embedding.Embedder) (*index.Manager, []byte) {
	t.Helper()
	dir := t.TempDir()
	entries := []map[string]interface{}{
		{"id": "mug", "name": "Coffee Mug", "price": 9.99},
		{"id": "cup", "name": "Tea Cup", "price": 4.99},
	}
	data, _ := json.Marshal(entries)
	catalogPath := filepath.Join(dir, "products.json")
	if err := os.WriteFile(catalogPath, data, 0600); err != nil {
		t.Fatal(err)
	}
	refsDir := filepath.Join(dir, "references")
	mugBytes := encodePNG(t, color.RGBA{R: 220, G: 30, B: 30, A: 255})
	cupBytes := encodePNG(t, color.RGBA{R: 30, G: 30, B: 220, A: 255})
	for id, img := range map[string][]byte{"mug": mugBytes, "cup": cupBytes} {
		if err := os.MkdirAll(filepath.Join(refsDir, id), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(refsDir, id, "a.png"), img, 0600); err != nil {
			t.Fatal(err)
		}
	}
	builder := catalog.NewBuilder(catalog.NewJSONSource(catalogPath), embedder, refsDir, []string{".png"})
	mgr := index.NewManager(builder, embedder.Dimensions())
	if _, err := mgr.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	return mgr, mugBytes
}

func TestEngine_SearchExactReferenceMatch(t *testing.T) {
	embedder := embedding.NewMockEmbedder(16)
	mgr, mugBytes := buildFixture(t, embedder)
	engine := NewEngine(embedder, mgr, &config.SearchConfig{DefaultK: 5, MaxK: 50}, nil)

	results, err := engine.Search(context.Background(), mugBytes, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].ProductID != "mug" {
		t.Errorf("top result: %s, want mug", results[0].ProductID)
	}
	if results[0].Similarity < 0.99999 {
		t.Errorf("identical image should score ~1.0, got %f", results[0].Similarity)
	}
	if results[0].Price == nil || *results[0].Price != 9.99 {
		t.Errorf("price: %+v", results[0].Price)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not sorted by similarity: %v", results)
		}
	}
}

func TestEngine_KLargerThanProducts(t *testing.T) {
	embedder := embedding.NewMockEmbedder(16)
	mgr, mugBytes := buildFixture(t, embedder)
	engine := NewEngine(embedder, mgr, &config.SearchConfig{DefaultK: 5, MaxK: 50}, nil)

	results, err := engine.Search(context.Background(), mugBytes, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) > 2 {
		t.Errorf("only 2 products indexed, got %d results", len(results))
	}
}

func TestEngine_NotReady(t *testing.T) {
	embedder := embedding.NewMockEmbedder(16)
	mgr := index.NewManager(&neverBuilder{}, 16)
	engine := NewEngine(embedder, mgr, &config.SearchConfig{DefaultK: 5, MaxK: 50}, nil)

	_, err := engine.Search(context.Background(), encodePNG(t, color.RGBA{A: 255}), 5)
	if !errors.Is(err, index.ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestEngine_BadImage(t *testing.T) {
	embedder := embedding.NewMockEmbedder(16)
	mgr, _ := buildFixture(t, embedder)
	engine := NewEngine(embedder, mgr, &config.SearchConfig{DefaultK: 5, MaxK: 50}, nil)

	_, err := engine.Search(context.Background(), []byte("not an image"), 5)
	if !errors.Is(err, ErrBadImage) {
		t.Errorf("expected ErrBadImage, got %v", err)
	}
}

func TestEngine_KClamping(t *testing.T) {
	embedder := embedding.NewMockEmbedder(16)
	mgr, mugBytes := buildFixture(t, embedder)
	engine := NewEngine(embedder, mgr, &config.SearchConfig{DefaultK: 1, MaxK: 50}, nil)

	// k <= 0 falls back to DefaultK.
	results, err := engine.Search(context.Background(), mugBytes, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("k=0 should use DefaultK=1, got %d results", len(results))
	}
}

type neverBuilder struct{}

func (neverBuilder) Build(ctx context.Context) ([]models.ProductReference, *catalog.BuildReport, error) {
	return nil, &catalog.BuildReport{}, nil
}
