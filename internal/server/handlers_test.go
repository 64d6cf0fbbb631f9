package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/mikake/internal/catalog"
	"github.com/hyperjump/mikake/internal/config"
	"github.com/hyperjump/mikake/internal/embedding"
	"github.com/hyperjump/mikake/internal/index"
	"github.com/hyperjump/mikake/internal/models"
	"github.com/hyperjump/mikake/internal/search"
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

// newTestServer builds a server over a real manager and mock embedder.
// When build is true the index is populated with one mug reference; the
// returned bytes are that reference image.
func newTestServer(t *testing.T, build bool) (*Server, []byte) {
	t.Helper()
	dir := t.TempDir()
	entries := []map[string]interface{}{{"id": "mug", "name": "Coffee Mug", "price": 9.99}}
	data, _ := json.Marshal(entries)
	catalogPath := filepath.Join(dir, "products.json")
	if err := os.WriteFile(catalogPath, data, 0600); err != nil {
		t.Fatal(err)
	}
	refsDir := filepath.Join(dir, "references")
	mugBytes := encodePNG(t, color.RGBA{R: 220, A: 255})
	if err := os.MkdirAll(filepath.Join(refsDir, "mug"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(refsDir, "mug", "a.png"), mugBytes, 0600); err != nil {
		t.Fatal(err)
	}

	embedder := embedding.NewMockEmbedder(16)
	builder := catalog.NewBuilder(catalog.NewJSONSource(catalogPath), embedder, refsDir, []string{".png"})
	mgr := index.NewManager(builder, 16)
	if build {
		if _, err := mgr.Rebuild(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	engine := search.NewEngine(embedder, mgr, &config.SearchConfig{DefaultK: 5, MaxK: 50}, nil)
	srv := NewServer(engine, mgr, &config.ServerConfig{Port: 8001}, zap.NewNop())
	return srv, mugBytes
}

func multipartImage(t *testing.T, imageBytes []byte, k string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "query.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(imageBytes); err != nil {
		t.Fatal(err)
	}
	if k != "" {
		if err := mw.WriteField("k", k); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func TestHandleSearch(t *testing.T) {
	srv, mugBytes := newTestServer(t, true)
	body, contentType := multipartImage(t, mugBytes, "3")
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || len(out.Matches) != 1 {
		t.Fatalf("response: %+v", out)
	}
	if out.Matches[0].ProductID != "mug" || out.Matches[0].Similarity < 0.999 {
		t.Errorf("top match: %+v", out.Matches[0])
	}
}

func TestHandleSearch_NotReady(t *testing.T) {
	srv, mugBytes := newTestServer(t, false)
	body, contentType := multipartImage(t, mugBytes, "")
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func TestHandleSearch_MissingImage(t *testing.T) {
	srv, _ := newTestServer(t, true)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("k", "3")
	_ = mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleSearch_UndecodableImage(t *testing.T) {
	srv, _ := newTestServer(t, true)
	body, contentType := multipartImage(t, []byte("junk"), "")
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleRebuild(t *testing.T) {
	srv, _ := newTestServer(t, false)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil)
	w := httptest.NewRecorder()
	srv.handleRebuild(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.RebuildResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.IndexSize != 1 || out.BuildID == "" {
		t.Errorf("response: %+v", out)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t, true)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Ready     bool `json:"ready"`
		IndexSize int  `json:"index_size"`
		Products  int  `json:"products"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Ready || out.IndexSize != 1 || out.Products != 1 {
		t.Errorf("status body: %+v", out)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, false)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ok" || out.Service != "mikake" {
		t.Errorf("health body: %+v", out)
	}
}
