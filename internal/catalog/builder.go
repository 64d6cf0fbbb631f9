package catalog

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"github.com/hyperjump/mikake/internal/embedding"
	"github.com/hyperjump/mikake/internal/models"
	"github.com/hyperjump/mikake/internal/vector"
)

// Skip records one reference image or catalog entry that was left out of a
// build, with the reason. Skips are data, not failures: the build continues.
type Skip struct {
	ProductID string `json:"product_id"`
	RefFile   string `json:"ref_file,omitempty"`
	Reason    string `json:"reason"`
}

// BuildReport summarizes an embedding pass over the catalog.
type BuildReport struct {
	Entries  int    `json:"entries"`
	Embedded int    `json:"embedded"`
	Skips    []Skip `json:"skips,omitempty"`
}

// Builder runs the embedding pass: for every catalog entry it walks the
// entry's reference directory, decodes each recognized image, extracts and
// normalizes an embedding, and accumulates product references. Individual
// decode or embed failures are recorded and skipped, never fatal.
type Builder struct {
	source        Source
	embedder      embedding.Embedder
	referencesDir string
	extensions    []string
	logger        *zap.Logger // optional; when set, logs per-entry progress
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for build progress and skip events.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a builder over the given source and embedder.
// References for a product live in referencesDir/<product_id>/.
func NewBuilder(source Source, embedder embedding.Embedder, referencesDir string, extensions []string, opts ...BuilderOption) *Builder {
	b := &Builder{
		source:        source,
		embedder:      embedder,
		referencesDir: referencesDir,
		extensions:    extensions,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs a full embedding pass and returns the accumulated references
// together with a report of what was skipped. A catalog read failure aborts
// the build; per-entry and per-image failures do not. Build touches no shared
// state, so it can run concurrently with queries against an existing index.
func (b *Builder) Build(ctx context.Context) ([]models.ProductReference, *BuildReport, error) {
	entries, err := b.source.Entries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	report := &BuildReport{Entries: len(entries)}
	var refs []models.ProductReference

	for i := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		entry := &entries[i]
		productID := entry.ProductID()
		refDir := filepath.Join(b.referencesDir, productID)

		files, err := os.ReadDir(refDir)
		if err != nil {
			report.Skips = append(report.Skips, Skip{ProductID: productID, Reason: "no reference directory"})
			if b.logger != nil {
				b.logger.Warn("no references for product", zap.String("product_id", productID))
			}
			continue
		}

		n := 0
		for _, f := range files {
			if f.IsDir() || !extensionAllowed(filepath.Ext(f.Name()), b.extensions) {
				continue
			}
			ref, err := b.embedReference(ctx, entry, productID, filepath.Join(refDir, f.Name()), f.Name())
			if err != nil {
				report.Skips = append(report.Skips, Skip{ProductID: productID, RefFile: f.Name(), Reason: err.Error()})
				if b.logger != nil {
					b.logger.Warn("failed to process reference image",
						zap.String("product_id", productID),
						zap.String("ref_file", f.Name()),
						zap.Error(err))
				}
				continue
			}
			refs = append(refs, ref)
			n++
		}
		if b.logger != nil {
			b.logger.Debug("processed references", zap.String("product_id", productID), zap.Int("embedded", n))
		}
	}
	report.Embedded = len(refs)
	return refs, report, nil
}

// embedReference decodes one reference image and produces its normalized embedding.
func (b *Builder) embedReference(ctx context.Context, entry *models.CatalogEntry, productID, path, refFile string) (models.ProductReference, error) {
	img, err := decodeImageFile(path)
	if err != nil {
		return models.ProductReference{}, err
	}
	emb, err := b.embedder.Embed(ctx, img)
	if err != nil {
		return models.ProductReference{}, fmt.Errorf("embed: %w", err)
	}
	return models.ProductReference{
		ProductID:   productID,
		ProductName: entry.Name,
		RefFile:     refFile,
		Price:       entry.Price,
		Embedding:   vector.Normalize(emb),
	}, nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
