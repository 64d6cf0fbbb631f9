package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"github.com/hyperjump/mikake/internal/config"
	"github.com/hyperjump/mikake/internal/embedding"
	"github.com/hyperjump/mikake/internal/index"
	"github.com/hyperjump/mikake/internal/models"
	"github.com/hyperjump/mikake/internal/vector"
)

// ErrBadImage is returned when the query bytes cannot be decoded as an image.
var ErrBadImage = errors.New("could not decode query image")

// Engine answers image similarity queries: decode, embed, normalize, scan the
// active index snapshot, and aggregate to distinct products.
type Engine struct {
	embedder embedding.Embedder
	manager  *index.Manager
	config   *config.SearchConfig
	logger   *zap.Logger
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(embedder embedding.Embedder, manager *index.Manager, cfg *config.SearchConfig, logger *zap.Logger) *Engine {
	return &Engine{
		embedder: embedder,
		manager:  manager,
		config:   cfg,
		logger:   logger,
	}
}

// Search returns up to k distinct products ranked by similarity to the query
// image. k is clamped to [1, MaxK]; zero or negative uses DefaultK. Returns
// index.ErrNotReady before the first successful build and ErrBadImage for
// undecodable input. The index snapshot is captured once at entry, so a
// rebuild completing mid-call does not change this query's result set.
func (e *Engine) Search(ctx context.Context, imageBytes []byte, k int) ([]*models.SearchResult, error) {
	if k <= 0 {
		k = e.config.DefaultK
	}
	if k > e.config.MaxK {
		k = e.config.MaxK
	}

	flat, err := e.manager.Snapshot()
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	emb, err := e.embedder.Embed(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	query := vector.Normalize(emb)

	matches, err := flat.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("index scan: %w", err)
	}
	results := Aggregate(matches, flat, k)
	if e.logger != nil {
		e.logger.Debug("query answered", zap.Int("k", k), zap.Int("matches", len(results)))
	}
	return results, nil
}
