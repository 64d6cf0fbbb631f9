// Package index owns the active vector index and coordinates rebuilds.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/mikake/internal/catalog"
	"github.com/hyperjump/mikake/internal/models"
	"github.com/hyperjump/mikake/internal/vector"
)

// ErrNotReady is returned when no index has been built yet.
var ErrNotReady = errors.New("search index not ready")

// ErrEmptyBuild is returned when a rebuild produced zero embeddings.
// The previously active index, if any, stays in force.
var ErrEmptyBuild = errors.New("no embeddings extracted from catalog")

// Builder runs one embedding pass over the catalog. Satisfied by *catalog.Builder.
type Builder interface {
	Build(ctx context.Context) ([]models.ProductReference, *catalog.BuildReport, error)
}

// snapshot pairs an immutable index with its build identity. The whole
// snapshot is replaced atomically; readers holding an old snapshot keep a
// fully consistent view.
type snapshot struct {
	flat    *vector.FlatIndex
	buildID string
	builtAt time.Time
}

// Manager holds the single active index and performs rebuilds without
// disturbing in-flight queries. Construction of a new index happens entirely
// off to the side; only the final pointer swap is shared state.
type Manager struct {
	builder    Builder
	dimensions int
	active     atomic.Pointer[snapshot]
	rebuildMu  sync.Mutex
	logger     *zap.Logger // optional; when set, logs build progress
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets a logger for rebuild events.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager in the uninitialized state; Search fails with
// ErrNotReady until the first successful Rebuild.
func NewManager(builder Builder, dimensions int, opts ...ManagerOption) *Manager {
	m := &Manager{builder: builder, dimensions: dimensions}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Rebuild runs a full embedding pass and atomically replaces the active
// index. Concurrent Rebuild calls are serialized; each runs to completion and
// the last writer wins the active pointer. A failed or empty build leaves the
// previous index untouched and returns the error.
func (m *Manager) Rebuild(ctx context.Context) (*Status, error) {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	buildID := uuid.New().String()
	start := time.Now()
	if m.logger != nil {
		m.logger.Info("rebuilding index", zap.String("build_id", buildID))
	}

	refs, report, err := m.builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}
	if len(refs) == 0 {
		if m.logger != nil {
			m.logger.Error("rebuild produced no embeddings",
				zap.String("build_id", buildID),
				zap.Int("catalog_entries", report.Entries),
				zap.Int("skips", len(report.Skips)))
		}
		return nil, ErrEmptyBuild
	}
	flat, err := vector.NewFlatIndex(m.dimensions, refs)
	if err != nil {
		return nil, fmt.Errorf("assemble index: %w", err)
	}

	snap := &snapshot{flat: flat, buildID: buildID, builtAt: time.Now()}
	m.active.Store(snap)

	if m.logger != nil {
		m.logger.Info("index rebuilt",
			zap.String("build_id", buildID),
			zap.Int("vectors", flat.Size()),
			zap.Int("products", flat.Products()),
			zap.Int("skips", len(report.Skips)),
			zap.Duration("took", time.Since(start)))
	}
	st := m.statusFrom(snap)
	return &st, nil
}

// Snapshot returns the currently active index, or ErrNotReady before the
// first successful build. The returned index is immutable: callers can use it
// for the whole request even if a rebuild swaps the active pointer mid-query.
func (m *Manager) Snapshot() (*vector.FlatIndex, error) {
	s := m.active.Load()
	if s == nil {
		return nil, ErrNotReady
	}
	return s.flat, nil
}

// Status describes the active index. Produced from a single atomic load,
// so it never blocks on rebuilds.
type Status struct {
	Ready     bool      `json:"ready"`
	IndexSize int       `json:"index_size"`
	Products  int       `json:"products"`
	BuildID   string    `json:"build_id,omitempty"`
	BuiltAt   time.Time `json:"built_at"`
}

// Status reports the current index state.
func (m *Manager) Status() Status {
	s := m.active.Load()
	if s == nil {
		return Status{}
	}
	return m.statusFrom(s)
}

func (m *Manager) statusFrom(s *snapshot) Status {
	return Status{
		Ready:     true,
		IndexSize: s.flat.Size(),
		Products:  s.flat.Products(),
		BuildID:   s.buildID,
		BuiltAt:   s.builtAt,
	}
}
