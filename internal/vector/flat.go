package vector

import (
	"fmt"
	"sort"

	"github.com/hyperjump/mikake/internal/models"
)

// Match is a single hit from a flat index scan: the score and the position
// of the matched reference in insertion order.
type Match struct {
	Score float64
	Index int
}

// FlatIndex is an immutable brute-force inner-product index over product
// references. Once constructed it is never mutated; a rebuild produces a
// whole new FlatIndex. That makes a *FlatIndex safe to share across
// goroutines without locking.
type FlatIndex struct {
	dimensions int
	refs       []models.ProductReference
	products   int
}

// NewFlatIndex builds an index over refs. Every reference embedding must
// have exactly the given dimension; a mismatch is a construction error,
// never silently dropped.
func NewFlatIndex(dimensions int, refs []models.ProductReference) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	seen := make(map[string]struct{})
	for i, ref := range refs {
		if len(ref.Embedding) != dimensions {
			return nil, fmt.Errorf("reference %d (%s/%s): embedding dimension %d, expected %d",
				i, ref.ProductID, ref.RefFile, len(ref.Embedding), dimensions)
		}
		seen[ref.ProductID] = struct{}{}
	}
	stored := make([]models.ProductReference, len(refs))
	copy(stored, refs)
	return &FlatIndex{
		dimensions: dimensions,
		refs:       stored,
		products:   len(seen),
	}, nil
}

// Search scans every stored embedding and returns up to k matches ordered by
// descending inner product. Ties keep insertion order (stable sort). The
// query must already be normalized and of the index dimension. An empty
// index returns no matches for any k.
func (f *FlatIndex) Search(query []float32, k int) ([]Match, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if k <= 0 || len(f.refs) == 0 {
		return nil, nil
	}
	matches := make([]Match, len(f.refs))
	for i := range f.refs {
		matches[i] = Match{Score: InnerProduct(query, f.refs[i].Embedding), Index: i}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Ref returns the reference at position i in insertion order.
func (f *FlatIndex) Ref(i int) (models.ProductReference, bool) {
	if i < 0 || i >= len(f.refs) {
		return models.ProductReference{}, false
	}
	return f.refs[i], true
}

// Size returns the number of stored reference embeddings.
func (f *FlatIndex) Size() int {
	return len(f.refs)
}

// Products returns the number of distinct product IDs in the index.
func (f *FlatIndex) Products() int {
	return f.products
}

// Dimensions returns the embedding dimension of the index.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}
