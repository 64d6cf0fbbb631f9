// Package search runs image queries against the active index.
package search

import (
	"github.com/hyperjump/mikake/internal/models"
	"github.com/hyperjump/mikake/internal/vector"
)

// Aggregate collapses score-descending raw matches to at most k distinct
// products, keeping each product's best-scoring reference (the first one
// encountered, since matches arrive best-first). Matches whose reference
// index is out of range are skipped.
func Aggregate(matches []vector.Match, idx *vector.FlatIndex, k int) []*models.SearchResult {
	results := make([]*models.SearchResult, 0, k)
	seen := make(map[string]struct{})
	for _, m := range matches {
		ref, ok := idx.Ref(m.Index)
		if !ok {
			continue
		}
		if _, dup := seen[ref.ProductID]; dup {
			continue
		}
		seen[ref.ProductID] = struct{}{}
		results = append(results, &models.SearchResult{
			ProductID:   ref.ProductID,
			ProductName: ref.ProductName,
			Similarity:  m.Score,
			RefFile:     ref.RefFile,
			Price:       ref.Price,
		})
		if len(results) >= k {
			break
		}
	}
	return results
}
