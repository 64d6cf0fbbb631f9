package models

// SearchResult is a single ranked product match for a query image.
// Similarity is cosine similarity via inner product, in [-1, 1].
type SearchResult struct {
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	Similarity  float64  `json:"similarity"`
	RefFile     string   `json:"ref_file"`
	Price       *float64 `json:"price,omitempty"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Success   bool            `json:"success"`
	Matches   []*SearchResult `json:"matches"`
	QueryTime int64           `json:"query_time_ms"`
}

// RebuildResponse is the response for an index rebuild request.
type RebuildResponse struct {
	Success   bool   `json:"success"`
	IndexSize int    `json:"index_size"`
	BuildID   string `json:"build_id,omitempty"`
}
