// Package models defines the catalog and search data types shared across packages.
package models

import "strings"

// CatalogEntry is a single product record from the catalog source.
// Price is a pointer so that "no price" survives the JSON round trip.
type CatalogEntry struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price *float64 `json:"price,omitempty"`
}

// ProductID returns the entry's ID, or an ID derived from the name
// (lowercased, spaces as underscores) when the catalog omits one.
func (e *CatalogEntry) ProductID() string {
	if e.ID != "" {
		return e.ID
	}
	return strings.ToLower(strings.ReplaceAll(e.Name, " ", "_"))
}

// ProductReference ties one embedded reference image to its product.
// Immutable once created; the index stores these in insertion order.
type ProductReference struct {
	ProductID   string
	ProductName string
	RefFile     string
	Price       *float64
	Embedding   []float32
}
