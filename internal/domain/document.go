package domain

import "github.com/rpattn/eveql/internal/clause"

// Document is a single stored row keyed by field name.
type Document map[string]any

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// Sort captures one ordering key of a listing.
type Sort struct {
	Field     string
	Direction SortDirection
}

// Query describes a listing against one table.
type Query struct {
	Filters []clause.Expression
	Sort    []Sort
	Limit   int
	Offset  int
}
