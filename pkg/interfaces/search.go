package interfaces

import (
	"context"
	"time"
)

// SearchQuery is the shape accepted by SearchBackend.Search (spec.md §4.7).
type SearchQuery struct {
	ProjectID       string
	Text            string
	Types           []string
	EntityTypes     []string
	AfterDate       *time.Time
	MetadataFilters map[string]any
	Limit           int
}

// SearchResult is one ranked hit. Score is backend-native; ascending is
// better, and ties are broken by UpdatedAt descending (spec.md §4.7).
type SearchResult struct {
	Row       SearchIndexRow
	Score     float64
	UpdatedAt time.Time
}

// SearchBackend is the narrow contract both the SQLite and Postgres search
// implementations satisfy (spec.md §4.7, §9 "{SQLiteBackend,
// PostgresBackend}").
type SearchBackend interface {
	Index(ctx context.Context, row SearchIndexRow) error
	Delete(ctx context.Context, projectID, permalink string) error
	Search(ctx context.Context, query SearchQuery) ([]SearchResult, error)
}
