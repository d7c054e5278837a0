package search

import (
	"context"
	"sort"
	"strings"

	"github.com/goliatone/basic-memory/pkg/interfaces"
)

var _ interfaces.SearchBackend = (*MemoryBackend)(nil)

// MemoryBackend is a minimal in-memory SearchBackend for tests: a linear
// substring scan over indexed rows rather than a real tokenizer/FTS
// engine. It exists purely so the resolver and context builder can be
// exercised without standing up SQLite or Postgres.
type MemoryBackend struct {
	rows map[string]interfaces.SearchIndexRow // keyed by project_id + "\x00" + permalink
}

// NewMemoryBackend builds an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rows: make(map[string]interfaces.SearchIndexRow)}
}

func (b *MemoryBackend) Index(_ context.Context, row interfaces.SearchIndexRow) error {
	b.rows[key(row.ProjectID, row.Permalink)] = row
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, projectID, permalink string) error {
	delete(b.rows, key(projectID, permalink))
	return nil
}

func (b *MemoryBackend) Search(_ context.Context, query interfaces.SearchQuery) ([]interfaces.SearchResult, error) {
	text := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(query.Text, "*")))

	var matches []interfaces.SearchResult
	for _, row := range b.rows {
		if row.ProjectID != query.ProjectID {
			continue
		}
		if len(query.EntityTypes) > 0 && !containsString(query.EntityTypes, row.Type) {
			continue
		}
		if query.AfterDate != nil && row.CreatedAt.Before(*query.AfterDate) {
			continue
		}
		if len(query.MetadataFilters) > 0 {
			ok, err := matchMetadataFilters(row.Metadata, query.MetadataFilters)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if text != "" && !rowMatches(row, text) {
			continue
		}
		matches = append(matches, interfaces.SearchResult{
			Row:       row,
			Score:     rank(row, text),
			UpdatedAt: row.UpdatedAt,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score < matches[j].Score
		}
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})

	limit := query.Limit
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func rowMatches(row interfaces.SearchIndexRow, text string) bool {
	haystacks := []string{row.Title, row.Permalink, row.FilePath, row.ContentStems}
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), text) {
			return true
		}
	}
	return false
}

// rank is a simple "lower is better" heuristic: an exact permalink match
// ranks first, then a title match, then anything else.
func rank(row interfaces.SearchIndexRow, text string) float64 {
	if text == "" {
		return 1
	}
	if strings.EqualFold(row.Permalink, text) {
		return 0
	}
	if strings.EqualFold(row.Title, text) {
		return 0.5
	}
	return 1
}

func key(projectID, permalink string) string {
	return projectID + "\x00" + permalink
}
