package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/basic-memory/pkg/interfaces"
)

var _ interfaces.SearchBackend = (*PostgresBackend)(nil)

// PostgresBackend is the tsvector-backed search_index implementation for
// deployments that point DatabaseURL at Postgres (spec.md §6). No example
// in the pack does Postgres full-text search, so this follows Postgres's
// own idiomatic to_tsvector/ts_rank pattern rather than a pack precedent,
// reusing the same pgdialect/lib/pq stack internal/store already wires in.
type PostgresBackend struct {
	db *bun.DB
}

// NewPostgresBackend wraps a bun.DB dialected with pgdialect.
func NewPostgresBackend(db *bun.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// MigratePostgres creates the search_index table, its tsvector column and
// its GIN index if missing.
func MigratePostgres(ctx context.Context, db *bun.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS search_index (
			entity_id        BIGINT PRIMARY KEY,
			project_id       TEXT NOT NULL,
			title            TEXT NOT NULL,
			content_stems    TEXT NOT NULL,
			content_snippet  TEXT NOT NULL,
			permalink        TEXT NOT NULL,
			file_path        TEXT NOT NULL,
			type             TEXT NOT NULL,
			entity_metadata  JSONB,
			created_at       TIMESTAMPTZ NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL,
			document         TSVECTOR NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS search_index_document_idx ON search_index USING GIN (document)`,
		`CREATE INDEX IF NOT EXISTS search_index_project_idx ON search_index (project_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("search: migrate postgres search_index: %w", err)
		}
	}
	return nil
}

func (b *PostgresBackend) Index(ctx context.Context, row interfaces.SearchIndexRow) error {
	metaJSON, err := json.Marshal(row.Metadata)
	if err != nil {
		return fmt.Errorf("search: marshal metadata for entity %d: %w", row.EntityID, err)
	}
	stems := buildStems(row.Title, row.Permalink, row.FilePath, row.ContentStems)
	snippet := row.ContentSnippet
	if snippet == "" {
		snippet = row.ContentStems
	}
	snippet = buildSnippet(snippet, 280)

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO search_index (
			entity_id, project_id, title, content_stems, content_snippet,
			permalink, file_path, type, entity_metadata, created_at, updated_at, document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			setweight(to_tsvector('english', $3), 'A') ||
			setweight(to_tsvector('english', $4), 'B') ||
			setweight(to_tsvector('english', $6), 'C')
		)
		ON CONFLICT (entity_id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			title = EXCLUDED.title,
			content_stems = EXCLUDED.content_stems,
			content_snippet = EXCLUDED.content_snippet,
			permalink = EXCLUDED.permalink,
			file_path = EXCLUDED.file_path,
			type = EXCLUDED.type,
			entity_metadata = EXCLUDED.entity_metadata,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			document = EXCLUDED.document
	`,
		row.EntityID, row.ProjectID, row.Title, stems, snippet,
		row.Permalink, row.FilePath, row.Type, string(metaJSON),
		row.CreatedAt.UTC(), row.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("search: index entity %d: %w", row.EntityID, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, projectID, permalink string) error {
	_, err := b.db.ExecContext(ctx, `
		DELETE FROM search_index WHERE project_id = $1 AND permalink = $2
	`, projectID, permalink)
	if err != nil {
		return fmt.Errorf("search: delete %s/%s: %w", projectID, permalink, err)
	}
	return nil
}

func (b *PostgresBackend) Search(ctx context.Context, query interfaces.SearchQuery) ([]interfaces.SearchResult, error) {
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions = append(conditions, "project_id = "+arg(query.ProjectID))

	text := strings.TrimSpace(query.Text)
	selectRank := "0 AS rank"
	orderBy := "updated_at DESC"
	if text != "" {
		placeholder := arg(text)
		conditions = append(conditions, fmt.Sprintf("document @@ plainto_tsquery('english', %s)", placeholder))
		selectRank = fmt.Sprintf("ts_rank(document, plainto_tsquery('english', %s)) AS rank", placeholder)
		orderBy = "rank DESC, updated_at DESC"
	}

	if len(query.Types) > 0 {
		placeholders := make([]string, len(query.Types))
		for i, t := range query.Types {
			placeholders[i] = arg(t)
		}
		conditions = append(conditions, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if query.AfterDate != nil {
		conditions = append(conditions, "updated_at >= "+arg(query.AfterDate.UTC()))
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	limitArg := arg(limit * 4)

	sqlText := fmt.Sprintf(`
		SELECT entity_id, title, content_stems, content_snippet, permalink, file_path,
		       type, project_id, entity_metadata, created_at, updated_at, %s
		FROM search_index
		WHERE %s
		ORDER BY %s
		LIMIT %s
	`, selectRank, strings.Join(conditions, " AND "), orderBy, limitArg)

	rows, err := b.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	results, err := scanPostgresRows(rows, query.EntityTypes, query.MetadataFilters)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scanPostgresRows(rows *sql.Rows, entityTypes []string, metadataFilters map[string]any) ([]interfaces.SearchResult, error) {
	var out []interfaces.SearchResult
	for rows.Next() {
		var (
			entityID                                                   int64
			title, stems, snippet, permalink, filePath, typ, projectID string
			metaJSON                                                   []byte
			createdAt, updatedAt                                       time.Time
			rank                                                       float64
		)
		if err := rows.Scan(&entityID, &title, &stems, &snippet, &permalink, &filePath,
			&typ, &projectID, &metaJSON, &createdAt, &updatedAt, &rank); err != nil {
			return nil, fmt.Errorf("search: scan row: %w", err)
		}
		if len(entityTypes) > 0 && !containsString(entityTypes, typ) {
			continue
		}
		var metadata map[string]any
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &metadata); err != nil {
				return nil, fmt.Errorf("search: unmarshal metadata for entity %d: %w", entityID, err)
			}
		}
		if len(metadataFilters) > 0 {
			ok, err := matchMetadataFilters(metadata, metadataFilters)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, interfaces.SearchResult{
			Row: interfaces.SearchIndexRow{
				EntityID:       entityID,
				ProjectID:      projectID,
				Title:          title,
				ContentStems:   stems,
				ContentSnippet: snippet,
				Permalink:      permalink,
				FilePath:       filePath,
				Type:           typ,
				Metadata:       metadata,
				CreatedAt:      createdAt,
				UpdatedAt:      updatedAt,
			},
			// ts_rank grows with relevance; negate it so Score follows the
			// SearchResult contract (ascending is better).
			Score:     -rank,
			UpdatedAt: updatedAt,
		})
	}
	return out, rows.Err()
}
