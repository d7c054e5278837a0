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

var _ interfaces.SearchBackend = (*SQLiteBackend)(nil)

// SQLiteBackend is the default search_index implementation, an FTS5
// virtual table addressed by entity_id as its rowid (spec.md §4.7, §6).
// Grounded on ternarybob-quaero/internal/storage/sqlite/schema.go's
// `CREATE VIRTUAL TABLE ... USING fts5(...)` plus
// document_storage.go's `WHERE documents_fts MATCH ? ORDER BY rank`
// query shape; reached through bun.DB's QueryContext/ExecContext the way
// internal/adapters/storage/adapter.go wraps the same *bun.DB for raw SQL.
type SQLiteBackend struct {
	db *bun.DB
}

// NewSQLiteBackend wraps a bun.DB dialected with sqlitedialect.
func NewSQLiteBackend(db *bun.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// MigrateSQLite creates the search_index FTS5 virtual table if missing.
func MigrateSQLite(ctx context.Context, db *bun.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
			title,
			content_stems,
			permalink,
			file_path,
			content_snippet UNINDEXED,
			type UNINDEXED,
			project_id UNINDEXED,
			entity_metadata UNINDEXED,
			created_at UNINDEXED,
			updated_at UNINDEXED,
			tokenize = 'porter unicode61'
		)
	`)
	if err != nil {
		return fmt.Errorf("search: create search_index: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Index(ctx context.Context, row interfaces.SearchIndexRow) error {
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

	_, err = b.db.ExecContext(ctx, `DELETE FROM search_index WHERE rowid = ?`, row.EntityID)
	if err != nil {
		return fmt.Errorf("search: clear stale index row for entity %d: %w", row.EntityID, err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO search_index(
			rowid, title, content_stems, permalink, file_path,
			content_snippet, type, project_id, entity_metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.EntityID, row.Title, stems, row.Permalink, row.FilePath,
		snippet, row.Type, row.ProjectID, string(metaJSON),
		row.CreatedAt.UTC().Format(time.RFC3339Nano), row.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("search: index entity %d: %w", row.EntityID, err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, projectID, permalink string) error {
	_, err := b.db.ExecContext(ctx, `
		DELETE FROM search_index WHERE project_id = ? AND permalink = ?
	`, projectID, permalink)
	if err != nil {
		return fmt.Errorf("search: delete %s/%s: %w", projectID, permalink, err)
	}
	return nil
}

func (b *SQLiteBackend) Search(ctx context.Context, query interfaces.SearchQuery) ([]interfaces.SearchResult, error) {
	var conditions []string
	var args []any

	conditions = append(conditions, "project_id = ?")
	args = append(args, query.ProjectID)

	text := strings.TrimSpace(query.Text)
	if text != "" {
		conditions = append(conditions, "search_index MATCH ?")
		args = append(args, ftsMatchExpr(text))
	}

	if len(query.Types) > 0 {
		placeholders := make([]string, len(query.Types))
		for i, t := range query.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		conditions = append(conditions, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if query.AfterDate != nil {
		conditions = append(conditions, "updated_at >= ?")
		args = append(args, query.AfterDate.UTC().Format(time.RFC3339Nano))
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}

	orderBy := "updated_at DESC"
	selectRank := "0 AS rank"
	if text != "" {
		orderBy = "rank ASC, updated_at DESC"
		selectRank = "bm25(search_index) AS rank"
	}

	sqlText := fmt.Sprintf(`
		SELECT rowid, title, content_stems, content_snippet, permalink, file_path,
		       type, project_id, entity_metadata, created_at, updated_at, %s
		FROM search_index
		WHERE %s
		ORDER BY %s
		LIMIT ?
	`, selectRank, strings.Join(conditions, " AND "), orderBy)
	args = append(args, limit*4)

	rows, err := b.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	results, err := scanSQLiteRows(rows, query.EntityTypes, query.MetadataFilters)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scanSQLiteRows(rows *sql.Rows, entityTypes []string, metadataFilters map[string]any) ([]interfaces.SearchResult, error) {
	var out []interfaces.SearchResult
	for rows.Next() {
		var (
			entityID                                                     int64
			title, stems, snippet, permalink, filePath, typ, projectID   string
			metaJSON, createdAtStr, updatedAtStr                         string
			rank                                                         float64
		)
		if err := rows.Scan(&entityID, &title, &stems, &snippet, &permalink, &filePath,
			&typ, &projectID, &metaJSON, &createdAtStr, &updatedAtStr, &rank); err != nil {
			return nil, fmt.Errorf("search: scan row: %w", err)
		}
		if len(entityTypes) > 0 && !containsString(entityTypes, typ) {
			continue
		}
		var metadata map[string]any
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
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
		createdAt, _ := time.Parse(time.RFC3339Nano, createdAtStr)
		updatedAt, _ := time.Parse(time.RFC3339Nano, updatedAtStr)
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
			Score:     rank,
			UpdatedAt: updatedAt,
		})
	}
	return out, rows.Err()
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// ftsMatchExpr quotes each token as an FTS5 phrase so punctuation in a
// permalink or title ("my-note", "v1.2") isn't parsed as an FTS5 operator,
// the same defense SearchByReference in ternarybob-quaero's fts5 service
// applies before issuing a MATCH query. A trailing "*" (spec.md §4.7's
// wildcard search, emitted by contextbuilder.prefixMatch) is moved outside
// the closing quote — `"prefix"*` — since FTS5 only treats "*" as the
// prefix operator there; inside the quotes it would be a literal character.
func ftsMatchExpr(text string) string {
	fields := strings.Fields(text)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		isPrefix := strings.HasSuffix(f, "*") && f != "*"
		if isPrefix {
			f = strings.TrimSuffix(f, "*")
		}
		q := `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		if isPrefix {
			q += "*"
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " ")
}
