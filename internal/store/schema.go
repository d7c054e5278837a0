package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Migrate creates the entities/observations/relations tables and their
// indexes if they don't already exist. It mirrors the
// db.NewCreateTable().Model(...).IfNotExists() calls the rest of this
// codebase's bun_repository_test.go files use to stand up test schemas,
// lifted here into a real startup path since this project has no separate
// migration runner for its own tables.
func Migrate(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*entityModel)(nil),
		(*observationModel)(nil),
		(*relationModel)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("store: create table for %T: %w", m, err)
		}
	}

	indexes := []struct {
		name, table, expr string
	}{
		{"entities_project_permalink_uq", "entities", "(project_id, permalink)"},
		{"entities_project_file_path_uq", "entities", "(project_id, file_path)"},
		{"observations_entity_id_idx", "observations", "(entity_id)"},
		{"relations_from_id_idx", "relations", "(from_id)"},
		{"relations_to_id_idx", "relations", "(to_id)"},
		{"relations_project_unresolved_idx", "relations", "(project_id) WHERE to_id IS NULL"},
	}
	for _, idx := range indexes {
		unique := ""
		if idx.name == "entities_project_permalink_uq" || idx.name == "entities_project_file_path_uq" {
			unique = "UNIQUE "
		}
		stmt := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s %s", unique, idx.name, idx.table, idx.expr)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create index %s: %w", idx.name, err)
		}
	}
	return nil
}
