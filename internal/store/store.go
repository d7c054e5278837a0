// Package store is the persistence layer for entities, observations and
// relations (spec.md §4.4). It talks to bun.DB directly rather than
// through github.com/goliatone/go-repository-bun: that generic ties its
// identifier type to uuid.UUID everywhere it is used in this codebase
// (internal/content, internal/pages, internal/blocks, ...), and this
// domain's primary keys are plain integers. Multi-table writes follow the
// same shape as content.BunContentRepository.ReplaceTranslations: a single
// db.RunInTx wrapping a delete-then-insert.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/basic-memory/pkg/interfaces"
)

var _ interfaces.EntityStore = (*BunEntityStore)(nil)

// BunEntityStore implements interfaces.EntityStore against a bun.DB
// connected to either the sqlite or postgres dialect (spec.md §6).
type BunEntityStore struct {
	db *bun.DB
}

// NewBunEntityStore wraps an already-dialected bun.DB. Callers construct
// the *bun.DB with sqlitedialect or pgdialect themselves, the way
// cmd/basic-memory's openStore does.
func NewBunEntityStore(db *bun.DB) *BunEntityStore {
	return &BunEntityStore{db: db}
}

func (s *BunEntityStore) CreateEntity(ctx context.Context, draft interfaces.EntityDraft) (*interfaces.Entity, error) {
	now := time.Now().UTC()
	row := &entityModel{
		ProjectID:      draft.ProjectID,
		Permalink:      draft.Permalink,
		Title:          draft.Title,
		EntityType:     draft.EntityType,
		ContentType:    draft.ContentType,
		FilePath:       draft.FilePath,
		Checksum:       nil,
		EntityMetadata: draft.EntityMetadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictError(draft.ProjectID, draft.Permalink)
		}
		return nil, fmt.Errorf("store: create entity: %w", err)
	}
	return entityFromModel(row), nil
}

func (s *BunEntityStore) UpdateEntityFields(ctx context.Context, id int64, draft interfaces.EntityDraft) (*interfaces.Entity, error) {
	now := time.Now().UTC()
	result, err := s.db.NewUpdate().
		Model((*entityModel)(nil)).
		Set("title = ?", draft.Title).
		Set("entity_type = ?", draft.EntityType).
		Set("content_type = ?", draft.ContentType).
		Set("permalink = ?", draft.Permalink).
		Set("entity_metadata = ?", draft.EntityMetadata).
		Set("checksum = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictError(draft.ProjectID, draft.Permalink)
		}
		return nil, fmt.Errorf("store: update entity %d: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, notFoundError("entity", fmt.Sprintf("%d", id))
	}
	return s.GetEntity(ctx, id)
}

func (s *BunEntityStore) ReplaceObservations(ctx context.Context, entityID int64, observations []interfaces.Observation) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*observationModel)(nil)).
			Where("entity_id = ?", entityID).
			Exec(ctx); err != nil {
			return fmt.Errorf("store: delete observations: %w", err)
		}
		if len(observations) == 0 {
			return nil
		}
		rows := make([]*observationModel, 0, len(observations))
		for _, o := range observations {
			rows = append(rows, &observationModel{
				EntityID: entityID,
				Category: o.Category,
				Content:  o.Content,
				Tags:     o.Tags,
				Context:  o.Context,
			})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("store: insert observations: %w", err)
		}
		return nil
	})
}

func (s *BunEntityStore) ReplaceRelations(ctx context.Context, entityID int64, relations []interfaces.RelationDraft) error {
	entity, err := s.GetEntity(ctx, entityID)
	if err != nil {
		return err
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*relationModel)(nil)).
			Where("from_id = ?", entityID).
			Exec(ctx); err != nil {
			return fmt.Errorf("store: delete relations: %w", err)
		}
		if len(relations) == 0 {
			return nil
		}
		// I5: duplicate (to_name|to_id, relation_type) pairs collapse to
		// the first occurrence, same ordering rule the synchronizer uses
		// when it builds this slice.
		seen := make(map[string]bool, len(relations))
		rows := make([]*relationModel, 0, len(relations))
		for _, r := range relations {
			key := r.RelationType + "\x00" + r.ToName
			if seen[key] {
				continue
			}
			seen[key] = true
			rows = append(rows, &relationModel{
				ProjectID:    entity.ProjectID,
				FromID:       entityID,
				ToID:         nil,
				ToName:       r.ToName,
				RelationType: r.RelationType,
				Context:      r.Context,
			})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("store: insert relations: %w", err)
		}
		return nil
	})
}

func (s *BunEntityStore) ResolveRelation(ctx context.Context, relationID int64, toID int64) error {
	result, err := s.db.NewUpdate().
		Model((*relationModel)(nil)).
		Set("to_id = ?", toID).
		Where("id = ?", relationID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: resolve relation %d: %w", relationID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return notFoundError("relation", fmt.Sprintf("%d", relationID))
	}
	return nil
}

func (s *BunEntityStore) SetChecksum(ctx context.Context, entityID int64, checksum string) error {
	now := time.Now().UTC()
	result, err := s.db.NewUpdate().
		Model((*entityModel)(nil)).
		Set("checksum = ?", checksum).
		Set("updated_at = ?", now).
		Where("id = ?", entityID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: set checksum for entity %d: %w", entityID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return notFoundError("entity", fmt.Sprintf("%d", entityID))
	}
	return nil
}

func (s *BunEntityStore) UpdateFilePath(ctx context.Context, entityID int64, filePath, permalink string) error {
	now := time.Now().UTC()
	result, err := s.db.NewUpdate().
		Model((*entityModel)(nil)).
		Set("file_path = ?", filePath).
		Set("permalink = ?", permalink).
		Set("updated_at = ?", now).
		Where("id = ?", entityID).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return conflictError("", permalink)
		}
		return fmt.Errorf("store: update file path for entity %d: %w", entityID, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return notFoundError("entity", fmt.Sprintf("%d", entityID))
	}
	return nil
}

func (s *BunEntityStore) DeleteEntityByFile(ctx context.Context, projectID, filePath string) error {
	entity, err := s.findOneBy(ctx, "project_id = ? AND file_path = ?", projectID, filePath)
	if err != nil {
		return err
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*observationModel)(nil)).Where("entity_id = ?", entity.ID).Exec(ctx); err != nil {
			return fmt.Errorf("store: delete observations for entity %d: %w", entity.ID, err)
		}
		if _, err := tx.NewDelete().Model((*relationModel)(nil)).
			Where("from_id = ? OR to_id = ?", entity.ID, entity.ID).Exec(ctx); err != nil {
			return fmt.Errorf("store: delete relations for entity %d: %w", entity.ID, err)
		}
		if _, err := tx.NewDelete().Model((*entityModel)(nil)).Where("id = ?", entity.ID).Exec(ctx); err != nil {
			return fmt.Errorf("store: delete entity %d: %w", entity.ID, err)
		}
		return nil
	})
}

func (s *BunEntityStore) GetEntity(ctx context.Context, id int64) (*interfaces.Entity, error) {
	row := new(entityModel)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("entity", fmt.Sprintf("%d", id))
		}
		return nil, fmt.Errorf("store: get entity %d: %w", id, err)
	}
	return entityFromModel(row), nil
}

func (s *BunEntityStore) FindByPermalink(ctx context.Context, projectID, permalink string) (*interfaces.Entity, error) {
	return s.findOneBy(ctx, "project_id = ? AND permalink = ?", projectID, permalink)
}

func (s *BunEntityStore) FindByTitle(ctx context.Context, projectID, title string) (*interfaces.Entity, error) {
	return s.findOneBy(ctx, "project_id = ? AND title = ?", projectID, title)
}

func (s *BunEntityStore) FindByFilePath(ctx context.Context, projectID, filePath string) (*interfaces.Entity, error) {
	return s.findOneBy(ctx, "project_id = ? AND file_path = ?", projectID, filePath)
}

func (s *BunEntityStore) findOneBy(ctx context.Context, where string, args ...any) (*interfaces.Entity, error) {
	row := new(entityModel)
	err := s.db.NewSelect().Model(row).Where(where, args...).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("entity", fmt.Sprintf("%v", args))
		}
		return nil, fmt.Errorf("store: find entity: %w", err)
	}
	return entityFromModel(row), nil
}

func (s *BunEntityStore) ListChecksums(ctx context.Context, projectID string) (map[string]string, error) {
	var rows []entityModel
	err := s.db.NewSelect().
		Model(&rows).
		Column("file_path", "checksum").
		Where("project_id = ?", projectID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list checksums: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.Checksum == nil {
			continue
		}
		out[r.FilePath] = *r.Checksum
	}
	return out, nil
}

func (s *BunEntityStore) FindUnresolvedRelations(ctx context.Context, projectID string) ([]interfaces.Relation, error) {
	var rows []relationModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("project_id = ? AND to_id IS NULL", projectID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: find unresolved relations: %w", err)
	}
	return relationsFromModels(rows), nil
}

func (s *BunEntityStore) ListRelationsFrom(ctx context.Context, entityID int64) ([]interfaces.Relation, error) {
	var rows []relationModel
	err := s.db.NewSelect().Model(&rows).Where("from_id = ?", entityID).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list relations from %d: %w", entityID, err)
	}
	return relationsFromModels(rows), nil
}

func (s *BunEntityStore) ListRelationsTo(ctx context.Context, entityID int64) ([]interfaces.Relation, error) {
	var rows []relationModel
	err := s.db.NewSelect().Model(&rows).Where("to_id = ?", entityID).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list relations to %d: %w", entityID, err)
	}
	return relationsFromModels(rows), nil
}

func entityFromModel(m *entityModel) *interfaces.Entity {
	return &interfaces.Entity{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		Permalink:      m.Permalink,
		Title:          m.Title,
		EntityType:     m.EntityType,
		ContentType:    m.ContentType,
		FilePath:       m.FilePath,
		Checksum:       m.Checksum,
		EntityMetadata: m.EntityMetadata,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func relationsFromModels(rows []relationModel) []interfaces.Relation {
	out := make([]interfaces.Relation, 0, len(rows))
	for _, r := range rows {
		out = append(out, interfaces.Relation{
			ID:           r.ID,
			FromID:       r.FromID,
			ToID:         r.ToID,
			ToName:       r.ToName,
			RelationType: r.RelationType,
			Context:      r.Context,
		})
	}
	return out
}
