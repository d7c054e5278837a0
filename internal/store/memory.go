package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/basic-memory/pkg/interfaces"
)

var _ interfaces.EntityStore = (*MemoryEntityStore)(nil)

// MemoryEntityStore is an in-memory EntityStore for tests and scaffolding,
// grounded on content.MemoryContentRepository's map-backed, mutex-guarded
// shape (same pattern used across the pack's in-memory repositories).
type MemoryEntityStore struct {
	mu sync.RWMutex

	nextEntityID   int64
	nextRelationID int64

	entities     map[int64]*interfaces.Entity
	observations map[int64][]interfaces.Observation
	relations    map[int64]*interfaces.Relation // keyed by relation id
	relationsBy  map[int64][]int64              // entity id -> owned relation ids
}

// NewMemoryEntityStore builds an empty store.
func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{
		entities:     make(map[int64]*interfaces.Entity),
		observations: make(map[int64][]interfaces.Observation),
		relations:    make(map[int64]*interfaces.Relation),
		relationsBy:  make(map[int64][]int64),
	}
}

func (m *MemoryEntityStore) CreateEntity(_ context.Context, draft interfaces.EntityDraft) (*interfaces.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entities {
		if e.ProjectID == draft.ProjectID && strings.EqualFold(e.Permalink, draft.Permalink) {
			return nil, &interfaces.ConflictError{ProjectID: draft.ProjectID, Permalink: draft.Permalink}
		}
	}

	m.nextEntityID++
	now := time.Now().UTC()
	entity := &interfaces.Entity{
		ID:             m.nextEntityID,
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
	m.entities[entity.ID] = entity
	return cloneEntity(entity), nil
}

func (m *MemoryEntityStore) UpdateEntityFields(_ context.Context, id int64, draft interfaces.EntityDraft) (*interfaces.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entity, ok := m.entities[id]
	if !ok {
		return nil, &interfaces.NotFoundError{Resource: "entity", Key: intKey(id)}
	}
	for otherID, e := range m.entities {
		if otherID != id && e.ProjectID == draft.ProjectID && strings.EqualFold(e.Permalink, draft.Permalink) {
			return nil, &interfaces.ConflictError{ProjectID: draft.ProjectID, Permalink: draft.Permalink}
		}
	}

	entity.Title = draft.Title
	entity.EntityType = draft.EntityType
	entity.ContentType = draft.ContentType
	entity.Permalink = draft.Permalink
	entity.EntityMetadata = draft.EntityMetadata
	entity.Checksum = nil
	entity.UpdatedAt = time.Now().UTC()
	return cloneEntity(entity), nil
}

func (m *MemoryEntityStore) ReplaceObservations(_ context.Context, entityID int64, observations []interfaces.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[entityID]; !ok {
		return &interfaces.NotFoundError{Resource: "entity", Key: intKey(entityID)}
	}
	copied := make([]interfaces.Observation, len(observations))
	copy(copied, observations)
	m.observations[entityID] = copied
	return nil
}

func (m *MemoryEntityStore) ReplaceRelations(_ context.Context, entityID int64, relations []interfaces.RelationDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[entityID]; !ok {
		return &interfaces.NotFoundError{Resource: "entity", Key: intKey(entityID)}
	}

	for _, relID := range m.relationsBy[entityID] {
		delete(m.relations, relID)
	}
	m.relationsBy[entityID] = nil

	seen := make(map[string]bool, len(relations))
	for _, draft := range relations {
		key := draft.RelationType + "\x00" + draft.ToName
		if seen[key] {
			continue
		}
		seen[key] = true

		m.nextRelationID++
		rel := &interfaces.Relation{
			ID:           m.nextRelationID,
			FromID:       entityID,
			ToID:         nil,
			ToName:       draft.ToName,
			RelationType: draft.RelationType,
			Context:      draft.Context,
		}
		m.relations[rel.ID] = rel
		m.relationsBy[entityID] = append(m.relationsBy[entityID], rel.ID)
	}
	return nil
}

func (m *MemoryEntityStore) ResolveRelation(_ context.Context, relationID int64, toID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.relations[relationID]
	if !ok {
		return &interfaces.NotFoundError{Resource: "relation", Key: intKey(relationID)}
	}
	id := toID
	rel.ToID = &id
	return nil
}

func (m *MemoryEntityStore) SetChecksum(_ context.Context, entityID int64, checksum string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entity, ok := m.entities[entityID]
	if !ok {
		return &interfaces.NotFoundError{Resource: "entity", Key: intKey(entityID)}
	}
	sum := checksum
	entity.Checksum = &sum
	entity.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryEntityStore) UpdateFilePath(_ context.Context, entityID int64, filePath, permalink string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entity, ok := m.entities[entityID]
	if !ok {
		return &interfaces.NotFoundError{Resource: "entity", Key: intKey(entityID)}
	}
	for otherID, e := range m.entities {
		if otherID != entityID && e.ProjectID == entity.ProjectID && strings.EqualFold(e.Permalink, permalink) {
			return &interfaces.ConflictError{ProjectID: entity.ProjectID, Permalink: permalink}
		}
	}
	entity.FilePath = filePath
	entity.Permalink = permalink
	entity.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryEntityStore) DeleteEntityByFile(_ context.Context, projectID, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var target *interfaces.Entity
	for _, e := range m.entities {
		if e.ProjectID == projectID && e.FilePath == filePath {
			target = e
			break
		}
	}
	if target == nil {
		return &interfaces.NotFoundError{Resource: "entity", Key: filePath}
	}

	// Mirrors store.BunEntityStore.DeleteEntityByFile: relations both from
	// and to the deleted entity are removed outright (never left dangling
	// on a now-nonexistent id), matching invariant P2.
	delete(m.entities, target.ID)
	delete(m.observations, target.ID)
	for _, relID := range m.relationsBy[target.ID] {
		delete(m.relations, relID)
	}
	delete(m.relationsBy, target.ID)
	for relID, rel := range m.relations {
		if rel.ToID != nil && *rel.ToID == target.ID {
			delete(m.relations, relID)
			owned := m.relationsBy[rel.FromID]
			for i, id := range owned {
				if id == relID {
					m.relationsBy[rel.FromID] = append(owned[:i], owned[i+1:]...)
					break
				}
			}
		}
	}
	return nil
}

func (m *MemoryEntityStore) GetEntity(_ context.Context, id int64) (*interfaces.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entity, ok := m.entities[id]
	if !ok {
		return nil, &interfaces.NotFoundError{Resource: "entity", Key: intKey(id)}
	}
	return cloneEntity(entity), nil
}

func (m *MemoryEntityStore) FindByPermalink(_ context.Context, projectID, permalink string) (*interfaces.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entities {
		if e.ProjectID == projectID && strings.EqualFold(e.Permalink, permalink) {
			return cloneEntity(e), nil
		}
	}
	return nil, &interfaces.NotFoundError{Resource: "entity", Key: permalink}
}

func (m *MemoryEntityStore) FindByTitle(_ context.Context, projectID, title string) (*interfaces.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entities {
		if e.ProjectID == projectID && strings.EqualFold(e.Title, title) {
			return cloneEntity(e), nil
		}
	}
	return nil, &interfaces.NotFoundError{Resource: "entity", Key: title}
}

func (m *MemoryEntityStore) FindByFilePath(_ context.Context, projectID, filePath string) (*interfaces.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entities {
		if e.ProjectID == projectID && e.FilePath == filePath {
			return cloneEntity(e), nil
		}
	}
	return nil, &interfaces.NotFoundError{Resource: "entity", Key: filePath}
}

func (m *MemoryEntityStore) ListChecksums(_ context.Context, projectID string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	for _, e := range m.entities {
		if e.ProjectID != projectID || e.Checksum == nil {
			continue
		}
		out[e.FilePath] = *e.Checksum
	}
	return out, nil
}

func (m *MemoryEntityStore) FindUnresolvedRelations(_ context.Context, projectID string) ([]interfaces.Relation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []interfaces.Relation
	for _, rel := range m.relations {
		if rel.ToID != nil {
			continue
		}
		from, ok := m.entities[rel.FromID]
		if !ok || from.ProjectID != projectID {
			continue
		}
		out = append(out, *rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryEntityStore) ListRelationsFrom(_ context.Context, entityID int64) ([]interfaces.Relation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []interfaces.Relation
	for _, relID := range m.relationsBy[entityID] {
		out = append(out, *m.relations[relID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryEntityStore) ListRelationsTo(_ context.Context, entityID int64) ([]interfaces.Relation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []interfaces.Relation
	for _, rel := range m.relations {
		if rel.ToID != nil && *rel.ToID == entityID {
			out = append(out, *rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneEntity(e *interfaces.Entity) *interfaces.Entity {
	copied := *e
	if e.Checksum != nil {
		sum := *e.Checksum
		copied.Checksum = &sum
	}
	return &copied
}

func intKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
