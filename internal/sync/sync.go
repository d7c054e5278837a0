package sync

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/goliatone/basic-memory/internal/ignore"
	"github.com/goliatone/basic-memory/internal/knowledge"
	"github.com/goliatone/basic-memory/internal/logging"
	"github.com/goliatone/basic-memory/internal/permalink"
	"github.com/goliatone/basic-memory/internal/resolver"
	"github.com/goliatone/basic-memory/pkg/interfaces"
)

// Config wires a Synchronizer to one project's root directory and store.
type Config struct {
	ProjectID      string
	Root           string
	MoveDetection  MoveDetection
	Store          interfaces.EntityStore
	Resolver       *resolver.Resolver
	Search         interfaces.SearchBackend
	Parser         *knowledge.Parser
	LoggerProvider interfaces.LoggerProvider
}

// Synchronizer runs one two-pass sync batch per Run call (spec.md §4.5).
type Synchronizer struct {
	cfg    Config
	logger interfaces.Logger
}

// New constructs a Synchronizer. A nil Parser/Resolver is replaced with a
// default instance; Search may be nil (relations then never resolve via
// the fallback step, but exact-match resolution still works).
func New(cfg Config) *Synchronizer {
	if cfg.Parser == nil {
		cfg.Parser = knowledge.NewParser(nil)
	}
	if cfg.Resolver == nil {
		cfg.Resolver = resolver.New(cfg.Store, cfg.Search)
	}
	return &Synchronizer{
		cfg:    cfg,
		logger: logging.SyncLogger(cfg.LoggerProvider),
	}
}

// Run executes one full sync batch: Pass 1 reconciles every changed file in
// deterministic order, Pass 2 resolves relations and flips checksums.
// Pass 2 never starts until Pass 1 has finished for the entire batch
// (invariant I6).
func (s *Synchronizer) Run(ctx context.Context) (*Report, error) {
	acc := newAccumulator()

	filter, err := ignore.Load(s.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("sync: load ignore filter: %w", err)
	}

	current, err := scanDirectory(s.cfg.Root, filter)
	if err != nil {
		return nil, err
	}
	known, err := s.cfg.Store.ListChecksums(ctx, s.cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("sync: list checksums: %w", err)
	}

	changes := diff(current, known, s.cfg.MoveDetection)
	acc.unchanged = len(changes.Unchanged)

	touched, err := s.runPass1(ctx, changes, acc)
	if err != nil {
		return nil, err
	}

	if err := s.runPass2(ctx, touched, current, acc); err != nil {
		return nil, err
	}

	return acc.result(), nil
}

// touchedEntity is Pass 1's record of a file that needs Pass 2 attention:
// its entity id and its relative file path.
type touchedEntity struct {
	entityID int64
	path     string
}

// runPass1 reconciles files in the deterministic order spec.md §4.5 names:
// deleted, moved, modified, new. Every new/modified entity is left with
// checksum = NULL; Pass 2 flips it once relations resolve.
func (s *Synchronizer) runPass1(ctx context.Context, changes fileChangeSet, acc *accumulator) ([]touchedEntity, error) {
	var touched []touchedEntity

	for _, p := range changes.Deleted {
		log := logging.WithSyncContext(s.logger, p, s.cfg.ProjectID, "deleted")
		permalinkToDrop := ""
		if existing, err := s.cfg.Store.FindByFilePath(ctx, s.cfg.ProjectID, p); err == nil {
			permalinkToDrop = existing.Permalink
		}
		if err := s.cfg.Store.DeleteEntityByFile(ctx, s.cfg.ProjectID, p); err != nil {
			// Deletion failure is fatal for the batch (spec.md §4.5).
			return nil, fmt.Errorf("sync: delete %s: %w", p, err)
		}
		if s.cfg.Search != nil && permalinkToDrop != "" {
			if err := s.cfg.Search.Delete(ctx, s.cfg.ProjectID, permalinkToDrop); err != nil {
				acc.addError(p, fmt.Errorf("remove search row: %w", err))
			}
		}
		log.Info("entity deleted")
		acc.deleted++
	}

	movedPaths := sortedKeys(changes.MovedFrom)
	for _, newPath := range movedPaths {
		oldPath := changes.MovedFrom[newPath]
		log := logging.WithSyncContext(s.logger, newPath, s.cfg.ProjectID, "moved")
		entity, err := s.cfg.Store.FindByFilePath(ctx, s.cfg.ProjectID, oldPath)
		if err != nil {
			acc.addError(newPath, fmt.Errorf("locate moved entity from %s: %w", oldPath, err))
			continue
		}
		newPermalink := permalink.FromFilePath(newPath)
		if err := s.cfg.Store.UpdateFilePath(ctx, entity.ID, newPath, newPermalink); err != nil {
			acc.addError(newPath, fmt.Errorf("update file path: %w", err))
			continue
		}
		if s.cfg.Search != nil {
			if entity.Permalink != newPermalink {
				if err := s.cfg.Search.Delete(ctx, s.cfg.ProjectID, entity.Permalink); err != nil {
					acc.addError(newPath, fmt.Errorf("remove stale search row: %w", err))
				}
			}
			if moved, err := s.cfg.Store.GetEntity(ctx, entity.ID); err == nil {
				if err := s.cfg.Search.Index(ctx, interfaces.SearchIndexRow{
					EntityID:  moved.ID,
					ProjectID: s.cfg.ProjectID,
					Title:     moved.Title,
					Permalink: moved.Permalink,
					FilePath:  moved.FilePath,
					Type:      moved.EntityType,
					Metadata:  moved.EntityMetadata,
					CreatedAt: moved.CreatedAt,
					UpdatedAt: moved.UpdatedAt,
				}); err != nil {
					acc.addError(newPath, fmt.Errorf("reindex moved entity: %w", err))
				}
			}
		}
		log.Info("entity moved")
		acc.moved++
		touched = append(touched, touchedEntity{entityID: entity.ID, path: newPath})
	}

	for _, p := range changes.Modified {
		id, isNew, err := s.reconcileFile(ctx, p, acc)
		if err != nil {
			acc.addError(p, err)
			continue
		}
		if isNew {
			acc.created++
		} else {
			acc.updated++
		}
		touched = append(touched, touchedEntity{entityID: id, path: p})
	}

	for _, p := range changes.New {
		id, isNew, err := s.reconcileFile(ctx, p, acc)
		if err != nil {
			acc.addError(p, err)
			continue
		}
		if isNew {
			acc.created++
		} else {
			acc.updated++
		}
		touched = append(touched, touchedEntity{entityID: id, path: p})
	}

	return touched, nil
}

// reconcileFile parses one new or modified file and upserts its entity,
// observations and relations. On parse failure it returns the error without
// mutating any pre-existing entity, leaving its checksum non-NULL
// (spec.md §4.5 failure semantics); on store failure within the write, the
// entity is left with checksum = NULL so it retries on the next sync.
func (s *Synchronizer) reconcileFile(ctx context.Context, relPath string, acc *accumulator) (int64, bool, error) {
	log := logging.WithSyncContext(s.logger, relPath, s.cfg.ProjectID, "reconcile")

	source, err := readFile(s.cfg.Root, relPath)
	if err != nil {
		return 0, false, fmt.Errorf("read file: %w", err)
	}

	doc, err := s.cfg.Parser.Parse(relPath, source)
	if err != nil {
		log.Warn("parse failed, retaining prior entity state")
		return 0, false, err
	}

	title := doc.FrontMatter.Title
	if strings.TrimSpace(title) == "" {
		title = titleFromPath(relPath)
	}
	entityPermalink := doc.FrontMatter.Permalink
	if strings.TrimSpace(entityPermalink) == "" {
		entityPermalink = permalink.FromTitleAndFolder(title, relPath)
	}
	entityType := doc.FrontMatter.Type
	if strings.TrimSpace(entityType) == "" {
		entityType = "entity"
	}

	draft := interfaces.EntityDraft{
		ProjectID:      s.cfg.ProjectID,
		Permalink:      entityPermalink,
		Title:          title,
		EntityType:     entityType,
		ContentType:    "text/markdown",
		FilePath:       relPath,
		EntityMetadata: doc.FrontMatter.Custom,
	}

	existing, err := s.cfg.Store.FindByFilePath(ctx, s.cfg.ProjectID, relPath)
	if err != nil {
		existing, err = s.cfg.Store.FindByPermalink(ctx, s.cfg.ProjectID, entityPermalink)
	}
	isNew := err != nil
	var entity *interfaces.Entity
	if isNew {
		entity, err = s.cfg.Store.CreateEntity(ctx, draft)
	} else {
		entity, err = s.cfg.Store.UpdateEntityFields(ctx, existing.ID, draft)
	}
	if err != nil {
		return 0, false, fmt.Errorf("upsert entity: %w", err)
	}

	observations := make([]interfaces.Observation, 0, len(doc.Observations))
	for _, o := range doc.Observations {
		observations = append(observations, interfaces.Observation{
			EntityID: entity.ID,
			Category: o.Category,
			Content:  o.Content,
			Tags:     o.Tags,
			Context:  o.Context,
		})
	}
	if err := s.cfg.Store.ReplaceObservations(ctx, entity.ID, observations); err != nil {
		return 0, false, fmt.Errorf("replace observations: %w", err)
	}

	relations := make([]interfaces.RelationDraft, 0, len(doc.Relations))
	for _, r := range doc.Relations {
		relations = append(relations, interfaces.RelationDraft{
			ToName:       r.Target,
			RelationType: r.Type,
			Context:      r.Context,
		})
	}
	if err := s.cfg.Store.ReplaceRelations(ctx, entity.ID, relations); err != nil {
		return 0, false, fmt.Errorf("replace relations: %w", err)
	}

	if s.cfg.Search != nil {
		if err := s.cfg.Search.Index(ctx, interfaces.SearchIndexRow{
			EntityID:       entity.ID,
			ProjectID:      s.cfg.ProjectID,
			Title:          entity.Title,
			ContentStems:   string(doc.Body),
			ContentSnippet: knowledge.PlainText(doc.BodyHTML),
			Permalink:      entity.Permalink,
			FilePath:       entity.FilePath,
			Type:           entity.EntityType,
			Metadata:       entity.EntityMetadata,
			CreatedAt:      entity.CreatedAt,
			UpdatedAt:      entity.UpdatedAt,
		}); err != nil {
			return 0, false, fmt.Errorf("index entity: %w", err)
		}
	}

	log.Info("entity reconciled")
	return entity.ID, isNew, nil
}

// runPass2 resolves every relation belonging to a touched entity and then
// flips that entity's checksum, marking it sync-complete. It never begins
// until Pass 1 has returned for the whole batch (invariant I6).
func (s *Synchronizer) runPass2(ctx context.Context, touched []touchedEntity, current map[string]string, acc *accumulator) error {
	for _, t := range touched {
		relations, err := s.cfg.Store.ListRelationsFrom(ctx, t.entityID)
		if err != nil {
			acc.addError(t.path, fmt.Errorf("list relations: %w", err))
			continue
		}

		for _, rel := range relations {
			if rel.ToID != nil {
				continue
			}
			target, err := s.cfg.Resolver.Resolve(ctx, s.cfg.ProjectID, rel.ToName)
			if err != nil {
				acc.addError(t.path, fmt.Errorf("resolve relation %q: %w", rel.ToName, err))
				continue
			}
			if target == nil {
				continue
			}
			if err := s.cfg.Store.ResolveRelation(ctx, rel.ID, target.ID); err != nil {
				acc.addError(t.path, fmt.Errorf("bind relation %q: %w", rel.ToName, err))
				continue
			}
			acc.relationsSet++
		}

		if err := s.cfg.Store.SetChecksum(ctx, t.entityID, current[t.path]); err != nil {
			acc.addError(t.path, fmt.Errorf("set checksum: %w", err))
			continue
		}
	}

	return s.rebindLateArrivals(ctx, touched, acc)
}

// rebindLateArrivals implements late binding (spec.md §4.5): when a file
// that other relations already point to by name finally shows up, rewire
// every previously unresolved relation whose to_name matches its permalink
// or title.
func (s *Synchronizer) rebindLateArrivals(ctx context.Context, touched []touchedEntity, acc *accumulator) error {
	if len(touched) == 0 {
		return nil
	}

	unresolved, err := s.cfg.Store.FindUnresolvedRelations(ctx, s.cfg.ProjectID)
	if err != nil {
		return fmt.Errorf("sync: list unresolved relations: %w", err)
	}
	if len(unresolved) == 0 {
		return nil
	}

	for _, t := range touched {
		entity, err := s.cfg.Store.GetEntity(ctx, t.entityID)
		if err != nil {
			continue
		}
		for _, rel := range unresolved {
			if rel.ToID != nil {
				continue
			}
			if !matchesEntity(rel.ToName, entity) {
				continue
			}
			if err := s.cfg.Store.ResolveRelation(ctx, rel.ID, entity.ID); err != nil {
				acc.addError(t.path, fmt.Errorf("late-bind relation %q: %w", rel.ToName, err))
				continue
			}
			acc.relationsSet++
		}
	}
	return nil
}

func matchesEntity(toName string, entity *interfaces.Entity) bool {
	normalized := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(toName, "[["), "]]"))
	return strings.EqualFold(normalized, entity.Permalink) || strings.EqualFold(normalized, entity.Title)
}

func titleFromPath(relPath string) string {
	base := path.Base(relPath)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	return strings.TrimSpace(base)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
