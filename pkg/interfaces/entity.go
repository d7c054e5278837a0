package interfaces

import (
	"context"
	"time"
)

// Entity is the canonical record for one Markdown file's worth of indexed
// knowledge (spec.md §3). Checksum is nil iff sync is incomplete for the
// file (invariant I1).
type Entity struct {
	ID             int64
	ProjectID      string
	Permalink      string
	Title          string
	EntityType     string
	ContentType    string
	FilePath       string
	Checksum       *string
	EntityMetadata map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EntityDraft carries the fields needed to create or upsert an entity. It
// never carries a checksum: create_entity always inserts with
// checksum = NULL (spec.md §4.4), and modifications flip back to NULL until
// Pass 2 of a sync completes.
type EntityDraft struct {
	ProjectID      string
	Permalink      string
	Title          string
	EntityType     string
	ContentType    string
	FilePath       string
	EntityMetadata map[string]any
}

// Observation is a categorized bullet belonging to an entity (spec.md §3).
// Observations are rebuilt wholesale from the file on every sync; they are
// never edited independently of their parent entity.
type Observation struct {
	ID         int64
	EntityID   int64
	Category   string
	Content    string
	Tags       []string
	Context    *string
}

// Relation is a directed edge between two entities, possibly unresolved
// (spec.md §3). ToID is nil until the link resolver (or late binding) fills
// it in; ToName always preserves the verbatim link text.
type Relation struct {
	ID           int64
	FromID       int64
	ToID         *int64
	ToName       string
	RelationType string
	Context      *string
}

// RelationDraft is the input shape for replace_relations: the target is
// always unresolved (ToID nil) when first written in Pass 1 of a sync; Pass
// 2 resolves it in place (spec.md §4.5).
type RelationDraft struct {
	ToName       string
	RelationType string
	Context      *string
}

// SearchIndexRow is the retrieval projection of an entity (spec.md §3). It
// is a weak projection — lookup only, never owning the underlying entity.
type SearchIndexRow struct {
	EntityID        int64
	ProjectID       string
	Title           string
	ContentStems    string
	ContentSnippet  string
	Permalink       string
	FilePath        string
	Type            string
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FileState is the transient scan result for one file: its current checksum
// and, when the scanner's move heuristic fires, the path it was renamed
// from. Nothing in this tree builds one: sync.Report carries only counters
// and errors, and internal/sync tracks checksums and renames in its own
// fileChangeSet.
type FileState struct {
	Path      string
	Checksum  string
	MovedFrom *string
}

// EntityStore exposes the narrow async operations the synchronizer,
// resolver and context builder compose (spec.md §4.4). Each operation is
// independently atomic; callers never nest transactions across calls.
type EntityStore interface {
	CreateEntity(ctx context.Context, draft EntityDraft) (*Entity, error)
	UpdateEntityFields(ctx context.Context, id int64, draft EntityDraft) (*Entity, error)
	ReplaceObservations(ctx context.Context, entityID int64, observations []Observation) error
	ReplaceRelations(ctx context.Context, entityID int64, relations []RelationDraft) error
	ResolveRelation(ctx context.Context, relationID int64, toID int64) error
	SetChecksum(ctx context.Context, entityID int64, checksum string) error
	UpdateFilePath(ctx context.Context, entityID int64, filePath, permalink string) error
	DeleteEntityByFile(ctx context.Context, projectID, filePath string) error

	GetEntity(ctx context.Context, id int64) (*Entity, error)
	FindByPermalink(ctx context.Context, projectID, permalink string) (*Entity, error)
	FindByTitle(ctx context.Context, projectID, title string) (*Entity, error)
	FindByFilePath(ctx context.Context, projectID, filePath string) (*Entity, error)
	ListChecksums(ctx context.Context, projectID string) (map[string]string, error)
	FindUnresolvedRelations(ctx context.Context, projectID string) ([]Relation, error)
	ListRelationsFrom(ctx context.Context, entityID int64) ([]Relation, error)
	ListRelationsTo(ctx context.Context, entityID int64) ([]Relation, error)
}

// ConflictError reports a unique-key violation during an EntityStore upsert
// (typically a duplicate permalink), spec.md §7 ConflictError.
type ConflictError struct {
	ProjectID string
	Permalink string
}

func (e *ConflictError) Error() string {
	return "entity store: permalink conflict: " + e.ProjectID + "/" + e.Permalink
}

// NotFoundError reports a missing row for a lookup operation.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.Resource + " " + e.Key
}
