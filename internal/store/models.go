package store

import (
	"time"

	"github.com/uptrace/bun"
)

// entityModel is the bun-mapped row for spec.md §3's Entity. checksum is
// nullable: NULL marks a sync still in flight (invariant I1).
type entityModel struct {
	bun.BaseModel `bun:"table:entities,alias:e"`

	ID             int64          `bun:",pk,autoincrement"`
	ProjectID      string         `bun:"project_id,notnull"`
	Permalink      string         `bun:"permalink,notnull"`
	Title          string         `bun:"title,notnull"`
	EntityType     string         `bun:"entity_type,notnull"`
	ContentType    string         `bun:"content_type,notnull"`
	FilePath       string         `bun:"file_path,notnull"`
	Checksum       *string        `bun:"checksum"`
	EntityMetadata map[string]any `bun:"entity_metadata,type:jsonb"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,default:current_timestamp"`
}

// observationModel is the bun-mapped row for spec.md §3's Observation.
// Rebuilt wholesale on every sync of its parent entity.
type observationModel struct {
	bun.BaseModel `bun:"table:observations,alias:o"`

	ID       int64    `bun:",pk,autoincrement"`
	EntityID int64    `bun:"entity_id,notnull"`
	Category string   `bun:"category,notnull"`
	Content  string   `bun:"content,notnull"`
	Tags     []string `bun:"tags,type:jsonb"`
	Context  *string  `bun:"context"`
}

// relationModel is the bun-mapped row for spec.md §3's Relation. ToID is
// nullable; ToName always carries the verbatim link text (invariant I4).
type relationModel struct {
	bun.BaseModel `bun:"table:relations,alias:r"`

	ID           int64   `bun:",pk,autoincrement"`
	ProjectID    string  `bun:"project_id,notnull"`
	FromID       int64   `bun:"from_id,notnull"`
	ToID         *int64  `bun:"to_id"`
	ToName       string  `bun:"to_name,notnull"`
	RelationType string  `bun:"relation_type,notnull"`
	Context      *string `bun:"context"`
}
