// Package knowledge parses a single Markdown file into the structured record
// the rest of the engine persists: frontmatter, body, observations and
// relations.
package knowledge

import (
	"fmt"
	"time"
)

// FrontMatter holds the parsed YAML frontmatter of an entity file. Reserved
// keys get typed fields; everything else lives in Custom, which is what
// gets stored as entity_metadata (spec.md §3/§4.1: metadata minus reserved
// keys).
type FrontMatter struct {
	Title     string
	Type      string
	Permalink string
	Created   time.Time
	Modified  time.Time
	Tags      []string
	Custom    map[string]any
}

// Observation is a single categorized bullet extracted from an entity body.
type Observation struct {
	Category string
	Content  string
	Tags     []string
	Context  *string
}

// Relation is a single directed wiki-link bullet extracted from an entity body.
type Relation struct {
	Type    string
	Target  string
	Context *string
}

// EntityDoc is the complete structured result of parsing one Markdown file.
type EntityDoc struct {
	FrontMatter  FrontMatter
	Body         []byte
	BodyHTML     []byte
	Observations []Observation
	Relations    []Relation
	Checksum     string
}

// ParseError reports a fatal, file-level parse failure. The synchronizer
// records it and moves on to the next file rather than aborting the batch.
type ParseError struct {
	File   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}
