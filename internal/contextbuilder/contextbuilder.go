// Package contextbuilder expands a memory:// address into a bounded
// neighborhood graph (spec.md §4.8): a primary match set plus everything
// reachable from it within a relation hop budget, filtered by a timeframe.
package contextbuilder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/basic-memory/internal/logging"
	"github.com/goliatone/basic-memory/internal/memoryurl"
	"github.com/goliatone/basic-memory/internal/timeframe"
	"github.com/goliatone/basic-memory/pkg/interfaces"
)

const (
	defaultDepth      = 1
	defaultTimeframe  = "7d"
	defaultMaxResults = 10
)

// Edge is one traversed relation, surfaced alongside the entity it points
// at (RelatedID nil when the target is unresolved; ToName is then the only
// identifying information available, per invariant I4).
type Edge struct {
	FromID       int64
	RelatedID    *int64
	ToName       string
	RelationType string
	Context      *string
}

// Metadata carries the bookkeeping spec.md §4.8 step 3 requires alongside
// the graph itself.
type Metadata struct {
	URI             string
	Depth           int
	Timeframe       string
	PrimaryCount    int
	RelatedCount    int
	EdgeCount       int
	GeneratedAt     time.Time
}

// GraphContext is the bounded subgraph returned for one memory:// query.
type GraphContext struct {
	PrimaryEntities []interfaces.Entity
	RelatedEntities []interfaces.Entity
	Edges           []Edge
	Metadata        Metadata
}

// Options configures one context-build call. Zero values fall back to the
// spec's defaults: depth 1, timeframe "7d", max_results 10.
type Options struct {
	Depth      int
	Timeframe  string
	MaxResults int
}

// Builder resolves memory:// addresses against an EntityStore and (for
// fuzzy matches) a SearchBackend.
type Builder struct {
	store  interfaces.EntityStore
	search interfaces.SearchBackend
	logger interfaces.Logger
	now    func() time.Time
}

// New constructs a Builder. search may be nil, in which case fuzzy
// resolution (memoryurl.MatchFuzzy) always yields no primary entities.
func New(store interfaces.EntityStore, search interfaces.SearchBackend, provider interfaces.LoggerProvider) *Builder {
	return &Builder{
		store:  store,
		search: search,
		logger: logging.ModuleLogger(provider, "basicmemory.context"),
		now:    time.Now,
	}
}

// Build resolves uri and expands it into a GraphContext (spec.md §4.8).
func (b *Builder) Build(ctx context.Context, projectID, uri string, opts Options) (*GraphContext, error) {
	parsed, err := memoryurl.Parse(uri)
	if err != nil {
		return nil, err
	}
	if parsed.Project != "" && parsed.Project != projectID {
		return nil, fmt.Errorf("contextbuilder: url project %q does not match requested project %q", parsed.Project, projectID)
	}

	depth := opts.Depth
	if depth <= 0 {
		depth = defaultDepth
	}
	tf := opts.Timeframe
	if strings.TrimSpace(tf) == "" {
		tf = defaultTimeframe
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	since, err := timeframe.Parse(tf, b.now())
	if err != nil {
		return nil, err
	}

	primary, err := b.resolvePrimary(ctx, projectID, parsed, since, maxResults)
	if err != nil {
		return nil, err
	}

	related, edges, err := b.expand(ctx, primary, depth)
	if err != nil {
		return nil, err
	}

	b.logger.Info("context built", "uri", uri, "primary", len(primary), "related", len(related))

	return &GraphContext{
		PrimaryEntities: primary,
		RelatedEntities: related,
		Edges:           edges,
		Metadata: Metadata{
			URI:          uri,
			Depth:        depth,
			Timeframe:    tf,
			PrimaryCount: len(primary),
			RelatedCount: len(related),
			EdgeCount:    len(edges),
			GeneratedAt:  b.now(),
		},
	}, nil
}

// resolvePrimary implements step 1: exact match first, else prefix match
// on permalink, else a fuzzy match via the search backend, each filtered
// by created_at >= since and capped at maxResults.
func (b *Builder) resolvePrimary(ctx context.Context, projectID string, url *memoryurl.URL, since time.Time, maxResults int) ([]interfaces.Entity, error) {
	if url.Path == "" {
		return nil, nil
	}

	switch url.Mode {
	case memoryurl.MatchPrefix:
		return b.prefixMatch(ctx, projectID, url.Path, since, maxResults)
	case memoryurl.MatchFuzzy:
		return b.fuzzyMatch(ctx, projectID, url.Path, since, maxResults)
	default:
		entity, err := b.store.FindByPermalink(ctx, projectID, url.Path)
		if err != nil {
			if isNotFound(err) {
				matches, err := b.prefixMatch(ctx, projectID, url.Path, since, maxResults)
				if err != nil || len(matches) > 0 {
					return matches, err
				}
				return b.fuzzyMatch(ctx, projectID, url.Path, since, maxResults)
			}
			return nil, err
		}
		if entity.CreatedAt.Before(since) {
			return nil, nil
		}
		return []interfaces.Entity{*entity}, nil
	}
}

// prefixMatch falls back to the search backend restricted by a permalink
// prefix; when no backend is wired it reports no matches rather than
// erroring, since prefix scanning has no meaning without an index to scan.
func (b *Builder) prefixMatch(ctx context.Context, projectID, prefix string, since time.Time, maxResults int) ([]interfaces.Entity, error) {
	if b.search == nil {
		return nil, nil
	}
	results, err := b.search.Search(ctx, interfaces.SearchQuery{
		ProjectID: projectID,
		Text:      prefix + "*",
		Types:     []string{"entity"},
		AfterDate: &since,
		Limit:     maxResults * 2,
	})
	if err != nil {
		return nil, err
	}
	return b.entitiesForPrefixResults(ctx, results, prefix, since, maxResults)
}

func (b *Builder) entitiesForPrefixResults(ctx context.Context, results []interfaces.SearchResult, prefix string, since time.Time, maxResults int) ([]interfaces.Entity, error) {
	var out []interfaces.Entity
	for _, r := range results {
		if !strings.HasPrefix(r.Row.Permalink, prefix) {
			continue
		}
		entity, err := b.store.GetEntity(ctx, r.Row.EntityID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if entity.CreatedAt.Before(since) {
			continue
		}
		out = append(out, *entity)
		if len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

// fuzzyMatch runs the same search-based lookup without enforcing the
// prefix constraint, since a fuzzy segment (e.g. "not~") is only a loose
// hint rather than an exact boundary.
func (b *Builder) fuzzyMatch(ctx context.Context, projectID, query string, since time.Time, maxResults int) ([]interfaces.Entity, error) {
	if b.search == nil {
		return nil, nil
	}
	results, err := b.search.Search(ctx, interfaces.SearchQuery{
		ProjectID: projectID,
		Text:      query,
		Types:     []string{"entity"},
		AfterDate: &since,
		Limit:     maxResults * 2,
	})
	if err != nil {
		return nil, err
	}
	var out []interfaces.Entity
	for _, r := range results {
		entity, err := b.store.GetEntity(ctx, r.Row.EntityID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if entity.CreatedAt.Before(since) {
			continue
		}
		out = append(out, *entity)
		if len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

// expand runs a breadth-first search outward from the primary set along
// both outgoing and incoming relations, up to depth hops (spec.md §4.8
// step 2). Relations whose target is unresolved surface with ToName only.
func (b *Builder) expand(ctx context.Context, primary []interfaces.Entity, depth int) ([]interfaces.Entity, []Edge, error) {
	visited := make(map[int64]bool, len(primary))
	for _, e := range primary {
		visited[e.ID] = true
	}

	var related []interfaces.Entity
	var edges []Edge
	frontier := make([]int64, 0, len(primary))
	for _, e := range primary {
		frontier = append(frontier, e.ID)
	}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []int64
		sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })

		for _, id := range frontier {
			out, err := b.store.ListRelationsFrom(ctx, id)
			if err != nil {
				return nil, nil, fmt.Errorf("contextbuilder: list relations from %d: %w", id, err)
			}
			for _, rel := range out {
				edges = append(edges, Edge{
					FromID:       id,
					RelatedID:    rel.ToID,
					ToName:       rel.ToName,
					RelationType: rel.RelationType,
					Context:      rel.Context,
				})
				if rel.ToID == nil || visited[*rel.ToID] {
					continue
				}
				entity, err := b.store.GetEntity(ctx, *rel.ToID)
				if err != nil {
					if isNotFound(err) {
						continue
					}
					return nil, nil, err
				}
				visited[*rel.ToID] = true
				related = append(related, *entity)
				next = append(next, *rel.ToID)
			}

			in, err := b.store.ListRelationsTo(ctx, id)
			if err != nil {
				return nil, nil, fmt.Errorf("contextbuilder: list relations to %d: %w", id, err)
			}
			for _, rel := range in {
				edges = append(edges, Edge{
					FromID:       rel.FromID,
					RelatedID:    &id,
					ToName:       rel.ToName,
					RelationType: rel.RelationType,
					Context:      rel.Context,
				})
				if visited[rel.FromID] {
					continue
				}
				entity, err := b.store.GetEntity(ctx, rel.FromID)
				if err != nil {
					if isNotFound(err) {
						continue
					}
					return nil, nil, err
				}
				visited[rel.FromID] = true
				related = append(related, *entity)
				next = append(next, rel.FromID)
			}
		}

		frontier = next
	}

	return related, dedupeEdges(edges), nil
}

// dedupeEdges collapses duplicate (from, to|name, type) edges discovered
// from both the outgoing and incoming traversal direction at the same hop.
func dedupeEdges(edges []Edge) []Edge {
	seen := make(map[string]bool, len(edges))
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		target := e.ToName
		if e.RelatedID != nil {
			target = fmt.Sprintf("#%d", *e.RelatedID)
		}
		key := fmt.Sprintf("%d|%s|%s", e.FromID, e.RelationType, target)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

func isNotFound(err error) bool {
	var nf *interfaces.NotFoundError
	return errors.As(err, &nf)
}
