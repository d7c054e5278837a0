// Package resolver implements spec.md §4.6's link resolution algorithm:
// turning a relation's raw link text into an entity id, falling back
// through progressively looser matches before giving up and leaving the
// relation unresolved for a later sync pass to bind.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/basic-memory/pkg/interfaces"
)

// Resolver looks up the entity a relation's link text refers to.
type Resolver struct {
	store  interfaces.EntityStore
	search interfaces.SearchBackend
}

// New builds a Resolver over the given store and search backend. search
// may be nil, in which case step 4 (search-based fallback) is skipped —
// useful for tests that only exercise exact-match resolution.
func New(store interfaces.EntityStore, search interfaces.SearchBackend) *Resolver {
	return &Resolver{store: store, search: search}
}

// Resolve runs four steps: normalize, permalink exact match, title exact
// match, and a search-based fallback restricted to type=entity. It returns
// (nil, nil) when none of them matches — an unresolved relation is not an
// error. No permalink is synthesized for a link that matches nothing.
func (r *Resolver) Resolve(ctx context.Context, projectID, toName string) (*interfaces.Entity, error) {
	normalized := normalizeTarget(toName)
	if normalized == "" {
		return nil, nil
	}

	if entity, err := r.store.FindByPermalink(ctx, projectID, normalized); err == nil {
		return entity, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	if entity, err := r.store.FindByTitle(ctx, projectID, normalized); err == nil {
		return entity, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	if r.search != nil {
		entity, err := r.searchFallback(ctx, projectID, normalized)
		if err != nil {
			return nil, err
		}
		if entity != nil {
			return entity, nil
		}
	}

	return nil, nil
}

// searchFallback implements step 4: rank candidates by search score
// (ascending, backend-native), discounted further when the query terms
// appear in the last path segment of the candidate's permalink. The
// lowest-scoring candidate wins.
func (r *Resolver) searchFallback(ctx context.Context, projectID, normalized string) (*interfaces.Entity, error) {
	results, err := r.search.Search(ctx, interfaces.SearchQuery{
		ProjectID:   projectID,
		Text:        normalized,
		EntityTypes: []string{"entity"},
		Limit:       5,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	queryTerms := tokenSet(normalized)
	best := results[0]
	bestScore := candidateScore(best, queryTerms, normalized)
	for _, candidate := range results[1:] {
		score := candidateScore(candidate, queryTerms, normalized)
		if score < bestScore {
			best, bestScore = candidate, score
		}
	}

	entity, err := r.store.GetEntity(ctx, best.Row.EntityID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

// candidateScore starts from the backend's search rank and applies the two
// discounts spec.md §4.6 step 4 names: half for every query term present in
// the candidate's last path segment, and a further fifth when that segment
// equals the query exactly.
func candidateScore(result interfaces.SearchResult, queryTerms map[string]bool, normalized string) float64 {
	score := result.Score
	lastSegment := lastPathSegment(result.Row.Permalink)
	segmentTerms := tokenSet(lastSegment)

	for term := range queryTerms {
		if segmentTerms[term] {
			score *= 0.5
		}
	}
	if strings.EqualFold(lastSegment, normalized) {
		score *= 0.2
	}
	return score
}

func lastPathSegment(path string) string {
	path = strings.Trim(path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func normalizeTarget(toName string) string {
	s := strings.TrimSpace(toName)
	s = strings.TrimPrefix(s, "[[")
	s = strings.TrimSuffix(s, "]]")
	if idx := strings.Index(s, "|"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func tokenSet(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f != "" {
			set[f] = true
		}
	}
	return set
}

func isNotFound(err error) bool {
	var nf *interfaces.NotFoundError
	return errors.As(err, &nf)
}
