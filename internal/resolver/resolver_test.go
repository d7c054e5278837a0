package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/basic-memory/internal/resolver"
	"github.com/goliatone/basic-memory/internal/search"
	"github.com/goliatone/basic-memory/internal/store"
	"github.com/goliatone/basic-memory/pkg/interfaces"
)

func mustCreate(t *testing.T, st *store.MemoryEntityStore, draft interfaces.EntityDraft) *interfaces.Entity {
	t.Helper()
	e, err := st.CreateEntity(context.Background(), draft)
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	return e
}

func TestResolveByExactPermalink(t *testing.T) {
	st := store.NewMemoryEntityStore()
	mustCreate(t, st, interfaces.EntityDraft{ProjectID: "p", Permalink: "beta", Title: "Beta"})

	r := resolver.New(st, nil)
	got, err := r.Resolve(context.Background(), "p", "[[beta]]")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got == nil || got.Permalink != "beta" {
		t.Fatalf("expected to resolve to beta, got %+v", got)
	}
}

func TestResolveByExactTitle(t *testing.T) {
	st := store.NewMemoryEntityStore()
	mustCreate(t, st, interfaces.EntityDraft{ProjectID: "p", Permalink: "my-beta-note", Title: "Beta"})

	r := resolver.New(st, nil)
	got, err := r.Resolve(context.Background(), "p", "Beta")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got == nil || got.Title != "Beta" {
		t.Fatalf("expected to resolve by title, got %+v", got)
	}
}

func TestResolveFallsBackToSearch(t *testing.T) {
	st := store.NewMemoryEntityStore()
	entity := mustCreate(t, st, interfaces.EntityDraft{ProjectID: "p", Permalink: "notes/beta-plan", Title: "Beta Plan Document"})

	backend := search.NewMemoryBackend()
	now := time.Now().UTC()
	if err := backend.Index(context.Background(), interfaces.SearchIndexRow{
		EntityID:  entity.ID,
		ProjectID: "p",
		Title:     entity.Title,
		Permalink: entity.Permalink,
		Type:      "entity",
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Index: %v", err)
	}

	r := resolver.New(st, backend)
	got, err := r.Resolve(context.Background(), "p", "beta plan")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got == nil || got.ID != entity.ID {
		t.Fatalf("expected fallback search to resolve to %d, got %+v", entity.ID, got)
	}
}

func TestResolveReturnsNilWhenNothingMatches(t *testing.T) {
	st := store.NewMemoryEntityStore()
	r := resolver.New(st, nil)
	got, err := r.Resolve(context.Background(), "p", "[[Nonexistent]]")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for an unresolved link, got %+v", got)
	}
}

func TestResolveStripsAliasPipe(t *testing.T) {
	st := store.NewMemoryEntityStore()
	mustCreate(t, st, interfaces.EntityDraft{ProjectID: "p", Permalink: "beta", Title: "Beta"})

	r := resolver.New(st, nil)
	got, err := r.Resolve(context.Background(), "p", "[[beta|Shown As]]")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got == nil || got.Permalink != "beta" {
		t.Fatalf("expected alias link to resolve to beta, got %+v", got)
	}
}
