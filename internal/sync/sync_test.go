package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/basic-memory/internal/search"
	"github.com/goliatone/basic-memory/internal/store"
	"github.com/goliatone/basic-memory/pkg/interfaces"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newSynchronizer(t *testing.T, root string, st interfaces.EntityStore, backend interfaces.SearchBackend) *Synchronizer {
	t.Helper()
	return New(Config{
		ProjectID: "p",
		Root:      root,
		Store:     st,
		Search:    backend,
	})
}

func TestRunCreatesEntityWithChecksumSetAfterPass2(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha.md", "---\ntitle: Alpha\n---\n\n- [tech] uses SQLite\n")

	st := store.NewMemoryEntityStore()
	sync := newSynchronizer(t, root, st, nil)

	report, err := sync.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 1 || report.Updated != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	entity, err := st.FindByFilePath(context.Background(), "p", "alpha.md")
	if err != nil {
		t.Fatalf("FindByFilePath: %v", err)
	}
	if entity.Checksum == nil {
		t.Fatalf("expected checksum to be set once Pass 2 completes")
	}
}

func TestRunStoresEntityMetadataMinusReservedKeys(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha.md", "---\ntitle: Alpha\ntype: note\ntags: [a, b]\npriority: high\n---\n\nbody\n")

	st := store.NewMemoryEntityStore()
	sync := newSynchronizer(t, root, st, nil)

	if _, err := sync.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entity, err := st.FindByFilePath(context.Background(), "p", "alpha.md")
	if err != nil {
		t.Fatalf("FindByFilePath: %v", err)
	}
	for _, reserved := range []string{"title", "type", "tags", "permalink"} {
		if _, ok := entity.EntityMetadata[reserved]; ok {
			t.Fatalf("expected reserved key %q absent from entity_metadata, got %+v", reserved, entity.EntityMetadata)
		}
	}
	if entity.EntityMetadata["priority"] != "high" {
		t.Fatalf("expected custom frontmatter to survive in entity_metadata, got %+v", entity.EntityMetadata)
	}
}

func TestRunResolvesLateArrivingRelation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha.md", "---\ntitle: Alpha\n---\n\n- depends_on [[beta]]\n")

	st := store.NewMemoryEntityStore()
	sync := newSynchronizer(t, root, st, nil)

	if _, err := sync.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	alpha, err := st.FindByFilePath(context.Background(), "p", "alpha.md")
	if err != nil {
		t.Fatalf("FindByFilePath: %v", err)
	}
	rels, err := st.ListRelationsFrom(context.Background(), alpha.ID)
	if err != nil || len(rels) != 1 || rels[0].ToID != nil {
		t.Fatalf("expected one unresolved relation after first sync, got %+v / %v", rels, err)
	}

	writeFile(t, root, "beta.md", "---\ntitle: Beta\npermalink: beta\n---\n\nbody\n")
	if _, err := sync.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	rels, err = st.ListRelationsFrom(context.Background(), alpha.ID)
	if err != nil || len(rels) != 1 || rels[0].ToID == nil {
		t.Fatalf("expected the relation to resolve once beta.md arrives, got %+v / %v", rels, err)
	}
}

func TestRunDetectsRename(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "old.md", "---\ntitle: Alpha\n---\n\nbody\n")

	st := store.NewMemoryEntityStore()
	sync := newSynchronizer(t, root, st, nil)
	sync.cfg.MoveDetection = MoveDetectionChecksumOnly

	if _, err := sync.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	original, err := st.FindByFilePath(context.Background(), "p", "old.md")
	if err != nil {
		t.Fatalf("FindByFilePath: %v", err)
	}

	if err := os.Rename(filepath.Join(root, "old.md"), filepath.Join(root, "new.md")); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	report, err := sync.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Moved != 1 || report.Created != 0 || report.Deleted != 0 {
		t.Fatalf("expected a move, got %+v", report)
	}

	moved, err := st.GetEntity(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if moved.FilePath != "new.md" {
		t.Fatalf("expected entity identity preserved under new.md, got %+v", moved)
	}
}

func TestRunReindexesModifiedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha.md", "---\ntitle: Alpha\n---\n\noriginal body\n")

	st := store.NewMemoryEntityStore()
	sync := newSynchronizer(t, root, st, nil)
	if _, err := sync.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	writeFile(t, root, "alpha.md", "---\ntitle: Alpha Revised\n---\n\nnew body\n")
	report, err := sync.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Updated != 1 {
		t.Fatalf("expected one update, got %+v", report)
	}

	entity, err := st.FindByFilePath(context.Background(), "p", "alpha.md")
	if err != nil {
		t.Fatalf("FindByFilePath: %v", err)
	}
	if entity.Title != "Alpha Revised" {
		t.Fatalf("expected title to be refreshed, got %q", entity.Title)
	}
}

func TestRunDeletesEntityAndSearchRow(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha.md", "---\ntitle: Alpha\n---\n\nbody\n")

	st := store.NewMemoryEntityStore()
	backend := search.NewMemoryBackend()
	sync := newSynchronizer(t, root, st, backend)

	if _, err := sync.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	results, err := backend.Search(context.Background(), interfaces.SearchQuery{ProjectID: "p", Text: "alpha"})
	if err != nil || len(results) != 1 {
		t.Fatalf("expected the entity indexed after first sync, got %v / %v", results, err)
	}

	if err := os.Remove(filepath.Join(root, "alpha.md")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	report, err := sync.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Deleted != 1 {
		t.Fatalf("expected a deletion, got %+v", report)
	}

	if _, err := st.FindByFilePath(context.Background(), "p", "alpha.md"); err == nil {
		t.Fatalf("expected the entity to be gone from the store")
	}
	results, err = backend.Search(context.Background(), interfaces.SearchQuery{ProjectID: "p", Text: "alpha"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected the search row to be removed alongside the entity, got %v", results)
	}
}

func TestRunIndexesEntityBodyForSearch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes/alpha.md", "---\ntitle: Alpha\n---\n\nmentions unobtainium explicitly\n")

	st := store.NewMemoryEntityStore()
	backend := search.NewMemoryBackend()
	sync := newSynchronizer(t, root, st, backend)

	if _, err := sync.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, err := backend.Search(context.Background(), interfaces.SearchQuery{ProjectID: "p", Text: "unobtainium"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || !strings.Contains(results[0].Row.ContentStems, "unobtainium") {
		t.Fatalf("expected body text to be searchable via ContentStems, got %+v", results)
	}
}

func TestRunIndexesRenderedSnippetWithoutMarkup(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha.md", "---\ntitle: Alpha\n---\n\n# Heading\n\nSome **bold** body text.\n")

	st := store.NewMemoryEntityStore()
	backend := search.NewMemoryBackend()
	sync := newSynchronizer(t, root, st, backend)

	if _, err := sync.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, err := backend.Search(context.Background(), interfaces.SearchQuery{ProjectID: "p", Text: "bold"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %+v", results)
	}
	snippet := results[0].Row.ContentSnippet
	if snippet == "" {
		t.Fatalf("expected a non-empty rendered snippet")
	}
	if strings.Contains(snippet, "<") || strings.Contains(snippet, "**") {
		t.Fatalf("expected goldmark markup stripped from the snippet, got %q", snippet)
	}
	if !strings.Contains(snippet, "bold") {
		t.Fatalf("expected the snippet to retain body text, got %q", snippet)
	}
}
