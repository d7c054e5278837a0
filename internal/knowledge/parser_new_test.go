package knowledge

import (
	"strings"
	"testing"
)

func TestParseExtractsFrontmatterBodyObservationsAndRelations(t *testing.T) {
	source := []byte(strings.Join([]string{
		"---",
		"title: Alpha",
		"type: note",
		"tags: [a, b]",
		"---",
		"",
		"# Alpha",
		"",
		"- [tech] uses SQLite #store",
		"- depends_on [[Beta]]",
		"",
	}, "\n"))

	p := NewParser(nil)
	doc, err := p.Parse("notes/alpha.md", source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.FrontMatter.Title != "Alpha" {
		t.Fatalf("expected title Alpha, got %q", doc.FrontMatter.Title)
	}
	if len(doc.Observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(doc.Observations))
	}
	obs := doc.Observations[0]
	if obs.Category != "tech" || obs.Content != "uses SQLite" || len(obs.Tags) != 1 || obs.Tags[0] != "store" {
		t.Fatalf("unexpected observation: %+v", obs)
	}

	if len(doc.Relations) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(doc.Relations))
	}
	rel := doc.Relations[0]
	if rel.Type != "depends_on" || rel.Target != "Beta" {
		t.Fatalf("unexpected relation: %+v", rel)
	}

	if doc.Checksum == "" {
		t.Fatalf("expected a non-empty checksum")
	}
}

func TestParseUnknownCategoryCollapsesToNote(t *testing.T) {
	source := []byte("- [madeup] something happened\n")
	p := NewParser(nil)
	doc, err := p.Parse("x.md", source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Observations) != 1 || doc.Observations[0].Category != "note" {
		t.Fatalf("expected unknown category to collapse to note, got %+v", doc.Observations)
	}
}

func TestParseObservationWithUnclosedBracketFails(t *testing.T) {
	source := []byte("- [tech missing bracket\n")
	p := NewParser(nil)
	if _, err := p.Parse("x.md", source); err == nil {
		t.Fatalf("expected a ParseError for an unclosed category bracket")
	}
}

func TestParseSkipsNonBulletLinesSilently(t *testing.T) {
	source := []byte("plain paragraph text\n- not a bracketed line\n")
	p := NewParser(nil)
	doc, err := p.Parse("x.md", source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Observations) != 0 || len(doc.Relations) != 0 {
		t.Fatalf("expected no observations/relations, got %+v / %+v", doc.Observations, doc.Relations)
	}
}

func TestParseAbsentFrontmatterYieldsEmptyMap(t *testing.T) {
	p := NewParser(nil)
	doc, err := p.Parse("x.md", []byte("# Just a heading\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.FrontMatter.Title != "" {
		t.Fatalf("expected empty title, got %q", doc.FrontMatter.Title)
	}
}

func TestParseFrontmatterCustomExcludesReservedKeys(t *testing.T) {
	source := []byte(strings.Join([]string{
		"---",
		"title: Alpha",
		"type: note",
		"permalink: notes/alpha",
		"tags: [a, b]",
		"priority: high",
		"---",
		"",
		"body",
		"",
	}, "\n"))

	p := NewParser(nil)
	doc, err := p.Parse("notes/alpha.md", source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for _, reserved := range []string{"title", "type", "permalink", "tags"} {
		if _, ok := doc.FrontMatter.Custom[reserved]; ok {
			t.Fatalf("expected reserved key %q to be absent from Custom, got %+v", reserved, doc.FrontMatter.Custom)
		}
	}
	if doc.FrontMatter.Custom["priority"] != "high" {
		t.Fatalf("expected custom key priority to survive, got %+v", doc.FrontMatter.Custom)
	}
}

func TestParseTagsAcceptsCommaSeparatedString(t *testing.T) {
	source := []byte("---\ntitle: Alpha\ntags: \"a, b, c\"\n---\n\nbody\n")
	p := NewParser(nil)
	doc, err := p.Parse("x.md", source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.FrontMatter.Tags) != 3 {
		t.Fatalf("expected 3 tags, got %v", doc.FrontMatter.Tags)
	}
}

func TestParseContextParenthesesPreservesNestedGroups(t *testing.T) {
	source := []byte("- [note] something (with (nested) parens) (actual context)\n")
	p := NewParser(nil)
	doc, err := p.Parse("x.md", source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	obs := doc.Observations[0]
	if obs.Context == nil || *obs.Context != "actual context" {
		t.Fatalf("expected context 'actual context', got %+v", obs.Context)
	}
	if !strings.Contains(obs.Content, "nested") {
		t.Fatalf("expected nested parens preserved in content, got %q", obs.Content)
	}
}
