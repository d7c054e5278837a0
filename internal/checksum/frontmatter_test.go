package checksum

import (
	"strings"
	"testing"
)

func TestParseFrontmatterSplitsMetaFromBody(t *testing.T) {
	source := []byte("---\ntitle: Alpha\ntags: [a, b]\n---\n\nbody text\n")

	meta, body, err := ParseFrontmatter(source)
	if err != nil {
		t.Fatalf("ParseFrontmatter: %v", err)
	}
	if meta["title"] != "Alpha" {
		t.Fatalf("expected title Alpha, got %v", meta["title"])
	}
	if strings.TrimSpace(string(body)) != "body text" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestParseFrontmatterAbsentYieldsEmptyMeta(t *testing.T) {
	source := []byte("no frontmatter here\n")
	meta, body, err := ParseFrontmatter(source)
	if err != nil {
		t.Fatalf("ParseFrontmatter: %v", err)
	}
	if len(meta) != 0 {
		t.Fatalf("expected empty meta, got %v", meta)
	}
	if string(body) != string(source) {
		t.Fatalf("expected body unchanged, got %q", body)
	}
}

func TestParseFrontmatterMissingClosingDelimiterErrors(t *testing.T) {
	_, _, err := ParseFrontmatter([]byte("---\ntitle: Alpha\n"))
	if err == nil {
		t.Fatalf("expected an error for an unterminated frontmatter block")
	}
}

func TestAddFrontmatterRoundTrips(t *testing.T) {
	meta := map[string]any{"title": "Alpha"}
	out, err := AddFrontmatter([]byte("body text\n"), meta)
	if err != nil {
		t.Fatalf("AddFrontmatter: %v", err)
	}

	gotMeta, gotBody, err := ParseFrontmatter(out)
	if err != nil {
		t.Fatalf("ParseFrontmatter round-trip: %v", err)
	}
	if gotMeta["title"] != "Alpha" {
		t.Fatalf("expected title to round-trip, got %v", gotMeta["title"])
	}
	if strings.TrimSpace(string(gotBody)) != "body text" {
		t.Fatalf("expected body to round-trip, got %q", gotBody)
	}
}
