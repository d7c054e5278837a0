package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultPatterns(t *testing.T) {
	dir := t.TempDir()
	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !f.Match(".git", true) {
		t.Fatalf("expected .git to be ignored by default")
	}
	if !f.Match(".obsidian", true) {
		t.Fatalf("expected .obsidian to be ignored by default")
	}
	if f.Match("notes/alpha.md", false) {
		t.Fatalf("did not expect an ordinary Markdown file to be ignored")
	}
}

func TestLoadReadsProjectGitignore(t *testing.T) {
	dir := t.TempDir()
	gitignore := "secrets/\n*.tmp\n# comment\n\ndrafts/alpha.md\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		t.Fatalf("write .gitignore: %v", err)
	}

	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !f.Match("secrets", true) {
		t.Fatalf("expected secrets/ directory to be ignored")
	}
	if !f.Match("scratch.tmp", false) {
		t.Fatalf("expected *.tmp to be ignored anywhere")
	}
	if !f.Match("drafts/alpha.md", false) {
		t.Fatalf("expected the anchored path pattern to match exactly")
	}
	if f.Match("drafts/beta.md", false) {
		t.Fatalf("did not expect an unrelated file under drafts/ to match the anchored pattern")
	}
}

func TestLoadMissingGitignoreIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err != nil {
		t.Fatalf("expected a missing .gitignore to be tolerated, got %v", err)
	}
}

func TestMatchAnchoredLeadingSlashOnlyMatchesFromRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("/outputs\n"), 0o644); err != nil {
		t.Fatalf("write .gitignore: %v", err)
	}
	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !f.Match("outputs", true) {
		t.Fatalf("expected root-level outputs to match")
	}
	if f.Match("notes/outputs", true) {
		t.Fatalf("did not expect a nested outputs directory to match an anchored pattern")
	}
}

func TestExcludedCountsMatches(t *testing.T) {
	dir := t.TempDir()
	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f.Match(".git", true)
	f.Match("notes/alpha.md", false)
	f.Match(".DS_Store", false)
	if f.Excluded() != 2 {
		t.Fatalf("expected 2 excluded paths, got %d", f.Excluded())
	}
}
