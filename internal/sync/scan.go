package sync

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/goliatone/basic-memory/internal/checksum"
	"github.com/goliatone/basic-memory/internal/ignore"
)

// readFile reads a scanner-relative path back from disk, joining it onto
// root the same way scanDirectory produced it.
func readFile(root, relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
}

// fileChangeSet is the scanner's diff of the filesystem against the
// checksums previously recorded in the store (spec.md §4.5 Pass 1 input).
// Ordering within each slice is deterministic (lexical by path) so sync
// runs are reproducible.
type fileChangeSet struct {
	New       []string
	Modified  []string
	Deleted   []string
	Unchanged []string
	// MovedFrom maps a New path to the Deleted path it was renamed from,
	// populated only when the scanner's move-detection policy fires.
	MovedFrom map[string]string
	// Checksums holds the freshly computed checksum for every New/Modified
	// path, keyed by path, so callers never re-hash a file they just read.
	Checksums map[string]string
}

// scanDirectory walks root depth-first, applying the ignore filter and
// restricting to Markdown files, and returns every relative path found
// together with its current checksum.
func scanDirectory(root string, filter *ignore.Filter) (map[string]string, error) {
	found := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if filter != nil && filter.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("sync: read %s: %w", rel, readErr)
		}
		found[rel] = checksum.Sum(content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync: scan %s: %w", root, err)
	}
	return found, nil
}

// diff compares the current filesystem state to the checksums on record
// and classifies every path, applying the move-detection policy when
// requested (spec.md §4.5, the configurable moved-by-checksum heuristic
// recorded in DESIGN.md's open-question decisions).
func diff(current map[string]string, recorded map[string]string, moveDetection MoveDetection) fileChangeSet {
	set := fileChangeSet{
		MovedFrom: map[string]string{},
		Checksums: map[string]string{},
	}

	for path, sum := range current {
		recordedSum, known := recorded[path]
		switch {
		case !known:
			set.New = append(set.New, path)
			set.Checksums[path] = sum
		case recordedSum != sum:
			set.Modified = append(set.Modified, path)
			set.Checksums[path] = sum
		default:
			set.Unchanged = append(set.Unchanged, path)
		}
	}
	for path := range recorded {
		if _, stillPresent := current[path]; !stillPresent {
			set.Deleted = append(set.Deleted, path)
		}
	}

	sort.Strings(set.New)
	sort.Strings(set.Modified)
	sort.Strings(set.Deleted)
	sort.Strings(set.Unchanged)

	if moveDetection == MoveDetectionChecksumOnly {
		applyMoveDetection(&set, recorded)
	}
	return set
}

// applyMoveDetection treats a New path and a Deleted path that share a
// checksum as a rename, preserving the entity's identity instead of
// deleting and recreating it. When more than one Deleted path shares the
// same checksum as a New path, the match is ambiguous and is left as a
// plain delete+create, per the DESIGN.md decision.
func applyMoveDetection(set *fileChangeSet, recorded map[string]string) {
	deletedByChecksum := make(map[string][]string, len(set.Deleted))
	for _, path := range set.Deleted {
		deletedByChecksum[recorded[path]] = append(deletedByChecksum[recorded[path]], path)
	}

	var stillNew, stillDeleted []string
	consumedDeleted := make(map[string]bool)

	for _, newPath := range set.New {
		candidates := deletedByChecksum[set.Checksums[newPath]]
		unconsumed := candidates[:0:0]
		for _, c := range candidates {
			if !consumedDeleted[c] {
				unconsumed = append(unconsumed, c)
			}
		}
		if len(unconsumed) == 1 {
			set.MovedFrom[newPath] = unconsumed[0]
			consumedDeleted[unconsumed[0]] = true
			continue
		}
		stillNew = append(stillNew, newPath)
	}
	for _, deletedPath := range set.Deleted {
		if !consumedDeleted[deletedPath] {
			stillDeleted = append(stillDeleted, deletedPath)
		}
	}

	set.New = stillNew
	set.Deleted = stillDeleted
}
