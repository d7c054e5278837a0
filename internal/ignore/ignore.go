// Package ignore implements the default + .gitignore ignore filter applied
// while scanning a project root for Markdown files (spec.md §4.3).
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultPatterns are always applied, independent of .gitignore contents:
// VCS metadata, editor swap files, build/cache output, OS metadata, and
// Obsidian's vault directory.
var DefaultPatterns = []string{
	".git/",
	".hg/",
	".svn/",
	".obsidian/",
	"node_modules/",
	"dist/",
	"build/",
	".cache/",
	"*.swp",
	"*.swo",
	"*~",
	".DS_Store",
	"Thumbs.db",
}

type pattern struct {
	glob     glob.Glob
	anchored bool
	dirOnly  bool
	negate   bool
}

// Filter reports whether a relative path should be excluded from scanning.
type Filter struct {
	patterns []pattern
	excluded int
}

// Load builds a Filter from the built-in defaults plus the patterns found in
// "<root>/.gitignore", if that file exists.
func Load(root string) (*Filter, error) {
	f := &Filter{}
	for _, p := range DefaultPatterns {
		if err := f.add(p); err != nil {
			return nil, err
		}
	}

	gitignorePath := filepath.Join(root, ".gitignore")
	file, err := os.Open(gitignorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if err := f.add(line); err != nil {
			continue
		}
	}
	return f, scanner.Err()
}

func (f *Filter) add(raw string) error {
	line := raw
	negate := strings.HasPrefix(line, "!")
	if negate {
		line = line[1:]
	}

	dirOnly := strings.HasSuffix(line, "/")
	if dirOnly {
		line = strings.TrimSuffix(line, "/")
	}

	anchored := strings.HasPrefix(line, "/")
	if anchored {
		line = strings.TrimPrefix(line, "/")
	}
	if strings.Contains(line, "/") {
		anchored = true
	}

	if line == "" {
		return nil
	}

	compiled, err := glob.Compile(line, '/')
	if err != nil {
		return err
	}

	f.patterns = append(f.patterns, pattern{
		glob:     compiled,
		anchored: anchored,
		dirOnly:  dirOnly,
		negate:   negate,
	})
	return nil
}

// Match reports whether relPath (slash-separated, relative to root) should
// be excluded. isDir indicates whether relPath names a directory, which
// matters for patterns anchored to directories only (trailing "/").
func (f *Filter) Match(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	segments := strings.Split(relPath, "/")

	ignored := false
	for _, p := range f.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		var matched bool
		if p.anchored {
			matched = p.glob.Match(relPath)
		} else {
			for _, seg := range segments {
				if p.glob.Match(seg) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		if p.negate {
			ignored = false
		} else {
			ignored = true
		}
	}

	if ignored {
		f.excluded++
	}
	return ignored
}

// Excluded returns the running count of paths this filter has matched.
func (f *Filter) Excluded() int {
	return f.excluded
}
