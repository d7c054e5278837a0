package search

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// buildStems produces the content_stems projection spec.md §4.7 indexes
// alongside the raw title/body: lowercased whole words, path segments (so
// "specs/search" matches on "specs" or "search" alone), and word 3-grams
// (so partial/typo'd substrings still surface a match). It is plain
// tokenization, not stemming in the linguistic sense — the name is kept
// from spec.md's vocabulary.
func buildStems(title, permalink, filePath, body string) string {
	var b strings.Builder
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		b.WriteString(s)
		b.WriteByte(' ')
	}

	for _, segment := range strings.FieldsFunc(permalink+"/"+filePath, func(r rune) bool { return r == '/' }) {
		add(segment)
	}

	words := wordPattern.FindAllString(title+" "+body, -1)
	for _, w := range words {
		add(w)
	}
	for _, w := range words {
		lw := strings.ToLower(w)
		for i := 0; i+3 <= len(lw); i++ {
			add(lw[i : i+3])
		}
	}

	return strings.TrimSpace(b.String())
}

// buildSnippet takes the first runes of the body as the search result
// preview (spec.md §4.7 content_snippet), trimmed to a rune boundary.
func buildSnippet(body string, maxRunes int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return string(runes[:maxRunes])
}
