// Package permalink derives and normalizes the stable, unique slug identity
// of an entity within a project (spec.md §3, §4.6 step 5).
package permalink

import (
	"path"
	"regexp"
	"strings"

	slug "github.com/goliatone/go-slug"
)

var invalidChars = regexp.MustCompile(`[^A-Za-z0-9/_-]+`)

// FromTitleAndFolder derives a permalink from an entity's title and the
// folder its file lives in, matching spec.md §3 ("slug derived from title
// and folder"). The folder is the file path with its extension and final
// path segment removed.
func FromTitleAndFolder(title, filePath string) string {
	dir := path.Dir(path.Clean(filePath))
	base := Slugify(title)
	if dir == "." || dir == "" {
		return base
	}
	return path.Join(Slugify(dir), base)
}

// Slugify normalizes arbitrary text into the permalink charset
// [A-Za-z0-9/_-], using go-slug's normalizer and then stripping whatever it
// doesn't already cover (path separators, stray punctuation).
func Slugify(text string) string {
	normalized, err := slug.Normalize(text)
	if err != nil || normalized == "" {
		normalized = fallbackSlugify(text)
	}
	normalized = invalidChars.ReplaceAllString(normalized, "-")
	normalized = strings.Trim(normalized, "-/")
	return strings.ToLower(normalized)
}

// fallbackSlugify is used only when go-slug rejects the input outright (e.g.
// empty string); it guarantees Slugify never returns an error.
func fallbackSlugify(text string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '/':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// FromFilePath derives a permalink directly from a file's relative path,
// dropping its extension (used when no title is available).
func FromFilePath(filePath string) string {
	ext := path.Ext(filePath)
	trimmed := strings.TrimSuffix(filePath, ext)
	return Slugify(trimmed)
}
