package knowledge

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
)

// frontMatterEnvelope is the YAML shape adrg/frontmatter decodes into. Tags
// is deliberately `any` because the spec accepts either a list or a
// comma-separated string (B5).
type frontMatterEnvelope struct {
	Title     string         `yaml:"title"`
	Type      string         `yaml:"type"`
	Permalink string         `yaml:"permalink"`
	Created   *time.Time     `yaml:"created"`
	Modified  *time.Time     `yaml:"modified"`
	Tags      any            `yaml:"tags"`
	Custom    map[string]any `yaml:",inline"`
}

// ParseFrontMatter splits source into its frontmatter and Markdown body.
// Absent frontmatter (no leading `---` delimiter) yields an empty
// FrontMatter and the full source as body — adrg/frontmatter returns the
// source unchanged in that case, which this function treats as success.
func ParseFrontMatter(source []byte) (FrontMatter, []byte, error) {
	var env frontMatterEnvelope

	reader := bytes.NewReader(source)
	body, err := frontmatter.Parse(reader, &env)
	if err != nil {
		return FrontMatter{}, nil, &ParseError{Reason: fmt.Sprintf("malformed frontmatter: %v", err)}
	}

	tags, err := normalizeTags(env.Tags)
	if err != nil {
		return FrontMatter{}, nil, &ParseError{Reason: err.Error()}
	}

	fm := FrontMatter{
		Title:     env.Title,
		Type:      env.Type,
		Permalink: env.Permalink,
		Tags:      tags,
		Custom:    cloneMap(env.Custom),
	}
	if env.Created != nil {
		fm.Created = *env.Created
	}
	if env.Modified != nil {
		fm.Modified = *env.Modified
	}

	return fm, body, nil
}

// normalizeTags implements B5: tags may be a YAML list of strings or a single
// comma-separated string. Entries are trimmed and empties dropped.
func normalizeTags(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return splitTagString(v), nil
	case []string:
		return trimNonEmpty(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("tags: expected string list entries, got %T", item)
			}
			out = append(out, s)
		}
		return trimNonEmpty(out), nil
	default:
		return nil, fmt.Errorf("tags: unsupported type %T", raw)
	}
}

func splitTagString(s string) []string {
	parts := strings.Split(s, ",")
	return trimNonEmpty(parts)
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cloneMap(input map[string]any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}
