package checksum

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// AddFrontmatter emits "---\n<yaml>---\n\n<content>", the inverse of
// ParseFrontmatter. It is used when a component needs to write an entity
// back to disk (spec.md §4.2).
func AddFrontmatter(content []byte, meta map[string]any) ([]byte, error) {
	encoded, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter)
	buf.WriteByte('\n')
	buf.Write(encoded)
	buf.WriteString(delimiter)
	buf.WriteString("\n\n")
	buf.Write(content)
	return buf.Bytes(), nil
}

// ParseFrontmatter strips a leading "---\n...\n---" block and returns the
// decoded map plus the remaining content. Files without a leading
// frontmatter delimiter yield an empty map and the content unchanged.
func ParseFrontmatter(content []byte) (map[string]any, []byte, error) {
	text := string(content)
	if !strings.HasPrefix(text, delimiter) {
		return map[string]any{}, content, nil
	}

	rest := text[len(delimiter):]
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n"+delimiter)
	if end < 0 {
		return nil, nil, fmt.Errorf("parse frontmatter: missing closing delimiter")
	}

	yamlBlock := rest[:end]
	body := rest[end+len("\n"+delimiter):]
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, "\n")

	meta := map[string]any{}
	if strings.TrimSpace(yamlBlock) != "" {
		if err := yaml.Unmarshal([]byte(yamlBlock), &meta); err != nil {
			return nil, nil, fmt.Errorf("parse frontmatter: %w", err)
		}
	}

	return meta, []byte(body), nil
}
