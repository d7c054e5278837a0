package knowledge

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Parser turns raw file bytes into an EntityDoc. It is stateless, offline,
// and does not touch the store (spec.md §4.1).
type Parser struct {
	renderer *Renderer
}

// NewParser constructs a Parser with the given body-to-HTML renderer. A nil
// renderer is replaced by NewRenderer(), so BodyHTML is always rendered.
func NewParser(renderer *Renderer) *Parser {
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Parser{renderer: renderer}
}

// Parse decodes source as UTF-8, falling back to UTF-16 when UTF-8 decoding
// fails, then extracts frontmatter, body, observations and relations.
// Any file-level failure is fatal and returned as *ParseError.
func (p *Parser) Parse(path string, source []byte) (*EntityDoc, error) {
	decoded, err := decodeSource(source)
	if err != nil {
		return nil, &ParseError{File: path, Reason: err.Error()}
	}

	fm, body, err := ParseFrontMatter(decoded)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File = path
			return nil, pe
		}
		return nil, &ParseError{File: path, Reason: err.Error()}
	}

	observations, relations, err := extractBullets(body)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File = path
			return nil, pe
		}
		return nil, &ParseError{File: path, Reason: err.Error()}
	}

	sum := sha256.Sum256(decoded)

	doc := &EntityDoc{
		FrontMatter:  fm,
		Body:         body,
		Observations: observations,
		Relations:    relations,
		Checksum:     hex.EncodeToString(sum[:]),
	}

	if p.renderer != nil {
		html, err := p.renderer.Render(body)
		if err != nil {
			return nil, &ParseError{File: path, Reason: fmt.Sprintf("render body: %v", err)}
		}
		doc.BodyHTML = html
	}

	return doc, nil
}

// decodeSource returns source unchanged when it is valid UTF-8 (the common
// case); otherwise it attempts a UTF-16 (BOM-sniffed, defaulting to
// little-endian) decode per spec.md §4.1.
func decodeSource(source []byte) ([]byte, error) {
	if utf8.Valid(source) {
		return source, nil
	}

	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	decoded, err := decoder.Bytes(source)
	if err != nil {
		return nil, fmt.Errorf("decode as utf-8 or utf-16: %w", err)
	}
	if !utf8.Valid(decoded) {
		return nil, fmt.Errorf("decode as utf-8 or utf-16: invalid byte sequence")
	}
	return bytes.TrimPrefix(decoded, []byte{0xEF, 0xBB, 0xBF}), nil
}
