// Package parser turns raw document text into structured records.
// A document is UTF-8 text with an optional leading YAML metadata block
// delimited by "---" lines, followed by a free-form body. Cross-references
// use wiki-style tokens: [[target-id]] or [[target-id|Display Alias]].
//
// Parsing has no side effects; validation against the active template is the
// caller's concern (see the template package).
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
)

// Heading is one entry of a document's outline.
type Heading struct {
	// Level is the heading depth (1-6).
	Level int
	// Text is the heading text with markers stripped.
	Text string
	// Line is the 1-indexed line number within the body.
	Line int
}

// Relation is an explicit relationship declaration from document metadata.
// These bypass label inference in the graph builder.
type Relation struct {
	Target string
	Type   string
	Status string
}

// Document is the structured form of one source file.
type Document struct {
	// Path is the vault-relative path of the source file.
	Path string
	// ID is the stable identity from metadata. May be empty; the caller
	// assigns a generated id before indexing.
	ID string
	// Type is the declared entity type from metadata. May be empty; the
	// folder resolver infers it.
	Type string
	// Status is the document status (draft when undeclared).
	Status string
	// Title is the display title: metadata title, else first heading,
	// else the filename stem.
	Title string
	// Metadata is the full decoded metadata block.
	Metadata map[string]any
	// Body is the text after the metadata block.
	Body string
	// Refs is the deduplicated list of cross-reference targets, in order
	// of first appearance, with display aliases stripped.
	Refs []string
	// Relations are explicit relationship declarations from metadata.
	Relations []Relation
	// Outline is the heading structure of the body.
	Outline []Heading
}

const delimiter = "---"

// refPattern matches [[target]] and [[target|Alias]] tokens.
var refPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|[^\[\]]*)?\]\]`)

// headingPattern matches ATX-style headings at the start of a line.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// Parse converts raw document text into a Document.
//
// A missing or empty metadata block returns ErrCodeNoMetadata, which callers
// must distinguish from field-level validation failures: a document without
// metadata is skipped (or offered a fix), one with bad fields is reported.
func Parse(path, raw string) (*Document, error) {
	meta, body, err := splitFrontmatter(path, raw)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Path:     path,
		Metadata: meta,
		Body:     body,
		Status:   "draft",
	}

	if v, ok := meta["id"].(string); ok {
		doc.ID = strings.TrimSpace(v)
	}
	if v, ok := meta["type"].(string); ok {
		doc.Type = strings.TrimSpace(v)
	}
	if v, ok := meta["status"].(string); ok && strings.TrimSpace(v) != "" {
		doc.Status = strings.TrimSpace(v)
	}

	doc.Outline = extractOutline(body)
	doc.Refs = extractRefs(body)
	doc.Relations = extractRelations(meta)
	doc.Title = resolveTitle(meta, doc.Outline, path)

	return doc, nil
}

// splitFrontmatter separates the metadata block from the body.
func splitFrontmatter(path, raw string) (map[string]any, string, error) {
	text := strings.TrimPrefix(raw, "\ufeff")

	if !strings.HasPrefix(text, delimiter+"\n") && text != delimiter &&
		!strings.HasPrefix(text, delimiter+"\r\n") {
		return nil, "", cerr.NoMetadata(path)
	}

	rest := text[len(delimiter):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	// Find the closing delimiter on its own line.
	end := -1
	offset := 0
	for _, line := range strings.SplitAfter(rest, "\n") {
		if strings.TrimRight(line, "\r\n") == delimiter {
			end = offset
			break
		}
		offset += len(line)
	}
	if end < 0 {
		return nil, "", cerr.NoMetadata(path)
	}

	block := rest[:end]
	body := rest[end:]
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, "", cerr.Wrap(cerr.ErrCodeUnreadableDoc, err).WithDetail("path", path)
	}
	if len(meta) == 0 {
		return nil, "", cerr.NoMetadata(path)
	}

	return meta, body, nil
}

// extractRefs pulls cross-reference targets from the body.
// Aliases after "|" are stripped and targets deduplicated in first-seen order.
func extractRefs(body string) []string {
	matches := refPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		refs = append(refs, target)
	}
	return refs
}

// extractOutline walks the body for ATX headings.
func extractOutline(body string) []Heading {
	var outline []Heading
	for i, line := range strings.Split(body, "\n") {
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		outline = append(outline, Heading{
			Level: len(m[1]),
			Text:  m[2],
			Line:  i + 1,
		})
	}
	return outline
}

// extractRelations decodes explicit relationship declarations:
//
//	relationships:
//	  - target: elara-voss
//	    type: ally_of
//	    status: canon
func extractRelations(meta map[string]any) []Relation {
	raw, ok := meta["relationships"].([]any)
	if !ok {
		return nil
	}

	var rels []Relation
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		rel := Relation{}
		if v, ok := m["target"].(string); ok {
			rel.Target = strings.TrimSpace(v)
		}
		if v, ok := m["type"].(string); ok {
			rel.Type = strings.TrimSpace(v)
		}
		if v, ok := m["status"].(string); ok {
			rel.Status = strings.TrimSpace(v)
		}
		if rel.Target == "" {
			continue
		}
		if rel.Type == "" {
			rel.Type = "related"
		}
		rels = append(rels, rel)
	}
	return rels
}

// resolveTitle picks the display title for a document.
func resolveTitle(meta map[string]any, outline []Heading, path string) string {
	if v, ok := meta["title"].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if len(outline) > 0 {
		return outline[0].Text
	}
	return Stem(path)
}

// Stem returns the filename without directory or extension.
// Used as the last-resort reference-resolution key and title.
func Stem(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
