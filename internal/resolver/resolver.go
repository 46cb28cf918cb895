// Package resolver infers an entity's type from its storage path using the
// active template's folder conventions. Resolution is zero-config for the
// common case and always overridable by the caller.
package resolver

import (
	"path"
	"sort"
	"strings"

	"github.com/codexkeep/codexkeep/internal/template"
)

// Confidence describes how certain a resolution is.
type Confidence string

const (
	// Exact means one unambiguous folder rule matched.
	Exact Confidence = "exact"
	// Ambiguous means multiple candidate types matched; the caller must
	// disambiguate (prompt once per folder, or apply an override).
	Ambiguous Confidence = "ambiguous"
	// Fallback means no rule matched and the template default was used.
	Fallback Confidence = "fallback"
	// None means no rule matched and the template declares no default.
	None Confidence = "none"
)

// Resolution is the outcome of type inference for one document path.
type Resolution struct {
	// Type is the resolved entity type. Empty for Ambiguous and None.
	Type string
	// Candidates lists all matching types for Ambiguous resolutions.
	Candidates []string
	Confidence Confidence
	// Pattern is the folder rule that matched, for diagnostics.
	Pattern string
}

// Resolver applies a template's folder mappings to document paths.
type Resolver struct {
	mappings []template.FolderMapping
	fallback string
}

// New builds a resolver from the given template definition.
func New(def *template.Definition) *Resolver {
	if def == nil {
		return &Resolver{}
	}
	return &Resolver{
		mappings: def.FolderMappings,
		fallback: def.DefaultType(),
	}
}

// Resolve infers the entity type for a document path relative to the vault
// root. Matching is case-insensitive; a pattern matches when it equals any
// directory prefix of the path or glob-matches the document's directory.
func (r *Resolver) Resolve(docPath string) Resolution {
	dir := strings.ToLower(path.Dir(filepath(docPath)))

	seen := make(map[string]struct{})
	var candidates []string
	var matched string

	for _, m := range r.mappings {
		pattern := strings.ToLower(strings.Trim(m.Pattern, "/"))
		if pattern == "" || !dirMatches(dir, pattern) {
			continue
		}
		for _, typ := range m.Types {
			if _, dup := seen[typ]; dup {
				continue
			}
			seen[typ] = struct{}{}
			candidates = append(candidates, typ)
		}
		if matched == "" {
			matched = m.Pattern
		}
	}

	switch len(candidates) {
	case 0:
		if r.fallback != "" {
			return Resolution{Type: r.fallback, Confidence: Fallback}
		}
		return Resolution{Confidence: None}
	case 1:
		return Resolution{Type: candidates[0], Confidence: Exact, Pattern: matched}
	default:
		sort.Strings(candidates)
		return Resolution{Candidates: candidates, Confidence: Ambiguous, Pattern: matched}
	}
}

// dirMatches reports whether a folder pattern applies to a document's
// directory: an exact segment prefix ("characters" matches
// "characters/minor") or a glob over the whole directory.
func dirMatches(dir, pattern string) bool {
	if dir == pattern || strings.HasPrefix(dir+"/", pattern+"/") {
		return true
	}
	if ok, err := path.Match(pattern, dir); err == nil && ok {
		return true
	}
	return false
}

// filepath normalizes separators so Windows-style paths resolve too.
func filepath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
