// Package template holds named, versioned template definitions: the entity
// types, field rules, relationship types, and folder conventions that
// configure what the graph store accepts. The registry tracks one active
// template and compiles per-type validators on demand.
package template

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Statuses every node carries regardless of template.
const (
	StatusDraft    = "draft"
	StatusPending  = "pending"
	StatusCanon    = "canon"
	StatusNonCanon = "non-canon"
	StatusArchived = "archived"
)

// ValidStatuses is the fixed status vocabulary.
var ValidStatuses = []string{StatusDraft, StatusPending, StatusCanon, StatusNonCanon, StatusArchived}

// FieldKind enumerates the supported field rule kinds.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindText    FieldKind = "text"
	KindNumber  FieldKind = "number"
	KindBoolean FieldKind = "boolean"
	KindEnum    FieldKind = "enum"
	KindArray   FieldKind = "array"
	KindDate    FieldKind = "date"
	// KindRecord is an open key/value map with no per-key rules.
	KindRecord FieldKind = "record"
)

// Field declares one metadata field of an entity type.
type Field struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Required bool      `yaml:"required"`
	// Values is the fixed value list for enum fields.
	Values []string `yaml:"values,omitempty"`
	// ItemKind is the element kind for array fields (primitive kinds only).
	ItemKind FieldKind `yaml:"itemKind,omitempty"`
}

// EntityType declares one kind of entity a template accepts.
type EntityType struct {
	Name        string  `yaml:"name"`
	DisplayName string  `yaml:"displayName"`
	PluralName  string  `yaml:"pluralName"`
	Fields      []Field `yaml:"fields"`
}

// RelationshipType declares a relationship a template understands.
// SourceTypes/TargetTypes name entity types, or the single element "any".
type RelationshipType struct {
	ID            string   `yaml:"id"`
	DisplayName   string   `yaml:"displayName"`
	SourceTypes   []string `yaml:"sourceTypes"`
	TargetTypes   []string `yaml:"targetTypes"`
	Bidirectional bool     `yaml:"bidirectional"`
	// ReverseID names the synthesized reverse relationship when
	// Bidirectional is set.
	ReverseID string `yaml:"reverseId,omitempty"`
}

// FolderMapping maps a vault folder pattern to one or more entity types.
type FolderMapping struct {
	// Pattern is a case-insensitive path glob relative to the vault root,
	// e.g. "characters" or "world/places".
	Pattern string `yaml:"pattern"`
	// Types are the entity types implied by the pattern. More than one
	// makes a match ambiguous and the caller must disambiguate.
	Types []string `yaml:"types"`
	// Fallback marks this mapping's first type as the template default
	// when no pattern matches.
	Fallback bool `yaml:"fallback,omitempty"`
}

// Inference maps a (source type, target type) pair to a relation label,
// used when the graph builder derives edges from cross-references.
type Inference struct {
	SourceType string `yaml:"sourceType"`
	TargetType string `yaml:"targetType"`
	Relation   string `yaml:"relation"`
}

// Definition is one immutable template. The registry holds many; exactly one
// is active at a time. Only the active template's id is persisted in the
// store, never its structure.
type Definition struct {
	ID                string             `yaml:"id"`
	Name              string             `yaml:"name"`
	Version           string             `yaml:"version"`
	Description       string             `yaml:"description,omitempty"`
	EntityTypes       []EntityType       `yaml:"entityTypes"`
	RelationshipTypes []RelationshipType `yaml:"relationshipTypes,omitempty"`
	FolderMappings    []FolderMapping    `yaml:"folderMappings,omitempty"`
	Inference         []Inference        `yaml:"inference,omitempty"`
}

var (
	idPattern      = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// ValidID reports whether id has the required lowercase-hyphenated shape.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ValidVersion reports whether v is a major.minor.patch version.
func ValidVersion(v string) bool {
	return versionPattern.MatchString(v)
}

// Load decodes a template definition from YAML.
func Load(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return &def, nil
}

// EntityTypeNames returns the declared type names in declaration order.
func (d *Definition) EntityTypeNames() []string {
	names := make([]string, len(d.EntityTypes))
	for i, et := range d.EntityTypes {
		names[i] = et.Name
	}
	return names
}

// DefaultType returns the fallback entity type, or "" when none is declared.
func (d *Definition) DefaultType() string {
	for _, fm := range d.FolderMappings {
		if fm.Fallback && len(fm.Types) > 0 {
			return fm.Types[0]
		}
	}
	return ""
}
