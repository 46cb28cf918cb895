// Package store provides the embedded graph store: nodes, typed
// relationships, a trigger-synchronized FTS5 shadow index, and persisted
// metadata, all in one SQLite file. The file tree remains the source of
// truth; everything here is losslessly rebuildable from it.
package store

import (
	"time"
)

// CurrentSchemaVersion is the knowledge-graph schema version expected by
// this build. On mismatch at open, the graph tables are dropped and
// recreated; unrelated tables in the same file are preserved.
const CurrentSchemaVersion = 2

// Metadata keys persisted in the metadata table.
const (
	MetaKeySchemaVersion  = "schema_version"
	MetaKeyActiveTemplate = "active_template"
	MetaKeyLastScan       = "last_scan"
)

// Node is a persisted, document-derived entity record.
type Node struct {
	ID         string
	Type       string
	Status     string
	Title      string
	Body       string
	Properties map[string]any
	SourcePath string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	TemplateID string
}

// Relationship is a typed, directed link between two nodes.
// (SourceID, TargetID, Relation) triples are unique in the store.
type Relationship struct {
	ID         int64
	SourceID   string
	TargetID   string
	Relation   string
	Properties map[string]any
	// Derived marks edges computed from cross-references, as opposed to
	// explicit declarations in document metadata.
	Derived bool
	// OwnerID is the node whose document produced this edge, including
	// synthesized reverse edges whose SourceID is the other endpoint.
	// Incremental updates clear a document's edges by owner before
	// re-deriving, so reverse edges do not outlive the edit.
	OwnerID string
}

// SearchHit is one ranked full-text result.
type SearchHit struct {
	NodeID string
	// Score is a positive relevance score; higher is better.
	Score float64
}

// Stats summarizes store contents.
type Stats struct {
	NodeCount         int
	RelationshipCount int
	NodesByType       map[string]int
}
