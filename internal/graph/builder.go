// Package graph derives the knowledge graph from parsed documents: it
// upserts nodes, resolves cross-references into relationship edges, and
// supports both full and incremental rebuilds. The builder is the only
// writer of the store's node and edge rows.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
	"github.com/codexkeep/codexkeep/internal/parser"
	"github.com/codexkeep/codexkeep/internal/store"
	"github.com/codexkeep/codexkeep/internal/template"
)

// inferencePair keys the label-inference table.
type inferencePair struct {
	source string
	target string
}

// baseInference maps (source type, target type) pairs to relation labels
// for the built-in entity types. Templates extend it via their inference
// entries; unmatched pairs fall back to "related".
var baseInference = map[inferencePair]string{
	{"character", "character"}: "knows",
	{"character", "location"}:  "located_in",
	{"location", "character"}:  "has_inhabitant",
	{"location", "location"}:   "connected_to",
}

// symmetricReverse maps labels that imply a reverse edge to the label of
// that reverse. Symmetric labels map to themselves.
var symmetricReverse = map[string]string{
	"knows":        "knows",
	"connected_to": "connected_to",
}

// Builder turns parsed documents into graph rows.
type Builder struct {
	store    *store.Store
	registry *template.Registry
}

// New creates a builder writing to the given store, consulting the registry
// for the active template's relationship and inference configuration.
func New(st *store.Store, registry *template.Registry) *Builder {
	return &Builder{store: st, registry: registry}
}

// BuildGraph indexes a batch of documents: every node is upserted first so
// all edge targets exist, then each document's references are resolved into
// edges. Re-running on an unchanged set is idempotent. Per-document write
// failures are collected and returned keyed by source path; they never
// abort the batch.
func (b *Builder) BuildGraph(ctx context.Context, docs []*parser.Document) map[string]error {
	failures := make(map[string]error)

	for _, doc := range docs {
		if err := b.upsertNode(ctx, doc); err != nil {
			failures[doc.Path] = err
		}
	}

	for _, doc := range docs {
		if _, failed := failures[doc.Path]; failed {
			continue
		}
		if err := b.buildEdges(ctx, doc); err != nil {
			failures[doc.Path] = err
		}
	}

	if len(failures) > 0 {
		slog.Warn("graph_build_partial",
			slog.Int("documents", len(docs)),
			slog.Int("failed", len(failures)))
	}
	return failures
}

// UpdateNote re-indexes a single document incrementally: the node is
// upserted and every edge the document produced, including synthesized
// reverse edges, is cleared and recomputed, so an edge whose
// cross-reference was removed by the edit does not survive in either
// direction. Explicit metadata-declared edges are rewritten from the
// current declarations.
func (b *Builder) UpdateNote(ctx context.Context, doc *parser.Document) error {
	if err := b.upsertNode(ctx, doc); err != nil {
		return err
	}
	if err := b.store.DeleteEdgesOwnedBy(ctx, doc.ID); err != nil {
		return err
	}
	return b.buildEdges(ctx, doc)
}

// RemoveNote deletes a node; its relationships cascade.
func (b *Builder) RemoveNote(ctx context.Context, id string) error {
	return b.store.DeleteNode(ctx, id)
}

// upsertNode converts a document into a node row. The document's type must
// be resolvable against the active template (or be one of the built-in base
// types) or the write is rejected.
func (b *Builder) upsertNode(ctx context.Context, doc *parser.Document) error {
	if doc.ID == "" {
		return cerr.StorageError("index document", fmt.Errorf("document %s has no id", doc.Path))
	}
	if !b.typeResolvable(doc.Type) {
		return cerr.Newf(cerr.ErrCodeTypeUnresolved,
			"type %q of %s is not declared by the active template", doc.Type, doc.Path)
	}

	props := make(map[string]any, len(doc.Metadata))
	for k, v := range doc.Metadata {
		switch k {
		case "id", "type", "status", "title", "relationships":
			continue
		}
		props[k] = v
	}

	return b.store.UpsertNode(ctx, &store.Node{
		ID:         doc.ID,
		Type:       doc.Type,
		Status:     doc.Status,
		Title:      doc.Title,
		Body:       doc.Body,
		Properties: props,
		SourcePath: doc.Path,
		TemplateID: b.registry.ActiveID(),
	})
}

// buildEdges derives edges from a document's cross-references and inserts
// its explicit relationship declarations.
func (b *Builder) buildEdges(ctx context.Context, doc *parser.Document) error {
	sourceType := doc.Type

	for _, ref := range doc.Refs {
		targetID, err := b.store.ResolveReference(ctx, ref)
		if err != nil {
			return err
		}
		if targetID == "" || targetID == doc.ID {
			continue
		}

		target, err := b.store.GetNode(ctx, targetID)
		if err != nil {
			return err
		}

		label := b.inferLabel(sourceType, target.Type)
		if err := b.insertWithReverse(ctx, doc.ID, targetID, label); err != nil {
			return err
		}
	}

	// Explicit declarations bypass inference.
	for _, rel := range doc.Relations {
		targetID, err := b.store.ResolveReference(ctx, rel.Target)
		if err != nil {
			return err
		}
		if targetID == "" || targetID == doc.ID {
			continue
		}

		var props map[string]any
		if rel.Status != "" {
			props = map[string]any{"status": rel.Status}
		}
		if err := b.store.InsertRelationship(ctx, &store.Relationship{
			SourceID:   doc.ID,
			TargetID:   targetID,
			Relation:   rel.Type,
			Properties: props,
			Derived:    false,
			OwnerID:    doc.ID,
		}); err != nil {
			return err
		}

		// Template-declared bidirectional relationships synthesize their
		// declared reverse.
		if reverse, ok := b.declaredReverse(rel.Type); ok {
			if err := b.store.InsertRelationship(ctx, &store.Relationship{
				SourceID:   targetID,
				TargetID:   doc.ID,
				Relation:   reverse,
				Properties: props,
				Derived:    false,
				OwnerID:    doc.ID,
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

// insertWithReverse inserts a derived edge and, when the label is marked
// symmetric, exactly one synthesized reverse edge. Both rows are owned by
// the originating document so an incremental update clears them together.
func (b *Builder) insertWithReverse(ctx context.Context, sourceID, targetID, label string) error {
	if err := b.store.InsertRelationship(ctx, &store.Relationship{
		SourceID: sourceID,
		TargetID: targetID,
		Relation: label,
		Derived:  true,
		OwnerID:  sourceID,
	}); err != nil {
		return err
	}

	if reverse, ok := symmetricReverse[label]; ok {
		if err := b.store.InsertRelationship(ctx, &store.Relationship{
			SourceID: targetID,
			TargetID: sourceID,
			Relation: reverse,
			Derived:  true,
			OwnerID:  sourceID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// inferLabel picks the relation label for a derived edge: the active
// template's inference entries first, then the built-in base table, then
// the generic default.
func (b *Builder) inferLabel(sourceType, targetType string) string {
	if def := b.registry.Active(); def != nil {
		for _, inf := range def.Inference {
			if inf.SourceType == sourceType && inf.TargetType == targetType {
				return inf.Relation
			}
		}
	}
	if label, ok := baseInference[inferencePair{sourceType, targetType}]; ok {
		return label
	}
	return "related"
}

// typeResolvable reports whether a type is declared by the active template
// or is one of the built-in base types accepted when no template declares
// folder semantics for it.
func (b *Builder) typeResolvable(typ string) bool {
	if typ == "" {
		return false
	}
	if _, ok := b.registry.GetEntityType(typ); ok {
		return true
	}
	switch typ {
	case "character", "location", "item", "event", "faction", "note":
		return true
	}
	return false
}

// declaredReverse looks up the reverse label of a template-declared
// bidirectional relationship type.
func (b *Builder) declaredReverse(relation string) (string, bool) {
	def := b.registry.Active()
	if def == nil {
		return "", false
	}
	for _, rt := range def.RelationshipTypes {
		if rt.ID == relation && rt.Bidirectional && rt.ReverseID != "" {
			return rt.ReverseID, true
		}
	}
	return "", false
}
