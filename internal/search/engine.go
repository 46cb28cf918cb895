// Package search answers ranked full-text queries and filtered graph
// lookups against the graph store. The engine is strictly read-only.
package search

import (
	"context"
	"strings"

	"github.com/codexkeep/codexkeep/internal/store"
)

// DefaultLimit caps result sets when the caller does not set one.
const DefaultLimit = 50

// Options configures one search call.
type Options struct {
	// Types filters results to these entity types (empty = all).
	Types []string
	// Statuses filters results to these statuses (empty = all).
	Statuses []string
	// Limit truncates the result set. Zero means DefaultLimit.
	Limit int
	// IncludeRelationships expands each result with its incident edges.
	IncludeRelationships bool
	// Relation filters the expanded relationship sets to one label.
	Relation string
}

// Result is one search hit.
type Result struct {
	Node *store.Node
	// Score is the full-text relevance rank. Zero in browse mode.
	Score float64
	// Relationships is populated when Options.IncludeRelationships is set.
	Relationships []*store.Relationship
}

// NodeView is a node with its incident relationships and neighbor nodes.
type NodeView struct {
	Node          *store.Node
	Relationships []*store.Relationship
	// Neighbors holds the deduplicated nodes at the far end of each
	// relationship.
	Neighbors []*store.Node
}

// Engine is the hybrid search engine.
type Engine struct {
	store *store.Store
}

// New creates an engine reading from the given store.
func New(st *store.Store) *Engine {
	return &Engine{store: st}
}

// Search answers a query. An empty or whitespace query is browse mode: all
// nodes (filtered), ordered by recency. Otherwise a ranked full-text query
// runs first and filters apply to its result set before truncation.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var results []*Result
	if strings.TrimSpace(query) == "" {
		nodes, err := e.store.GetAllNodes(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			results = append(results, &Result{Node: n})
		}
	} else {
		// Over-fetch before filtering so type/status filters do not
		// starve the limit.
		hits, err := e.store.QueryFTS(ctx, query, 0)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			n, err := e.store.GetNode(ctx, hit.NodeID)
			if err != nil {
				return nil, err
			}
			if n == nil {
				continue
			}
			results = append(results, &Result{Node: n, Score: hit.Score})
		}
	}

	results = applyFilters(results, opts)
	if len(results) > limit {
		results = results[:limit]
	}

	if opts.IncludeRelationships {
		for _, r := range results {
			rels, err := e.store.GetRelationships(ctx, r.Node.ID, opts.Relation)
			if err != nil {
				return nil, err
			}
			r.Relationships = rels
		}
	}

	return results, nil
}

// GetNodeWithRelationships returns a node together with its incident edges
// (both directions, optionally filtered to one label) and the deduplicated
// neighbor set. Returns nil when the id is unknown.
func (e *Engine) GetNodeWithRelationships(ctx context.Context, id, relation string) (*NodeView, error) {
	node, err := e.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}

	rels, err := e.store.GetRelationships(ctx, id, relation)
	if err != nil {
		return nil, err
	}

	view := &NodeView{Node: node, Relationships: rels}

	seen := map[string]struct{}{id: {}}
	for _, rel := range rels {
		farEnd := rel.TargetID
		if farEnd == id {
			farEnd = rel.SourceID
		}
		if _, dup := seen[farEnd]; dup {
			continue
		}
		seen[farEnd] = struct{}{}

		neighbor, err := e.store.GetNode(ctx, farEnd)
		if err != nil {
			return nil, err
		}
		if neighbor != nil {
			view.Neighbors = append(view.Neighbors, neighbor)
		}
	}

	return view, nil
}

// GetNodesByType returns nodes of one type via the type index.
func (e *Engine) GetNodesByType(ctx context.Context, nodeType string) ([]*store.Node, error) {
	return e.store.GetNodesByType(ctx, nodeType)
}

// Stats reports store-wide counts.
func (e *Engine) Stats(ctx context.Context) (*store.Stats, error) {
	return e.store.Stats(ctx)
}

func applyFilters(results []*Result, opts Options) []*Result {
	if len(opts.Types) == 0 && len(opts.Statuses) == 0 {
		return results
	}

	types := toSet(opts.Types)
	statuses := toSet(opts.Statuses)

	filtered := results[:0]
	for _, r := range results {
		if len(types) > 0 {
			if _, ok := types[r.Node.Type]; !ok {
				continue
			}
		}
		if len(statuses) > 0 {
			if _, ok := statuses[r.Node.Status]; !ok {
				continue
			}
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
