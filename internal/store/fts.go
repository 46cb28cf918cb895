package store

import (
	"context"
	"strings"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
)

// QueryFTS runs a ranked full-text query over the shadow index and returns
// node ids best-first. Query terms are AND-combined. limit <= 0 means no
// limit.
func (s *Store) QueryFTS(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	match := buildMatchQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	// FTS5 bm25() returns negative values where lower is better; negate so
	// callers see higher-is-better scores.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bm25(nodes_fts) AS score
		FROM nodes_fts
		WHERE nodes_fts MATCH ?
		ORDER BY score, rowid
		LIMIT ?`,
		match, limit)
	if err != nil {
		// FTS5 reports invalid match expressions as errors; treat as no
		// results rather than failing the search.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, cerr.StorageError("full-text query", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		if err := rows.Scan(&hit.NodeID, &hit.Score); err != nil {
			return nil, cerr.StorageError("scan search hit", err)
		}
		hit.Score = -hit.Score
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// buildMatchQuery quotes each whitespace-separated term so user input with
// FTS5 operators ("AND", "-", quotes) cannot break the query.
func buildMatchQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}
