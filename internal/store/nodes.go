package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
)

const nodeColumns = `id, type, status, title, body, properties, source_path, created_at, updated_at, template_id`

// UpsertNode inserts or updates a node keyed by id. The created timestamp
// of an existing row is preserved; updated always advances. The FTS shadow
// index follows via triggers.
func (s *Store) UpsertNode(ctx context.Context, n *Node) error {
	if n.ID == "" {
		return cerr.StorageError("upsert node", fmt.Errorf("node has no id"))
	}

	props, err := json.Marshal(orEmpty(n.Properties))
	if err != nil {
		return cerr.StorageError("serialize node properties", err)
	}

	now := time.Now().Unix()
	created := now
	if !n.CreatedAt.IsZero() {
		created = n.CreatedAt.Unix()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			title = excluded.title,
			body = excluded.body,
			properties = excluded.properties,
			source_path = excluded.source_path,
			updated_at = excluded.updated_at,
			template_id = excluded.template_id`,
		n.ID, n.Type, n.Status, n.Title, n.Body, string(props),
		n.SourcePath, created, now, n.TemplateID)
	if err != nil {
		return cerr.StorageError(fmt.Sprintf("upsert node %s", n.ID), err)
	}
	return nil
}

// GetNode returns a node by id, or nil when absent.
func (s *Store) GetNode(ctx context.Context, id string) (*Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// GetAllNodes returns every node ordered by last update (newest first),
// ties broken by insertion order.
func (s *Store) GetAllNodes(ctx context.Context) ([]*Node, error) {
	return s.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM nodes ORDER BY updated_at DESC, rowid ASC`)
}

// GetNodesByType returns nodes of one type, newest first.
func (s *Store) GetNodesByType(ctx context.Context, nodeType string) ([]*Node, error) {
	return s.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE type = ? ORDER BY updated_at DESC, rowid ASC`,
		nodeType)
}

// GetNodeBySourcePath returns the node indexed from a vault path, or nil.
func (s *Store) GetNodeBySourcePath(ctx context.Context, path string) (*Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE source_path = ?`, path)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// ResolveReference maps a cross-reference token to a node id, trying exact
// id, then title, then source filename stem, in that order. Returns "" when
// nothing matches.
func (s *Store) ResolveReference(ctx context.Context, ref string) (string, error) {
	queries := []string{
		`SELECT id FROM nodes WHERE id = ? LIMIT 1`,
		`SELECT id FROM nodes WHERE title = ? COLLATE NOCASE ORDER BY rowid LIMIT 1`,
		`SELECT id FROM nodes
		 WHERE source_path = ? OR source_path LIKE '%/' || ?
		    OR source_path = ? || '.md' OR source_path LIKE '%/' || ? || '.md'
		 ORDER BY rowid LIMIT 1`,
	}
	args := [][]any{{ref}, {ref}, {ref, ref, ref, ref}}

	for i, q := range queries {
		var id string
		err := s.db.QueryRowContext(ctx, q, args[i]...).Scan(&id)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return "", cerr.StorageError("resolve reference", err)
		}
		return id, nil
	}
	return "", nil
}

// DeleteNode removes a node and cascades its relationships (both
// directions). The FTS shadow row drops via trigger.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerr.StorageError("delete node", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return cerr.StorageError("delete node relationships", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return cerr.StorageError("delete node", err)
	}

	if err := tx.Commit(); err != nil {
		return cerr.StorageError("delete node", err)
	}
	return nil
}

// ClearAll empties the graph tables, keeping metadata and unrelated tables.
func (s *Store) ClearAll(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM relationships`,
		`DELETE FROM nodes`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return cerr.StorageError("clear store", err)
		}
	}
	return nil
}

// Stats returns overall and per-type counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{NodesByType: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&stats.NodeCount); err != nil {
		return nil, cerr.StorageError("count nodes", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&stats.RelationshipCount); err != nil {
		return nil, cerr.StorageError("count relationships", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM nodes GROUP BY type`)
	if err != nil {
		return nil, cerr.StorageError("count nodes by type", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, cerr.StorageError("count nodes by type", err)
		}
		stats.NodesByType[typ] = count
	}
	return stats, rows.Err()
}

// FTSCount returns the number of rows in the shadow index. Used by
// consistency checks; with trigger synchronization it always equals the
// node count.
func (s *Store) FTSCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes_fts`).Scan(&count); err != nil {
		return 0, cerr.StorageError("count fts rows", err)
	}
	return count, nil
}

func (s *Store) queryNodes(ctx context.Context, query string, args ...any) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cerr.StorageError("query nodes", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var n Node
	var props string
	var created, updated int64

	err := row.Scan(&n.ID, &n.Type, &n.Status, &n.Title, &n.Body, &props,
		&n.SourcePath, &created, &updated, &n.TemplateID)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, cerr.StorageError("scan node", err)
	}

	if err := json.Unmarshal([]byte(props), &n.Properties); err != nil {
		return nil, cerr.StorageError(fmt.Sprintf("decode properties of %s", n.ID), err)
	}
	n.CreatedAt = time.Unix(created, 0)
	n.UpdatedAt = time.Unix(updated, 0)
	return &n, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
