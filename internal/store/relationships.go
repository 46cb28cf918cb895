package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
)

// InsertRelationship inserts an edge, ignoring exact duplicates so that
// re-deriving the graph is idempotent: a (source, target, relation) triple
// never yields two rows.
func (s *Store) InsertRelationship(ctx context.Context, r *Relationship) error {
	props, err := json.Marshal(orEmpty(r.Properties))
	if err != nil {
		return cerr.StorageError("serialize relationship properties", err)
	}

	derived := 0
	if r.Derived {
		derived = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO relationships (source_id, target_id, relation, properties, derived, owner_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.SourceID, r.TargetID, r.Relation, string(props), derived, r.OwnerID)
	if err != nil {
		return cerr.StorageError(
			fmt.Sprintf("insert relationship %s-[%s]->%s", r.SourceID, r.Relation, r.TargetID), err)
	}
	return nil
}

// GetRelationships returns edges touching a node in either direction,
// optionally filtered to one relation label (empty means all).
func (s *Store) GetRelationships(ctx context.Context, nodeID, relation string) ([]*Relationship, error) {
	query := `
		SELECT id, source_id, target_id, relation, properties, derived, owner_id
		FROM relationships
		WHERE (source_id = ? OR target_id = ?)`
	args := []any{nodeID, nodeID}
	if relation != "" {
		query += ` AND relation = ?`
		args = append(args, relation)
	}
	query += ` ORDER BY id`

	return s.queryRelationships(ctx, query, args...)
}

// DeleteEdgesOwnedBy removes every edge a document produced, including
// synthesized reverse edges pointing back at it. Incremental updates call
// this before re-deriving so an edge whose reference was removed by the
// edit does not survive in either direction.
func (s *Store) DeleteEdgesOwnedBy(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM relationships WHERE owner_id = ?`, ownerID)
	if err != nil {
		return cerr.StorageError(fmt.Sprintf("delete edges owned by %s", ownerID), err)
	}
	return nil
}

func (s *Store) queryRelationships(ctx context.Context, query string, args ...any) ([]*Relationship, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cerr.StorageError("query relationships", err)
	}
	defer rows.Close()

	var rels []*Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func scanRelationship(rows *sql.Rows) (*Relationship, error) {
	var r Relationship
	var props string
	var derived int

	if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Relation, &props, &derived, &r.OwnerID); err != nil {
		return nil, cerr.StorageError("scan relationship", err)
	}
	if err := json.Unmarshal([]byte(props), &r.Properties); err != nil {
		return nil, cerr.StorageError("decode relationship properties", err)
	}
	r.Derived = derived == 1
	return &r, nil
}
