package store

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testNode(id, typ, title, body string) *Node {
	return &Node{
		ID:     id,
		Type:   typ,
		Status: "canon",
		Title:  title,
		Body:   body,
	}
}

func TestUpsertNode_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n := testNode("elara-voss", "character", "Elara Voss", "A court mage.")
	n.Properties = map[string]any{"age": float64(34)}
	n.SourcePath = "characters/elara-voss.md"
	n.TemplateID = "chronicle"
	require.NoError(t, s.UpsertNode(ctx, n))

	got, err := s.GetNode(ctx, "elara-voss")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "character", got.Type)
	assert.Equal(t, "canon", got.Status)
	assert.Equal(t, "Elara Voss", got.Title)
	assert.Equal(t, "A court mage.", got.Body)
	assert.Equal(t, map[string]any{"age": float64(34)}, got.Properties)
	assert.Equal(t, "characters/elara-voss.md", got.SourcePath)
	assert.Equal(t, "chronicle", got.TemplateID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpsertNode_UpdateKeepsIdentityAndCreated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, testNode("a", "note", "First", "v1")))
	first, err := s.GetNode(ctx, "a")
	require.NoError(t, err)

	updated := testNode("a", "note", "Second", "v2")
	updated.CreatedAt = first.CreatedAt
	require.NoError(t, s.UpsertNode(ctx, updated))

	got, err := s.GetNode(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)
	assert.Equal(t, first.CreatedAt.Unix(), got.CreatedAt.Unix())

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NodeCount, "upsert must not duplicate")
}

func TestUpsertNode_RejectsEmptyID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.UpsertNode(context.Background(), testNode("", "note", "x", "")))
}

func TestGetNode_AbsentReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetNode(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertRelationship_DeduplicatesTriple(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, testNode("a", "character", "A", "")))
	require.NoError(t, s.UpsertNode(ctx, testNode("b", "character", "B", "")))

	rel := &Relationship{SourceID: "a", TargetID: "b", Relation: "knows", Derived: true}
	require.NoError(t, s.InsertRelationship(ctx, rel))
	require.NoError(t, s.InsertRelationship(ctx, rel))

	rels, err := s.GetRelationships(ctx, "a", "")
	require.NoError(t, err)
	assert.Len(t, rels, 1, "insert is idempotent on (source,target,relation)")
}

func TestGetRelationships_BothDirectionsAndLabelFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.UpsertNode(ctx, testNode(id, "character", id, "")))
	}
	require.NoError(t, s.InsertRelationship(ctx, &Relationship{SourceID: "a", TargetID: "b", Relation: "knows"}))
	require.NoError(t, s.InsertRelationship(ctx, &Relationship{SourceID: "c", TargetID: "a", Relation: "rival_of"}))

	rels, err := s.GetRelationships(ctx, "a", "")
	require.NoError(t, err)
	assert.Len(t, rels, 2, "incoming and outgoing edges both count")

	rels, err = s.GetRelationships(ctx, "a", "knows")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "b", rels[0].TargetID)
}

func TestDeleteNode_CascadesRelationships(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, testNode("a", "character", "A", "")))
	require.NoError(t, s.UpsertNode(ctx, testNode("b", "location", "B", "")))
	require.NoError(t, s.InsertRelationship(ctx, &Relationship{SourceID: "a", TargetID: "b", Relation: "located_in"}))
	require.NoError(t, s.InsertRelationship(ctx, &Relationship{SourceID: "b", TargetID: "a", Relation: "has_inhabitant"}))

	require.NoError(t, s.DeleteNode(ctx, "a"))

	got, err := s.GetNode(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	rels, err := s.GetRelationships(ctx, "b", "")
	require.NoError(t, err)
	assert.Empty(t, rels, "edges touching the deleted node are gone")
}

func TestDeleteEdgesOwnedBy_RemovesReverseKeepsForeign(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.UpsertNode(ctx, testNode(id, "character", id, "")))
	}
	// a's document produced a forward edge and a synthesized reverse edge;
	// c's document produced its own edge to a.
	require.NoError(t, s.InsertRelationship(ctx, &Relationship{SourceID: "a", TargetID: "b", Relation: "knows", Derived: true, OwnerID: "a"}))
	require.NoError(t, s.InsertRelationship(ctx, &Relationship{SourceID: "b", TargetID: "a", Relation: "knows", Derived: true, OwnerID: "a"}))
	require.NoError(t, s.InsertRelationship(ctx, &Relationship{SourceID: "c", TargetID: "a", Relation: "rival_of", OwnerID: "c"}))

	require.NoError(t, s.DeleteEdgesOwnedBy(ctx, "a"))

	rels, err := s.GetRelationships(ctx, "a", "")
	require.NoError(t, err)
	require.Len(t, rels, 1, "both owned rows are gone, the foreign edge stays")
	assert.Equal(t, "rival_of", rels[0].Relation)
	assert.Equal(t, "c", rels[0].OwnerID)
}

func TestQueryFTS_TriggerSynchronized(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, testNode("a", "character", "Elara Voss", "A court mage of Silverhold.")))
	require.NoError(t, s.UpsertNode(ctx, testNode("b", "location", "Silverhold Keep", "A fortress in the mountains.")))

	// Insert path indexed via trigger
	hits, err := s.QueryFTS(ctx, "mage", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].NodeID)
	assert.Greater(t, hits[0].Score, 0.0)

	// Update path re-indexes via trigger
	n := testNode("a", "character", "Elara Voss", "Now a wandering alchemist.")
	require.NoError(t, s.UpsertNode(ctx, n))

	hits, err = s.QueryFTS(ctx, "mage", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.QueryFTS(ctx, "alchemist", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// Delete path removes the shadow row via trigger
	require.NoError(t, s.DeleteNode(ctx, "a"))
	hits, err = s.QueryFTS(ctx, "alchemist", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	count, err := s.FTSCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQueryFTS_RanksTitleMatches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, testNode("mentions", "note", "Other", "Silverhold gets one mention here among much longer text about other matters entirely.")))
	require.NoError(t, s.UpsertNode(ctx, testNode("silverhold", "location", "Silverhold", "Silverhold, the Silverhold fortress.")))

	hits, err := s.QueryFTS(ctx, "silverhold", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "silverhold", hits[0].NodeID, "denser match ranks first")
}

func TestQueryFTS_HostileInputIsNoResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertNode(ctx, testNode("a", "note", "A", "text")))

	for _, q := range []string{`"`, `AND OR NOT`, `col:x`, `(((`} {
		_, err := s.QueryFTS(ctx, q, 10)
		assert.NoError(t, err, q)
	}
}

func TestResolveReference_Chain(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testNode("elara-voss", "character", "Elara Voss", "")
	a.SourcePath = "characters/elara-voss.md"
	require.NoError(t, s.UpsertNode(ctx, a))

	b := testNode("loc-001", "location", "Silverhold Keep", "")
	b.SourcePath = "places/silverhold.md"
	require.NoError(t, s.UpsertNode(ctx, b))

	// Exact id wins
	id, err := s.ResolveReference(ctx, "elara-voss")
	require.NoError(t, err)
	assert.Equal(t, "elara-voss", id)

	// Then title
	id, err = s.ResolveReference(ctx, "Silverhold Keep")
	require.NoError(t, err)
	assert.Equal(t, "loc-001", id)

	// Then filename stem
	id, err = s.ResolveReference(ctx, "silverhold")
	require.NoError(t, err)
	assert.Equal(t, "loc-001", id)

	// Unresolvable
	id, err = s.ResolveReference(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestGetAllNodes_BrowseOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Same-second updates fall back to insertion order; most recent
	// update floats to the top.
	require.NoError(t, s.UpsertNode(ctx, testNode("a", "note", "A", "")))
	require.NoError(t, s.UpsertNode(ctx, testNode("b", "note", "B", "")))
	require.NoError(t, s.UpsertNode(ctx, testNode("c", "note", "C", "")))

	nodes, err := s.GetAllNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, "b", nodes[1].ID)
	assert.Equal(t, "c", nodes[2].ID)
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, testNode("a", "character", "A", "")))
	require.NoError(t, s.UpsertNode(ctx, testNode("b", "character", "B", "")))
	require.NoError(t, s.UpsertNode(ctx, testNode("c", "location", "C", "")))
	require.NoError(t, s.InsertRelationship(ctx, &Relationship{SourceID: "a", TargetID: "b", Relation: "knows"}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.NodeCount)
	assert.Equal(t, 1, stats.RelationshipCount)
	assert.Equal(t, map[string]int{"character": 2, "location": 1}, stats.NodesByType)
}

func TestMetadata_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	val, err := s.GetMeta(ctx, MetaKeyActiveTemplate)
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, s.SetMeta(ctx, MetaKeyActiveTemplate, "chronicle"))
	require.NoError(t, s.SetMeta(ctx, MetaKeyActiveTemplate, "chronicle-v2"))

	val, err = s.GetMeta(ctx, MetaKeyActiveTemplate)
	require.NoError(t, err)
	assert.Equal(t, "chronicle-v2", val)
}

func TestOpen_SchemaMismatchRebuildsGraphTablesOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "codex.db")

	s, err := Open(path)
	require.NoError(t, err)

	// Graph content plus an unrelated table sharing the file.
	require.NoError(t, s.UpsertNode(ctx, testNode("a", "note", "A", "body")))
	_, err = s.DB().Exec(`CREATE TABLE app_settings (k TEXT PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO app_settings VALUES ('theme', 'dark')`)
	require.NoError(t, err)

	// Simulate an older build having written the file.
	require.NoError(t, s.SetMeta(ctx, MetaKeySchemaVersion, "999"))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	// Graph tables are empty immediately after open...
	stats, err := s2.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.NodeCount)
	count, err := s2.FTSCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// ...the version is marked current...
	v, err := s2.GetMeta(ctx, MetaKeySchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(CurrentSchemaVersion), v)

	// ...and unrelated tables keep their rows.
	var theme string
	require.NoError(t, s2.DB().QueryRow(`SELECT v FROM app_settings WHERE k = 'theme'`).Scan(&theme))
	assert.Equal(t, "dark", theme)
}

func TestOpen_SecondOpenOnSamePathIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codex.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = Open(path)
	require.Error(t, err, "single-writer lock rejects a second opener")
}

func TestClearAll_KeepsMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, testNode("a", "note", "A", "")))
	require.NoError(t, s.SetMeta(ctx, MetaKeyActiveTemplate, "chronicle"))

	require.NoError(t, s.ClearAll(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.NodeCount)

	val, err := s.GetMeta(ctx, MetaKeyActiveTemplate)
	require.NoError(t, err)
	assert.Equal(t, "chronicle", val)
}
