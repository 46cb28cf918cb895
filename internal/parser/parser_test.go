package parser

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
)

const sampleDoc = `---
id: elara-voss
type: character
status: canon
title: Elara Voss
tags: [noble, mage]
---
# Elara Voss

A court mage of [[silverhold|Silverhold Keep]].

## History

She studied with [[master-iden]] and later returned to [[silverhold]].
`

func TestParse_FullDocument(t *testing.T) {
	doc, err := Parse("characters/elara-voss.md", sampleDoc)
	require.NoError(t, err)

	assert.Equal(t, "elara-voss", doc.ID)
	assert.Equal(t, "character", doc.Type)
	assert.Equal(t, "canon", doc.Status)
	assert.Equal(t, "Elara Voss", doc.Title)
	assert.Equal(t, "characters/elara-voss.md", doc.Path)
	assert.Contains(t, doc.Body, "A court mage")
}

func TestParse_RefsAliasStrippedAndDeduplicated(t *testing.T) {
	doc, err := Parse("characters/elara-voss.md", sampleDoc)
	require.NoError(t, err)

	// silverhold appears twice (once aliased); one entry survives,
	// in first-seen order.
	assert.Equal(t, []string{"silverhold", "master-iden"}, doc.Refs)
}

func TestParse_Outline(t *testing.T) {
	doc, err := Parse("characters/elara-voss.md", sampleDoc)
	require.NoError(t, err)

	require.Len(t, doc.Outline, 2)
	assert.Equal(t, Heading{Level: 1, Text: "Elara Voss", Line: 1}, doc.Outline[0])
	assert.Equal(t, 2, doc.Outline[1].Level)
	assert.Equal(t, "History", doc.Outline[1].Text)
}

func TestParse_NoMetadataBlock(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain text", "just some text without frontmatter"},
		{"unclosed block", "---\nid: x\nno closing delimiter"},
		{"empty block", "---\n---\nbody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("notes/a.md", tt.raw)
			require.Error(t, err)
			assert.Equal(t, cerr.ErrCodeNoMetadata, cerr.GetCode(err))
		})
	}
}

func TestParse_NoMetadataIsDistinctFromUnreadable(t *testing.T) {
	// Malformed YAML inside a present block is not "no metadata".
	_, err := Parse("notes/a.md", "---\nid: [unterminated\n---\nbody")
	require.Error(t, err)
	assert.NotEqual(t, cerr.ErrCodeNoMetadata, cerr.GetCode(err))
	assert.Equal(t, cerr.ErrCodeUnreadableDoc, cerr.GetCode(err))
	assert.False(t, stderrors.Is(err, cerr.NoMetadata("notes/a.md")))
}

func TestParse_DefaultsWhenFieldsAbsent(t *testing.T) {
	doc, err := Parse("notes/loose-thread.md", "---\ntype: note\n---\nBody text.")
	require.NoError(t, err)

	assert.Empty(t, doc.ID, "id is assigned later by the indexer")
	assert.Equal(t, "draft", doc.Status)
	assert.Equal(t, "loose-thread", doc.Title, "falls back to filename stem")
}

func TestParse_TitleFallsBackToFirstHeading(t *testing.T) {
	doc, err := Parse("notes/x.md", "---\ntype: note\n---\n# The Sunken City\n\ntext")
	require.NoError(t, err)
	assert.Equal(t, "The Sunken City", doc.Title)
}

func TestParse_ExplicitRelations(t *testing.T) {
	raw := `---
id: elara-voss
type: character
relationships:
  - target: master-iden
    type: apprentice_of
    status: canon
  - target: ""
    type: dropped
  - target: silverhold
---
body
`
	doc, err := Parse("characters/elara-voss.md", raw)
	require.NoError(t, err)

	require.Len(t, doc.Relations, 2)
	assert.Equal(t, Relation{Target: "master-iden", Type: "apprentice_of", Status: "canon"}, doc.Relations[0])
	assert.Equal(t, "related", doc.Relations[1].Type, "missing type defaults to related")
}

func TestParse_CRLFDelimiters(t *testing.T) {
	raw := "---\r\nid: a\r\ntype: note\r\n---\r\nbody line"
	doc, err := Parse("a.md", raw)
	require.NoError(t, err)
	assert.Equal(t, "a", doc.ID)
	assert.Contains(t, doc.Body, "body line")
}

func TestStem(t *testing.T) {
	assert.Equal(t, "elara-voss", Stem("characters/elara-voss.md"))
	assert.Equal(t, "elara-voss", Stem("elara-voss.md"))
	assert.Equal(t, "elara-voss", Stem("elara-voss"))
	assert.Equal(t, ".hidden", Stem(".hidden"))
}
