package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codexkeep/codexkeep/internal/template"
)

func chronicleDef(fallback bool) *template.Definition {
	def := &template.Definition{
		ID:      "chronicle",
		Name:    "Chronicle",
		Version: "1.0.0",
		EntityTypes: []template.EntityType{
			{Name: "character"}, {Name: "location"}, {Name: "faction"}, {Name: "note"},
		},
		FolderMappings: []template.FolderMapping{
			{Pattern: "characters", Types: []string{"character"}},
			{Pattern: "places", Types: []string{"location"}},
			{Pattern: "court", Types: []string{"character", "faction"}},
		},
	}
	if fallback {
		def.FolderMappings = append(def.FolderMappings,
			template.FolderMapping{Pattern: "notes", Types: []string{"note"}, Fallback: true})
	}
	return def
}

func TestResolve_ExactMatch(t *testing.T) {
	r := New(chronicleDef(false))

	res := r.Resolve("characters/elara-voss.md")
	assert.Equal(t, Exact, res.Confidence)
	assert.Equal(t, "character", res.Type)
	assert.Equal(t, "characters", res.Pattern)
}

func TestResolve_NestedFolderStillMatches(t *testing.T) {
	r := New(chronicleDef(false))

	res := r.Resolve("characters/minor/innkeeper.md")
	assert.Equal(t, Exact, res.Confidence)
	assert.Equal(t, "character", res.Type)
}

func TestResolve_CaseInsensitive(t *testing.T) {
	r := New(chronicleDef(false))

	res := r.Resolve("Characters/Elara.md")
	assert.Equal(t, Exact, res.Confidence)
	assert.Equal(t, "character", res.Type)
}

func TestResolve_AmbiguousNamesAllCandidates(t *testing.T) {
	r := New(chronicleDef(false))

	res := r.Resolve("court/chamberlain.md")
	assert.Equal(t, Ambiguous, res.Confidence)
	assert.Empty(t, res.Type, "caller must disambiguate")
	assert.Equal(t, []string{"character", "faction"}, res.Candidates)
}

func TestResolve_OverlappingPatternsAreAmbiguous(t *testing.T) {
	def := chronicleDef(false)
	def.FolderMappings = append(def.FolderMappings,
		template.FolderMapping{Pattern: "characters", Types: []string{"faction"}})
	r := New(def)

	res := r.Resolve("characters/elara.md")
	assert.Equal(t, Ambiguous, res.Confidence)
	assert.Equal(t, []string{"character", "faction"}, res.Candidates)
}

func TestResolve_FallbackWhenDeclared(t *testing.T) {
	r := New(chronicleDef(true))

	res := r.Resolve("misc/scrap.md")
	assert.Equal(t, Fallback, res.Confidence)
	assert.Equal(t, "note", res.Type)
}

func TestResolve_NoneWithoutFallback(t *testing.T) {
	r := New(chronicleDef(false))

	res := r.Resolve("misc/scrap.md")
	assert.Equal(t, None, res.Confidence)
	assert.Empty(t, res.Type)
}

func TestResolve_RootLevelDocument(t *testing.T) {
	r := New(chronicleDef(true))

	res := r.Resolve("readme.md")
	assert.Equal(t, Fallback, res.Confidence)
	assert.Equal(t, "note", res.Type)
}

func TestResolve_NilTemplate(t *testing.T) {
	r := New(nil)
	res := r.Resolve("characters/elara.md")
	assert.Equal(t, None, res.Confidence)
}
