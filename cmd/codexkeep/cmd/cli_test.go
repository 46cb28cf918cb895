package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useVault points the CLI at a fresh vault directory for one test.
func useVault(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := vaultPath
	vaultPath = dir
	t.Cleanup(func() { vaultPath = prev })
	return dir
}

func seedVault(t *testing.T, vault string) {
	t.Helper()
	docs := map[string]string{
		"characters/aria.md": `---
id: aria
title: Aria Stormsong
status: canon
---
A wandering bard who frequents [[The Gilded Flagon]].
`,
		"locations/flagon.md": `---
id: flagon
title: The Gilded Flagon
---
A tavern famous for its honeyed mead.
`,
		"scratch.md": "just a loose thought, no metadata",
	}
	for rel, content := range docs {
		path := filepath.Join(vault, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestInitCmd_CreatesConfigAndDataDir(t *testing.T) {
	// Given: an empty vault
	vault := useVault(t)

	// When: running init
	cmd := newInitCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	// Then: the config and data dir exist
	assert.FileExists(t, filepath.Join(vault, ".codexkeep.yaml"))
	assert.DirExists(t, filepath.Join(vault, ".codexkeep"))
	assert.Contains(t, buf.String(), "initialized")
}

func TestInitCmd_RefusesOverwriteWithoutForce(t *testing.T) {
	vault := useVault(t)
	cfgPath := filepath.Join(vault, ".codexkeep.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("version: 1\n"), 0o644))

	cmd := newInitCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	// The hand-written config survives
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
	assert.Contains(t, buf.String(), "already exists")
}

func TestIndexCmd_ReportsCounts(t *testing.T) {
	// Given: a seeded vault
	vault := useVault(t)
	seedVault(t, vault)

	// When: indexing
	cmd := newIndexCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	// Then: the report names indexed and skipped documents
	out := buf.String()
	assert.Contains(t, out, "indexed 2 of 3")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "ERR_101_NO_METADATA")
	assert.Contains(t, out, "scratch.md")
}

func TestSearchCmd_TextAndJSON(t *testing.T) {
	// Given: an indexed vault
	vault := useVault(t)
	seedVault(t, vault)
	idx := newIndexCmd()
	idx.SetOut(&bytes.Buffer{})
	idx.SetArgs([]string{})
	require.NoError(t, idx.Execute())

	// When: searching as text
	cmd := newSearchCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"bard"})
	require.NoError(t, cmd.Execute())

	// Then: the bard is in the output
	assert.Contains(t, buf.String(), "Aria Stormsong")

	// When: searching as JSON
	cmd = newSearchCmd()
	buf = &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"bard", "--format", "json"})
	require.NoError(t, cmd.Execute())

	// Then: the output decodes and carries the hit
	var results []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &results))
	require.NotEmpty(t, results)
}

func TestSearchCmd_TypeFilter(t *testing.T) {
	vault := useVault(t)
	seedVault(t, vault)
	idx := newIndexCmd()
	idx.SetOut(&bytes.Buffer{})
	idx.SetArgs([]string{})
	require.NoError(t, idx.Execute())

	cmd := newSearchCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--type", "location"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "The Gilded Flagon")
	assert.NotContains(t, buf.String(), "Aria Stormsong")
}

func TestGetCmd_ShowsEntityAndRelationships(t *testing.T) {
	vault := useVault(t)
	seedVault(t, vault)
	idx := newIndexCmd()
	idx.SetOut(&bytes.Buffer{})
	idx.SetArgs([]string{})
	require.NoError(t, idx.Execute())

	cmd := newGetCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"aria"})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "Aria Stormsong")
	assert.Contains(t, out, "located_in")
	assert.Contains(t, out, "flagon")
}

func TestGetCmd_UnknownIDFails(t *testing.T) {
	vault := useVault(t)
	seedVault(t, vault)
	idx := newIndexCmd()
	idx.SetOut(&bytes.Buffer{})
	idx.SetArgs([]string{})
	require.NoError(t, idx.Execute())

	cmd := newGetCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"nobody"})
	require.Error(t, cmd.Execute())
}

func TestStatsCmd_CountsByType(t *testing.T) {
	vault := useVault(t)
	seedVault(t, vault)
	idx := newIndexCmd()
	idx.SetOut(&bytes.Buffer{})
	idx.SetArgs([]string{})
	require.NoError(t, idx.Execute())

	cmd := newStatsCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "entities:      2")
	assert.Contains(t, out, "character")
	assert.Contains(t, out, "location")
}

func TestTemplatesCmd_ListsBuiltinAsActive(t *testing.T) {
	vault := useVault(t)
	_ = vault

	cmd := newTemplatesCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "* chronicle")
}

func TestTemplatesRegisterCmd_ValidatesDefinition(t *testing.T) {
	// Given: a malformed template file
	vault := useVault(t)
	bad := filepath.Join(vault, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("id: Bad ID\nversion: 1.0.0\nentityTypes:\n  - name: x\n"), 0o644))

	// When: registering it
	cmd := newTemplatesRegisterCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{bad})

	// Then: registration fails closed
	require.Error(t, cmd.Execute())
}

func TestTemplatesActivateCmd_PersistsAcrossRuns(t *testing.T) {
	// Given: a vault config registering a custom template
	vault := useVault(t)
	tplPath := filepath.Join(vault, "starship.yaml")
	require.NoError(t, os.WriteFile(tplPath, []byte(`
id: starship-log
name: Starship Log
version: 1.0.0
entityTypes:
  - name: crew
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(vault, ".codexkeep.yaml"),
		[]byte("template:\n  path: "+tplPath+"\n"), 0o644))

	// When: activating it
	cmd := newTemplatesActivateCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"starship-log"})
	require.NoError(t, cmd.Execute())

	// Then: a fresh command sees it active
	list := newTemplatesCmd()
	buf := &bytes.Buffer{}
	list.SetOut(buf)
	list.SetArgs([]string{})
	require.NoError(t, list.Execute())
	assert.Contains(t, buf.String(), "* starship-log")
}
