package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPages(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "rules.md", "# Draft Rules\n\nPick **one** card per round.\n")
	writePage(t, dir, "about.md", "Some page without a heading.\n")
	writePage(t, dir, "notes.txt", "ignored, not markdown")

	store, err := LoadPages(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rules", "about"}, store.Slugs())

	rules, ok := store.GetPage("rules")
	require.True(t, ok)
	assert.Equal(t, "Draft Rules", rules.Title)
	assert.Contains(t, rules.HTML, "<h1>Draft Rules</h1>")
	assert.Contains(t, rules.HTML, "<strong>one</strong>")

	about, ok := store.GetPage("about")
	require.True(t, ok)
	assert.Equal(t, "about", about.Title)

	_, ok = store.GetPage("missing")
	assert.False(t, ok)
}

func TestLoadPagesRendersTables(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "modes.md", "# Modes\n\n| Mode | Rounds |\n|------|--------|\n| SEQUENTIAL | 13 |\n")

	store, err := LoadPages(dir)
	require.NoError(t, err)

	page, ok := store.GetPage("modes")
	require.True(t, ok)
	assert.Contains(t, page.HTML, "<table>")
	assert.Contains(t, page.HTML, "SEQUENTIAL")
}

func TestLoadPagesMissingDir(t *testing.T) {
	_, err := LoadPages(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func writePage(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}
