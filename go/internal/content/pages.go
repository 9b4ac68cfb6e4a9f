// Package content serves the site's static markdown pages (rules,
// about, and similar). Pages are rendered once at startup and cached;
// editing a page requires a restart, which is fine for marketing copy.
package content

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Page is a rendered content page.
type Page struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// Store holds all rendered pages keyed by slug.
type Store struct {
	pages map[string]*Page
}

// LoadPages renders every .md file in dir into a Store. The slug is the
// filename without extension; the title is the first level-1 heading,
// falling back to the slug.
func LoadPages(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read content directory: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	store := &Store{pages: make(map[string]*Page)}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}

		source, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", entry.Name(), err)
		}

		var buf bytes.Buffer
		if err := md.Convert(source, &buf); err != nil {
			return nil, fmt.Errorf("failed to render page %s: %w", entry.Name(), err)
		}

		slug := strings.TrimSuffix(entry.Name(), ".md")
		store.pages[slug] = &Page{
			Slug:  slug,
			Title: pageTitle(source, slug),
			HTML:  buf.String(),
		}
	}

	log.Info().Int("pages", len(store.pages)).Str("dir", dir).Msg("content pages loaded")
	return store, nil
}

// GetPage returns the page for a slug, or false if no such page exists.
func (s *Store) GetPage(slug string) (*Page, bool) {
	page, ok := s.pages[slug]
	return page, ok
}

// Slugs returns the slugs of all loaded pages.
func (s *Store) Slugs() []string {
	slugs := make([]string, 0, len(s.pages))
	for slug := range s.pages {
		slugs = append(slugs, slug)
	}
	return slugs
}

func pageTitle(source []byte, fallback string) string {
	for _, line := range strings.Split(string(source), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return fallback
}
