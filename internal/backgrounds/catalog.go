// Package backgrounds produces backdrop rasters: a small built-in procedural
// set, or one entry per image file found in a configured directory.
package backgrounds

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"carstage/internal/models"
)

var builtin = []models.BackgroundDef{
	{ID: "studio_neutral", Name: "Neutral studio", Description: "Soft studio lighting with neutral floor."},
	{ID: "outdoor_lot", Name: "Outdoor lot", Description: "Simple sky + asphalt lot gradient."},
	{ID: "branded_wall", Name: "Branded wall", Description: "Clean wall with subtle brand pattern."},
	{ID: "gradient_silver", Name: "Silver gradient", Description: "Modern silver/gray gradient background."},
}

var eligibleExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// Catalog resolves the current background set. A non-empty file-backed set
// replaces the built-ins entirely; it is never a union.
type Catalog struct {
	dir       string
	brandText string
}

// NewCatalog builds a catalog over dir. An empty dir means built-ins only.
// brandText is the text stamped onto the branded wall backdrop.
func NewCatalog(dir, brandText string) *Catalog {
	return &Catalog{dir: dir, brandText: brandText}
}

type entry struct {
	def  models.BackgroundDef
	path string // empty for built-ins
}

// List returns the catalog, resolved fresh on every call so newly dropped
// files show up without a restart.
func (c *Catalog) List() []models.BackgroundDef {
	entries := c.resolve()
	defs := make([]models.BackgroundDef, 0, len(entries))
	for _, e := range entries {
		defs = append(defs, e.def)
	}
	return defs
}

func (c *Catalog) resolve() []entry {
	files := c.fileEntries()
	if len(files) > 0 {
		return files
	}
	out := make([]entry, 0, len(builtin))
	for _, d := range builtin {
		out = append(out, entry{def: d})
	}
	return out
}

func (c *Catalog) fileEntries() []entry {
	if c.dir == "" {
		return nil
	}
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		if eligibleExts[strings.ToLower(filepath.Ext(de.Name()))] {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)

	seen := map[string]int{}
	var out []entry
	for _, name := range names {
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		id := slugify(stem)
		seen[id]++
		// Duplicate stems keep the sorted-first file under the bare id;
		// later ones get a numeric suffix.
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		out = append(out, entry{
			def:  models.BackgroundDef{ID: id, Name: stem, Description: name},
			path: filepath.Join(c.dir, name),
		})
	}
	return out
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(s)
	s = slugStrip.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "background"
	}
	return s
}
