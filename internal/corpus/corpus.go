// Package corpus defines the content-item data model and the persisted
// on-disk layout shared by the three pipeline stages: atomic writes,
// stamp-file ownership, and the `<build>/<version>/...` directory
// conventions.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ContentItem is one logical article, ad, or notice from a newspaper
// issue, as read from the rebuilt collaborator's compressed JSONL input.
type ContentItem struct {
	ID         string `json:"id"`
	Type       string `json:"tp,omitempty"`
	Timestamp  string `json:"ts,omitempty"`
	OrigLang   string `json:"lg,omitempty"`
	CC         string `json:"cc,omitempty"`
	Title      string `json:"title,omitempty"`
	Text       string `json:"ft"`
}

// Collection returns the newspaper acronym this item belongs to, derived
// from the leading dash-delimited segment of its id (e.g.
// "GDL-1950-01-02-a-i0003" -> "GDL").
func (it ContentItem) Collection() string {
	collection, _ := CollectionYear(it.ID)
	return collection
}

// Year returns the four-digit publication year derived from the item's
// id, or "" if the id does not carry one in the expected position.
func (it ContentItem) Year() string {
	_, year := CollectionYear(it.ID)
	return year
}

// CollectionYear derives the newspaper acronym and four-digit publication
// year from a content-item id (e.g. "GDL-1950-01-02-a-i0003" ->
// ("GDL", "1950")). Shared by ContentItem and any later-stage record that
// only carries the id and needs to re-derive its routing key, since
// Collection/Year are not part of any stage's wire shape (spec §6) and so
// never round-trip through a JSON file on their own.
func CollectionYear(id string) (collection, year string) {
	i := 0
	for ; i < len(id); i++ {
		if id[i] == '-' {
			break
		}
	}
	collection = id[:i]

	rest := id
	if len(rest) > len(collection)+1 && rest[len(collection)] == '-' {
		rest = rest[len(collection)+1:]
	} else {
		return collection, ""
	}
	if len(rest) < 4 {
		return collection, ""
	}
	candidate := rest[:4]
	for _, r := range candidate {
		if r < '0' || r > '9' {
			return collection, ""
		}
	}
	return collection, candidate
}

// Layout computes the persisted file paths for one build version (spec
// §6's "Persisted state layout").
type Layout struct {
	BuildDir string
	Version  string
}

func (l Layout) versionDir() string {
	return filepath.Join(l.BuildDir, l.Version)
}

// Stage1File returns the compressed stage-1a output path for a
// collection-year unit.
func (l Layout) Stage1File(collection, year, ext string) string {
	name := fmt.Sprintf("%s-%s%s", collection, year, ext)
	return filepath.Join(l.versionDir(), "stage1", collection, name)
}

// Stage1CollectionStats returns the per-collection stats path.
func (l Layout) Stage1CollectionStats(collection string) string {
	return filepath.Join(l.versionDir(), "stage1", collection+".stats.json")
}

// Stage1AllStats returns the concatenated all-collections stats path.
func (l Layout) Stage1AllStats() string {
	return filepath.Join(l.versionDir(), "stage1.stats.json")
}

// Stage2File returns the compressed stage-2 output path for a
// collection-year unit.
func (l Layout) Stage2File(collection, year, ext string) string {
	name := fmt.Sprintf("%s-%s%s", collection, year, ext)
	return filepath.Join(l.versionDir(), "stage2", collection, name)
}

// Stage2Diagnostics returns the diagnostics sidecar path for a
// collection-year unit.
func (l Layout) Stage2Diagnostics(collection, year string) string {
	name := fmt.Sprintf("%s-%s.diagnostics.json", collection, year)
	return filepath.Join(l.versionDir(), "stage2", collection, name)
}

// WriteAtomic writes data to path by first writing to a temp sibling
// file and renaming it into place ("write temp, then rename"), with the
// hostname-stamped intermediate path
// required for cross-host coordination (spec §5).
func WriteAtomic(path string, data []byte, host string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("corpus: mkdir %q: %w", dir, err)
	}

	tmp := path + ".working." + host
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("corpus: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("corpus: rename %q -> %q: %w", tmp, path, err)
	}
	return nil
}

// WriteJSONAtomic marshals v and writes it atomically to path.
func WriteJSONAtomic(path string, v any, host string) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("corpus: marshal %q: %w", path, err)
	}
	return WriteAtomic(path, b, host)
}
