// Package catalog loads the static chapter and book data the funnel is built from.
package catalog

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"breakupguide/internal/models"
)

//go:embed data/*.json
var embedded embed.FS

const (
	chaptersFile = "chapters.json"
	booksFile    = "books.json"
)

var (
	ErrChapterNotFound = errors.New("chapter not found")
	ErrItemNotFound    = errors.New("book not found")
)

// Catalog is the read-only, ordered set of chapters and items.
// It is never mutated after Load returns.
type Catalog struct {
	chapters  []*models.Chapter
	items     []models.Item
	byChapter map[string]*models.Chapter
	byItem    map[string]models.Item
}

// Default loads the catalog compiled into the binary
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// LoadDir loads chapters.json and books.json from a directory on disk.
// An empty dir returns the embedded catalog.
func LoadDir(dir string) (*Catalog, error) {
	if dir == "" {
		return Default()
	}
	return Load(os.DirFS(dir))
}

// Load reads chapters.json and books.json from fsys, resolves question book
// references and validates the result
func Load(fsys fs.FS) (*Catalog, error) {
	var items []models.Item
	if err := readJSON(fsys, booksFile, &items); err != nil {
		return nil, err
	}
	var chapters []*models.Chapter
	if err := readJSON(fsys, chaptersFile, &chapters); err != nil {
		return nil, err
	}
	return New(chapters, items)
}

// New builds a catalog from already decoded data
func New(chapters []*models.Chapter, items []models.Item) (*Catalog, error) {
	c := &Catalog{
		chapters:  chapters,
		items:     items,
		byChapter: make(map[string]*models.Chapter, len(chapters)),
		byItem:    make(map[string]models.Item, len(items)),
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// index builds the lookup maps and reports every problem found
func (c *Catalog) index() error {
	var errs []error

	for _, it := range c.items {
		switch {
		case it.ID == "":
			errs = append(errs, fmt.Errorf("book %q has no id", it.Title))
			continue
		case it.VideoURL == "":
			errs = append(errs, fmt.Errorf("book %s has no youtubeUrl", it.ID))
		case it.Price < 0:
			errs = append(errs, fmt.Errorf("book %s has negative price", it.ID))
		}
		if _, dup := c.byItem[it.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate book id %s", it.ID))
			continue
		}
		c.byItem[it.ID] = it
	}

	for _, ch := range c.chapters {
		if ch == nil || ch.ID == "" {
			errs = append(errs, errors.New("chapter with empty id"))
			continue
		}
		if _, dup := c.byChapter[ch.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate chapter id %s", ch.ID))
			continue
		}
		c.byChapter[ch.ID] = ch

		for qi := range ch.Questions {
			q := &ch.Questions[qi]
			q.Items = q.Items[:0]
			for _, ref := range q.ItemIDs {
				it, ok := c.byItem[ref]
				if !ok {
					errs = append(errs, fmt.Errorf("chapter %s question %d references unknown book %s", ch.ID, qi+1, ref))
					continue
				}
				q.Items = append(q.Items, it)
			}
		}
	}

	return errors.Join(errs...)
}

// Chapters returns the chapters in catalog order
func (c *Catalog) Chapters() []*models.Chapter {
	return c.chapters
}

// Chapter looks up a chapter by ID
func (c *Catalog) Chapter(id string) (*models.Chapter, error) {
	ch, ok := c.byChapter[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChapterNotFound, id)
	}
	return ch, nil
}

// Item looks up a book by ID
func (c *Catalog) Item(id string) (models.Item, error) {
	it, ok := c.byItem[id]
	if !ok {
		return models.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return it, nil
}

// Books returns the purchasable items in catalog order
func (c *Catalog) Books() []models.Item {
	var out []models.Item
	for _, it := range c.items {
		if !it.Free {
			out = append(out, it)
		}
	}
	return out
}

// Freebies returns the items that can be watched without purchase
func (c *Catalog) Freebies() []models.Item {
	var out []models.Item
	for _, it := range c.items {
		if it.Free {
			out = append(out, it)
		}
	}
	return out
}

// ResumeChapter picks where "Start" should take a visitor: the first chapter
// with partial progress, else the first incomplete chapter, else the first chapter.
func (c *Catalog) ResumeChapter(progress models.ProgressMap) *models.Chapter {
	if len(c.chapters) == 0 {
		return nil
	}
	for _, ch := range c.chapters {
		if idx := progress.Index(ch.ID); idx > 0 && !progress.Completed(ch) {
			return ch
		}
	}
	for _, ch := range c.chapters {
		if !progress.Completed(ch) {
			return ch
		}
	}
	return c.chapters[0]
}
