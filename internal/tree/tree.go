// Package tree reads and edits a doorstop-style requirements tree on disk.
//
// A document is a directory holding a .doorstop.yml settings file; every other
// non-hidden .yml file in that directory is an item whose UID is the file stem.
// Items point at their parents through their links list.
package tree

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/doorlink/internal/apperr"
	"github.com/starford/doorlink/internal/checksum"
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/storage"
)

// ConfigFile is the name of the per-document settings file.
const ConfigFile = ".doorstop.yml"

// Snapshot is the whole tree as read from disk at one point in time.
type Snapshot struct {
	documents []*models.Document
	byPrefix  map[string]*models.Document
	docItems  map[string][]*models.Item
	items     map[string]*models.Item
	referrers map[string][]*models.Item
}

type documentFile struct {
	Settings struct {
		Digits int    `yaml:"digits"`
		Parent string `yaml:"parent"`
		Prefix string `yaml:"prefix"`
		Sep    string `yaml:"sep"`
	} `yaml:"settings"`
}

type itemFile struct {
	Active     *bool                   `yaml:"active"`
	Header     string                  `yaml:"header"`
	Text       string                  `yaml:"text"`
	Links      []any                   `yaml:"links"`
	Normative  *bool                   `yaml:"normative"`
	References []models.ReferenceEntry `yaml:"references"`
}

// Load reads every document and item under the store's root. Files that fail
// to parse are skipped with a warning so one broken item does not hide the
// rest of the tree.
func Load(store storage.Provider, logger *slog.Logger) (*Snapshot, error) {
	metas, err := store.List("")
	if err != nil {
		return nil, fmt.Errorf("tree: list: %w", err)
	}

	s := &Snapshot{
		byPrefix:  make(map[string]*models.Document),
		docItems:  make(map[string][]*models.Item),
		items:     make(map[string]*models.Item),
		referrers: make(map[string][]*models.Item),
	}

	docByDir := make(map[string]*models.Document)
	for _, m := range metas {
		if filepath.Base(m.Path) != ConfigFile {
			continue
		}
		doc, err := loadDocument(store, m.Path)
		if err != nil {
			logger.Warn("tree: skipping document", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, dup := s.byPrefix[doc.Prefix]; dup {
			logger.Warn("tree: duplicate document prefix", slog.String("prefix", doc.Prefix), slog.String("path", m.Path))
			continue
		}
		docByDir[filepath.Dir(m.Path)] = doc
		s.byPrefix[doc.Prefix] = doc
		s.documents = append(s.documents, doc)
	}

	for _, m := range metas {
		doc, ok := docByDir[filepath.Dir(m.Path)]
		if !ok || strings.HasPrefix(filepath.Base(m.Path), ".") {
			continue
		}
		item, err := loadItem(store, m.Path, doc.Prefix)
		if err != nil {
			logger.Warn("tree: skipping item", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, dup := s.items[item.UID]; dup {
			logger.Warn("tree: duplicate item uid", slog.String("uid", item.UID), slog.String("path", m.Path))
			continue
		}
		s.items[item.UID] = item
		s.docItems[doc.Prefix] = append(s.docItems[doc.Prefix], item)
	}

	s.index()
	return s, nil
}

// index builds the reverse link maps. Referrers covers the whole tree, while
// ChildLinks only counts items of documents whose parent is the target's
// document.
func (s *Snapshot) index() {
	for _, doc := range s.documents {
		for _, item := range s.docItems[doc.Prefix] {
			seen := make(map[string]bool, len(item.Links))
			for _, target := range item.Links {
				if seen[target] {
					continue
				}
				seen[target] = true
				s.referrers[target] = append(s.referrers[target], item)
				parent, ok := s.items[target]
				if !ok {
					continue
				}
				if doc.Parent == parent.Prefix {
					parent.ChildLinks = append(parent.ChildLinks, item.UID)
				}
			}
		}
	}
	for _, item := range s.items {
		if item.ChildLinks == nil {
			item.ChildLinks = []string{}
		}
	}
}

func loadDocument(store storage.Provider, rel string) (*models.Document, error) {
	data, err := store.Read(rel)
	if err != nil {
		return nil, err
	}
	var f documentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("tree: parse %s: %w", rel, err)
	}
	if f.Settings.Prefix == "" {
		return nil, fmt.Errorf("tree: %s has no prefix", rel)
	}
	dir, err := store.Abs(filepath.Dir(rel))
	if err != nil {
		return nil, err
	}
	digits := f.Settings.Digits
	if digits <= 0 {
		digits = 3
	}
	return &models.Document{
		Prefix: f.Settings.Prefix,
		Path:   dir,
		Parent: f.Settings.Parent,
		Sep:    f.Settings.Sep,
		Digits: digits,
	}, nil
}

func loadItem(store storage.Provider, rel, prefix string) (*models.Item, error) {
	data, err := store.Read(rel)
	if err != nil {
		return nil, err
	}
	item, err := ParseItem(data)
	if err != nil {
		return nil, fmt.Errorf("tree: parse %s: %w", rel, err)
	}
	abs, err := store.Abs(rel)
	if err != nil {
		return nil, err
	}
	item.UID = strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	item.Prefix = prefix
	item.Path = abs
	item.Checksum = checksum.Sum(data)
	return item, nil
}

// ParseItem decodes the body of an item file. UID, prefix and path are left
// for the caller to fill in.
func ParseItem(data []byte) (*models.Item, error) {
	var f itemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	item := &models.Item{
		Header:     f.Header,
		Body:       strings.TrimRight(f.Text, "\n"),
		Links:      []string{},
		References: f.References,
		Active:     f.Active == nil || *f.Active,
		Normative:  f.Normative == nil || *f.Normative,
	}
	for _, l := range f.Links {
		switch v := l.(type) {
		case string:
			item.Links = append(item.Links, v)
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			item.Links = append(item.Links, keys...)
		}
	}
	return item, nil
}

// Documents returns every document in discovery order.
func (s *Snapshot) Documents() []*models.Document {
	return s.documents
}

// Document returns the document with the given prefix.
func (s *Snapshot) Document(prefix string) (*models.Document, error) {
	doc, ok := s.byPrefix[prefix]
	if !ok {
		return nil, fmt.Errorf("tree: document %q: %w", prefix, apperr.ErrNotFound)
	}
	return doc, nil
}

// Items returns the items of a document ordered by file name.
func (s *Snapshot) Items(prefix string) ([]*models.Item, error) {
	if _, err := s.Document(prefix); err != nil {
		return nil, err
	}
	return s.docItems[prefix], nil
}

// Item returns the item with the given UID.
func (s *Snapshot) Item(uid string) (*models.Item, error) {
	item, ok := s.items[uid]
	if !ok {
		return nil, fmt.Errorf("tree: item %q: %w", uid, apperr.ErrNotFound)
	}
	return item, nil
}

// Referrers returns every item whose links contain uid, in document then item order.
func (s *Snapshot) Referrers(uid string) []*models.Item {
	return s.referrers[uid]
}

// All returns every item in document then item order.
func (s *Snapshot) All() []*models.Item {
	var out []*models.Item
	for _, doc := range s.documents {
		out = append(out, s.docItems[doc.Prefix]...)
	}
	return out
}
