package tree

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/starford/doorlink/internal/apperr"
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/reference"
	"github.com/starford/doorlink/internal/storage"
)

// Repo serves graph queries straight from the files of a tree. The parsed
// snapshot is cached until Invalidate is called or Repo itself writes.
type Repo struct {
	store  storage.Provider
	logger *slog.Logger

	mu    sync.Mutex
	snap  *Snapshot
	write sync.Mutex
}

// NewRepo creates a Repo over store.
func NewRepo(store storage.Provider, logger *slog.Logger) *Repo {
	return &Repo{store: store, logger: logger}
}

// Root returns the absolute tree root.
func (r *Repo) Root() string {
	return r.store.Root()
}

// Invalidate drops the cached snapshot so the next query rereads the tree.
func (r *Repo) Invalidate() {
	r.mu.Lock()
	r.snap = nil
	r.mu.Unlock()
}

// Snapshot returns the current tree, loading it if needed.
func (r *Repo) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap != nil {
		return r.snap, nil
	}
	s, err := Load(r.store, r.logger)
	if err != nil {
		return nil, err
	}
	r.snap = s
	return s, nil
}

func (r *Repo) Documents(ctx context.Context) ([]*models.Document, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Documents(), nil
}

func (r *Repo) Document(ctx context.Context, prefix string) (*models.Document, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Document(prefix)
}

func (r *Repo) Items(ctx context.Context, prefix string) ([]*models.Item, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Items(prefix)
}

func (r *Repo) Item(ctx context.Context, uid string) (*models.Item, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Item(uid)
}

func (r *Repo) Referrers(ctx context.Context, uid string) ([]*models.Item, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Referrers(uid), nil
}

// All returns every item of the tree.
func (r *Repo) All(ctx context.Context) ([]*models.Item, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.All(), nil
}

// AppendLink adds target to the links of item. It is a no-op when the link
// already exists.
func (r *Repo) AppendLink(ctx context.Context, uid, target string) error {
	_, err := r.edit(ctx, uid, func(item *models.Item) (string, string, bool) {
		if item.HasLink(target) {
			return "", "", false
		}
		return "links", LinkEntry(target), true
	})
	return err
}

// AddReference appends entry to the references of item. It reports whether
// the file changed; an identical entry is never added twice.
func (r *Repo) AddReference(ctx context.Context, uid string, entry models.ReferenceEntry) (bool, error) {
	if entry.Path == "" {
		return false, fmt.Errorf("tree: reference without path: %w", apperr.ErrInvalid)
	}
	if entry.Type == "" {
		entry.Type = reference.TypeFile
	}
	return r.edit(ctx, uid, func(item *models.Item) (string, string, bool) {
		for _, have := range item.References {
			if have.Path == entry.Path && have.Keyword == entry.Keyword {
				return "", "", false
			}
		}
		return "references", reference.Format(entry), true
	})
}

func (r *Repo) edit(ctx context.Context, uid string, plan func(*models.Item) (key, entry string, ok bool)) (bool, error) {
	r.write.Lock()
	defer r.write.Unlock()

	item, err := r.Item(ctx, uid)
	if err != nil {
		return false, err
	}
	key, entry, ok := plan(item)
	if !ok {
		return false, nil
	}

	rel, err := r.rel(item.Path)
	if err != nil {
		return false, err
	}
	data, err := r.store.Read(rel)
	if err != nil {
		return false, err
	}
	out, err := AppendEntry(string(data), key, entry)
	if err != nil {
		return false, fmt.Errorf("tree: edit %s: %w", uid, err)
	}
	if _, err := ParseItem([]byte(out)); err != nil {
		return false, fmt.Errorf("tree: edit %s produced invalid yaml: %w", uid, err)
	}
	if err := r.store.Write(rel, []byte(out)); err != nil {
		return false, err
	}
	r.Invalidate()
	r.logger.Info("tree: item updated", slog.String("uid", uid), slog.String("key", key))
	return true, nil
}

type newItem struct {
	Active    bool     `yaml:"active"`
	Derived   bool     `yaml:"derived"`
	Header    string   `yaml:"header"`
	Links     []string `yaml:"links"`
	Normative bool     `yaml:"normative"`
	Ref       string   `yaml:"ref"`
	Reviewed  *string  `yaml:"reviewed"`
	Text      string   `yaml:"text"`
}

// AddItem creates the next item of a document. The UID continues the highest
// existing number, padded to the document's digits.
func (r *Repo) AddItem(ctx context.Context, prefix, text string) (*models.Item, error) {
	r.write.Lock()
	defer r.write.Unlock()

	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.Document(prefix)
	if err != nil {
		return nil, err
	}
	dir, err := r.rel(doc.Path)
	if err != nil {
		return nil, err
	}
	metas, err := r.store.List(dir)
	if err != nil {
		return nil, err
	}

	// Numbering follows the files on disk, parsable or not, so a broken
	// item is never overwritten.
	taken := make(map[string]bool, len(metas))
	next := 1
	for _, m := range metas {
		if filepath.Dir(m.Path) != filepath.Clean(dir) {
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(m.Path), ".yml")
		taken[stem] = true
		n, err := strconv.Atoi(strings.TrimPrefix(stem, doc.Prefix+doc.Sep))
		if err == nil && n >= next {
			next = n + 1
		}
	}
	num := strconv.Itoa(next)
	if pad := doc.Digits - len(num); pad > 0 {
		num = strings.Repeat("0", pad) + num
	}
	uid := doc.Prefix + doc.Sep + num
	if taken[uid] {
		return nil, fmt.Errorf("tree: item %s: %w", uid, apperr.ErrAlreadyExists)
	}

	data, err := yaml.Marshal(newItem{
		Active:    true,
		Links:     []string{},
		Normative: true,
		Text:      text,
	})
	if err != nil {
		return nil, fmt.Errorf("tree: encode item: %w", err)
	}

	rel, err := r.rel(filepath.Join(doc.Path, uid+".yml"))
	if err != nil {
		return nil, err
	}
	if err := r.store.Write(rel, data); err != nil {
		return nil, err
	}
	r.Invalidate()
	r.logger.Info("tree: item created", slog.String("uid", uid), slog.String("path", rel))
	return r.Item(ctx, uid)
}

// IsItemFile reports whether path is an item of a known document: a
// non-hidden .yml file next to a .doorstop.yml.
func (r *Repo) IsItemFile(path string) bool {
	base := filepath.Base(path)
	if filepath.Ext(base) != ".yml" || strings.HasPrefix(base, ".") {
		return false
	}
	rel, err := r.rel(filepath.Join(filepath.Dir(path), ConfigFile))
	if err != nil {
		return false
	}
	_, err = r.store.Read(rel)
	return err == nil
}

func (r *Repo) rel(abs string) (string, error) {
	if !filepath.IsAbs(abs) {
		return abs, nil
	}
	rel, err := filepath.Rel(r.store.Root(), abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("tree: %s is outside the tree: %w", abs, apperr.ErrInvalid)
	}
	return rel, nil
}
