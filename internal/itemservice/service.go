// Package itemservice is the application layer shared by the CLI, the HTTP
// API and the MCP server.
package itemservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/doorlink/internal/apperr"
	"github.com/starford/doorlink/internal/graph"
	"github.com/starford/doorlink/internal/index"
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/reference"
	"github.com/starford/doorlink/internal/region"
	"github.com/starford/doorlink/internal/tree"
)

// ItemDetail is the full representation of an item.
type ItemDetail struct {
	*models.Item
	Text     string               `json:"text"`
	Content  string               `json:"content"`
	Parents  []models.ItemSummary `json:"parents"`
	Children []models.ItemSummary `json:"children"`
	Linked   []models.ItemSummary `json:"linked"`
}

// Service coordinates the tree, the link resolver, the reference locator
// and the search index.
type Service struct {
	repo     *tree.Repo
	resolver *graph.Resolver
	locator  *reference.Locator
	db       *index.DB
	logger   *slog.Logger
}

// NewService creates a new item service. db may be nil, in which case
// search is unavailable.
func NewService(repo *tree.Repo, resolver *graph.Resolver, locator *reference.Locator, db *index.DB, logger *slog.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, locator: locator, db: db, logger: logger}
}

// Root returns the tree root.
func (s *Service) Root() string {
	return s.repo.Root()
}

// Documents lists every document of the tree.
func (s *Service) Documents(ctx context.Context) ([]models.DocumentSummary, error) {
	docs, err := s.repo.Documents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Summary())
	}
	return out, nil
}

// Items lists the items of one document.
func (s *Service) Items(ctx context.Context, prefix string) ([]models.ItemSummary, error) {
	items, err := s.repo.Items(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.ItemSummary, 0, len(items))
	for _, it := range items {
		out = append(out, it.Summary())
	}
	return out, nil
}

// GetItem returns an item with its raw file content and relations.
func (s *Service) GetItem(ctx context.Context, uid string) (*ItemDetail, error) {
	item, err := s.repo.Item(ctx, uid)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(item.Path)
	if err != nil {
		return nil, fmt.Errorf("itemservice: read %s: %w", uid, err)
	}
	ov, err := s.resolver.Overview(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &ItemDetail{
		Item:     item,
		Text:     item.Text(),
		Content:  string(data),
		Parents:  ov.Parents,
		Children: ov.Children,
		Linked:   ov.Linked,
	}, nil
}

// Parents returns the items uid links to.
func (s *Service) Parents(ctx context.Context, uid string) ([]models.ItemSummary, error) {
	return s.resolver.Parents(ctx, uid)
}

// Children returns the items linking to uid.
func (s *Service) Children(ctx context.Context, uid string) ([]models.ItemSummary, error) {
	return s.resolver.Children(ctx, uid)
}

// Linked returns the items linking to uid outside the document hierarchy.
func (s *Service) Linked(ctx context.Context, uid string) ([]models.ItemSummary, error) {
	return s.resolver.Linked(ctx, uid)
}

// Link creates a link between two items, oriented by the document hierarchy.
func (s *Service) Link(ctx context.Context, child, parent string) (models.ItemSummary, error) {
	item, err := s.resolver.Link(ctx, child, parent)
	if err != nil {
		return models.ItemSummary{}, err
	}
	s.reindex(ctx)
	return item, nil
}

// AddReference appends entry to an item's references. Adding an entry that is
// already present succeeds without changing the file.
func (s *Service) AddReference(ctx context.Context, uid string, entry models.ReferenceEntry) (bool, error) {
	added, err := s.repo.AddReference(ctx, uid, entry)
	if err != nil {
		return false, err
	}
	if added {
		s.reindex(ctx)
	}
	return added, nil
}

// AddItem creates the next item of a document.
func (s *Service) AddItem(ctx context.Context, prefix, text string) (*models.Item, error) {
	item, err := s.repo.AddItem(ctx, prefix, text)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx)
	return item, nil
}

// ResolveReferences reads an item file and resolves its references list.
// path may be absolute or relative to the tree root.
func (s *Service) ResolveReferences(_ context.Context, path string) (*reference.Result, error) {
	data, err := os.ReadFile(s.abs(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("itemservice: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	res := reference.Result{Valid: []reference.Reference{}, Invalid: []reference.Reference{}}
	if spans, ok := region.Extract(string(data), "references"); ok {
		res = s.locator.ResolveAll(spans)
	}
	return &res, nil
}

// CopyReference builds the references entry that points at file, using the
// first line of keyword.
func (s *Service) CopyReference(file, keyword string) (string, error) {
	entry, err := reference.NewEntry(s.repo.Root(), s.abs(file), keyword)
	if err != nil {
		return "", fmt.Errorf("itemservice: %w: %w", apperr.ErrInvalid, err)
	}
	return reference.Format(entry), nil
}

// Search runs a full-text query against the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("itemservice: search index not configured: %w", apperr.ErrInvalid)
	}
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []index.SearchResult{}
	}
	return res, nil
}

// Stats reports the index contents, or zero values without an index.
func (s *Service) Stats() (index.Stats, error) {
	if s.db == nil {
		return index.Stats{}, nil
	}
	return s.db.Stats()
}

// Sync brings the index up to date with the tree.
func (s *Service) Sync(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return index.Sync(ctx, s.db, s.repo, s.logger)
}

func (s *Service) reindex(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		s.logger.Warn("itemservice: reindex failed", slog.String("error", err.Error()))
	}
}

func (s *Service) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.repo.Root(), path)
}
