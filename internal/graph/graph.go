// Package graph answers link queries over a requirements tree: parents,
// children, non-hierarchical links, and creating a link in the direction the
// document hierarchy implies.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/doorlink/internal/apperr"
	"github.com/starford/doorlink/internal/models"
)

// maxDepth bounds the document ancestor walk.
const maxDepth = 64

// Backend provides the stored tree. Referrers is the reverse index of links
// and is maintained by the backend, not computed here.
type Backend interface {
	Documents(ctx context.Context) ([]*models.Document, error)
	Document(ctx context.Context, prefix string) (*models.Document, error)
	Items(ctx context.Context, prefix string) ([]*models.Item, error)
	Item(ctx context.Context, uid string) (*models.Item, error)
	Referrers(ctx context.Context, uid string) ([]*models.Item, error)
	AppendLink(ctx context.Context, uid, target string) error
}

// Resolver computes link relations on top of a Backend.
type Resolver struct {
	backend Backend
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(backend Backend, logger *slog.Logger) *Resolver {
	return &Resolver{backend: backend, logger: logger}
}

// Overview bundles every relation of one item.
type Overview struct {
	Item     models.ItemSummary   `json:"item"`
	Parents  []models.ItemSummary `json:"parents"`
	Children []models.ItemSummary `json:"children"`
	Linked   []models.ItemSummary `json:"linked"`
}

// Parents returns the items uid links to, in the order of its links list.
// Links to items that do not exist are skipped.
func (r *Resolver) Parents(ctx context.Context, uid string) ([]models.ItemSummary, error) {
	item, err := r.backend.Item(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := make([]models.ItemSummary, 0, len(item.Links))
	for _, target := range item.Links {
		parent, err := r.backend.Item(ctx, target)
		if errors.Is(err, apperr.ErrNotFound) {
			r.logger.Warn("graph: dangling link", slog.String("uid", uid), slog.String("target", target))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, parent.Summary())
	}
	return out, nil
}

// Children returns every item whose links contain uid.
func (r *Resolver) Children(ctx context.Context, uid string) ([]models.ItemSummary, error) {
	if _, err := r.backend.Item(ctx, uid); err != nil {
		return nil, err
	}
	refs, err := r.backend.Referrers(ctx, uid)
	if err != nil {
		return nil, err
	}
	return summaries(refs), nil
}

// Linked returns the items that link to uid but are not among its hierarchy
// children (child_links).
func (r *Resolver) Linked(ctx context.Context, uid string) ([]models.ItemSummary, error) {
	item, err := r.backend.Item(ctx, uid)
	if err != nil {
		return nil, err
	}
	refs, err := r.backend.Referrers(ctx, uid)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]struct{}, len(item.ChildLinks))
	for _, c := range item.ChildLinks {
		skip[c] = struct{}{}
	}
	out := []models.ItemSummary{}
	for _, ref := range refs {
		if _, ok := skip[ref.UID]; ok {
			continue
		}
		out = append(out, ref.Summary())
	}
	return out, nil
}

// Overview returns parents, children and linked items of uid.
func (r *Resolver) Overview(ctx context.Context, uid string) (*Overview, error) {
	item, err := r.backend.Item(ctx, uid)
	if err != nil {
		return nil, err
	}
	ov := &Overview{Item: item.Summary()}
	if ov.Parents, err = r.Parents(ctx, uid); err != nil {
		return nil, err
	}
	if ov.Children, err = r.Children(ctx, uid); err != nil {
		return nil, err
	}
	if ov.Linked, err = r.Linked(ctx, uid); err != nil {
		return nil, err
	}
	return ov, nil
}

// Link records that child traces to parent. When child's document is an
// ancestor of parent's document the arguments were given against the
// hierarchy and the edge is stored on parent instead. It returns the item
// whose links list received the edge.
func (r *Resolver) Link(ctx context.Context, child, parent string) (models.ItemSummary, error) {
	if child == parent {
		return models.ItemSummary{}, fmt.Errorf("graph: link %s to itself: %w", child, apperr.ErrInvalid)
	}
	c, err := r.backend.Item(ctx, child)
	if err != nil {
		return models.ItemSummary{}, err
	}
	p, err := r.backend.Item(ctx, parent)
	if err != nil {
		return models.ItemSummary{}, err
	}

	holder, target := c, p
	for _, prefix := range r.ancestors(ctx, p.Prefix) {
		if prefix == c.Prefix {
			holder, target = p, c
			break
		}
	}

	if err := r.backend.AppendLink(ctx, holder.UID, target.UID); err != nil {
		return models.ItemSummary{}, fmt.Errorf("graph: link %s -> %s: %w", holder.UID, target.UID, err)
	}
	r.logger.Info("graph: linked", slog.String("uid", holder.UID), slog.String("parent", target.UID))

	updated, err := r.backend.Item(ctx, holder.UID)
	if err != nil {
		return holder.Summary(), nil
	}
	return updated.Summary(), nil
}

// ancestors returns the parent chain of a document, nearest first, excluding
// the document itself.
func (r *Resolver) ancestors(ctx context.Context, prefix string) []string {
	seen := map[string]struct{}{prefix: {}}
	var chain []string
	current := prefix
	for depth := 0; depth < maxDepth; depth++ {
		doc, err := r.backend.Document(ctx, current)
		if err != nil {
			r.logger.Debug("graph: ancestor walk stopped", slog.String("prefix", current), slog.String("error", err.Error()))
			break
		}
		if doc.Parent == "" {
			break
		}
		if _, loop := seen[doc.Parent]; loop {
			r.logger.Warn("graph: document parent cycle", slog.String("prefix", doc.Parent))
			break
		}
		seen[doc.Parent] = struct{}{}
		chain = append(chain, doc.Parent)
		current = doc.Parent
	}
	return chain
}

func summaries(items []*models.Item) []models.ItemSummary {
	out := make([]models.ItemSummary, 0, len(items))
	for _, it := range items {
		out = append(out, it.Summary())
	}
	return out
}
