package gateway

import (
	"context"
	"log/slog"

	"github.com/starford/doorlink/internal/graph"
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/tree"
)

// Local serves the gateway in-process from a tree.Repo.
type Local struct {
	repo     *tree.Repo
	resolver *graph.Resolver
	logger   *slog.Logger
}

// NewLocal creates a Local gateway.
func NewLocal(repo *tree.Repo, resolver *graph.Resolver, logger *slog.Logger) *Local {
	return &Local{repo: repo, resolver: resolver, logger: logger}
}

func (l *Local) fail(op string, err error) {
	l.logger.Warn("gateway: "+op+" failed", slog.String("error", err.Error()))
}

func (l *Local) Documents(ctx context.Context) []models.DocumentSummary {
	docs, err := l.repo.Documents(ctx)
	if err != nil {
		l.fail("documents", err)
		return nil
	}
	out := make([]models.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Summary())
	}
	return out
}

func (l *Local) Items(ctx context.Context, prefix string) []models.ItemSummary {
	items, err := l.repo.Items(ctx, prefix)
	if err != nil {
		l.fail("items", err)
		return nil
	}
	out := make([]models.ItemSummary, 0, len(items))
	for _, it := range items {
		out = append(out, it.Summary())
	}
	return out
}

func (l *Local) Parents(ctx context.Context, uid string) []models.ItemSummary {
	items, err := l.resolver.Parents(ctx, uid)
	return l.relation("parents", uid, items, err)
}

func (l *Local) Children(ctx context.Context, uid string) []models.ItemSummary {
	items, err := l.resolver.Children(ctx, uid)
	return l.relation("children", uid, items, err)
}

func (l *Local) Linked(ctx context.Context, uid string) []models.ItemSummary {
	items, err := l.resolver.Linked(ctx, uid)
	return l.relation("linked", uid, items, err)
}

func (l *Local) relation(op, uid string, items []models.ItemSummary, err error) []models.ItemSummary {
	if err != nil {
		l.logger.Warn("gateway: "+op+" failed", slog.String("uid", uid), slog.String("error", err.Error()))
		return nil
	}
	return items
}

func (l *Local) Link(ctx context.Context, child, parent string) *models.ItemSummary {
	item, err := l.resolver.Link(ctx, child, parent)
	if err != nil {
		l.fail("link", err)
		return nil
	}
	return &item
}

func (l *Local) AddReference(ctx context.Context, uid string, entry models.ReferenceEntry) bool {
	if _, err := l.repo.AddReference(ctx, uid, entry); err != nil {
		l.fail("add_reference", err)
		return false
	}
	return true
}

func (l *Local) AddItem(ctx context.Context, prefix, text string) map[string]string {
	item, err := l.repo.AddItem(ctx, prefix, text)
	if err != nil {
		l.fail("add_item", err)
		return nil
	}
	return map[string]string{item.UID: item.Path}
}
