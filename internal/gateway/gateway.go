// Package gateway is the boundary between buffer analysis and the tree
// backend. Every method reports failure as an absent value (nil or false)
// after logging it, so callers only decide whether they got an answer.
package gateway

import (
	"context"

	"github.com/starford/doorlink/internal/models"
)

// Gateway answers tree queries for the analysis pipeline and the editor
// commands.
type Gateway interface {
	Documents(ctx context.Context) []models.DocumentSummary
	Items(ctx context.Context, prefix string) []models.ItemSummary
	Parents(ctx context.Context, uid string) []models.ItemSummary
	Children(ctx context.Context, uid string) []models.ItemSummary
	Linked(ctx context.Context, uid string) []models.ItemSummary
	Link(ctx context.Context, child, parent string) *models.ItemSummary
	AddReference(ctx context.Context, uid string, entry models.ReferenceEntry) bool
	AddItem(ctx context.Context, prefix, text string) map[string]string
}

var (
	_ Gateway = (*Local)(nil)
	_ Gateway = (*Process)(nil)
)
