// Package analysis derives everything the editor shows for one buffer: the
// resolved references and the link relations of the item being edited.
package analysis

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/doorlink/internal/gateway"
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/reference"
	"github.com/starford/doorlink/internal/region"
)

// Snapshot is the derived state of one buffer at one text version.
type Snapshot struct {
	Path       string           `json:"path"`
	UID        string           `json:"uid,omitempty"`
	References reference.Result `json:"references"`

	// LinksKey is the "links:" line. It is nil when the buffer has no single
	// links key or is not an item of the tree.
	LinksKey   *region.Span         `json:"links_key,omitempty"`
	Links      []region.Span        `json:"links,omitempty"`
	LinksValid bool                 `json:"links_valid"`
	Parents    []models.ItemSummary `json:"parents"`
	Children   []models.ItemSummary `json:"children"`
	Linked     []models.ItemSummary `json:"linked"`
}

// ItemChecker reports whether a file is an item of the tree.
type ItemChecker interface {
	IsItemFile(path string) bool
}

// Analyzer runs the recomputation pipeline.
type Analyzer struct {
	locator *reference.Locator
	gateway gateway.Gateway
	items   ItemChecker
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(locator *reference.Locator, gw gateway.Gateway, items ItemChecker, logger *slog.Logger) *Analyzer {
	return &Analyzer{locator: locator, gateway: gw, items: items, logger: logger}
}

// Analyze computes a fresh snapshot for path holding text.
func (a *Analyzer) Analyze(ctx context.Context, path, text string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Path:       path,
		References: reference.Result{Valid: []reference.Reference{}, Invalid: []reference.Reference{}},
	}

	if spans, ok := region.Extract(text, "references"); ok {
		snap.References = a.locator.ResolveAll(spans)
	}

	links, ok := region.Find(text, "links")
	if !ok || !a.items.IsItemFile(path) {
		return snap, nil
	}
	key := links.Key
	snap.LinksKey = &key
	snap.Links = links.Entries
	snap.UID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	snap.Parents = a.gateway.Parents(ctx, snap.UID)
	snap.Children = a.gateway.Children(ctx, snap.UID)
	snap.Linked = a.gateway.Linked(ctx, snap.UID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	related := len(snap.Parents) > 0 || len(snap.Children) > 0 || len(snap.Linked) > 0
	snap.LinksValid = related || !Normative(text)
	a.logger.Debug("analysis: buffer analyzed",
		slog.String("path", path),
		slog.Int("references", len(snap.References.Valid)+len(snap.References.Invalid)),
		slog.Bool("links_valid", snap.LinksValid))
	return snap, nil
}

// Normative reports whether the item text is normative. Only a single
// "normative:" line that does not say true marks it non-normative.
func Normative(text string) bool {
	var found []string
	for _, l := range strings.Split(text, "\n") {
		if strings.HasPrefix(l, "normative:") {
			found = append(found, l)
		}
	}
	return len(found) != 1 || strings.Contains(found[0], "true")
}
