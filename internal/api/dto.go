package api

import (
	"github.com/starford/doorlink/internal/analysis"
	"github.com/starford/doorlink/internal/index"
	"github.com/starford/doorlink/internal/itemservice"
	"github.com/starford/doorlink/internal/models"
)

// AddItemRequest is the request body for creating an item.
type AddItemRequest struct {
	Text string `json:"text" example:"The user can log out."`
}

// LinkRequest is the request body for linking two items. The stored
// direction follows the document hierarchy.
type LinkRequest struct {
	Child  string `json:"child" example:"SYS001" validate:"required"`
	Parent string `json:"parent" example:"REQ001" validate:"required"`
}

// AddReferenceRequest is the request body for adding a reference to an item.
type AddReferenceRequest = models.ReferenceEntry

// AddReferenceResponse reports whether the item file changed.
type AddReferenceResponse struct {
	Added bool `json:"added"`
}

// ItemDetail is the full item response type (aliased from the domain layer).
type ItemDetail = itemservice.ItemDetail

// DocumentListResponse wraps document listings.
type DocumentListResponse struct {
	Documents []models.DocumentSummary `json:"documents" validate:"required"`
}

// ItemListResponse wraps item listings and relation queries.
type ItemListResponse struct {
	Items []models.ItemSummary `json:"items" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// CopyReferenceResponse carries a references entry ready to paste.
type CopyReferenceResponse struct {
	Block string `json:"block" example:"- path: 'src/main.c'\n  type: file"`
}

// BufferRequest identifies a buffer and optionally carries its text.
type BufferRequest struct {
	Path string `json:"path" example:"/work/reqs/REQ001.yml" validate:"required"`
	Text string `json:"text"`
	// Event is "load" (default) to analyze now or "modified" to only mark the
	// buffer dirty.
	Event string `json:"event,omitempty" example:"load"`
}

// BufferResponse is the analysis of a buffer.
type BufferResponse struct {
	ID       string             `json:"id"`
	State    string             `json:"state"`
	Snapshot *analysis.Snapshot `json:"snapshot,omitempty"`
}

// TargetsResponse lists jump destinations for a buffer.
type TargetsResponse struct {
	Items      []analysis.Target `json:"items"`
	References []analysis.Target `json:"references"`
}
