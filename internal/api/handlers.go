package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/doorlink/internal/itemservice"
	"github.com/starford/doorlink/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *itemservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *itemservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List the documents of the tree
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Documents(r.Context())
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
}

// ListItems handles GET /api/documents/{prefix}/items.
//
//	@Summary		List the items of a document
//	@Tags			documents
//	@Produce		json
//	@Param			prefix	path		string	true	"Document prefix"
//	@Success		200		{object}	ItemListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{prefix}/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Items(r.Context(), chi.URLParam(r, "prefix"))
	if err != nil {
		writeError(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items})
}

// AddItem handles POST /api/documents/{prefix}/items.
//
//	@Summary		Create the next item of a document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			prefix	path		string			true	"Document prefix"
//	@Param			body	body		AddItemRequest	false	"Item text"
//	@Success		201		{object}	models.Item
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{prefix}/items [post]
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.svc.AddItem(r.Context(), chi.URLParam(r, "prefix"), req.Text)
	if err != nil {
		writeError(w, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// GetItem handles GET /api/items/{uid}.
//
//	@Summary		Get an item with its relations
//	@Tags			items
//	@Produce		json
//	@Param			uid	path		string	true	"Item UID"
//	@Success		200	{object}	ItemDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{uid} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetItem(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Parents handles GET /api/items/{uid}/parents.
//
//	@Summary		Items the item links to
//	@Tags			items
//	@Produce		json
//	@Param			uid	path		string	true	"Item UID"
//	@Success		200	{object}	ItemListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{uid}/parents [get]
func (h *Handler) Parents(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Parents(r.Context(), chi.URLParam(r, "uid"))
	h.relation(w, "parents", items, err)
}

// Children handles GET /api/items/{uid}/children.
//
//	@Summary		Items linking to the item
//	@Tags			items
//	@Produce		json
//	@Param			uid	path		string	true	"Item UID"
//	@Success		200	{object}	ItemListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{uid}/children [get]
func (h *Handler) Children(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Children(r.Context(), chi.URLParam(r, "uid"))
	h.relation(w, "children", items, err)
}

// Linked handles GET /api/items/{uid}/linked.
//
//	@Summary		Items linking to the item outside the document hierarchy
//	@Tags			items
//	@Produce		json
//	@Param			uid	path		string	true	"Item UID"
//	@Success		200	{object}	ItemListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{uid}/linked [get]
func (h *Handler) Linked(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Linked(r.Context(), chi.URLParam(r, "uid"))
	h.relation(w, "linked", items, err)
}

func (h *Handler) relation(w http.ResponseWriter, op string, items []models.ItemSummary, err error) {
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items})
}

// Link handles POST /api/links.
//
//	@Summary		Link two items
//	@Description	The edge is stored on whichever item sits lower in the document hierarchy.
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LinkRequest	true	"Items to link"
//	@Success		200		{object}	models.ItemSummary
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [post]
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Child == "" || req.Parent == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("child and parent are required"))
		return
	}
	item, err := h.svc.Link(r.Context(), req.Child, req.Parent)
	if err != nil {
		writeError(w, "link", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// AddReference handles POST /api/items/{uid}/references.
//
//	@Summary		Add a reference to an item
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			uid		path		string				true	"Item UID"
//	@Param			body	body		AddReferenceRequest	true	"Reference entry"
//	@Success		201		{object}	AddReferenceResponse
//	@Success		200		{object}	AddReferenceResponse	"Entry already present"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{uid}/references [post]
func (h *Handler) AddReference(w http.ResponseWriter, r *http.Request) {
	var req AddReferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	added, err := h.svc.AddReference(r.Context(), chi.URLParam(r, "uid"), req)
	if err != nil {
		writeError(w, "add reference", err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, AddReferenceResponse{Added: added})
}

// ResolveReferences handles GET /api/references.
//
//	@Summary		Resolve the references of an item file
//	@Tags			references
//	@Produce		json
//	@Param			path	query		string	true	"Item file, absolute or relative to the root"
//	@Success		200		{object}	reference.Result
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references [get]
func (h *Handler) ResolveReferences(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	res, err := h.svc.ResolveReferences(r.Context(), path)
	if err != nil {
		writeError(w, "resolve references", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CopyReference handles GET /api/references/copy.
//
//	@Summary		Build a references entry for a file
//	@Tags			references
//	@Produce		json
//	@Param			file	query		string	true	"Source file"
//	@Param			keyword	query		string	false	"Selected text; only the first line is used"
//	@Success		200		{object}	CopyReferenceResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references/copy [get]
func (h *Handler) CopyReference(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("file") == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'file' is required"))
		return
	}
	block, err := h.svc.CopyReference(q.Get("file"), q.Get("keyword"))
	if err != nil {
		writeError(w, "copy reference", err)
		return
	}
	writeJSON(w, http.StatusOK, CopyReferenceResponse{Block: block})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across items
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
