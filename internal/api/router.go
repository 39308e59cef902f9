package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/doorlink/internal/itemservice"
	"github.com/starford/doorlink/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *itemservice.Service, sessions *session.Registry, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	bh := NewBufferHandler(sessions)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents and items.
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/{prefix}/items", h.ListItems)
	r.Post("/documents/{prefix}/items", h.AddItem)
	r.Get("/items/{uid}", h.GetItem)
	r.Get("/items/{uid}/parents", h.Parents)
	r.Get("/items/{uid}/children", h.Children)
	r.Get("/items/{uid}/linked", h.Linked)
	r.Post("/items/{uid}/references", h.AddReference)
	r.Post("/links", h.Link)

	// References.
	r.Get("/references", h.ResolveReferences)
	r.Get("/references/copy", h.CopyReference)

	// Search.
	r.Get("/search", h.Search)

	// Editor buffer sessions.
	r.Put("/buffers", bh.Put)
	r.Delete("/buffers", bh.Close)
	r.Post("/buffers/refresh", bh.Refresh)
	r.Get("/buffers/hover", bh.Hover)
	r.Get("/buffers/reference", bh.ReferenceAt)
	r.Get("/buffers/targets", bh.Targets)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
