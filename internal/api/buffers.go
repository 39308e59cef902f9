package api

import (
	"net/http"
	"strconv"

	"github.com/starford/doorlink/internal/analysis"
	"github.com/starford/doorlink/internal/session"
)

// BufferHandler exposes editor buffer sessions. Hover and lookup routes only
// read the cached analysis; Put and Refresh are the only routes that compute.
type BufferHandler struct {
	sessions *session.Registry
}

// NewBufferHandler creates a BufferHandler.
func NewBufferHandler(sessions *session.Registry) *BufferHandler {
	return &BufferHandler{sessions: sessions}
}

// Put handles PUT /api/buffers.
//
//	@Summary		Load or modify a buffer
//	@Tags			buffers
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BufferRequest	true	"Buffer"
//	@Success		200		{object}	BufferResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/buffers [put]
func (h *BufferHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req BufferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	s := h.sessions.Open(req.Path)
	switch req.Event {
	case "modified":
		s.Modified(req.Text)
		writeJSON(w, http.StatusOK, bufferResponse(s, nil))
	case "", "load":
		snap, err := s.Load(r.Context(), req.Text)
		if err != nil {
			writeError(w, "load buffer", err)
			return
		}
		writeJSON(w, http.StatusOK, bufferResponse(s, snap))
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("event must be load or modified"))
	}
}

// Refresh handles POST /api/buffers/refresh.
//
//	@Summary		Recompute a buffer if it is stale
//	@Tags			buffers
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BufferRequest	true	"Buffer path"
//	@Success		200		{object}	BufferResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/buffers/refresh [post]
func (h *BufferHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req BufferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, ok := h.sessions.Get(req.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("buffer not open"))
		return
	}
	snap, err := s.Refresh(r.Context())
	if err != nil {
		writeError(w, "refresh buffer", err)
		return
	}
	writeJSON(w, http.StatusOK, bufferResponse(s, snap))
}

// Close handles DELETE /api/buffers?path=.
//
//	@Summary		Close a buffer
//	@Tags			buffers
//	@Param			path	query	string	true	"Buffer path"
//	@Success		204		"Buffer closed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/buffers [delete]
func (h *BufferHandler) Close(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(r.URL.Query().Get("path")) {
		writeJSON(w, http.StatusNotFound, errorBody("buffer not open"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Hover handles GET /api/buffers/hover?path=&point=.
//
//	@Summary		Links popup for a point on the links key
//	@Tags			buffers
//	@Produce		json
//	@Param			path	query		string	true	"Buffer path"
//	@Param			point	query		int		true	"Byte offset"
//	@Success		200		{object}	analysis.Hover
//	@Success		204		"Nothing to show"
//	@Security		BearerAuth
//	@Router			/buffers/hover [get]
func (h *BufferHandler) Hover(w http.ResponseWriter, r *http.Request) {
	s, point, ok := h.lookup(w, r)
	if !ok {
		return
	}
	hover, ok := s.LinksHover(point)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, hover)
}

// ReferenceAt handles GET /api/buffers/reference?path=&point=.
//
//	@Summary		Reference entry under a point
//	@Tags			buffers
//	@Produce		json
//	@Param			path	query		string	true	"Buffer path"
//	@Param			point	query		int		true	"Byte offset"
//	@Success		200		{object}	reference.Reference
//	@Success		204		"No reference at point"
//	@Security		BearerAuth
//	@Router			/buffers/reference [get]
func (h *BufferHandler) ReferenceAt(w http.ResponseWriter, r *http.Request) {
	s, point, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ref, ok := s.ReferenceAt(point)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// Targets handles GET /api/buffers/targets?path=.
//
//	@Summary		Goto targets of a buffer
//	@Tags			buffers
//	@Produce		json
//	@Param			path	query		string	true	"Buffer path"
//	@Success		200		{object}	TargetsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/buffers/targets [get]
func (h *BufferHandler) Targets(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(r.URL.Query().Get("path"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("buffer not open"))
		return
	}
	resp := TargetsResponse{Items: []analysis.Target{}, References: []analysis.Target{}}
	if snap := s.Snapshot(); snap != nil {
		if items := snap.GotoTargets(); items != nil {
			resp.Items = items
		}
		resp.References = snap.ReferenceTargets()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BufferHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, int, bool) {
	q := r.URL.Query()
	point, err := strconv.Atoi(q.Get("point"))
	if err != nil || point < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'point' must be a non-negative integer"))
		return nil, 0, false
	}
	s, ok := h.sessions.Get(q.Get("path"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("buffer not open"))
		return nil, 0, false
	}
	return s, point, true
}

func bufferResponse(s *session.Session, snap *analysis.Snapshot) BufferResponse {
	return BufferResponse{ID: s.ID, State: string(s.State()), Snapshot: snap}
}
