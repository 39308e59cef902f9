package session

import (
	"sort"
	"sync"
)

// Registry holds one session per buffer path.
type Registry struct {
	analyzer Analyzer

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry(analyzer Analyzer) *Registry {
	return &Registry{analyzer: analyzer, sessions: make(map[string]*Session)}
}

// Open returns the session for path, creating it if needed.
func (r *Registry) Open(path string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[path]
	if !ok {
		s = New(path, r.analyzer)
		r.sessions[path] = s
	}
	return s
}

// Get returns the session for path if one is open.
func (r *Registry) Get(path string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[path]
	return s, ok
}

// Close drops the session for path. It reports whether one was open.
func (r *Registry) Close(path string) bool {
	r.mu.Lock()
	s, ok := r.sessions[path]
	delete(r.sessions, path)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// MarkAllDirty invalidates every open session, for example after a file of
// the tree changed on disk. It returns the sorted paths of the sessions that
// were clean until now.
func (r *Registry) MarkAllDirty() []string {
	r.mu.Lock()
	open := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		open = append(open, s)
	}
	r.mu.Unlock()

	var stale []string
	for _, s := range open {
		if s.MarkDirty() {
			stale = append(stale, s.Path)
		}
	}
	sort.Strings(stale)
	return stale
}

// Paths returns the open buffer paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sessions))
	for p := range r.sessions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
