// Package session tracks the derived state of open editor buffers and
// recomputes it only when the buffer or the tree has changed since the last
// computation.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/doorlink/internal/analysis"
	"github.com/starford/doorlink/internal/reference"
)

// State is the freshness of a session's cached snapshot.
type State string

const (
	Dirty State = "dirty"
	Clean State = "clean"
)

// Analyzer computes a snapshot for a buffer.
type Analyzer interface {
	Analyze(ctx context.Context, path, text string) (*analysis.Snapshot, error)
}

// Session is the cached analysis of one buffer. A new session is dirty.
type Session struct {
	ID   string
	Path string

	analyzer Analyzer

	// refresh serializes recomputes. mu guards the fields below and is never
	// held while the analyzer runs, so cached lookups stay responsive.
	refresh sync.Mutex

	mu         sync.Mutex
	text       string
	state      State
	version    uint64
	snap       *analysis.Snapshot
	recomputes int
}

// New creates a dirty session for path.
func New(path string, analyzer Analyzer) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Path:     path,
		analyzer: analyzer,
		state:    Dirty,
	}
}

// Modified records new buffer text and marks the session dirty.
func (s *Session) Modified(text string) {
	s.mu.Lock()
	s.text = text
	s.state = Dirty
	s.version++
	s.mu.Unlock()
}

// MarkDirty forces the next Refresh to recompute without changing the text.
// It reports whether the session was clean before.
func (s *Session) MarkDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.state == Clean
	s.state = Dirty
	s.version++
	return was
}

// Refresh returns the snapshot, recomputing it first when the session is
// dirty. A failed recomputation leaves the session dirty and keeps the
// previous snapshot. A change that lands while the analyzer runs keeps the
// session dirty so the next Refresh picks it up.
func (s *Session) Refresh(ctx context.Context) (*analysis.Snapshot, error) {
	s.refresh.Lock()
	defer s.refresh.Unlock()

	s.mu.Lock()
	if s.state == Clean {
		snap := s.snap
		s.mu.Unlock()
		return snap, nil
	}
	text, version := s.text, s.version
	s.mu.Unlock()

	snap, err := s.analyzer.Analyze(ctx, s.Path, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputes++
	if err != nil {
		return s.snap, fmt.Errorf("session: refresh %s: %w", s.Path, err)
	}
	s.snap = snap
	if s.version == version {
		s.state = Clean
	}
	return snap, nil
}

// Load handles a buffer being opened with text.
func (s *Session) Load(ctx context.Context, text string) (*analysis.Snapshot, error) {
	s.Modified(text)
	return s.Refresh(ctx)
}

// Activated handles the buffer gaining focus.
func (s *Session) Activated(ctx context.Context) (*analysis.Snapshot, error) {
	return s.Refresh(ctx)
}

// Saved handles the buffer being written to disk.
func (s *Session) Saved(ctx context.Context) (*analysis.Snapshot, error) {
	return s.Refresh(ctx)
}

// Close drops the cached state.
func (s *Session) Close() {
	s.mu.Lock()
	s.snap = nil
	s.text = ""
	s.state = Dirty
	s.version++
	s.mu.Unlock()
}

// State returns the current freshness.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recomputes returns how many times the snapshot has been computed.
func (s *Session) Recomputes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputes
}

// Snapshot returns the cached snapshot without recomputing. It is nil
// before the first successful Refresh.
func (s *Session) Snapshot() *analysis.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// ReferenceAt looks up the reference under point in the cached snapshot.
func (s *Session) ReferenceAt(point int) (*reference.Reference, bool) {
	snap := s.Snapshot()
	if snap == nil {
		return nil, false
	}
	return snap.ReferenceAt(point)
}

// GotoTargets lists the related items of the cached snapshot.
func (s *Session) GotoTargets() []analysis.Target {
	snap := s.Snapshot()
	if snap == nil {
		return nil
	}
	return snap.GotoTargets()
}

// LinksHover returns the links popup for point from the cached snapshot.
func (s *Session) LinksHover(point int) (*analysis.Hover, bool) {
	snap := s.Snapshot()
	if snap == nil {
		return nil, false
	}
	return snap.LinksHover(point)
}
