package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starford/doorlink/internal/analysis"
	"github.com/starford/doorlink/internal/region"
)

type countingAnalyzer struct {
	mu    sync.Mutex
	calls int
	texts []string
	err   error
}

func (c *countingAnalyzer) Analyze(_ context.Context, path, text string) (*analysis.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.texts = append(c.texts, text)
	if c.err != nil {
		return nil, c.err
	}
	return &analysis.Snapshot{Path: path, UID: text}, nil
}

func TestNewSessionIsDirty(t *testing.T) {
	s := New("/tree/reqs/REQ001.yml", &countingAnalyzer{})
	if s.State() != Dirty {
		t.Errorf("state = %s", s.State())
	}
	if s.ID == "" {
		t.Error("session id is empty")
	}
	if s.Snapshot() != nil {
		t.Error("new session has a snapshot")
	}
}

func TestManyModificationsOneRecompute(t *testing.T) {
	a := &countingAnalyzer{}
	s := New("item.yml", a)
	ctx := context.Background()

	for _, text := range []string{"a", "ab", "abc", "abcd", "abcde"} {
		s.Modified(text)
	}
	snap, err := s.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a.calls != 1 {
		t.Errorf("calls = %d, want 1", a.calls)
	}
	if snap.UID != "abcde" {
		t.Errorf("snapshot computed from %q", snap.UID)
	}
	if s.State() != Clean {
		t.Errorf("state = %s", s.State())
	}
}

func TestCleanRefreshUsesCache(t *testing.T) {
	a := &countingAnalyzer{}
	s := New("item.yml", a)
	ctx := context.Background()

	first, err := s.Load(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Activated(ctx); err != nil {
			t.Fatal(err)
		}
	}
	again, _ := s.Saved(ctx)
	if a.calls != 1 || s.Recomputes() != 1 {
		t.Errorf("calls = %d, recomputes = %d", a.calls, s.Recomputes())
	}
	if first != again {
		t.Error("clean refresh returned a different snapshot")
	}

	s.MarkDirty()
	if _, err := s.Activated(ctx); err != nil {
		t.Fatal(err)
	}
	if a.calls != 2 {
		t.Errorf("calls after MarkDirty = %d", a.calls)
	}
}

func TestFailedRefreshStaysDirty(t *testing.T) {
	a := &countingAnalyzer{}
	s := New("item.yml", a)
	ctx := context.Background()
	good, _ := s.Load(ctx, "ok")

	a.err = errors.New("backend down")
	s.Modified("next")
	snap, err := s.Refresh(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if snap != good {
		t.Error("failed refresh should keep the previous snapshot")
	}
	if s.State() != Dirty {
		t.Errorf("state = %s", s.State())
	}

	a.err = nil
	if _, err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if a.calls != 3 || s.State() != Clean {
		t.Errorf("calls = %d state = %s", a.calls, s.State())
	}
}

func TestCloseDropsState(t *testing.T) {
	s := New("item.yml", &countingAnalyzer{})
	_, _ = s.Load(context.Background(), "x")
	s.Close()
	if s.Snapshot() != nil || s.State() != Dirty {
		t.Error("Close should drop the snapshot")
	}
	if _, ok := s.LinksHover(0); ok {
		t.Error("hover after Close")
	}
	if s.GotoTargets() != nil {
		t.Error("targets after Close")
	}
}

func TestConsumersReadCache(t *testing.T) {
	a := &countingAnalyzer{}
	s := New("item.yml", a)
	if _, ok := s.ReferenceAt(3); ok {
		t.Error("ReferenceAt before any refresh")
	}
	_, _ = s.Load(context.Background(), "x")
	s.Modified("changed")

	s.snap.LinksKey = &region.Span{Begin: 0, End: 6, Text: "links:"}
	if _, ok := s.LinksHover(2); !ok {
		t.Error("hover should read the cached snapshot")
	}
	if a.calls != 1 {
		t.Errorf("consumers triggered recompute: calls = %d", a.calls)
	}
}

func TestRegistry(t *testing.T) {
	a := &countingAnalyzer{}
	r := NewRegistry(a)
	ctx := context.Background()

	one := r.Open("a.yml")
	if r.Open("a.yml") != one {
		t.Error("Open should return the existing session")
	}
	two := r.Open("b.yml")
	_, _ = one.Load(ctx, "1")
	_, _ = two.Load(ctx, "2")

	if stale := r.MarkAllDirty(); len(stale) != 2 || stale[0] != "a.yml" {
		t.Errorf("stale = %v", stale)
	}
	if one.State() != Dirty || two.State() != Dirty {
		t.Error("MarkAllDirty missed a session")
	}
	if stale := r.MarkAllDirty(); len(stale) != 0 {
		t.Errorf("already dirty sessions reported again: %v", stale)
	}
	_, _ = one.Refresh(ctx)
	if a.calls != 3 {
		t.Errorf("calls = %d", a.calls)
	}

	if got := r.Paths(); len(got) != 2 || got[0] != "a.yml" {
		t.Errorf("paths = %v", got)
	}
	if !r.Close("a.yml") || r.Close("a.yml") {
		t.Error("Close should report the open session once")
	}
	if _, ok := r.Get("a.yml"); ok {
		t.Error("closed session still registered")
	}
}

func TestConcurrentRefresh(t *testing.T) {
	a := &countingAnalyzer{}
	s := New("item.yml", a)
	s.Modified("x")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Refresh(context.Background())
		}()
	}
	wg.Wait()
	if a.calls != 1 {
		t.Errorf("calls = %d, want 1", a.calls)
	}
}

type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingAnalyzer) Analyze(_ context.Context, path, text string) (*analysis.Snapshot, error) {
	b.started <- struct{}{}
	<-b.release
	return &analysis.Snapshot{Path: path, UID: text}, nil
}

func TestLookupsDoNotWaitForRecompute(t *testing.T) {
	b := &blockingAnalyzer{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := New("item.yml", b)
	s.snap = &analysis.Snapshot{LinksKey: &region.Span{Begin: 0, End: 6, Text: "links:"}}
	s.Modified("first")

	refreshed := make(chan *analysis.Snapshot)
	go func() {
		snap, _ := s.Refresh(context.Background())
		refreshed <- snap
	}()
	<-b.started

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok := s.LinksHover(2); !ok {
			t.Error("hover should read the previous snapshot")
		}
		s.Modified("second")
		s.MarkDirty()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lookups blocked behind the running recompute")
	}

	close(b.release)
	snap := <-refreshed
	if snap.UID != "first" {
		t.Errorf("snapshot computed from %q", snap.UID)
	}
	if s.State() != Dirty {
		t.Error("an edit during the recompute must leave the session dirty")
	}

	b.started = make(chan struct{}, 1)
	b.release = make(chan struct{})
	close(b.release)
	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.UID != "second" || s.State() != Clean {
		t.Errorf("second refresh: uid %q, state %s", snap.UID, s.State())
	}
}
