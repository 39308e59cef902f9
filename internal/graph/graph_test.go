package graph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/starford/doorlink/internal/apperr"
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/testutil"
	"github.com/starford/doorlink/internal/tree"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleResolver(t *testing.T) (*Resolver, *tree.Repo) {
	t.Helper()
	_, store := testutil.SampleTree(t)
	repo := tree.NewRepo(store, discard())
	return NewResolver(repo, discard()), repo
}

func uidsOf(s []models.ItemSummary) []string {
	out := make([]string, 0, len(s))
	for _, it := range s {
		out = append(out, it.UID)
	}
	return out
}

func TestParents(t *testing.T) {
	r, _ := sampleResolver(t)
	ctx := context.Background()

	got, err := r.Parents(ctx, "TST001")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(uidsOf(got), []string{"SYS001", "REQ002"}) {
		t.Errorf("parents = %v", uidsOf(got))
	}
	if got[0].Text != "Login form." {
		t.Errorf("text = %q", got[0].Text)
	}

	got, _ = r.Parents(ctx, "REQ001")
	if got == nil || len(got) != 0 {
		t.Errorf("root item parents = %#v", got)
	}

	if _, err := r.Parents(ctx, "NOPE"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown uid err = %v", err)
	}
}

func TestParentsSkipsDanglingLinks(t *testing.T) {
	files := testutil.SampleFiles()
	files["sys/SYS003.yml"] = "links:\n- REQ404: null\n- REQ001: null\ntext: x\n"
	_, store := testutil.TestTree(t, files)
	r := NewResolver(tree.NewRepo(store, discard()), discard())

	got, err := r.Parents(context.Background(), "SYS003")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(uidsOf(got), []string{"REQ001"}) {
		t.Errorf("parents = %v", uidsOf(got))
	}
}

func TestChildrenAndLinked(t *testing.T) {
	r, _ := sampleResolver(t)
	ctx := context.Background()

	children, err := r.Children(ctx, "REQ002")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(uidsOf(children), []string{"SYS002", "TST001"}) {
		t.Errorf("children = %v", uidsOf(children))
	}
	linked, err := r.Linked(ctx, "REQ002")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(uidsOf(linked), []string{"TST001"}) {
		t.Errorf("linked = %v", uidsOf(linked))
	}

	linked, _ = r.Linked(ctx, "REQ001")
	if len(linked) != 0 {
		t.Errorf("REQ001 linked = %v", uidsOf(linked))
	}
}

func TestParentsChildrenInverse(t *testing.T) {
	r, repo := sampleResolver(t)
	ctx := context.Background()
	all, err := repo.All(ctx)
	if err != nil {
		t.Fatal(err)
	}

	parentsOf := map[string]map[string]bool{}
	childrenOf := map[string]map[string]bool{}
	for _, it := range all {
		ps, err := r.Parents(ctx, it.UID)
		if err != nil {
			t.Fatal(err)
		}
		cs, err := r.Children(ctx, it.UID)
		if err != nil {
			t.Fatal(err)
		}
		parentsOf[it.UID] = map[string]bool{}
		childrenOf[it.UID] = map[string]bool{}
		for _, p := range ps {
			parentsOf[it.UID][p.UID] = true
		}
		for _, c := range cs {
			childrenOf[it.UID][c.UID] = true
		}
	}
	for _, a := range all {
		for _, b := range all {
			if childrenOf[a.UID][b.UID] != parentsOf[b.UID][a.UID] {
				t.Errorf("%s in children(%s) = %v but %s in parents(%s) = %v",
					b.UID, a.UID, childrenOf[a.UID][b.UID], a.UID, b.UID, parentsOf[b.UID][a.UID])
			}
		}
	}
}

func TestLinkedDisjointFromChildLinks(t *testing.T) {
	r, repo := sampleResolver(t)
	ctx := context.Background()
	all, _ := repo.All(ctx)
	for _, it := range all {
		linked, err := r.Linked(ctx, it.UID)
		if err != nil {
			t.Fatal(err)
		}
		for _, l := range linked {
			for _, c := range it.ChildLinks {
				if l.UID == c {
					t.Errorf("%s: %s is both linked and a child link", it.UID, c)
				}
			}
		}
	}
}

func TestLinkDirection(t *testing.T) {
	// DocA <- DocB <- DocC: link(a1, c1) stores the edge on c1.
	_, store := testutil.TestTree(t, map[string]string{
		"a/.doorstop.yml": "settings:\n  digits: 1\n  prefix: A\n  sep: ''\n",
		"a/A1.yml":        "links: []\ntext: a1\n",
		"b/.doorstop.yml": "settings:\n  digits: 1\n  parent: A\n  prefix: B\n  sep: ''\n",
		"b/B1.yml":        "links: []\ntext: b1\n",
		"c/.doorstop.yml": "settings:\n  digits: 1\n  parent: B\n  prefix: C\n  sep: ''\n",
		"c/C1.yml":        "links: []\ntext: c1\n",
		"c/C2.yml":        "links: []\ntext: c2\n",
	})
	repo := tree.NewRepo(store, discard())
	r := NewResolver(repo, discard())
	ctx := context.Background()

	got, err := r.Link(ctx, "A1", "C1")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if got.UID != "C1" {
		t.Errorf("holder = %s, want C1", got.UID)
	}
	c1, _ := repo.Item(ctx, "C1")
	a1, _ := repo.Item(ctx, "A1")
	if !reflect.DeepEqual(c1.Links, []string{"A1"}) || len(a1.Links) != 0 {
		t.Errorf("C1 links = %v, A1 links = %v", c1.Links, a1.Links)
	}

	got, err = r.Link(ctx, "B1", "A1")
	if err != nil {
		t.Fatal(err)
	}
	if got.UID != "B1" {
		t.Errorf("natural order holder = %s, want B1", got.UID)
	}

	got, err = r.Link(ctx, "C2", "C1")
	if err != nil {
		t.Fatal(err)
	}
	if got.UID != "C2" {
		t.Errorf("same document holder = %s, want C2", got.UID)
	}

	if _, err := r.Link(ctx, "A1", "C1"); err != nil {
		t.Fatal(err)
	}
	c1, _ = repo.Item(ctx, "C1")
	if len(c1.Links) != 1 {
		t.Errorf("repeated link duplicated: %v", c1.Links)
	}
}

func TestLinkRejects(t *testing.T) {
	r, _ := sampleResolver(t)
	ctx := context.Background()
	if _, err := r.Link(ctx, "REQ001", "REQ001"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("self link err = %v", err)
	}
	if _, err := r.Link(ctx, "REQ001", "NOPE"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown parent err = %v", err)
	}
}

type memBackend struct {
	docs    map[string]*models.Document
	items   map[string]*models.Item
	appends [][2]string
}

func (m *memBackend) Documents(context.Context) ([]*models.Document, error) { return nil, nil }

func (m *memBackend) Document(_ context.Context, prefix string) (*models.Document, error) {
	d, ok := m.docs[prefix]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return d, nil
}

func (m *memBackend) Items(context.Context, string) ([]*models.Item, error) { return nil, nil }

func (m *memBackend) Item(_ context.Context, uid string) (*models.Item, error) {
	it, ok := m.items[uid]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return it, nil
}

func (m *memBackend) Referrers(context.Context, string) ([]*models.Item, error) { return nil, nil }

func (m *memBackend) AppendLink(_ context.Context, uid, target string) error {
	m.appends = append(m.appends, [2]string{uid, target})
	return nil
}

func TestLinkSurvivesDocumentCycle(t *testing.T) {
	m := &memBackend{
		docs: map[string]*models.Document{
			"X": {Prefix: "X", Parent: "Y"},
			"Y": {Prefix: "Y", Parent: "X"},
			"Z": {Prefix: "Z", Parent: "MISSING"},
		},
		items: map[string]*models.Item{
			"X1": {UID: "X1", Prefix: "X"},
			"Y1": {UID: "Y1", Prefix: "Y"},
			"Z1": {UID: "Z1", Prefix: "Z"},
		},
	}
	r := NewResolver(m, discard())
	ctx := context.Background()

	got, err := r.Link(ctx, "Y1", "X1")
	if err != nil {
		t.Fatal(err)
	}
	if got.UID != "X1" {
		t.Errorf("holder = %s", got.UID)
	}
	got, err = r.Link(ctx, "X1", "Z1")
	if err != nil {
		t.Fatal(err)
	}
	if got.UID != "X1" {
		t.Errorf("truncated walk holder = %s", got.UID)
	}
	if len(m.appends) != 2 {
		t.Errorf("appends = %v", m.appends)
	}
}
