package itemservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/doorlink/internal/apperr"
	"github.com/starford/doorlink/internal/graph"
	"github.com/starford/doorlink/internal/index"
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/reference"
	"github.com/starford/doorlink/internal/testutil"
	"github.com/starford/doorlink/internal/tree"
)

func testService(t *testing.T, withIndex bool) (*Service, string) {
	t.Helper()
	root, store := testutil.SampleTree(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := tree.NewRepo(store, logger)

	var db *index.DB
	if withIndex {
		db = testutil.TestDB(t)
	}
	svc := NewService(repo, graph.NewResolver(repo, logger), reference.NewLocator(root, logger, ".git"), db, logger)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc, root
}

func TestGetItem(t *testing.T) {
	svc, root := testService(t, false)

	item, err := svc.GetItem(context.Background(), "SYS001")
	if err != nil {
		t.Fatal(err)
	}
	if item.Text != "Login form." || item.Path != filepath.Join(root, "sys", "SYS001.yml") {
		t.Errorf("item = %+v", item)
	}
	if !strings.HasPrefix(item.Content, "active: true\n") {
		t.Errorf("content = %q", item.Content)
	}
	if len(item.Parents) != 1 || item.Parents[0].UID != "REQ001" {
		t.Errorf("parents = %+v", item.Parents)
	}
	if len(item.Children) != 1 || item.Children[0].UID != "TST001" || len(item.Linked) != 0 {
		t.Errorf("children = %+v linked = %+v", item.Children, item.Linked)
	}

	if _, err := svc.GetItem(context.Background(), "NOPE"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing item err = %v", err)
	}
}

func TestDocumentsAndItems(t *testing.T) {
	svc, _ := testService(t, false)
	ctx := context.Background()

	docs, err := svc.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 || docs[2].Prefix != "TST" || docs[2].Parent != "SYS" {
		t.Errorf("documents = %+v", docs)
	}

	items, err := svc.Items(ctx, "REQ")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 || items[1].Text != "Every action is audited." {
		t.Errorf("items = %+v", items)
	}
}

func TestWritesReindex(t *testing.T) {
	svc, _ := testService(t, true)
	ctx := context.Background()

	before, err := svc.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if before.Items != 6 || before.Links != 5 {
		t.Errorf("initial stats = %+v", before)
	}

	item, err := svc.AddItem(ctx, "REQ", "Sessions expire.")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Link(ctx, "SYS002", item.UID); err != nil {
		t.Fatal(err)
	}
	after, err := svc.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if after.Items != 7 || after.Links != 6 {
		t.Errorf("stats after writes = %+v", after)
	}

	hits, err := svc.Search(ctx, "expire", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].UID != item.UID {
		t.Errorf("search = %+v", hits)
	}
}

func TestAddReferenceIdempotent(t *testing.T) {
	svc, root := testService(t, false)
	ctx := context.Background()
	entry := models.ReferenceEntry{Path: "src/login.c", Keyword: "login"}

	added, err := svc.AddReference(ctx, "SYS002", entry)
	if err != nil || !added {
		t.Fatalf("first add = %v, %v", added, err)
	}
	added, err = svc.AddReference(ctx, "SYS002", entry)
	if err != nil || added {
		t.Fatalf("second add = %v, %v", added, err)
	}

	data, err := os.ReadFile(filepath.Join(root, "sys", "SYS002.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "src/login.c"); n != 1 {
		t.Errorf("reference written %d times:\n%s", n, data)
	}
}

func TestResolveReferences(t *testing.T) {
	svc, root := testService(t, false)
	ctx := context.Background()

	for _, path := range []string{"sys/SYS001.yml", filepath.Join(root, "sys", "SYS001.yml")} {
		res, err := svc.ResolveReferences(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Valid) != 1 || res.Valid[0].File != filepath.Join(root, "src", "login.c") {
			t.Errorf("%s: resolved = %+v", path, res)
		}
	}

	res, err := svc.ResolveReferences(ctx, "reqs/REQ001.yml")
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid == nil || len(res.Valid)+len(res.Invalid) != 0 {
		t.Errorf("item without references = %+v", res)
	}

	if _, err := svc.ResolveReferences(ctx, "reqs/NOPE.yml"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestCopyReference(t *testing.T) {
	svc, root := testService(t, false)

	block, err := svc.CopyReference(filepath.Join(root, "src", "login.c"), "")
	if err != nil {
		t.Fatal(err)
	}
	if block != "- path: 'src/login.c'\n  type: file" {
		t.Errorf("block = %q", block)
	}
	if _, err := svc.CopyReference(filepath.Join(filepath.Dir(root), "other.c"), ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("outside root err = %v", err)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	svc, _ := testService(t, false)
	if _, err := svc.Search(context.Background(), "login", 10); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
	if st, err := svc.Stats(); err != nil || st.Items != 0 {
		t.Errorf("stats without index = %+v, %v", st, err)
	}
}
