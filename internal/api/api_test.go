package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/starford/doorlink/internal/analysis"
	"github.com/starford/doorlink/internal/gateway"
	"github.com/starford/doorlink/internal/graph"
	"github.com/starford/doorlink/internal/itemservice"
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/reference"
	"github.com/starford/doorlink/internal/session"
	"github.com/starford/doorlink/internal/testutil"
	"github.com/starford/doorlink/internal/tree"
)

// testEnv sets up the sample tree, SQLite DB, service, sessions and router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (http.Handler, string) {
	t.Helper()
	root, store := testutil.SampleTree(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := tree.NewRepo(store, logger)
	resolver := graph.NewResolver(repo, logger)
	locator := reference.NewLocator(root, logger, ".git")
	db := testutil.TestDB(t)

	svc := itemservice.NewService(repo, resolver, locator, db, logger)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	gw := gateway.NewLocal(repo, resolver, logger)
	sessions := session.NewRegistry(analysis.NewAnalyzer(locator, gw, repo, logger))

	return NewRouter(svc, sessions, authToken != "", authToken, nil), root
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestListDocumentsAndItems(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/documents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("documents status = %d", w.Code)
	}
	docs := decode[DocumentListResponse](t, w)
	if len(docs.Documents) != 3 || docs.Documents[1].Parent != "REQ" {
		t.Errorf("documents = %+v", docs.Documents)
	}

	w = do(t, router, http.MethodGet, "/documents/REQ/items", nil)
	items := decode[ItemListResponse](t, w)
	if len(items.Items) != 3 || items.Items[0].Text != "Login" {
		t.Errorf("items = %+v", items.Items)
	}

	w = do(t, router, http.MethodGet, "/documents/NOPE/items", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown document status = %d", w.Code)
	}
}

func TestGetItemAndRelations(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/items/REQ002", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	item := decode[ItemDetail](t, w)
	if item.UID != "REQ002" || item.Text != "Every action is audited." {
		t.Errorf("item = %+v", item)
	}
	if len(item.Children) != 2 || len(item.Linked) != 1 || !strings.Contains(item.Content, "normative: true") {
		t.Errorf("relations = %+v / %+v", item.Children, item.Linked)
	}

	for route, want := range map[string]int{"parents": 2, "children": 0, "linked": 0} {
		w := do(t, router, http.MethodGet, "/items/TST001/"+route, nil)
		got := decode[ItemListResponse](t, w)
		if len(got.Items) != want {
			t.Errorf("%s = %+v, want %d", route, got.Items, want)
		}
	}

	if w := do(t, router, http.MethodGet, "/items/NOPE/parents", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown item status = %d", w.Code)
	}
}

func TestLinkEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/links", LinkRequest{Child: "REQ003", Parent: "TST001"})
	if w.Code != http.StatusOK {
		t.Fatalf("link status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[models.ItemSummary](t, w)
	if got.UID != "TST001" {
		t.Errorf("holder = %s, want TST001", got.UID)
	}

	// TST is not a direct child document of REQ, so TST001 is also "other".
	w = do(t, router, http.MethodGet, "/items/REQ003/linked", nil)
	if items := decode[ItemListResponse](t, w); len(items.Items) != 1 || items.Items[0].UID != "TST001" {
		t.Errorf("REQ003 linked = %+v", items.Items)
	}

	if w := do(t, router, http.MethodPost, "/links", LinkRequest{Child: "REQ001", Parent: "REQ001"}); w.Code != http.StatusBadRequest {
		t.Errorf("self link status = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/links", map[string]string{"child": "REQ001"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing parent status = %d", w.Code)
	}
}

func TestAddItemAndReference(t *testing.T) {
	router, root := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/documents/SYS/items", AddItemRequest{Text: "Export audit log."})
	if w.Code != http.StatusCreated {
		t.Fatalf("add item status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[models.Item](t, w)
	if created.UID != "SYS003" {
		t.Errorf("uid = %s", created.UID)
	}

	ref := AddReferenceRequest{Path: "src/login.c", Type: "file", Keyword: "login"}
	w = do(t, router, http.MethodPost, "/items/SYS003/references", ref)
	if w.Code != http.StatusCreated {
		t.Fatalf("add reference status = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/items/SYS003/references", ref)
	if w.Code != http.StatusOK || decode[AddReferenceResponse](t, w).Added {
		t.Errorf("repeat add reference = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/references?path=sys/SYS003.yml", nil)
	res := decode[reference.Result](t, w)
	if len(res.Valid) != 1 || res.Valid[0].Row != 2 {
		t.Errorf("resolved = %+v", res)
	}

	w = do(t, router, http.MethodGet, "/search?q=audit", nil)
	hits := decode[SearchResponse](t, w)
	found := false
	for _, h := range hits.Results {
		if h.UID == "SYS003" {
			found = true
		}
	}
	if !found {
		t.Errorf("new item not searchable: %+v", hits.Results)
	}

	w = do(t, router, http.MethodGet, "/references/copy?file="+filepath.Join(root, "src", "login.c")+"&keyword=login", nil)
	if got := decode[CopyReferenceResponse](t, w).Block; got != "- path: 'src/login.c'\n  type: file\n  keyword: 'login'" {
		t.Errorf("block = %q", got)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	router, _ := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestBufferLifecycle(t *testing.T) {
	router, root := testEnv(t, "")
	path := filepath.Join(root, "reqs", "REQ002.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	w := do(t, router, http.MethodPut, "/buffers", BufferRequest{Path: path, Text: text})
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", w.Code, w.Body.String())
	}
	buf := decode[BufferResponse](t, w)
	if buf.State != "clean" || buf.Snapshot == nil || !buf.Snapshot.LinksValid {
		t.Errorf("buffer = %+v", buf)
	}

	point := strings.Index(text, "links:") + 1
	w = do(t, router, http.MethodGet, "/buffers/hover?path="+path+"&point="+strconv.Itoa(point), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("hover status = %d", w.Code)
	}
	hover := decode[analysis.Hover](t, w)
	if len(hover.Sections) != 2 {
		t.Errorf("hover = %+v", hover)
	}
	if w := do(t, router, http.MethodGet, "/buffers/hover?path="+path+"&point=0", nil); w.Code != http.StatusNoContent {
		t.Errorf("hover off key status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/buffers/targets?path="+path, nil)
	targets := decode[TargetsResponse](t, w)
	if len(targets.Items) != 2 || targets.Items[0].Label != "Child: SYS002: Audit log writer." {
		t.Errorf("targets = %+v", targets.Items)
	}

	w = do(t, router, http.MethodPut, "/buffers", BufferRequest{Path: path, Text: text + "\n", Event: "modified"})
	if decode[BufferResponse](t, w).State != "dirty" {
		t.Errorf("modified buffer should be dirty: %s", w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/buffers/refresh", BufferRequest{Path: path})
	if decode[BufferResponse](t, w).State != "clean" {
		t.Errorf("refresh should clean the buffer: %s", w.Body.String())
	}

	if w := do(t, router, http.MethodDelete, "/buffers?path="+path, nil); w.Code != http.StatusNoContent {
		t.Errorf("close status = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/buffers/hover?path="+path+"&point=1", nil); w.Code != http.StatusNotFound {
		t.Errorf("hover after close status = %d", w.Code)
	}
}

func TestBufferReferenceAt(t *testing.T) {
	router, root := testEnv(t, "")
	path := filepath.Join(root, "sys", "SYS001.yml")
	data, _ := os.ReadFile(path)
	text := string(data)
	do(t, router, http.MethodPut, "/buffers", BufferRequest{Path: path, Text: text})

	point := strings.Index(text, "- path: src/login.c") + 3
	w := do(t, router, http.MethodGet, "/buffers/reference?path="+path+"&point="+strconv.Itoa(point), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reference status = %d", w.Code)
	}
	ref := decode[reference.Reference](t, w)
	if ref.Keyword != "login" || ref.Row != 2 || ref.Column != 6 {
		t.Errorf("reference = %+v", ref)
	}
	if w := do(t, router, http.MethodGet, "/buffers/reference?path="+path+"&point=x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad point status = %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router, _ := testEnv(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", w.Code)
	}
}
