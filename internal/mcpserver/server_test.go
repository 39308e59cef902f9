package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/doorlink/internal/graph"
	"github.com/starford/doorlink/internal/itemservice"
	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/reference"
	"github.com/starford/doorlink/internal/testutil"
	"github.com/starford/doorlink/internal/tree"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	root, store := testutil.SampleTree(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := tree.NewRepo(store, logger)
	resolver := graph.NewResolver(repo, logger)
	svc := itemservice.NewService(repo, resolver, reference.NewLocator(root, logger, ".git"), testutil.TestDB(t), logger)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_documents":
		result, err = srv.listDocuments(ctx, req)
	case "list_items":
		result, err = srv.listItems(ctx, req)
	case "get_item":
		result, err = srv.getItem(ctx, req)
	case "get_parents":
		result, err = srv.relation(srv.svc.Parents)(ctx, req)
	case "get_children":
		result, err = srv.relation(srv.svc.Children)(ctx, req)
	case "get_linked":
		result, err = srv.relation(srv.svc.Linked)(ctx, req)
	case "link_items":
		result, err = srv.linkItems(ctx, req)
	case "add_item":
		result, err = srv.addItem(ctx, req)
	case "add_reference":
		result, err = srv.addReference(ctx, req)
	case "resolve_references":
		result, err = srv.resolveReferences(ctx, req)
	case "copy_reference":
		result, err = srv.copyReference(ctx, req)
	case "search_items":
		result, err = srv.searchItems(ctx, req)
	case "get_item_contract":
		result, err = srv.getItemContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func summaries(t *testing.T, r *mcp.CallToolResult) []models.ItemSummary {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var out []models.ItemSummary
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return out
}

func uids(items []models.ItemSummary) string {
	var out []string
	for _, it := range items {
		out = append(out, it.UID)
	}
	return strings.Join(out, ",")
}

func TestListDocumentsAndItems(t *testing.T) {
	srv := testServer(t)

	text := resultText(callTool(t, srv, "list_documents", nil))
	for _, prefix := range []string{"REQ", "SYS", "TST"} {
		if !strings.Contains(text, `"prefix": "`+prefix+`"`) {
			t.Errorf("documents missing %s: %s", prefix, text)
		}
	}

	items := summaries(t, callTool(t, srv, "list_items", map[string]interface{}{"prefix": "SYS"}))
	if got := uids(items); got != "SYS001,SYS002" {
		t.Errorf("SYS items = %s", got)
	}

	if r := callTool(t, srv, "list_items", map[string]interface{}{"prefix": "NOPE"}); !r.IsError {
		t.Error("expected error for unknown document")
	}
}

func TestRelations(t *testing.T) {
	srv := testServer(t)
	args := map[string]interface{}{"uid": "REQ001"}

	if got := uids(summaries(t, callTool(t, srv, "get_children", args))); got != "SYS001,SYS002" {
		t.Errorf("children = %s", got)
	}
	if got := uids(summaries(t, callTool(t, srv, "get_parents", map[string]interface{}{"uid": "TST001"}))); got != "SYS001,REQ002" {
		t.Errorf("parents = %s", got)
	}
	if got := uids(summaries(t, callTool(t, srv, "get_linked", map[string]interface{}{"uid": "REQ002"}))); got != "TST001" {
		t.Errorf("linked = %s", got)
	}
	if r := callTool(t, srv, "get_parents", map[string]interface{}{}); !r.IsError {
		t.Error("expected error without uid")
	}
}

func TestLinkItems(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "link_items", map[string]interface{}{"child": "REQ002", "parent": "SYS001"})
	if r.IsError {
		t.Fatalf("link: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"uid": "SYS001"`) {
		t.Errorf("holder = %s", resultText(r))
	}
	if got := uids(summaries(t, callTool(t, srv, "get_children", map[string]interface{}{"uid": "REQ002"}))); got != "SYS001,SYS002,TST001" {
		t.Errorf("children after link = %s", got)
	}
}

func TestAddItemAndReference(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "add_item", map[string]interface{}{"prefix": "TST", "text": "Log out twice."})
	if !strings.HasPrefix(resultText(r), "created: TST002") {
		t.Fatalf("add item = %q", resultText(r))
	}

	args := map[string]interface{}{"uid": "TST002", "path": "src/login.c", "keyword": "login"}
	if got := resultText(callTool(t, srv, "add_reference", args)); got != "added: src/login.c" {
		t.Errorf("first add = %q", got)
	}
	if got := resultText(callTool(t, srv, "add_reference", args)); !strings.HasPrefix(got, "unchanged") {
		t.Errorf("second add = %q", got)
	}

	r = callTool(t, srv, "resolve_references", map[string]interface{}{"path": "tst/TST002.yml"})
	var res reference.Result
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Valid) != 1 || res.Valid[0].Row != 2 {
		t.Errorf("resolved = %+v", res)
	}

	hits := resultText(callTool(t, srv, "search_items", map[string]interface{}{"query": "twice"}))
	if !strings.Contains(hits, "TST002") {
		t.Errorf("search = %s", hits)
	}
}

func TestCopyReference(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "copy_reference", map[string]interface{}{"file": "src/login.c", "keyword": "void login\nextra"})
	want := "- path: 'src/login.c'\n  type: file\n  keyword: 'void login'"
	if got := resultText(r); got != want {
		t.Errorf("block = %q, want %q", got, want)
	}
	if r := callTool(t, srv, "copy_reference", map[string]interface{}{"file": "/elsewhere/x.c"}); !r.IsError {
		t.Error("expected error for a file outside the tree")
	}
}

func TestItemContract(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "get_item_contract", nil))
	if !strings.Contains(text, "references:") || !strings.Contains(text, "link_items") {
		t.Errorf("contract = %q", text)
	}
}
