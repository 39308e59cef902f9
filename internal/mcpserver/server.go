// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes doorlink tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/doorlink/internal/itemservice"
	"github.com/starford/doorlink/internal/models"
)

// FormatURI is the resource holding the item format contract.
const FormatURI = "doorlink://item-format"

// Server wraps the MCP server with doorlink tools.
type Server struct {
	mcp *server.MCPServer
	svc *itemservice.Service
}

// New creates a new MCP server with all doorlink tools registered.
func New(svc *itemservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"doorlink",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the documents of the requirements tree with their parent documents."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List the items of one document."),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("Document prefix (e.g. REQ)")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Read an item: its raw YAML file, parents, children and other linked items."),
		mcp.WithString("uid", mcp.Required(), mcp.Description("Item UID (e.g. REQ001)")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("get_parents",
		mcp.WithDescription("Items the given item links to."),
		mcp.WithString("uid", mcp.Required(), mcp.Description("Item UID")),
	), s.relation(s.svc.Parents))

	s.mcp.AddTool(mcp.NewTool("get_children",
		mcp.WithDescription("Items of direct child documents that link to the given item."),
		mcp.WithString("uid", mcp.Required(), mcp.Description("Item UID")),
	), s.relation(s.svc.Children))

	s.mcp.AddTool(mcp.NewTool("get_linked",
		mcp.WithDescription("Items that link to the given item from outside its direct child documents."),
		mcp.WithString("uid", mcp.Required(), mcp.Description("Item UID")),
	), s.relation(s.svc.Linked))

	s.mcp.AddTool(mcp.NewTool("link_items",
		mcp.WithDescription("Link two items. The link is stored on whichever item sits lower in the "+
			"document hierarchy, so the argument order only matters between unrelated documents. "+
			"Returns the item that now holds the link."),
		mcp.WithString("child", mcp.Required(), mcp.Description("UID of the item that should hold the link")),
		mcp.WithString("parent", mcp.Required(), mcp.Description("UID of the item being linked to")),
	), s.linkItems)

	s.mcp.AddTool(mcp.NewTool("add_item",
		mcp.WithDescription("Create the next item of a document. Read get_item_contract first."),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("Document prefix")),
		mcp.WithString("text", mcp.Description("Item text")),
	), s.addItem)

	s.mcp.AddTool(mcp.NewTool("add_reference",
		mcp.WithDescription("Append a file reference to an item. Adding an entry that already exists is a no-op."),
		mcp.WithString("uid", mcp.Required(), mcp.Description("Item UID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path relative to the tree root")),
		mcp.WithString("keyword", mcp.Description("Text to locate inside the file")),
	), s.addReference)

	s.mcp.AddTool(mcp.NewTool("resolve_references",
		mcp.WithDescription("Resolve the references list of an item file to files and keyword positions."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Item file path, absolute or relative to the tree root")),
	), s.resolveReferences)

	s.mcp.AddTool(mcp.NewTool("copy_reference",
		mcp.WithDescription("Build a references entry for a file, ready to paste into an item."),
		mcp.WithString("file", mcp.Required(), mcp.Description("File path, absolute or relative to the tree root")),
		mcp.WithString("keyword", mcp.Description("Text to locate inside the file; only the first line is kept")),
	), s.copyReference)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Full-text search through item headers and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("get_item_contract",
		mcp.WithDescription("Returns the item file format contract. "+
			"Call this before creating or editing items."),
	), s.getItemContract)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Item Format Contract",
			mcp.WithResourceDescription("YAML layout of doorstop item files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readItemFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.svc.Documents(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(docs)
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix, err := req.RequireString("prefix")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.Items(ctx, prefix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := req.RequireString("uid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.GetItem(ctx, uid)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item)
}

func (s *Server) relation(query func(context.Context, string) ([]models.ItemSummary, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uid, err := req.RequireString("uid")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		items, err := query(ctx, uid)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(items)
	}
}

func (s *Server) linkItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	child, err := req.RequireString("child")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent, err := req.RequireString("parent")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	holder, err := s.svc.Link(ctx, child, parent)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(holder)
}

func (s *Server) addItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix, err := req.RequireString("prefix")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.AddItem(ctx, prefix, req.GetString("text", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", item.UID, item.Path)), nil
}

func (s *Server) addReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := req.RequireString("uid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry := models.ReferenceEntry{Path: path, Keyword: req.GetString("keyword", "")}
	added, err := s.svc.AddReference(ctx, uid, entry)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !added {
		return mcp.NewToolResultText("unchanged: reference already present"), nil
	}
	return mcp.NewToolResultText("added: " + path), nil
}

func (s *Server) resolveReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.ResolveReferences(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) copyReference(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	block, err := s.svc.CopyReference(file, req.GetString("keyword", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(block), nil
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getItemContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ItemFormatContract), nil
}

func (s *Server) readItemFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     ItemFormatContract,
		},
	}, nil
}
