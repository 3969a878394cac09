// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Ansuz note graph and similarity search over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/similarity"
)

const (
	contractURI  = "ansuz://note-format"
	defaultLimit = 10
)

// Graph is the subset of the note graph the tools use.
type Graph interface {
	Get(ctx context.Context, path string) (*models.Note, error)
	List(ctx context.Context) ([]models.NoteMetadata, error)
	OpenOrCreate(ctx context.Context, query string) (*models.Note, bool, error)
	CreateLink(ctx context.Context, from, query string) (string, error)
	Follow(ctx context.Context, marker string) (string, error)
	Backlinks(ctx context.Context, path string) ([]string, error)
}

// Searcher runs similarity queries.
type Searcher interface {
	SearchByText(ctx context.Context, text string, limit int) ([]similarity.Result, error)
	FindSimilar(ctx context.Context, path string, limit int) ([]similarity.Result, error)
}

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp    *server.MCPServer
	graph  Graph
	search Searcher
}

// New creates a new MCP server with all Ansuz tools registered.
func New(graph Graph, search Searcher) *Server {
	s := &Server{graph: graph, search: search}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("open_note",
		mcp.WithDescription("Open a note by path or free-text query, creating it if it does not exist. "+
			"New notes start with a title header and an empty Linked From section."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Note path (e.g. ideas/graph.md) or a [[marker]]")),
	), s.openNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note with its outgoing links, backlinks and embedding state."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_link",
		mcp.WithDescription("Link one note to another. The target is created when missing and "+
			"receives a backlink entry in its Linked From section."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Path of the linking note")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target path or query")),
	), s.createLink)

	s.mcp.AddTool(mcp.NewTool("follow_link",
		mcp.WithDescription("Resolve a [[marker]] to a note path, creating the note if absent."),
		mcp.WithString("marker", mcp.Required(), mcp.Description("Link marker, e.g. [[ideas/graph]]")),
	), s.followLink)

	s.mcp.AddTool(mcp.NewTool("semantic_search",
		mcp.WithDescription("Rank notes by cosine similarity to a free-text query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
	), s.semanticSearch)

	s.mcp.AddTool(mcp.NewTool("find_similar",
		mcp.WithDescription("Rank notes by similarity to an already embedded note. The note itself is excluded."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Reference note path")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
	), s.findSimilar)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, optionally under a folder prefix."),
		mcp.WithString("folder", mcp.Description("Optional folder prefix (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the Ansuz note format contract. "+
			"Call this before editing notes so markers and the Linked From section stay intact."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("Markdown note format with link markers and the Linked From section."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func (s *Server) openNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, created, err := s.graph.OpenOrCreate(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"path": note.Path, "created": created, "content": note.Content})
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.graph.Get(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) createLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := s.graph.CreateLink(ctx, from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("linked: " + target), nil
}

func (s *Server) followLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	marker, err := req.RequireString("marker")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := s.graph.Follow(ctx, marker)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(path), nil
}

func (s *Server) semanticSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.search.SearchByText(ctx, query, req.GetInt("limit", defaultLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return searchResult(results)
}

func (s *Server) findSimilar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.search.FindSimilar(ctx, path, req.GetInt("limit", defaultLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return searchResult(results)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.graph.Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")

	metas, err := s.graph.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		if folder != "" && !strings.HasPrefix(m.Path, folder+"/") {
			continue
		}
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func searchResult(results []similarity.Result) (*mcp.CallToolResult, error) {
	if results == nil {
		results = []similarity.Result{}
	}
	return jsonResult(results)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
