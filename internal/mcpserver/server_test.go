package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/notegraph"
	"github.com/starford/ansuz/internal/similarity"
	"github.com/starford/ansuz/internal/testutil"
)

// keywordProvider embeds "cat" notes as [1,0] and everything else as [0,1].
var keywordProvider = embedding.Func(func(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "cat") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
})

func testServer(t *testing.T) (*Server, *notegraph.Manager) {
	t.Helper()

	_, fs := testutil.TestVault(t)
	db := testutil.TestDB(t)

	logger := slog.New(slog.DiscardHandler)
	ix := embedding.NewIndexer(fs, db, keywordProvider, logger, nil)
	graph := notegraph.New(fs, db, ix, logger)
	engine := similarity.NewEngine(db, keywordProvider, nil)
	return New(graph, engine), graph
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper, so handlers are invoked by name.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "open_note":
		result, err = srv.openNote(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_link":
		result, err = srv.createLink(ctx, req)
	case "follow_link":
		result, err = srv.followLink(ctx, req)
	case "semantic_search":
		result, err = srv.semanticSearch(ctx, req)
	case "find_similar":
		result, err = srv.findSimilar(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
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

func TestOpenAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "open_note", map[string]any{"query": "ideas/graph"})
	if r.IsError {
		t.Fatalf("open_note error: %s", resultText(r))
	}
	var opened struct {
		Path    string `json:"path"`
		Created bool   `json:"created"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &opened); err != nil {
		t.Fatal(err)
	}
	if opened.Path != "ideas/graph.md" || !opened.Created {
		t.Errorf("open = %+v", opened)
	}
	if opened.Content != "# graph\n\n## Linked From\n" {
		t.Errorf("content = %q", opened.Content)
	}

	r = callTool(t, srv, "open_note", map[string]any{"query": "ideas/graph.md"})
	if strings.Contains(resultText(r), `"created": true`) {
		t.Error("second open should not create")
	}

	r = callTool(t, srv, "read_note", map[string]any{"path": "ideas/graph.md"})
	if !strings.Contains(resultText(r), `"path": "ideas/graph.md"`) {
		t.Errorf("read result = %q", resultText(r))
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestMissingArgumentIsToolError(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_link", map[string]any{"from": "a.md"})
	if !r.IsError {
		t.Error("expected error for missing target")
	}
}

func TestCreateLinkAndBacklinks(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_link", map[string]any{"from": "a.md", "to": "b"})
	if got := resultText(r); got != "linked: b.md" {
		t.Fatalf("create_link = %q", got)
	}

	r = callTool(t, srv, "get_backlinks", map[string]any{"path": "b"})
	if got := resultText(r); got != "a.md" {
		t.Errorf("backlinks = %q, want a.md", got)
	}

	r = callTool(t, srv, "get_backlinks", map[string]any{"path": "a"})
	if got := resultText(r); got != "no backlinks found" {
		t.Errorf("backlinks = %q", got)
	}
}

func TestFollowLink(t *testing.T) {
	srv, graph := testServer(t)

	r := callTool(t, srv, "follow_link", map[string]any{"marker": "[[journal/today]]"})
	if got := resultText(r); got != "journal/today.md" {
		t.Fatalf("follow = %q", got)
	}
	if _, err := graph.Get(context.Background(), "journal/today.md"); err != nil {
		t.Errorf("followed note not created: %v", err)
	}

	r = callTool(t, srv, "follow_link", map[string]any{"marker": "[[]]"})
	if !r.IsError {
		t.Error("expected error for empty marker")
	}
}

func TestListNotesFolder(t *testing.T) {
	srv, _ := testServer(t)
	for _, q := range []string{"a", "work/b", "work/c"} {
		callTool(t, srv, "open_note", map[string]any{"query": q})
	}

	r := callTool(t, srv, "list_notes", map[string]any{})
	if got := strings.Count(resultText(r), ".md"); got != 3 {
		t.Errorf("list all = %q", resultText(r))
	}

	r = callTool(t, srv, "list_notes", map[string]any{"folder": "work/"})
	if got := resultText(r); got != "work/b.md\nwork/c.md" {
		t.Errorf("list work = %q", got)
	}
}

func TestSemanticSearchAndFindSimilar(t *testing.T) {
	srv, graph := testServer(t)
	ctx := context.Background()
	for _, n := range []struct{ path, body string }{
		{"cats.md", "# cats\n\nthe cat sat\n"},
		{"kittens.md", "# kittens\n\nyoung cat\n"},
		{"dogs.md", "# dogs\n\nwoof\n"},
	} {
		if _, _, err := graph.OpenOrCreate(ctx, n.path); err != nil {
			t.Fatal(err)
		}
		if err := graph.Update(ctx, n.path, n.body, ""); err != nil {
			t.Fatal(err)
		}
	}

	r := callTool(t, srv, "semantic_search", map[string]any{"query": "a cat", "limit": float64(2)})
	var results []similarity.Result
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	if len(results) != 2 || results[0].Path != "cats.md" || results[1].Path != "kittens.md" {
		t.Errorf("search = %+v", results)
	}

	r = callTool(t, srv, "find_similar", map[string]any{"path": "cats"})
	results = nil
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Path != "kittens.md" {
		t.Errorf("similar = %+v", results)
	}
	for _, res := range results {
		if res.Path == "cats.md" {
			t.Error("reference note must be excluded")
		}
	}

	r = callTool(t, srv, "find_similar", map[string]any{"path": "missing"})
	if !r.IsError {
		t.Error("expected error for unknown reference")
	}
}

func TestNoteContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_note_contract", map[string]any{})
	if !strings.Contains(resultText(r), "## Linked From") {
		t.Error("contract should describe the Linked From section")
	}

	contents, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != "ansuz://note-format" {
		t.Errorf("resource = %+v", contents[0])
	}
}
