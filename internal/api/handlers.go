package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/similarity"
)

const defaultSearchLimit = 10

// Handler holds API route handlers.
type Handler struct {
	graph  Graph
	search Searcher
}

// NewHandler creates a new Handler.
func NewHandler(graph Graph, search Searcher) *Handler {
	return &Handler{graph: graph, search: search}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List all notes
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.graph.List(r.Context())
	if err != nil {
		writeError(w, "list notes failed", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.graph.Get(r.Context(), path)
	if err != nil {
		writeError(w, "get note failed", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateNote handles PUT /api/notes/*.
//
//	@Summary		Replace note content with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Note path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum of the current content"
//	@Param			body		body	UpdateNoteRequest	true	"Updated content"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	if err := h.graph.Update(r.Context(), path, req.Content, ifMatch); err != nil {
		writeError(w, "update note failed", err)
		return
	}
	note, err := h.graph.Get(r.Context(), path)
	if err != nil {
		writeError(w, "get note failed", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path	path	string	true	"Note path"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.graph.Delete(r.Context(), path); err != nil {
		writeError(w, "delete note failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Open handles POST /api/open. The note is created when missing.
//
//	@Summary		Open a note, creating it when missing
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenRequest	true	"Note to open"
//	@Success		200		{object}	OpenResponse
//	@Success		201		{object}	OpenResponse
//	@Security		BearerAuth
//	@Router			/open [post]
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, created, err := h.graph.OpenOrCreate(r.Context(), req.Path)
	if err != nil {
		writeError(w, "open note failed", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, OpenResponse{Note: note, Created: created})
}

// CreateLink handles POST /api/links.
//
//	@Summary		Link one note to another and record the backlink
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LinkRequest	true	"Link endpoints"
//	@Success		200		{object}	LinkResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [post]
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	target, err := h.graph.CreateLink(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, "create link failed", err)
		return
	}
	from, err := h.graph.Get(r.Context(), req.From)
	if err != nil {
		writeError(w, "get note failed", err)
		return
	}
	writeJSON(w, http.StatusOK, LinkResponse{From: from.Path, Target: target})
}

// Follow handles GET /api/follow?marker=.
//
//	@Summary		Resolve a link marker, creating the target when missing
//	@Tags			editor
//	@Produce		json
//	@Param			marker	query		string	true	"Marker such as [[notes/beta]]"
//	@Success		200		{object}	FollowResponse
//	@Security		BearerAuth
//	@Router			/follow [get]
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	marker := r.URL.Query().Get("marker")
	if marker == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'marker' is required"))
		return
	}
	path, err := h.graph.Follow(r.Context(), marker)
	if err != nil {
		writeError(w, "follow link failed", err)
		return
	}
	writeJSON(w, http.StatusOK, FollowResponse{Path: path})
}

// Backlinks handles GET /api/backlinks?path=.
//
//	@Summary		List notes linking to a note
//	@Tags			graph
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	bl, err := h.graph.Backlinks(r.Context(), path)
	if err != nil {
		writeError(w, "backlinks failed", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: bl})
}

// Search handles GET /api/search. Exactly one of q (free text) and ref (a
// note whose embedding is the query) must be given. limit defaults to 10;
// a value <= 0 returns every note.
//
//	@Summary		Semantic similarity search
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Free-text query"
//	@Param			ref		query		string	false	"Reference note path"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text, ref := q.Get("q"), q.Get("ref")
	if (text == "") == (ref == "") {
		writeJSON(w, http.StatusBadRequest, errorBody("exactly one of 'q' and 'ref' is required"))
		return
	}

	limit := defaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be an integer"))
			return
		}
		limit = n
	}

	var (
		results []similarity.Result
		err     error
	)
	if text != "" {
		results, err = h.search.SearchByText(r.Context(), text, limit)
	} else {
		results, err = h.search.FindSimilar(r.Context(), ref, limit)
	}
	if err != nil {
		slog.Warn("search failed",
			slog.String("query", text),
			slog.String("ref", ref),
			slog.String("error", err.Error()))
		writeError(w, "search failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
