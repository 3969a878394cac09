package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(graph Graph, search Searcher, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(graph, search)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Editor boundary.
	r.Post("/open", h.Open)
	r.Post("/links", h.CreateLink)
	r.Get("/follow", h.Follow)
	r.Get("/backlinks", h.Backlinks)

	// Similarity search.
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
