package api

import (
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/similarity"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = models.Note

// NoteListItem is a lightweight item in a list response.
type NoteListItem = models.NoteMetadata

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// OpenRequest names the note to open or create.
type OpenRequest struct {
	Path string `json:"path" example:"notes/hello" validate:"required"`
}

// OpenResponse is returned by POST /open.
type OpenResponse struct {
	Note    *NoteDetail `json:"note" validate:"required"`
	Created bool        `json:"created"`
}

// LinkRequest asks for a link from From to the note designated by To (a path,
// display path or [[marker]]).
type LinkRequest struct {
	From string `json:"from" example:"notes/alpha" validate:"required"`
	To   string `json:"to" example:"[[notes/beta]]" validate:"required"`
}

// LinkResponse reports the resolved link.
type LinkResponse struct {
	From   string `json:"from" example:"notes/alpha.md"`
	Target string `json:"target" example:"notes/beta.md"`
}

// FollowResponse is the note path a marker resolved to.
type FollowResponse struct {
	Path string `json:"path" example:"notes/beta.md"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps ranked similarity results.
type SearchResponse struct {
	Results []similarity.Result `json:"results" validate:"required"`
}

// BacklinksResponse lists the notes linking to Path.
type BacklinksResponse struct {
	Path      string   `json:"path"`
	Backlinks []string `json:"backlinks"`
}
