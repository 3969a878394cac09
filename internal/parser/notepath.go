package parser

import (
	"path"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// Ext is the file extension of every note.
const Ext = ".md"

// NormalizePath turns user input into a vault-relative note path: slash
// separated, cleaned, with the .md extension. Empty, absolute and escaping
// paths are rejected with apperr.KindInvalid.
func NormalizePath(p string) (string, error) {
	raw := p
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return "", apperr.E(apperr.KindInvalid, "normalize path", raw, apperr.ErrInvalid)
	}
	if strings.HasPrefix(p, "/") {
		return "", apperr.Errorf(apperr.KindInvalid, "normalize path", "absolute path not allowed: %s", raw)
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", apperr.Errorf(apperr.KindInvalid, "normalize path", "path escapes vault: %s", raw)
	}
	if !strings.HasSuffix(c, Ext) {
		c += Ext
	}
	return c, nil
}

// DisplayPath strips the extension: "notes/alpha.md" → "notes/alpha".
func DisplayPath(notePath string) string {
	return strings.TrimSuffix(notePath, Ext)
}

// Title is the last segment of the display path.
func Title(notePath string) string {
	return path.Base(DisplayPath(notePath))
}

// Marker renders the link marker for a note path: "[[notes/alpha]]".
func Marker(notePath string) string {
	return "[[" + DisplayPath(notePath) + "]]"
}

// ParseMarker extracts the display path from the first [[...]] in text.
// ok is false when text holds no marker or the marker is empty.
func ParseMarker(text string) (display string, ok bool) {
	m := wikilinkRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	display = markerTarget(m[1])
	return display, display != ""
}

// ResolveQuery accepts a marker, a display path or a note path and returns
// the normalized note path it designates.
func ResolveQuery(q string) (string, error) {
	if display, ok := ParseMarker(q); ok {
		return NormalizePath(display)
	}
	if strings.Contains(q, "[[") {
		return "", apperr.Errorf(apperr.KindInvalid, "resolve", "empty link marker: %q", q)
	}
	return NormalizePath(q)
}
