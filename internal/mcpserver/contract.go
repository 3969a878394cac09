package mcpserver

// NoteFormatContract describes the Markdown note layout that LLM consumers
// should preserve when reading or editing notes.
const NoteFormatContract = `# Ansuz Note Format Contract

Every note is a UTF-8 Markdown file inside the vault. Ansuz keeps the
links between notes and the backlink sections in sync.

## Structure

` + "```" + `markdown
# <title>

Body text in standard Markdown.

Links to other notes are written as [[display/path]] markers.

## Linked From
[[newest/source]]
[[older/source]]
` + "```" + `

## Rules

1. **Paths** are vault-relative, use forward slashes and end with ` + "`" + `.md` + "`" + `.
   A path given without the extension gets ` + "`" + `.md` + "`" + ` appended.
2. **Display path** is the path without ` + "`" + `.md` + "`" + `: ` + "`" + `ideas/graph.md` + "`" + ` is shown as ` + "`" + `ideas/graph` + "`" + `.
3. **Markers** are ` + "`" + `[[display/path]]` + "`" + `. ` + "`" + `[[target|alias]]` + "`" + ` is accepted on read;
   the part before ` + "`" + `|` + "`" + ` is the target.
4. **New notes** start as ` + "`" + `# <title>` + "`" + `, a blank line, and an empty ` + "`" + `## Linked From` + "`" + `
   section. The title is the last segment of the display path.
5. **Linked From** holds one marker per line for every note that links here,
   newest first. Markers in this section are backlinks, not outgoing links.
6. **Do not hand-edit Linked From.** Use the ` + "`" + `create_link` + "`" + ` tool; it inserts the
   marker in the source body and the backlink in the target in one step.
7. **Optional YAML frontmatter** (` + "`" + `---` + "`" + ` fences at the top) may carry ` + "`" + `title` + "`" + ` and ` + "`" + `tags` + "`" + `.
   A frontmatter title wins over the header.

## Example

` + "```" + `markdown
# graph

Notes on the backlink graph. See also [[ideas/vectors]].

## Linked From
[[journal/2025-01-20]]
` + "```" + `

## Search

Every note is embedded after each change. ` + "`" + `semantic_search` + "`" + ` ranks notes by cosine
similarity to a query; ` + "`" + `find_similar` + "`" + ` ranks them against an existing note.
`
