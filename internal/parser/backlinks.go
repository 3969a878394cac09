package parser

import "strings"

// BacklinkHeader is the literal heading that opens the backlink section.
const BacklinkHeader = "## Linked From"

// NewNote returns the initial content of a freshly created note.
func NewNote(notePath string) string {
	return "# " + Title(notePath) + "\n\n" + BacklinkHeader + "\n"
}

// headerIndex returns the line index of the backlink header, or -1.
func headerIndex(lines []string) int {
	for i, l := range lines {
		if strings.TrimSpace(l) == BacklinkHeader {
			return i
		}
	}
	return -1
}

// sectionEnd returns the index of the first line after the section that
// starts at header: the next H1/H2 heading or len(lines).
func sectionEnd(lines []string, header int) int {
	for i := header + 1; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if strings.HasPrefix(t, "# ") || strings.HasPrefix(t, "## ") {
			return i
		}
	}
	return len(lines)
}

// splitSection returns the text outside the backlink section and the section
// entries themselves.
func splitSection(body string) (main, section string) {
	lines := strings.Split(body, "\n")
	h := headerIndex(lines)
	if h < 0 {
		return body, ""
	}
	end := sectionEnd(lines, h)
	outside := append(append([]string{}, lines[:h]...), lines[end:]...)
	return strings.Join(outside, "\n"), strings.Join(lines[h+1:end], "\n")
}

// HasBacklink reports whether the backlink section of content lists source.
func HasBacklink(content, sourcePath string) bool {
	_, section := splitSection(content)
	want := DisplayPath(sourcePath)
	for _, l := range extractLinks(section) {
		if l == want {
			return true
		}
	}
	return false
}

// AddBacklink inserts the marker for sourcePath directly after the backlink
// header, creating the section at the end of content when absent. changed is
// false when the entry already exists.
func AddBacklink(content, sourcePath string) (updated string, changed bool) {
	if HasBacklink(content, sourcePath) {
		return content, false
	}
	marker := Marker(sourcePath)

	lines := strings.Split(content, "\n")
	h := headerIndex(lines)
	if h < 0 {
		base := strings.TrimRight(content, "\n")
		if base != "" {
			base += "\n\n"
		}
		return base + BacklinkHeader + "\n" + marker + "\n", true
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:h+1]...)
	out = append(out, marker)
	out = append(out, lines[h+1:]...)
	return strings.Join(out, "\n"), true
}

// InsertLink adds a marker for targetPath to the body of content, just before
// the backlink section (or at the end when there is none). changed is false
// when the body already links to the target.
func InsertLink(content, targetPath string) (updated string, changed bool) {
	main, _ := splitSection(content)
	want := DisplayPath(targetPath)
	for _, l := range extractLinks(main) {
		if l == want {
			return content, false
		}
	}
	marker := Marker(targetPath)

	lines := strings.Split(content, "\n")
	h := headerIndex(lines)
	if h < 0 {
		base := strings.TrimRight(content, "\n")
		if base != "" {
			base += "\n\n"
		}
		return base + marker + "\n", true
	}

	head := strings.TrimRight(strings.Join(lines[:h], "\n"), "\n")
	if head != "" {
		head += "\n\n"
	}
	return head + marker + "\n\n" + strings.Join(lines[h:], "\n"), true
}
