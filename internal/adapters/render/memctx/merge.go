package memctx

import "strings"

// MergeSection replaces the marker-delimited section in doc with content, or
// appends it at the end with normalized spacing when absent. Applying the
// merge twice with unchanged input yields a byte-identical document after
// the first application.
func MergeSection(doc, content string, markers Markers) string {
	section := markers.Start + "\n" + content + "\n" + markers.End

	lines := strings.Split(doc, "\n")
	start := -1
	end := -1
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if start == -1 && trimmed == markers.Start {
			start = i
			continue
		}
		if start != -1 && trimmed == markers.End {
			end = i
			break
		}
	}

	if start == -1 || end == -1 {
		trimmed := strings.TrimRight(doc, "\n")
		if trimmed == "" {
			return section + "\n"
		}
		return trimmed + "\n\n" + section + "\n"
	}

	var b strings.Builder
	b.WriteString(strings.Join(lines[:start], "\n"))
	if start > 0 {
		b.WriteString("\n")
	}
	b.WriteString(section)
	if end+1 < len(lines) {
		b.WriteString("\n")
		b.WriteString(strings.Join(lines[end+1:], "\n"))
	} else {
		b.WriteString("\n")
	}

	return b.String()
}

// ExtractSection returns the content between the markers, without the
// markers themselves, and whether the section was present.
func ExtractSection(doc string, markers Markers) (string, bool) {
	lines := strings.Split(doc, "\n")
	start := -1
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if start == -1 && trimmed == markers.Start {
			start = i
			continue
		}
		if start != -1 && trimmed == markers.End {
			return strings.Join(lines[start+1:i], "\n"), true
		}
	}

	return "", false
}
