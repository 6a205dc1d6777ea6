package transcript

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/bnema/mnemo/internal/domain"
)

const (
	maxToolResultLen = 2000
	truncationMarker = "... [truncated]"
)

// ExtractText returns the forwardable text of an event: plain-text segments
// only, internal reasoning excluded. The second return is false when the
// event yields nothing worth forwarding.
func ExtractText(event Event) (string, bool) {
	content := event.Message.Content
	if content.Text != "" {
		return content.Text, true
	}

	parts := make([]string, 0, len(content.Segments))
	for _, segment := range content.Segments {
		if segment.Type != "text" || segment.Text == "" {
			continue
		}
		parts = append(parts, segment.Text)
	}
	if len(parts) == 0 {
		return "", false
	}

	return strings.Join(parts, "\n"), true
}

// SelectNew classifies events strictly after afterIndex into turns,
// preserving log order. Events without extractable text are dropped; a tool
// result longer than the cap is truncated with a marker.
func SelectNew(events []Event, afterIndex int) []domain.Turn {
	var turns []domain.Turn
	for _, event := range events {
		if event.Index <= afterIndex {
			continue
		}

		switch event.Type {
		case "assistant":
			if text, ok := ExtractText(event); ok {
				turns = append(turns, domain.Turn{Role: domain.TurnRoleAssistant, Text: text})
			}
		case "user":
			if text, ok := extractToolResult(event); ok {
				turns = append(turns, domain.Turn{Role: domain.TurnRoleTool, Text: truncate(text)})
				continue
			}
			if text, ok := ExtractText(event); ok {
				turns = append(turns, domain.Turn{Role: domain.TurnRoleUser, Text: text})
			}
		}
	}

	return turns
}

func extractToolResult(event Event) (string, bool) {
	for _, segment := range event.Message.Content.Segments {
		if segment.Type != "tool_result" {
			continue
		}
		if text, ok := toolResultText(segment.Content); ok {
			return text, true
		}
		return "", false
	}

	return "", false
}

// toolResultText handles the two shapes a tool_result body takes: a plain
// string or a nested segment array.
func toolResultText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, text != ""
	}

	var segments []Segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return "", false
	}

	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment.Type != "text" || segment.Text == "" {
			continue
		}
		parts = append(parts, segment.Text)
	}
	if len(parts) == 0 {
		return "", false
	}

	return strings.Join(parts, "\n"), true
}

// truncate caps the body at maxToolResultLen, backing off to the previous
// rune boundary so a multi-byte character is never split.
func truncate(text string) string {
	if len(text) <= maxToolResultLen {
		return text
	}

	cut := maxToolResultLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	return text[:cut] + truncationMarker
}
