package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxLineBytes = 1 << 20

// Event is one record from the assistant's append-only JSONL event log.
// Index is its position in the log; records are never mutated, only read.
type Event struct {
	Index   int
	Type    string
	Message Message
}

type Message struct {
	Role    string       `json:"role"`
	Content ContentValue `json:"content"`
}

// ContentValue is either a plain string or an array of typed segments,
// depending on the event producer.
type ContentValue struct {
	Text     string
	Segments []Segment
}

func (c *ContentValue) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		return nil
	}

	var segments []Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return fmt.Errorf("content is neither string nor segment array: %w", err)
	}
	c.Segments = segments

	return nil
}

type Segment struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Content json.RawMessage `json:"content"`
}

type rawEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// ReadEvents parses the event log line by line. A line that fails to parse
// is skipped and logged, never fatal; skipped lines still consume an index
// so positions stay aligned with the log.
func ReadEvents(path string, logger *slog.Logger) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var events []Event
	index := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw rawEvent
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			if logger != nil {
				logger.Warn("skipping malformed transcript line", "index", index, "error", err)
			}
			events = append(events, Event{Index: index})
			index++
			continue
		}

		events = append(events, Event{Index: index, Type: raw.Type, Message: raw.Message})
		index++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	return events, nil
}
