package memctx

import (
	"fmt"
	"strings"

	"github.com/bnema/mnemo/internal/domain"
)

// Markers delimit a replaceable section inside the shared document. Both
// markers must occupy a whole line.
type Markers struct {
	Start string
	End   string
}

var (
	MemoryMarkers  = Markers{Start: "<!-- mnemo:memory -->", End: "<!-- mnemo:/memory -->"}
	MessageMarkers = Markers{Start: "<!-- mnemo:message -->", End: "<!-- mnemo:/message -->"}
)

// RenderBlocks serializes the block set deterministically: one tagged
// section per label, in server order, with content escaped for safe
// embedding in the host document.
func RenderBlocks(blocks []domain.MemoryBlock) string {
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, `<memory_block label="%s"`, escapeAttr(block.Label))
		if block.Description != "" {
			fmt.Fprintf(&b, ` description="%s"`, escapeAttr(block.Description))
		}
		b.WriteString(">\n")
		b.WriteString(escapeText(block.Value))
		b.WriteString("\n</memory_block>")
	}

	return b.String()
}

func RenderMessage(message domain.RemoteMessage) string {
	var b strings.Builder
	b.WriteString("<memory_agent_message")
	if !message.CreatedAt.IsZero() {
		fmt.Fprintf(&b, ` at="%s"`, message.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	b.WriteString(">\n")
	b.WriteString(escapeText(message.Text))
	b.WriteString("\n</memory_agent_message>")

	return b.String()
}

func escapeText(text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(text)
}

func escapeAttr(text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"\n", "&#10;",
	)
	return replacer.Replace(text)
}

// UnescapeText reverses escapeText; used when reading previously rendered
// content back out of the document.
func UnescapeText(text string) string {
	replacer := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
	)
	return replacer.Replace(text)
}
