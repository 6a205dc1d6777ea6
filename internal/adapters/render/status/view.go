package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
}

// Report is the full sync picture for one project: the global agent record,
// server reachability, and the per-session bindings and cursors.
type Report struct {
	BaseURL         string
	AgentID         string
	AgentName       string
	Model           string
	ImportedAt      time.Time
	MemoryBlocks    int
	ServerReachable bool
	PendingHandoffs int
	Sessions        []SessionRow
}

type SessionRow struct {
	SessionID      string
	ConversationID string
	Cursor         int
}

func renderView(report Report, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("mnemo sync status"),
		s.header.Render(fmt.Sprintf("server: %s %s", report.BaseURL, renderReachability(report.ServerReachable, s))),
	}

	lines = append(lines, s.section.Render(renderAgent(report, opts, s)))
	lines = append(lines, s.section.Render(renderSessions(report, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderReachability(reachable bool, s styles) string {
	if reachable {
		return s.ok.Render("[online]")
	}
	return s.warning.Render("[unreachable]")
}

func renderAgent(report Report, opts RenderOptions, s styles) string {
	if report.AgentID == "" {
		return s.empty.Render("No agent configured yet; one is imported on first use.")
	}

	parts := []string{
		s.agent.Render(agentTitle(report)),
		s.detail.Render(fmt.Sprintf("model: %s", valueOrUnknown(report.Model))),
		s.detail.Render(fmt.Sprintf("imported: %s", formatImportedAt(report.ImportedAt, opts.Now))),
	}
	if report.ServerReachable {
		parts = append(parts, s.detail.Render(fmt.Sprintf("memory blocks: %d", report.MemoryBlocks)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderSessions(report Report, s styles) string {
	parts := []string{
		s.header.Render(fmt.Sprintf("sessions: %d", len(report.Sessions))),
	}

	if len(report.Sessions) == 0 {
		parts = append(parts, s.empty.Render("No sessions bound in this project."))
	}

	for _, row := range report.Sessions {
		line := lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.rowKey.Render(row.SessionID),
			s.rowMeta.Render(" -> "),
			s.detail.Render(valueOrUnknown(row.ConversationID)),
			s.rowMeta.Render(fmt.Sprintf("  cursor %d", row.Cursor)),
		)
		parts = append(parts, line)
	}

	if report.PendingHandoffs > 0 {
		parts = append(parts, s.warning.Render(fmt.Sprintf("[%d pending handoff(s)]", report.PendingHandoffs)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func agentTitle(report Report) string {
	if report.AgentName != "" {
		return fmt.Sprintf("Agent: %s (%s)", report.AgentName, report.AgentID)
	}
	return fmt.Sprintf("Agent: %s", report.AgentID)
}

func valueOrUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func formatImportedAt(importedAt, now time.Time) string {
	if importedAt.IsZero() {
		return "never"
	}
	if now.IsZero() {
		return importedAt.Format(time.RFC3339)
	}

	yearA, monthA, dayA := now.Date()
	yearB, monthB, dayB := importedAt.Date()
	if yearA == yearB && monthA == monthB && dayA == dayB {
		return importedAt.Format("15:04")
	}

	return importedAt.Format("15:04 on 02 Jan 2006")
}
