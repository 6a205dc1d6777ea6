package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	statusadapter "github.com/bnema/mnemo/internal/adapters/render/status"
	"github.com/bnema/mnemo/internal/domain"
	"github.com/spf13/cobra"
)

const statusTimeout = 15 * time.Second

func newStatusCmd(app *app) *cobra.Command {
	var projectDir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the agent binding and per-session sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, app, projectDir, asJSON)
		},
	}

	cmd.Flags().StringVar(&projectDir, "project", ".", "Project directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func runStatus(cmd *cobra.Command, app *app, projectDir string, asJSON bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	services, err := app.servicesFor(projectDir)
	if err != nil {
		return err
	}

	report, err := buildReport(ctx, app, services)
	if err != nil {
		return err
	}

	fetch := func(ctx context.Context) error {
		probeServer(ctx, app, services.logger, &report)
		return nil
	}

	if asJSON {
		if err := fetch(ctx); err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if err := runStatusFetchSpinner(ctx, cmd.ErrOrStderr(), fetch); err != nil {
		return err
	}

	rendered, err := statusadapter.Render(report, statusadapter.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func buildReport(ctx context.Context, app *app, services *projectServices) (statusadapter.Report, error) {
	report := statusadapter.Report{BaseURL: app.settings.baseURL}

	record, err := app.config.Get(ctx)
	if err != nil && !errors.Is(err, domain.ErrConfigNotFound) {
		return statusadapter.Report{}, fmt.Errorf("load agent config: %w", err)
	}
	report.AgentID = string(record.AgentID)
	report.Model = record.Model
	report.ImportedAt = record.ImportedAt

	bindings, err := services.store.ListBindings(ctx)
	if err != nil {
		return statusadapter.Report{}, fmt.Errorf("list conversation bindings: %w", err)
	}
	sessions, err := services.store.ListSessions(ctx)
	if err != nil {
		return statusadapter.Report{}, fmt.Errorf("list session states: %w", err)
	}

	cursors := make(map[domain.SessionID]domain.SessionState, len(sessions))
	for _, state := range sessions {
		cursors[state.SessionID] = state
	}

	for _, binding := range bindings {
		row := statusadapter.SessionRow{
			SessionID:      string(binding.SessionID),
			ConversationID: string(binding.ConversationID),
			Cursor:         -1,
		}
		if state, ok := cursors[binding.SessionID]; ok {
			row.Cursor = state.LastProcessedIndex
		}
		report.Sessions = append(report.Sessions, row)
	}

	report.PendingHandoffs = countPendingHandoffs(services.store.Dir())

	return report, nil
}

// probeServer enriches the report with live agent state. Failures mean the
// server is down or misconfigured, which the report states rather than the
// command failing.
func probeServer(ctx context.Context, app *app, logger *slog.Logger, report *statusadapter.Report) {
	if report.AgentID == "" {
		return
	}

	agent, err := app.server.GetAgent(ctx, domain.AgentID(report.AgentID))
	if err != nil {
		logger.Warn("agent state probe failed", "base_url", app.settings.baseURL, "error", err)
		return
	}

	report.ServerReachable = true
	report.AgentName = agent.Name
	report.MemoryBlocks = len(agent.Blocks)
}

func countPendingHandoffs(stateDir string) int {
	entries, err := os.ReadDir(filepath.Join(stateDir, "pending"))
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "handoff-") {
			count++
		}
	}

	return count
}
