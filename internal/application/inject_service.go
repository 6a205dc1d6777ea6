package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/mnemo/internal/adapters/render/memctx"
	"github.com/bnema/mnemo/internal/domain"
	"github.com/bnema/mnemo/internal/ports"
)

const sharedDocumentName = "AGENTS.md"

// InjectService pulls the remote agent's memory into the session: it merges
// the rendered state into the shared document and emits context for the
// invoking hook to surface. The first render in a session is full; repeat
// renders emit only a line diff.
type InjectService struct {
	identity *IdentityService
	server   ports.MemoryServer
	logger   *slog.Logger
	mode     domain.InjectMode
	docPath  string
}

func NewInjectService(identity *IdentityService, server ports.MemoryServer, logger *slog.Logger, mode domain.InjectMode, docPath string) *InjectService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &InjectService{
		identity: identity,
		server:   server,
		logger:   logger,
		mode:     mode,
		docPath:  docPath,
	}
}

// DocumentPath resolves the shared document location for a project.
func DocumentPath(projectDir, override string) string {
	if override != "" {
		return override
	}

	return filepath.Join(projectDir, sharedDocumentName)
}

// Inject fetches the current memory state and returns the text the hook
// should emit on stdout. Document writes and the emitted text both honor
// the injection mode.
func (s *InjectService) Inject(ctx context.Context, sessionID domain.SessionID, agentID domain.AgentID) (string, error) {
	if s.mode == domain.InjectModeOff {
		return "", nil
	}

	agent, err := s.server.GetAgent(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("fetch memory state: %w", err)
	}

	message, hasMessage, err := s.server.LatestAssistantMessage(ctx, agentID, 20)
	if err != nil {
		s.logger.Warn("fetch latest agent message", "error", err)
		hasMessage = false
	}

	if hasMessage {
		if err := s.mergeDocument(memctx.RenderMessage(message), memctx.MessageMarkers); err != nil {
			return "", err
		}
	}

	if s.mode == domain.InjectModeWhisper {
		if hasMessage {
			return message.Text, nil
		}
		return "", nil
	}

	rendered := memctx.RenderBlocks(agent.Blocks)
	if err := s.mergeDocument(rendered, memctx.MemoryMarkers); err != nil {
		return "", err
	}

	state := s.identity.LoadState(ctx, sessionID)
	previous := state.LastRendered
	state.LastRendered = rendered
	if err := s.identity.SaveState(ctx, state); err != nil {
		return "", err
	}

	var b strings.Builder
	if hasMessage {
		b.WriteString(message.Text)
	}

	if previous == "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(rendered)
		return b.String(), nil
	}

	diff := memctx.DiffLines(previous, rendered)
	if len(diff) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Memory updates:\n")
		b.WriteString(strings.Join(diff, "\n"))
	}

	return b.String(), nil
}

// mergeDocument rewrites the shared document with the section merged in.
// The write is a whole-file overwrite; a missing document is created.
func (s *InjectService) mergeDocument(content string, markers memctx.Markers) error {
	doc := ""
	data, err := os.ReadFile(s.docPath)
	if err == nil {
		doc = string(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read shared document: %w", err)
	}

	merged := memctx.MergeSection(doc, content, markers)
	if merged == doc {
		return nil
	}

	if err := os.WriteFile(s.docPath, []byte(merged), 0o644); err != nil {
		return fmt.Errorf("write shared document: %w", err)
	}

	return nil
}
