package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bnema/mnemo/internal/domain"
	"github.com/bnema/mnemo/internal/ports"
)

// IdentityService owns the session-to-conversation binding and the
// per-session sync state. A binding is created once per session on first
// need and never rewritten afterwards.
type IdentityService struct {
	bindings ports.BindingRepository
	sessions ports.SessionStateRepository
	server   ports.MemoryServer
	logger   *slog.Logger
}

func NewIdentityService(bindings ports.BindingRepository, sessions ports.SessionStateRepository, server ports.MemoryServer, logger *slog.Logger) *IdentityService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &IdentityService{
		bindings: bindings,
		sessions: sessions,
		server:   server,
		logger:   logger,
	}
}

// ResolveConversation returns the conversation bound to the session,
// creating one on the server and persisting the binding if none exists.
func (s *IdentityService) ResolveConversation(ctx context.Context, sessionID domain.SessionID, agentID domain.AgentID) (domain.ConversationID, error) {
	binding, err := s.bindings.GetBinding(ctx, sessionID)
	if err == nil {
		return binding.ConversationID, nil
	}
	if !errors.Is(err, domain.ErrBindingNotFound) {
		return "", fmt.Errorf("get conversation binding: %w", err)
	}

	conversationID, err := s.server.CreateConversation(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("create remote conversation: %w", err)
	}

	saved, err := s.bindings.SaveBinding(ctx, domain.ConversationBinding{
		SessionID:      sessionID,
		ConversationID: conversationID,
	})
	if err != nil {
		return "", fmt.Errorf("save conversation binding: %w", err)
	}
	if saved.ConversationID != conversationID {
		s.logger.Info("conversation binding already existed, reusing",
			"session_id", sessionID, "conversation_id", saved.ConversationID)
	}

	return saved.ConversationID, nil
}

// LoadState returns the session's sync state, defaulting to a fresh record
// with cursor -1 when absent. A corrupt record is logged and discarded; the
// cursor restarts and redelivery stays safe because content merging is
// idempotent downstream.
func (s *IdentityService) LoadState(ctx context.Context, sessionID domain.SessionID) domain.SessionState {
	state, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionStateNotFound) {
			s.logger.Warn("discarding unreadable session state", "session_id", sessionID, "error", err)
		}
		return domain.NewSessionState(sessionID)
	}

	return state
}

// SaveState overwrites the session record, refusing to move the cursor
// backwards relative to what is currently persisted.
func (s *IdentityService) SaveState(ctx context.Context, state domain.SessionState) error {
	current := s.LoadState(ctx, state.SessionID)
	if state.LastProcessedIndex < current.LastProcessedIndex {
		state.LastProcessedIndex = current.LastProcessedIndex
	}

	if err := s.sessions.SaveSession(ctx, state); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}

	return nil
}
