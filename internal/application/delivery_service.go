package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bnema/mnemo/internal/adapters/transcript"
	"github.com/bnema/mnemo/internal/domain"
	"github.com/bnema/mnemo/internal/idgen"
	"github.com/bnema/mnemo/internal/ports"
)

const deliveryPreamble = "New activity from the coding session is attached below as a transcript " +
	"excerpt. Read it, update your memory of this project, and reply with any " +
	"guidance or observations worth surfacing to the developer."

// DeliveryService forwards unsent transcript turns to the remote
// conversation. The stop hook runs PrepareHandoff and exits; the detached
// worker process runs Deliver and owns the cursor commit.
type DeliveryService struct {
	identity *IdentityService
	handoffs ports.HandoffRepository
	server   ports.MemoryServer
	clock    ports.Clock
	logger   *slog.Logger
}

func NewDeliveryService(identity *IdentityService, handoffs ports.HandoffRepository, server ports.MemoryServer, clock ports.Clock, logger *slog.Logger) *DeliveryService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &DeliveryService{
		identity: identity,
		handoffs: handoffs,
		server:   server,
		clock:    clock,
		logger:   logger,
	}
}

// PrepareHandoff is the fast synchronous stage: it computes the unsent
// suffix and persists a self-contained work descriptor. It returns the
// descriptor path, or "" when there is nothing to deliver.
func (s *DeliveryService) PrepareHandoff(ctx context.Context, sessionID domain.SessionID, conversationID domain.ConversationID, projectDir, transcriptPath string) (string, error) {
	events, err := transcript.ReadEvents(transcriptPath, s.logger)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}

	state := s.identity.LoadState(ctx, sessionID)
	turns := transcript.SelectNew(events, state.LastProcessedIndex)
	if len(turns) == 0 {
		return "", nil
	}

	handoff := domain.Handoff{
		ID:             idgen.New(),
		SessionID:      sessionID,
		ConversationID: conversationID,
		ProjectDir:     projectDir,
		TranscriptPath: transcriptPath,
		FromIndex:      state.LastProcessedIndex,
		ToIndex:        events[len(events)-1].Index,
		CreatedAt:      s.clock.Now(),
	}

	path, err := s.handoffs.CreateHandoff(ctx, handoff)
	if err != nil {
		return "", fmt.Errorf("persist handoff: %w", err)
	}

	s.logger.Info("handoff prepared",
		"session_id", sessionID, "from_index", handoff.FromIndex, "to_index", handoff.ToIndex)
	return path, nil
}

// Deliver is the detached stage: re-read the transcript within the handoff
// bounds, ship the batch as one composite message, then and only then
// advance the cursor. On transport failure the cursor is left untouched so
// the next stop event retries the same suffix.
func (s *DeliveryService) Deliver(ctx context.Context, handoffPath string) error {
	handoff, err := s.handoffs.LoadHandoff(ctx, handoffPath)
	if err != nil {
		return fmt.Errorf("load handoff: %w", err)
	}

	events, err := transcript.ReadEvents(handoff.TranscriptPath, s.logger)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	// The transcript may have grown since the descriptor was written;
	// deliver only the slice the descriptor covers.
	bounded := events
	if len(bounded) > handoff.ToIndex+1 {
		bounded = bounded[:handoff.ToIndex+1]
	}

	turns := transcript.SelectNew(bounded, handoff.FromIndex)
	if len(turns) == 0 {
		if err := s.handoffs.DeleteHandoff(ctx, handoffPath); err != nil {
			s.logger.Warn("delete empty handoff", "error", err)
		}
		return nil
	}

	if err := s.server.SendMessage(ctx, handoff.ConversationID, FormatTurns(turns)); err != nil {
		if deleteErr := s.handoffs.DeleteHandoff(ctx, handoffPath); deleteErr != nil {
			s.logger.Warn("delete failed handoff", "error", deleteErr)
		}
		return fmt.Errorf("deliver turns: %w", err)
	}

	state := s.identity.LoadState(ctx, handoff.SessionID)
	if handoff.ToIndex > state.LastProcessedIndex {
		state.ConversationID = handoff.ConversationID
		state.LastProcessedIndex = handoff.ToIndex
		if err := s.identity.SaveState(ctx, state); err != nil {
			return fmt.Errorf("advance cursor: %w", err)
		}
	}

	if err := s.handoffs.DeleteHandoff(ctx, handoffPath); err != nil {
		s.logger.Warn("delete completed handoff", "error", err)
	}

	s.logger.Info("turns delivered",
		"session_id", handoff.SessionID, "turns", len(turns), "cursor", handoff.ToIndex)
	return nil
}

// FormatTurns renders the batch as one role-labelled transcript excerpt
// behind an explanatory preamble; batching, not one message per turn.
func FormatTurns(turns []domain.Turn) string {
	var b strings.Builder
	b.WriteString(deliveryPreamble)
	b.WriteString("\n")

	for _, turn := range turns {
		b.WriteString("\n")
		switch turn.Role {
		case domain.TurnRoleUser:
			b.WriteString("[user]\n")
		case domain.TurnRoleAssistant:
			b.WriteString("[assistant]\n")
		case domain.TurnRoleTool:
			b.WriteString("[tool result]\n")
		}
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}

	return b.String()
}
