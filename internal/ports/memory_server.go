package ports

import (
	"context"

	"github.com/bnema/mnemo/internal/domain"
)

// MemoryServer is the remote memory agent's HTTP surface.
type MemoryServer interface {
	CreateConversation(ctx context.Context, agentID domain.AgentID) (domain.ConversationID, error)
	SendMessage(ctx context.Context, id domain.ConversationID, content string) error
	GetAgent(ctx context.Context, agentID domain.AgentID) (domain.AgentState, error)
	LatestAssistantMessage(ctx context.Context, agentID domain.AgentID, limit int) (domain.RemoteMessage, bool, error)
	ListModels(ctx context.Context) ([]domain.ModelInfo, error)
	UpdateLLMConfig(ctx context.Context, agentID domain.AgentID, config domain.LLMConfig) error
	ImportAgent(ctx context.Context, definition []byte) (domain.AgentID, error)
}
