package ports

import (
	"context"

	"github.com/bnema/mnemo/internal/domain"
)

type BindingRepository interface {
	GetBinding(ctx context.Context, id domain.SessionID) (domain.ConversationBinding, error)
	SaveBinding(ctx context.Context, binding domain.ConversationBinding) (domain.ConversationBinding, error)
	ListBindings(ctx context.Context) ([]domain.ConversationBinding, error)
}

type SessionStateRepository interface {
	GetSession(ctx context.Context, id domain.SessionID) (domain.SessionState, error)
	SaveSession(ctx context.Context, state domain.SessionState) error
	ListSessions(ctx context.Context) ([]domain.SessionState, error)
}

type HandoffRepository interface {
	CreateHandoff(ctx context.Context, handoff domain.Handoff) (string, error)
	LoadHandoff(ctx context.Context, path string) (domain.Handoff, error)
	DeleteHandoff(ctx context.Context, path string) error
}
