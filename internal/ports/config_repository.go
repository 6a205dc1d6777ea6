package ports

import (
	"context"

	"github.com/bnema/mnemo/internal/domain"
)

type AgentConfigRepository interface {
	Get(ctx context.Context) (domain.AgentConfigRecord, error)
	Save(ctx context.Context, record domain.AgentConfigRecord) error
}
