package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/mnemo/internal/domain"
)

// CreateHandoff writes the descriptor into the pending directory and returns
// its path, which the detached delivery worker receives as its only argument.
func (s *Store) CreateHandoff(ctx context.Context, handoff domain.Handoff) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := handoff.Validate(); err != nil {
		return "", fmt.Errorf("validate handoff: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, pendingDirName, fmt.Sprintf("handoff-%s.json", handoff.ID))
	if err := s.writeFile(path, handoffToSchema(handoff)); err != nil {
		return "", err
	}

	return path, nil
}

func (s *Store) LoadHandoff(ctx context.Context, path string) (domain.Handoff, error) {
	if err := ctx.Err(); err != nil {
		return domain.Handoff{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Handoff{}, domain.ErrHandoffNotFound
		}
		return domain.Handoff{}, fmt.Errorf("read handoff file: %w", err)
	}

	var file handoffSchema
	if err := json.Unmarshal(data, &file); err != nil {
		return domain.Handoff{}, fmt.Errorf("decode handoff file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return domain.Handoff{}, err
	}

	handoff := handoffFromSchema(file)
	if err := handoff.Validate(); err != nil {
		return domain.Handoff{}, fmt.Errorf("validate handoff: %w", err)
	}

	return handoff, nil
}

func (s *Store) DeleteHandoff(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove handoff file: %w", err)
	}

	return nil
}

func handoffToSchema(handoff domain.Handoff) handoffSchema {
	return handoffSchema{
		Version:        currentSchemaVersion,
		ID:             handoff.ID,
		SessionID:      string(handoff.SessionID),
		ConversationID: string(handoff.ConversationID),
		ProjectDir:     handoff.ProjectDir,
		TranscriptPath: handoff.TranscriptPath,
		FromIndex:      handoff.FromIndex,
		ToIndex:        handoff.ToIndex,
		CreatedAt:      handoff.CreatedAt.Format(time.RFC3339),
	}
}

func handoffFromSchema(file handoffSchema) domain.Handoff {
	createdAt, err := time.Parse(time.RFC3339, file.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}

	return domain.Handoff{
		ID:             file.ID,
		SessionID:      domain.SessionID(file.SessionID),
		ConversationID: domain.ConversationID(file.ConversationID),
		ProjectDir:     file.ProjectDir,
		TranscriptPath: file.TranscriptPath,
		FromIndex:      file.FromIndex,
		ToIndex:        file.ToIndex,
		CreatedAt:      createdAt,
	}
}
