package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bnema/mnemo/internal/domain"
)

func (s *Store) sessionPath(id domain.SessionID) string {
	return filepath.Join(s.dir, fmt.Sprintf("session-%s.json", id))
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (domain.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionState{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.SessionState{}, domain.ErrSessionStateNotFound
		}
		return domain.SessionState{}, fmt.Errorf("read session file: %w", err)
	}

	var file sessionSchema
	if err := json.Unmarshal(data, &file); err != nil {
		return domain.SessionState{}, fmt.Errorf("decode session file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return domain.SessionState{}, err
	}
	file.applyDefaults()

	return sessionFromSchema(file), nil
}

// Save overwrites the session's whole record. Each session owns a distinct
// file, so cross-session writes never collide.
func (s *Store) SaveSession(ctx context.Context, state domain.SessionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("validate session state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeFile(s.sessionPath(state.SessionID), sessionToSchema(state))
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	states := make([]domain.SessionState, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read session file %s: %w", name, err)
		}

		var file sessionSchema
		if err := json.Unmarshal(data, &file); err != nil {
			continue
		}
		file.applyDefaults()
		states = append(states, sessionFromSchema(file))
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].SessionID < states[j].SessionID
	})

	return states, nil
}

func sessionToSchema(state domain.SessionState) sessionSchema {
	return sessionSchema{
		Version:            currentSchemaVersion,
		SessionID:          string(state.SessionID),
		ConversationID:     string(state.ConversationID),
		LastProcessedIndex: state.LastProcessedIndex,
		LastRendered:       state.LastRendered,
	}
}

func sessionFromSchema(file sessionSchema) domain.SessionState {
	return domain.SessionState{
		SessionID:          domain.SessionID(file.SessionID),
		ConversationID:     domain.ConversationID(file.ConversationID),
		LastProcessedIndex: file.LastProcessedIndex,
		LastRendered:       file.LastRendered,
	}
}
