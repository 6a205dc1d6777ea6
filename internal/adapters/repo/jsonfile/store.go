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
	"sync"

	"github.com/bnema/mnemo/internal/domain"
	"github.com/bnema/mnemo/internal/ports"
)

const (
	stateDirName      = ".mnemo"
	conversationsFile = "conversations.json"
	pendingDirName    = "pending"
	stateFileMode     = 0o600
	stateDirMode      = 0o700
	tempFilePattern   = ".mnemo-*.json.tmp"
)

// Store persists all project-scoped sync state under <project>/.mnemo/:
// the conversations.json binding map, one session-{id}.json record per
// session, and pending handoff descriptors. Every write is a whole-file
// overwrite through a temp file and rename; there is no file locking.
type Store struct {
	dir string
	mu  *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var (
	_ ports.BindingRepository      = (*Store)(nil)
	_ ports.SessionStateRepository = (*Store)(nil)
	_ ports.HandoffRepository      = (*Store)(nil)
)

func NewStore(projectDir string) (*Store, error) {
	if strings.TrimSpace(projectDir) == "" {
		return nil, errors.New("project directory is empty")
	}

	absDir, err := filepath.Abs(filepath.Join(projectDir, stateDirName))
	if err != nil {
		return nil, fmt.Errorf("resolve state directory: %w", err)
	}

	return &Store{dir: filepath.Clean(absDir), mu: lockForPath(absDir)}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) GetBinding(ctx context.Context, id domain.SessionID) (domain.ConversationBinding, error) {
	if err := ctx.Err(); err != nil {
		return domain.ConversationBinding{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readConversations()
	if err != nil {
		return domain.ConversationBinding{}, err
	}

	conversationID, ok := file.Conversations[string(id)]
	if !ok || conversationID == "" {
		return domain.ConversationBinding{}, domain.ErrBindingNotFound
	}

	return domain.ConversationBinding{
		SessionID:      id,
		ConversationID: domain.ConversationID(conversationID),
	}, nil
}

// SaveBinding records the binding unless one already exists for the session,
// in which case the existing binding wins and is returned unchanged.
func (s *Store) SaveBinding(ctx context.Context, binding domain.ConversationBinding) (domain.ConversationBinding, error) {
	if err := ctx.Err(); err != nil {
		return domain.ConversationBinding{}, err
	}
	if err := binding.Validate(); err != nil {
		return domain.ConversationBinding{}, fmt.Errorf("validate binding: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readConversations()
	if err != nil {
		return domain.ConversationBinding{}, err
	}

	if existing, ok := file.Conversations[string(binding.SessionID)]; ok && existing != "" {
		return domain.ConversationBinding{
			SessionID:      binding.SessionID,
			ConversationID: domain.ConversationID(existing),
		}, nil
	}

	file.Conversations[string(binding.SessionID)] = string(binding.ConversationID)

	if err := s.writeFile(filepath.Join(s.dir, conversationsFile), file); err != nil {
		return domain.ConversationBinding{}, err
	}

	return binding, nil
}

func (s *Store) ListBindings(ctx context.Context) ([]domain.ConversationBinding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readConversations()
	if err != nil {
		return nil, err
	}

	bindings := make([]domain.ConversationBinding, 0, len(file.Conversations))
	for sessionID, conversationID := range file.Conversations {
		bindings = append(bindings, domain.ConversationBinding{
			SessionID:      domain.SessionID(sessionID),
			ConversationID: domain.ConversationID(conversationID),
		})
	}
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].SessionID < bindings[j].SessionID
	})

	return bindings, nil
}

func (s *Store) readConversations() (conversationsSchema, error) {
	file := conversationsSchema{}

	data, err := os.ReadFile(filepath.Join(s.dir, conversationsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file.applyDefaults()
			return file, nil
		}
		return conversationsSchema{}, fmt.Errorf("read conversations file: %w", err)
	}

	if err := json.Unmarshal(data, &file); err != nil {
		return conversationsSchema{}, fmt.Errorf("decode conversations file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return conversationsSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *Store) writeFile(path string, payload any) error {
	if err := os.MkdirAll(filepath.Dir(path), stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	data = append(data, '\n')

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	cleanup = false

	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
