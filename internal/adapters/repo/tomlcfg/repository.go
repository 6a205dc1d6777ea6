package tomlcfg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/mnemo/internal/domain"
	"github.com/bnema/mnemo/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configPathKey   = "config.path"
	configDirName   = "mnemo"
	configFileName  = "config.toml"
	configFileMode  = 0o600
	configDirMode   = 0o700
	tempFilePattern = ".config-*.toml.tmp"
)

// Repository persists the single global agent-config record. It is shared
// across all projects and sessions; project-scoped state lives elsewhere.
type Repository struct {
	configPath string
	mu         *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.AgentConfigRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetDefault(configPathKey, filepath.Join(homeDir, ".config", configDirName, configFileName))
	cfg.SetEnvPrefix("MNEMO")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	configPath := cfg.GetString(configPathKey)
	if configPath == "" {
		return nil, errors.New("config path is empty")
	}
	configPath, err = filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	configPath = filepath.Clean(configPath)

	return &Repository{configPath: configPath, mu: lockForPath(configPath)}, nil
}

func (r *Repository) Get(ctx context.Context) (domain.AgentConfigRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AgentConfigRecord{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.AgentConfigRecord{}, domain.ErrConfigNotFound
		}
		return domain.AgentConfigRecord{}, fmt.Errorf("read config file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return domain.AgentConfigRecord{}, fmt.Errorf("decode config file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return domain.AgentConfigRecord{}, err
	}

	if strings.TrimSpace(file.Agent.ID) == "" {
		return domain.AgentConfigRecord{}, domain.ErrConfigNotFound
	}

	return fromSchema(file), nil
}

func (r *Repository) Save(ctx context.Context, record domain.AgentConfigRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := toSchema(record)

	if err := os.MkdirAll(filepath.Dir(r.configPath), configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.configPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
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
		return fmt.Errorf("write temp config file: %w", err)
	}

	if err := tempFile.Chmod(configFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}

	if err := os.Rename(tempName, r.configPath); err != nil {
		return fmt.Errorf("replace config file: %w", err)
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

func toSchema(record domain.AgentConfigRecord) fileSchema {
	importedAt := ""
	if !record.ImportedAt.IsZero() {
		importedAt = record.ImportedAt.Format(time.RFC3339)
	}

	return fileSchema{
		Version: currentSchemaVersion,
		Agent: agentSchema{
			ID:         string(record.AgentID),
			ImportedAt: importedAt,
			Model:      record.Model,
		},
	}
}

func fromSchema(file fileSchema) domain.AgentConfigRecord {
	importedAt, err := time.Parse(time.RFC3339, file.Agent.ImportedAt)
	if err != nil {
		importedAt = time.Time{}
	}

	return domain.AgentConfigRecord{
		AgentID:    domain.AgentID(file.Agent.ID),
		ImportedAt: importedAt,
		Model:      file.Agent.Model,
	}
}
