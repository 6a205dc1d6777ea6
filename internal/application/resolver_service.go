package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bnema/mnemo/internal/domain"
	"github.com/bnema/mnemo/internal/ports"
)

// Ordered fallback used when neither the override nor the agent's current
// model is available on the server.
var preferredModels = []string{
	"openai/gpt-5.2",
	"openai/gpt-5.1",
	"openai/gpt-5",
	"anthropic/claude-sonnet-4-5",
	"google/gemini-2.5-pro",
}

// ResolverOverrides carries the explicitly supplied configuration. An
// explicit value is never silently ignored: a malformed agent id here is a
// hard configuration error.
type ResolverOverrides struct {
	AgentID       string
	Model         string
	ContextWindow string
}

// ResolverService decides which remote agent to talk to and which model it
// should run. Agent identity resolution is lazy and cached in the global
// config record.
type ResolverService struct {
	config       ports.AgentConfigRepository
	server       ports.MemoryServer
	clock        ports.Clock
	logger       *slog.Logger
	overrides    ResolverOverrides
	defaultAgent []byte
}

func NewResolverService(config ports.AgentConfigRepository, server ports.MemoryServer, clock ports.Clock, logger *slog.Logger, overrides ResolverOverrides, defaultAgent []byte) *ResolverService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &ResolverService{
		config:       config,
		server:       server,
		clock:        clock,
		logger:       logger,
		overrides:    overrides,
		defaultAgent: defaultAgent,
	}
}

// ResolveAgentID applies the precedence chain: explicit override, persisted
// record, then import of the bundled default agent.
func (s *ResolverService) ResolveAgentID(ctx context.Context) (domain.AgentID, error) {
	if s.overrides.AgentID != "" {
		// Validated as supplied: surrounding whitespace or embedded
		// newlines make the override invalid, not trimmable.
		id := domain.AgentID(s.overrides.AgentID)
		if err := id.Validate(); err != nil {
			return "", fmt.Errorf("%w: explicit agent id override: %v", domain.ErrConfiguration, err)
		}
		return id, nil
	}

	record, err := s.config.Get(ctx)
	if err == nil {
		if validateErr := record.AgentID.Validate(); validateErr == nil {
			return record.AgentID, nil
		}
		s.logger.Warn("discarding malformed persisted agent id", "agent_id", record.AgentID)
	} else if !errors.Is(err, domain.ErrConfigNotFound) {
		s.logger.Warn("discarding unreadable agent config record", "error", err)
	}

	agentID, err := s.server.ImportAgent(ctx, s.defaultAgent)
	if err != nil {
		return "", fmt.Errorf("import default agent: %w", err)
	}

	if err := s.config.Save(ctx, domain.AgentConfigRecord{
		AgentID:    agentID,
		ImportedAt: s.clock.Now(),
	}); err != nil {
		return "", fmt.Errorf("persist imported agent id: %w", err)
	}

	s.logger.Info("imported default agent", "agent_id", agentID)
	return agentID, nil
}

// EnsureModelAvailable makes sure the agent runs a model the server can
// actually serve, applying the explicit override when present. It returns
// the configured handle and whether the agent was updated.
func (s *ResolverService) EnsureModelAvailable(ctx context.Context, agentID domain.AgentID) (string, bool, error) {
	models, err := s.server.ListModels(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list models: %w", err)
	}
	if len(models) == 0 {
		return "", false, domain.ErrNoModelsAvailable
	}

	agent, err := s.server.GetAgent(ctx, agentID)
	if err != nil {
		return "", false, fmt.Errorf("get agent config: %w", err)
	}
	current := agent.LLMConfig

	if override := strings.TrimSpace(s.overrides.Model); override != "" {
		if model, ok := findModel(models, override); ok {
			if modelConfigured(current, model) && !contextWindowMismatch(current, s.overrides.ContextWindow) {
				return model.FullHandle(), false, nil
			}
			return s.applyModel(ctx, agentID, model, models, current)
		}
		s.logger.Warn("override model not available on server", "model", override)
	}

	if currentModel := current.Model(); currentModel != "" {
		handle := currentModel
		if provider := current.ProviderType(); provider != "" {
			handle = provider + "/" + currentModel
		}
		if model, ok := findModel(models, handle); ok {
			return model.FullHandle(), false, nil
		}
		if model, ok := findModel(models, currentModel); ok {
			return model.FullHandle(), false, nil
		}
		s.logger.Warn("agent's current model not available on server", "model", currentModel)
	}

	fallback := selectBestModel(models)
	return s.applyModel(ctx, agentID, fallback, models, current)
}

func (s *ResolverService) applyModel(ctx context.Context, agentID domain.AgentID, model domain.ModelInfo, models []domain.ModelInfo, current domain.LLMConfig) (string, bool, error) {
	config := BuildConfig(model.FullHandle(), models, current, s.overrides.ContextWindow)
	if err := s.server.UpdateLLMConfig(ctx, agentID, config); err != nil {
		return "", false, fmt.Errorf("apply model %s: %w", model.FullHandle(), err)
	}

	if record, err := s.config.Get(ctx); err == nil {
		record.Model = model.FullHandle()
		if err := s.config.Save(ctx, record); err != nil {
			s.logger.Warn("persist configured model", "error", err)
		}
	}

	s.logger.Info("configured agent model", "agent_id", agentID, "model", model.FullHandle())
	return model.FullHandle(), true, nil
}

// selectBestModel returns the first preferred model present in the listing,
// or the first listed model when none of the preferred ones are.
func selectBestModel(models []domain.ModelInfo) domain.ModelInfo {
	for _, preferred := range preferredModels {
		if model, ok := findModel(models, preferred); ok {
			return model
		}
	}

	return models[0]
}

// BuildConfig starts from the current configuration, overwrites only the
// identity fields derived from the matched model, and applies the context
// window override only when it parses as a positive integer.
func BuildConfig(handle string, models []domain.ModelInfo, current domain.LLMConfig, contextWindowOverride string) domain.LLMConfig {
	config := current.Clone()
	if config == nil {
		config = domain.LLMConfig{}
	}

	if model, ok := findModel(models, handle); ok {
		config["model"] = model.Model
		config["model_endpoint_type"] = model.ProviderType
		if model.Handle != "" {
			config["handle"] = model.Handle
		}
	}

	if override := strings.TrimSpace(contextWindowOverride); override != "" {
		if window, err := strconv.Atoi(override); err == nil && window > 0 {
			config["context_window"] = window
		}
	}

	return config
}

func findModel(models []domain.ModelInfo, handle string) (domain.ModelInfo, bool) {
	for _, model := range models {
		if model.Matches(handle) {
			return model, true
		}
	}

	return domain.ModelInfo{}, false
}

func modelConfigured(config domain.LLMConfig, model domain.ModelInfo) bool {
	return strings.EqualFold(config.Model(), model.Model) &&
		strings.EqualFold(config.ProviderType(), model.ProviderType)
}

func contextWindowMismatch(config domain.LLMConfig, override string) bool {
	trimmed := strings.TrimSpace(override)
	if trimmed == "" {
		return false
	}

	window, err := strconv.Atoi(trimmed)
	if err != nil || window <= 0 {
		return false
	}

	switch value := config["context_window"].(type) {
	case float64:
		return int(value) != window
	case int:
		return value != window
	default:
		return true
	}
}
