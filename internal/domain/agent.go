package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type AgentID string

var agentIDPattern = regexp.MustCompile(`(?i)^agent-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func (id AgentID) Validate() error {
	if !agentIDPattern.MatchString(string(id)) {
		return fmt.Errorf("%w: %q", ErrInvalidAgentID, string(id))
	}

	return nil
}

// AgentConfigRecord is the single global config record shared across all
// projects: which agent backs memory, when the bundled default was imported,
// and the model handle last configured on it.
type AgentConfigRecord struct {
	AgentID    AgentID
	ImportedAt time.Time
	Model      string
}

// ModelInfo is one entry from the server's model listing.
type ModelInfo struct {
	Model        string
	Name         string
	ProviderType string
	Handle       string
}

// Matches reports whether the given handle identifies this model. Matching is
// case-insensitive against the full handle, the bare model name, and the
// provider/name composite; no partial matching.
func (m ModelInfo) Matches(handle string) bool {
	for _, candidate := range []string{m.Handle, m.Model, m.ProviderType + "/" + m.Model} {
		if candidate != "" && strings.EqualFold(candidate, handle) {
			return true
		}
	}

	return false
}

// FullHandle returns the handle the server advertises for this model, falling
// back to the provider/name composite when the listing carries none.
func (m ModelInfo) FullHandle() string {
	if m.Handle != "" {
		return m.Handle
	}
	if m.ProviderType != "" {
		return m.ProviderType + "/" + m.Model
	}

	return m.Model
}

// LLMConfig is the agent's model configuration as an opaque field set. Only
// the identity fields are ever rewritten; everything else (context window,
// sampling parameters, fields this tool has never heard of) passes through.
type LLMConfig map[string]any

func (c LLMConfig) Clone() LLMConfig {
	clone := make(LLMConfig, len(c))
	for key, value := range c {
		clone[key] = value
	}

	return clone
}

func (c LLMConfig) Model() string {
	value, _ := c["model"].(string)
	return value
}

func (c LLMConfig) ProviderType() string {
	value, _ := c["model_endpoint_type"].(string)
	return value
}

// AgentState is the remote agent's identity plus its current memory blocks
// and model configuration.
type AgentState struct {
	ID          AgentID
	Name        string
	Description string
	Blocks      []MemoryBlock
	LLMConfig   LLMConfig
}
