package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/mnemo/internal/domain"
	"github.com/bnema/mnemo/internal/ports"
)

const (
	maxResponseBytes = 1 << 20
	// How much of a streamed reply to read before releasing it. The full
	// reply is never required synchronously; the prefix confirms the
	// server accepted the message.
	streamAckBytes = 4096
)

// Client talks to the memory server's REST surface.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ ports.MemoryServer = (*Client)(nil)

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

func (c *Client) CreateConversation(ctx context.Context, agentID domain.AgentID) (domain.ConversationID, error) {
	endpoint := fmt.Sprintf("%s/conversations?agent_id=%s", c.baseURL, url.QueryEscape(string(agentID)))

	var response conversationResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, nil, &response); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("create conversation: response missing id")
	}

	return domain.ConversationID(response.ID), nil
}

// SendMessage submits one user message and treats the reply as a stream: it
// reads a bounded prefix to confirm acceptance and releases the stream
// without waiting for completion.
func (c *Client) SendMessage(ctx context.Context, id domain.ConversationID, content string) error {
	endpoint := fmt.Sprintf("%s/conversations/%s/messages", c.baseURL, url.PathEscape(string(id)))
	payload := messagesRequest{Messages: []messagePayload{{Role: "user", Content: content}}}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("send message: encode payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send message: create request: %w", err)
	}
	c.setHeaders(request)

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("send message: perform request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		prefix, _ := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
		if response.StatusCode == http.StatusConflict {
			return fmt.Errorf("send message: %w: status %d: %s", domain.ErrConflict, response.StatusCode, strings.TrimSpace(string(prefix)))
		}
		return fmt.Errorf("send message: status %d: %s", response.StatusCode, strings.TrimSpace(string(prefix)))
	}

	_, _ = io.CopyN(io.Discard, response.Body, streamAckBytes)

	return nil
}

func (c *Client) GetAgent(ctx context.Context, agentID domain.AgentID) (domain.AgentState, error) {
	endpoint := fmt.Sprintf("%s/agents/%s?include=agent.blocks", c.baseURL, url.PathEscape(string(agentID)))

	var response agentResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return domain.AgentState{}, fmt.Errorf("get agent: %w", err)
	}

	blocks := make([]domain.MemoryBlock, 0, len(response.Blocks))
	for _, block := range response.Blocks {
		blocks = append(blocks, domain.MemoryBlock{
			Label:       block.Label,
			Description: block.Description,
			Value:       block.Value,
		})
	}

	return domain.AgentState{
		ID:          domain.AgentID(response.ID),
		Name:        response.Name,
		Description: response.Description,
		Blocks:      blocks,
		LLMConfig:   domain.LLMConfig(response.LLMConfig),
	}, nil
}

// LatestAssistantMessage scans the most recent messages from the end and
// returns the newest assistant-authored one.
func (c *Client) LatestAssistantMessage(ctx context.Context, agentID domain.AgentID, limit int) (domain.RemoteMessage, bool, error) {
	endpoint := fmt.Sprintf("%s/agents/%s/messages?limit=%d", c.baseURL, url.PathEscape(string(agentID)), limit)

	var response []messageResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return domain.RemoteMessage{}, false, fmt.Errorf("list agent messages: %w", err)
	}

	for i := len(response) - 1; i >= 0; i-- {
		message := response[i]
		if message.MessageType != "assistant_message" && message.Role != "assistant" {
			continue
		}
		text := strings.TrimSpace(message.Content)
		if text == "" {
			continue
		}

		createdAt, _ := time.Parse(time.RFC3339, message.CreatedAt)
		return domain.RemoteMessage{
			Type:      message.MessageType,
			Role:      message.Role,
			Text:      text,
			CreatedAt: createdAt,
		}, true, nil
	}

	return domain.RemoteMessage{}, false, nil
}

func (c *Client) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	var response []modelResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/models/", nil, &response); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	models := make([]domain.ModelInfo, 0, len(response))
	for _, model := range response {
		models = append(models, domain.ModelInfo{
			Model:        model.Model,
			Name:         model.Name,
			ProviderType: model.ProviderType,
			Handle:       model.Handle,
		})
	}

	return models, nil
}

// UpdateLLMConfig patches the nested llm_config object. A bare top-level
// model field would reset unrelated configuration on the server side.
func (c *Client) UpdateLLMConfig(ctx context.Context, agentID domain.AgentID, config domain.LLMConfig) error {
	endpoint := fmt.Sprintf("%s/agents/%s", c.baseURL, url.PathEscape(string(agentID)))
	payload := map[string]any{"llm_config": config}

	if err := c.doJSON(ctx, http.MethodPatch, endpoint, payload, nil); err != nil {
		return fmt.Errorf("update llm config: %w", err)
	}

	return nil
}

func (c *Client) ImportAgent(ctx context.Context, definition []byte) (domain.AgentID, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agents", bytes.NewReader(definition))
	if err != nil {
		return "", fmt.Errorf("import agent: create request: %w", err)
	}
	c.setHeaders(request)

	response, err := c.http.Do(request)
	if err != nil {
		return "", fmt.Errorf("import agent: perform request: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("import agent: read response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", fmt.Errorf("import agent: status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	var created agentResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("import agent: decode response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("import agent: response missing id")
	}

	return domain.AgentID(created.ID), nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(request)

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		if response.StatusCode == http.StatusConflict {
			return fmt.Errorf("%w: status %d: %s", domain.ErrConflict, response.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("status %d: %s", response.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	return nil
}

func (c *Client) setHeaders(request *http.Request) {
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", "mnemo/sync")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
