package remote

type conversationResponse struct {
	ID string `json:"id"`
}

type messagesRequest struct {
	Messages []messagePayload `json:"messages"`
}

type messagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type agentResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Blocks      []blockResponse `json:"blocks"`
	LLMConfig   map[string]any  `json:"llm_config"`
}

type blockResponse struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Value       string `json:"value"`
}

type messageResponse struct {
	MessageType string `json:"message_type"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	CreatedAt   string `json:"created_at"`
}

type modelResponse struct {
	Model        string `json:"model"`
	Name         string `json:"name"`
	ProviderType string `json:"provider_type"`
	Handle       string `json:"handle"`
}
