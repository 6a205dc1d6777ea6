package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/mnemo/internal/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type inMemoryStateRepo struct {
	bindings map[domain.SessionID]domain.ConversationBinding
	sessions map[domain.SessionID]domain.SessionState
	handoffs map[string]domain.Handoff
}

func newInMemoryStateRepo() *inMemoryStateRepo {
	return &inMemoryStateRepo{
		bindings: map[domain.SessionID]domain.ConversationBinding{},
		sessions: map[domain.SessionID]domain.SessionState{},
		handoffs: map[string]domain.Handoff{},
	}
}

func (r *inMemoryStateRepo) GetBinding(_ context.Context, id domain.SessionID) (domain.ConversationBinding, error) {
	binding, ok := r.bindings[id]
	if !ok {
		return domain.ConversationBinding{}, domain.ErrBindingNotFound
	}
	return binding, nil
}

func (r *inMemoryStateRepo) SaveBinding(_ context.Context, binding domain.ConversationBinding) (domain.ConversationBinding, error) {
	if existing, ok := r.bindings[binding.SessionID]; ok {
		return existing, nil
	}
	r.bindings[binding.SessionID] = binding
	return binding, nil
}

func (r *inMemoryStateRepo) ListBindings(_ context.Context) ([]domain.ConversationBinding, error) {
	bindings := make([]domain.ConversationBinding, 0, len(r.bindings))
	for _, binding := range r.bindings {
		bindings = append(bindings, binding)
	}
	return bindings, nil
}

func (r *inMemoryStateRepo) GetSession(_ context.Context, id domain.SessionID) (domain.SessionState, error) {
	state, ok := r.sessions[id]
	if !ok {
		return domain.SessionState{}, domain.ErrSessionStateNotFound
	}
	return state, nil
}

func (r *inMemoryStateRepo) SaveSession(_ context.Context, state domain.SessionState) error {
	r.sessions[state.SessionID] = state
	return nil
}

func (r *inMemoryStateRepo) ListSessions(_ context.Context) ([]domain.SessionState, error) {
	states := make([]domain.SessionState, 0, len(r.sessions))
	for _, state := range r.sessions {
		states = append(states, state)
	}
	return states, nil
}

func (r *inMemoryStateRepo) CreateHandoff(_ context.Context, handoff domain.Handoff) (string, error) {
	path := "pending/handoff-" + handoff.ID + ".json"
	r.handoffs[path] = handoff
	return path, nil
}

func (r *inMemoryStateRepo) LoadHandoff(_ context.Context, path string) (domain.Handoff, error) {
	handoff, ok := r.handoffs[path]
	if !ok {
		return domain.Handoff{}, domain.ErrHandoffNotFound
	}
	return handoff, nil
}

func (r *inMemoryStateRepo) DeleteHandoff(_ context.Context, path string) error {
	delete(r.handoffs, path)
	return nil
}

type inMemoryConfigRepo struct {
	record domain.AgentConfigRecord
	saved  bool
}

func (r *inMemoryConfigRepo) Get(_ context.Context) (domain.AgentConfigRecord, error) {
	if !r.saved {
		return domain.AgentConfigRecord{}, domain.ErrConfigNotFound
	}
	return r.record, nil
}

func (r *inMemoryConfigRepo) Save(_ context.Context, record domain.AgentConfigRecord) error {
	r.record = record
	r.saved = true
	return nil
}

type fakeServer struct {
	createdConversations int
	nextConversationID   domain.ConversationID
	createErr            error

	sentMessages []string
	sendErr      error

	agent    domain.AgentState
	agentErr error

	latestMessage    domain.RemoteMessage
	hasLatestMessage bool
	latestMessageErr error

	models    []domain.ModelInfo
	modelsErr error

	updatedConfigs []domain.LLMConfig
	updateErr      error

	importedAgentID domain.AgentID
	importErr       error
	imports         int
}

func (s *fakeServer) CreateConversation(_ context.Context, _ domain.AgentID) (domain.ConversationID, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.createdConversations++
	if s.nextConversationID != "" {
		return s.nextConversationID, nil
	}
	return domain.ConversationID(fmt.Sprintf("conv-%d", s.createdConversations)), nil
}

func (s *fakeServer) SendMessage(_ context.Context, _ domain.ConversationID, content string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sentMessages = append(s.sentMessages, content)
	return nil
}

func (s *fakeServer) GetAgent(_ context.Context, _ domain.AgentID) (domain.AgentState, error) {
	if s.agentErr != nil {
		return domain.AgentState{}, s.agentErr
	}
	return s.agent, nil
}

func (s *fakeServer) LatestAssistantMessage(_ context.Context, _ domain.AgentID, _ int) (domain.RemoteMessage, bool, error) {
	if s.latestMessageErr != nil {
		return domain.RemoteMessage{}, false, s.latestMessageErr
	}
	return s.latestMessage, s.hasLatestMessage, nil
}

func (s *fakeServer) ListModels(_ context.Context) ([]domain.ModelInfo, error) {
	if s.modelsErr != nil {
		return nil, s.modelsErr
	}
	return s.models, nil
}

func (s *fakeServer) UpdateLLMConfig(_ context.Context, _ domain.AgentID, config domain.LLMConfig) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedConfigs = append(s.updatedConfigs, config)
	return nil
}

func (s *fakeServer) ImportAgent(_ context.Context, _ []byte) (domain.AgentID, error) {
	if s.importErr != nil {
		return "", s.importErr
	}
	s.imports++
	return s.importedAgentID, nil
}
