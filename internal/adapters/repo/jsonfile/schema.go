package jsonfile

import "fmt"

const currentSchemaVersion = 1

type conversationsSchema struct {
	Version       int               `json:"version"`
	Conversations map[string]string `json:"conversations"`
}

func (s *conversationsSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
	if s.Conversations == nil {
		s.Conversations = map[string]string{}
	}
}

func (s conversationsSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported conversations schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	Version            int    `json:"version"`
	SessionID          string `json:"session_id"`
	ConversationID     string `json:"conversation_id,omitempty"`
	LastProcessedIndex int    `json:"last_processed_index"`
	LastRendered       string `json:"last_rendered,omitempty"`
}

func (s *sessionSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s sessionSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported session schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type handoffSchema struct {
	Version        int    `json:"version"`
	ID             string `json:"id"`
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id"`
	ProjectDir     string `json:"project_dir"`
	TranscriptPath string `json:"transcript_path"`
	FromIndex      int    `json:"from_index"`
	ToIndex        int    `json:"to_index"`
	CreatedAt      string `json:"created_at"`
}

func (s handoffSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported handoff schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}
