package domain

import (
	"fmt"
	"strings"
	"time"
)

type SessionID string
type ConversationID string

type ConversationBinding struct {
	SessionID      SessionID
	ConversationID ConversationID
}

func (b ConversationBinding) Validate() error {
	if strings.TrimSpace(string(b.SessionID)) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(string(b.ConversationID)) == "" {
		return fmt.Errorf("conversation id is required")
	}

	return nil
}

// SessionState is the per-session sync record. LastProcessedIndex is the
// transcript index of the last turn already delivered; -1 means nothing has
// been sent yet. LastRendered holds the memory-block content rendered on the
// previous prompt so repeat renders can emit a diff.
type SessionState struct {
	SessionID          SessionID
	ConversationID     ConversationID
	LastProcessedIndex int
	LastRendered       string
}

func NewSessionState(sessionID SessionID) SessionState {
	return SessionState{SessionID: sessionID, LastProcessedIndex: -1}
}

func (s SessionState) Validate() error {
	if strings.TrimSpace(string(s.SessionID)) == "" {
		return fmt.Errorf("session id is required")
	}
	if s.LastProcessedIndex < -1 {
		return fmt.Errorf("last processed index %d is below -1", s.LastProcessedIndex)
	}

	return nil
}

// Handoff is the self-contained work descriptor written by the stop hook and
// consumed by the detached delivery worker.
type Handoff struct {
	ID             string
	SessionID      SessionID
	ConversationID ConversationID
	ProjectDir     string
	TranscriptPath string
	FromIndex      int
	ToIndex        int
	CreatedAt      time.Time
}

func (h Handoff) Validate() error {
	if strings.TrimSpace(h.ID) == "" {
		return fmt.Errorf("handoff id is required")
	}
	if strings.TrimSpace(string(h.SessionID)) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(string(h.ConversationID)) == "" {
		return fmt.Errorf("conversation id is required")
	}
	if strings.TrimSpace(h.TranscriptPath) == "" {
		return fmt.Errorf("transcript path is required")
	}
	if h.FromIndex < -1 {
		return fmt.Errorf("from index %d is below -1", h.FromIndex)
	}
	if h.ToIndex < h.FromIndex {
		return fmt.Errorf("to index %d is below from index %d", h.ToIndex, h.FromIndex)
	}

	return nil
}
