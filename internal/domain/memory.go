package domain

import (
	"fmt"
	"time"
)

// MemoryBlock is a named slot of the remote agent's long-term state. The set
// of labels is agent-defined and open; blocks are iterated, never matched
// against a fixed field list.
type MemoryBlock struct {
	Label       string
	Description string
	Value       string
}

// RemoteMessage is an asynchronous note authored by the remote agent.
type RemoteMessage struct {
	Type      string
	Role      string
	Text      string
	CreatedAt time.Time
}

type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
	TurnRoleTool      TurnRole = "tool-result"
)

// Turn is one classified, extractable unit of transcript content.
type Turn struct {
	Role TurnRole
	Text string
}

type InjectMode string

const (
	InjectModeOff     InjectMode = "off"
	InjectModeWhisper InjectMode = "whisper"
	InjectModeFull    InjectMode = "full"
)

func ParseInjectMode(raw string) (InjectMode, error) {
	switch InjectMode(raw) {
	case InjectModeOff, InjectModeWhisper, InjectModeFull:
		return InjectMode(raw), nil
	case "":
		return InjectModeFull, nil
	default:
		return "", fmt.Errorf("%w: unknown inject mode %q", ErrConfiguration, raw)
	}
}
