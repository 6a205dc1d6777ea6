package domain

import "errors"

var (
	ErrBindingNotFound      = errors.New("conversation binding not found")
	ErrSessionStateNotFound = errors.New("session state not found")
	ErrConfigNotFound       = errors.New("agent config record not found")
	ErrHandoffNotFound      = errors.New("handoff record not found")
	ErrNoModelsAvailable    = errors.New("server reports no available models")
	ErrConflict             = errors.New("remote conversation busy")
	ErrInvalidAgentID       = errors.New("invalid agent id")

	// ErrConfiguration marks validation failures on explicitly supplied
	// configuration; the CLI maps it to the blocking exit code.
	ErrConfiguration = errors.New("invalid configuration")
)
