package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	sessionStartTimeout = 30 * time.Second
	promptTimeout       = 15 * time.Second
	stopTimeout         = 10 * time.Second
)

// hookPayload is the JSON document the coding assistant writes to stdin when
// it invokes a lifecycle hook.
type hookPayload struct {
	SessionID      string `json:"session_id"`
	CWD            string `json:"cwd"`
	TranscriptPath string `json:"transcript_path"`
	StopHookActive bool   `json:"stop_hook_active"`
}

func newHookCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Lifecycle hook entry points (JSON payload on stdin)",
	}

	cmd.AddCommand(
		newHookSessionStartCmd(app),
		newHookPromptCmd(app),
		newHookStopCmd(app),
	)

	return cmd
}

func newHookSessionStartCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session-start",
		Short: "Bind the session to a remote conversation and verify the agent's model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.settings.disabled {
				return nil
			}

			payload, err := readHookPayload(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), sessionStartTimeout)
			defer cancel()

			services, err := app.servicesFor(payload.CWD)
			if err != nil {
				return err
			}

			agentID, err := services.resolver.ResolveAgentID(ctx)
			if err != nil {
				return err
			}

			handle, _, err := services.resolver.EnsureModelAvailable(ctx, agentID)
			if err != nil {
				return err
			}

			conversationID, err := services.identity.ResolveConversation(ctx, sessionID(payload), agentID)
			if err != nil {
				return err
			}

			services.logger.Info("session started",
				"session_id", payload.SessionID, "conversation_id", conversationID, "model", handle)
			return nil
		},
	}
}

func newHookPromptCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Inject the agent's memory into the session context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.settings.disabled {
				return nil
			}

			payload, err := readHookPayload(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), promptTimeout)
			defer cancel()

			services, err := app.servicesFor(payload.CWD)
			if err != nil {
				return err
			}

			injector, err := app.injectServiceFor(services, payload.CWD)
			if err != nil {
				return err
			}

			agentID, err := services.resolver.ResolveAgentID(ctx)
			if err != nil {
				return err
			}

			output, err := injector.Inject(ctx, sessionID(payload), agentID)
			if err != nil {
				return err
			}
			if output == "" {
				return nil
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
			return err
		},
	}
}

func newHookStopCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Hand unsent transcript activity to the delivery worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.settings.disabled {
				return nil
			}

			payload, err := readHookPayload(cmd)
			if err != nil {
				return err
			}
			// Re-entrancy guard: a stop event raised by our own hook output
			// must not trigger another delivery round.
			if payload.StopHookActive {
				return nil
			}
			if payload.TranscriptPath == "" {
				return errors.New("hook payload missing transcript_path")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), stopTimeout)
			defer cancel()

			services, err := app.servicesFor(payload.CWD)
			if err != nil {
				return err
			}

			agentID, err := services.resolver.ResolveAgentID(ctx)
			if err != nil {
				return err
			}

			conversationID, err := services.identity.ResolveConversation(ctx, sessionID(payload), agentID)
			if err != nil {
				return err
			}

			handoffPath, err := services.delivery.PrepareHandoff(ctx, sessionID(payload), conversationID, payload.CWD, payload.TranscriptPath)
			if err != nil {
				return err
			}
			if handoffPath == "" {
				return nil
			}

			if app.settings.syncDeliver {
				return services.delivery.Deliver(ctx, handoffPath)
			}

			return spawnDeliveryWorker(payload.CWD, handoffPath)
		},
	}
}

func readHookPayload(cmd *cobra.Command) (hookPayload, error) {
	var payload hookPayload
	if err := json.NewDecoder(cmd.InOrStdin()).Decode(&payload); err != nil {
		return hookPayload{}, fmt.Errorf("decode hook payload: %w", err)
	}
	if payload.SessionID == "" {
		return hookPayload{}, errors.New("hook payload missing session_id")
	}
	if payload.CWD == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return hookPayload{}, fmt.Errorf("resolve working directory: %w", err)
		}
		payload.CWD = cwd
	}

	return payload, nil
}
