package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/bnema/mnemo/internal/domain"
)

func sessionID(payload hookPayload) domain.SessionID {
	return domain.SessionID(payload.SessionID)
}

func deliverArgs(projectDir, handoffPath string) []string {
	return []string{"deliver", "--project", projectDir, "--handoff", handoffPath}
}

// spawnDeliveryWorker starts the worker fully detached: no inherited stdio,
// no wait. The stop hook must return to the assistant immediately; the
// worker's outcome is observable only through the log and the cursor.
func spawnDeliveryWorker(projectDir, handoffPath string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	worker := exec.Command(executable, deliverArgs(projectDir, handoffPath)...)
	worker.Stdin = nil
	worker.Stdout = nil
	worker.Stderr = nil

	if err := worker.Start(); err != nil {
		return fmt.Errorf("start delivery worker: %w", err)
	}

	return worker.Process.Release()
}
