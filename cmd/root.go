package cmd

import (
	"errors"

	"github.com/bnema/mnemo/internal/domain"
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

// ExitCode maps an Execute error to the process exit code. Configuration
// errors on explicitly supplied values are the only blocking failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, domain.ErrConfiguration) {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mnemo",
		Short:         "mnemo: sync a coding session with a persistent memory agent",
		Long:          "mnemo keeps an interactive coding session in sync with a remote memory agent: hook commands forward transcript activity, inject the agent's memory into the session context, and maintain per-project sync state.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newHookCmd(app),
		newDeliverCmd(app),
		newStatusCmd(app),
	)

	return rootCmd
}
