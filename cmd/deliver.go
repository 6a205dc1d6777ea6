package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

const deliverTimeout = 60 * time.Second

func newDeliverCmd(app *app) *cobra.Command {
	var projectDir string
	var handoffPath string

	cmd := &cobra.Command{
		Use:    "deliver",
		Short:  "Deliver a pending handoff to the memory server",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), deliverTimeout)
			defer cancel()

			services, err := app.servicesFor(projectDir)
			if err != nil {
				return err
			}

			if err := services.delivery.Deliver(ctx, handoffPath); err != nil {
				services.logger.Error("delivery failed", "handoff", handoffPath, "error", err)
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&projectDir, "project", "", "Project directory owning the handoff")
	cmd.Flags().StringVar(&handoffPath, "handoff", "", "Path to the handoff descriptor")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("handoff")

	return cmd
}
