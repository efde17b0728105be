package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
)

func statusCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List persisted workflows and their tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, logger)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown()

			workflows, err := app.store.ListWorkflows(ctx)
			if err != nil {
				return fmt.Errorf("list workflows: %w", err)
			}
			if len(workflows) == 0 {
				fmt.Println("No workflows found")
				return nil
			}

			sort.Slice(workflows, func(i, j int) bool {
				return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
			})

			for _, wf := range workflows {
				fmt.Printf("%s  %s [%s] tasks=%d", wf.ID, wf.Name, wf.Status, len(wf.TaskIDs))
				if wf.QualityScore > 0 {
					fmt.Printf(" score=%.2f", wf.QualityScore)
				}
				fmt.Println()

				tasks, err := app.store.ListTasksByWorkflow(ctx, wf.ID)
				if err != nil {
					continue
				}
				for _, t := range tasks {
					line := fmt.Sprintf("  [%s] %s (%s/%s)", t.Status, t.Description, t.Type, t.Priority)
					if t.QualityScore != nil {
						line += fmt.Sprintf(" score=%.2f", *t.QualityScore)
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}
}
