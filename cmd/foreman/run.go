package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/foreman/task"
)

// manifest is the YAML workflow description accepted by `foreman run`.
type manifest struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Tasks       []manifestTask `yaml:"tasks"`
}

type manifestTask struct {
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Priority    string `yaml:"priority"`
	// DependsOn lists zero-based indexes of earlier tasks in this manifest.
	DependsOn []int `yaml:"depends_on"`
}

func runCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Execute a workflow manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}

			m, err := loadManifest(args[0])
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

			return executeManifest(ctx, app, m)
		},
	}
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest name is required")
	}
	if len(m.Tasks) == 0 {
		return nil, fmt.Errorf("manifest has no tasks")
	}
	return &m, nil
}

func executeManifest(ctx context.Context, app *App, m *manifest) error {
	eng := app.engine

	wf, err := eng.CreateWorkflow(ctx, m.Name, m.Description)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}

	ids := make([]string, 0, len(m.Tasks))
	for i, mt := range m.Tasks {
		priority := task.Priority(mt.Priority)
		if mt.Priority == "" {
			priority = task.PriorityMedium
		}

		t, err := eng.CreateTask(ctx, mt.Description, task.Type(mt.Type), priority)
		if err != nil {
			return fmt.Errorf("create task %d: %w", i, err)
		}

		if len(mt.DependsOn) > 0 {
			deps := make([]string, 0, len(mt.DependsOn))
			for _, idx := range mt.DependsOn {
				if idx < 0 || idx >= i {
					return fmt.Errorf("task %d: depends_on index %d must reference an earlier task", i, idx)
				}
				deps = append(deps, ids[idx])
			}
			if _, err := eng.UpdateTask(ctx, t.ID, task.Update{DependsOn: deps}); err != nil {
				return fmt.Errorf("set dependencies for task %d: %w", i, err)
			}
		}

		if err := eng.AddTask(ctx, wf.ID, t.ID); err != nil {
			return fmt.Errorf("add task %d to workflow: %w", i, err)
		}
		ids = append(ids, t.ID)
	}

	fmt.Printf("Executing workflow %q (%d tasks)\n", m.Name, len(ids))

	result, execErr := eng.ExecuteWorkflow(ctx, wf.ID)
	if result != nil {
		printWorkflowSummary(app, result.ID)
	}
	if execErr != nil {
		return fmt.Errorf("workflow execution: %w", execErr)
	}
	return nil
}

func printWorkflowSummary(app *App, workflowID string) {
	wf, err := app.engine.GetWorkflow(workflowID)
	if err != nil {
		return
	}

	fmt.Printf("\nWorkflow: %s [%s]\n", wf.Name, wf.Status)
	if wf.QualityScore > 0 {
		fmt.Printf("Quality score: %.2f\n", wf.QualityScore)
	}
	for _, id := range wf.TaskIDs {
		t, err := app.engine.Tasks().Get(id)
		if err != nil {
			continue
		}
		line := fmt.Sprintf("  [%s] %s (%s/%s)", t.Status, t.Description, t.Type, t.Priority)
		if t.QualityScore != nil {
			line += fmt.Sprintf(" score=%.2f", *t.QualityScore)
		}
		fmt.Println(line)
	}
}
