package processing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/systemstart/envsecrets/pkg/api"
	"github.com/systemstart/envsecrets/pkg/dotenv"
	"github.com/systemstart/envsecrets/pkg/secrets"
	"github.com/systemstart/envsecrets/pkg/workflow"
)

// Result summarizes a completed run.
type Result struct {
	Names     []string
	Fragment  string
	Published int
}

// Run extracts variable names from settings.EnvFile, publishes their values
// from lookup to store, and writes the .env fragment into the workflow file.
// Steps run strictly in order and the first failure aborts the run. Secrets
// published before a failure are not rolled back.
func Run(ctx context.Context, settings api.Settings, lookup api.LookupFunc, store secrets.Store) (*Result, error) {
	slog.Info("running step", "step", "extract", "file", settings.EnvFile)
	names, err := dotenv.ExtractNames(settings.EnvFile, dotenv.Options{Skip: settings.Skip})
	if err != nil {
		return nil, fmt.Errorf("extracting variables: %w", err)
	}
	slog.Info("extracted variables", "count", len(names))

	slog.Info("running step", "step", "render")
	fragment, err := workflow.RenderFragment(names, settings.LineTemplate)
	if err != nil {
		return nil, fmt.Errorf("rendering fragment: %w", err)
	}

	result := &Result{Names: names, Fragment: fragment}

	if settings.DryRun {
		slog.Warn("dry run, not publishing secrets", "count", len(names))
	} else {
		slog.Info("running step", "step", "publish", "repository", settings.Repository)
		vars := dotenv.Variables(names, lookup)
		if err := secrets.NewPublisher(store).Publish(ctx, settings.Repository, vars); err != nil {
			return nil, fmt.Errorf("publishing secrets: %w", err)
		}
		result.Published = len(vars)
	}

	if settings.WorkflowPath == "" {
		slog.Warn("no workflow file configured, writing fragment instead", "env", api.EnvWorkflowPath, "path", settings.FragmentOutput)
		if err := workflow.WriteFragment(settings.FragmentOutput, fragment); err != nil {
			return nil, fmt.Errorf("writing fragment: %w", err)
		}
		return result, nil
	}

	slog.Info("running step", "step", "patch", "path", settings.WorkflowPath, "target", settings.StepName)
	if err := workflow.Patch(settings.WorkflowPath, settings.StepName, fragment); err != nil {
		return nil, fmt.Errorf("patching workflow: %w", err)
	}

	return result, nil
}
