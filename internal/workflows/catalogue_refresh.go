package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

// CatalogueRefreshInput is the input for the catalogue refresh workflow.
type CatalogueRefreshInput struct {
	// Path is the OPIS export (CSV or XLSX) as seen by the worker.
	Path string
}

// CatalogueRefreshWorkflow imports a new price export, drops cached
// candidate answers and announces the update so API instances can reload.
// Only the import is fatal: once it has committed, cache and event failures
// are logged and the workflow still succeeds.
func CatalogueRefreshWorkflow(ctx workflow.Context, input CatalogueRefreshInput) (*domain.ImportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting catalogue refresh", "path", input.Path)

	importCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        10 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeBadExport},
		},
	})

	var a *CatalogueActivities

	var result domain.ImportResult
	if err := workflow.ExecuteActivity(importCtx, a.ImportCatalogue, input.Path).Get(ctx, &result); err != nil {
		return nil, err
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	if err := workflow.ExecuteActivity(ctx, a.InvalidateCatalogueCache).Get(ctx, nil); err != nil {
		logger.Warn("cache invalidation failed, cached candidates expire by TTL", "error", err)
	}
	if err := workflow.ExecuteActivity(ctx, a.PublishCatalogueUpdated, result).Get(ctx, nil); err != nil {
		logger.Warn("catalogue update event not published", "error", err)
	}

	logger.Info("Catalogue refreshed",
		"stations", result.Stations,
		"prices", result.Prices,
		"skipped", result.Skipped,
	)
	return &result, nil
}
