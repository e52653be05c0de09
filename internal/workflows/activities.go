package workflows

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/core/ports"
	"github.com/samirrijal/fuelroute/internal/core/usecases"
)

// ErrTypeBadExport marks an export that retrying cannot fix.
const ErrTypeBadExport = "BadExport"

// CatalogueActivities holds the activity implementations for the refresh workflow.
type CatalogueActivities struct {
	Importer *usecases.CatalogueImporter
	Cache    usecases.CacheInvalidator
	Events   ports.EventPublisher
}

// ImportCatalogue parses the export at path and writes it to the store.
func (a *CatalogueActivities) ImportCatalogue(ctx context.Context, path string) (*domain.ImportResult, error) {
	activity.RecordHeartbeat(ctx, path)

	res, err := a.Importer.Import(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, domain.ErrInvalidInput) {
			return nil, temporal.NewNonRetryableApplicationError("import "+path, ErrTypeBadExport, err)
		}
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return res, nil
}

// InvalidateCatalogueCache drops cached candidate and station answers.
func (a *CatalogueActivities) InvalidateCatalogueCache(ctx context.Context) error {
	if a.Cache == nil {
		return nil
	}
	return a.Cache.Invalidate(ctx)
}

// PublishCatalogueUpdated announces the refreshed catalogue.
func (a *CatalogueActivities) PublishCatalogueUpdated(ctx context.Context, result domain.ImportResult) error {
	if a.Events == nil {
		log.Printf("catalogue updated (no publisher): %d stations, %d prices", result.Stations, result.Prices)
		return nil
	}
	return a.Events.PublishCatalogueUpdated(ctx, &result)
}
