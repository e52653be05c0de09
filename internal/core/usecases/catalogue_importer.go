package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/core/ports"
	"github.com/samirrijal/fuelroute/internal/pkg/logging"
	"github.com/samirrijal/fuelroute/internal/pkg/metrics"
	"github.com/samirrijal/fuelroute/internal/pkg/opis"
)

const importBatchSize = 1000

// CacheInvalidator drops cached catalogue answers after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CatalogueImporter loads OPIS exports into the catalogue store.
type CatalogueImporter struct {
	writer      ports.CatalogueWriter
	invalidator CacheInvalidator
	events      ports.EventPublisher
}

// NewCatalogueImporter creates a new CatalogueImporter. invalidator and
// events may be nil.
func NewCatalogueImporter(writer ports.CatalogueWriter, invalidator CacheInvalidator, events ports.EventPublisher) *CatalogueImporter {
	return &CatalogueImporter{writer: writer, invalidator: invalidator, events: events}
}

// Run imports the export at path, then invalidates caches and announces the
// update. Post-import failures are logged; the data is already committed.
func (i *CatalogueImporter) Run(ctx context.Context, path string) (*domain.ImportResult, error) {
	res, err := i.Import(ctx, path)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	if i.invalidator != nil {
		if err := i.invalidator.Invalidate(ctx); err != nil {
			log.Warn("catalogue cache invalidation failed", "error", err)
		}
	}
	if i.events != nil {
		if err := i.events.PublishCatalogueUpdated(ctx, res); err != nil {
			log.Warn("failed to publish catalogue update", "error", err)
		}
	}
	return res, nil
}

// Import parses the export at path and writes stations and prices.
func (i *CatalogueImporter) Import(ctx context.Context, path string) (*domain.ImportResult, error) {
	cat, err := opis.Open(path)
	if err != nil {
		return nil, err
	}
	return i.Write(ctx, cat)
}

// Write stores a parsed catalogue in batches.
func (i *CatalogueImporter) Write(ctx context.Context, cat *opis.Catalogue) (*domain.ImportResult, error) {
	for start := 0; start < len(cat.Stations); start += importBatchSize {
		end := min(start+importBatchSize, len(cat.Stations))
		if err := i.writer.UpsertStations(ctx, cat.Stations[start:end]); err != nil {
			return nil, fmt.Errorf("upsert stations: %w", err)
		}
	}
	for start := 0; start < len(cat.Prices); start += importBatchSize {
		end := min(start+importBatchSize, len(cat.Prices))
		if err := i.writer.InsertPrices(ctx, cat.Prices[start:end]); err != nil {
			return nil, fmt.Errorf("insert prices: %w", err)
		}
	}

	metrics.CatalogueRowsImported.WithLabelValues("station").Add(float64(len(cat.Stations)))
	metrics.CatalogueRowsImported.WithLabelValues("price").Add(float64(len(cat.Prices)))
	metrics.CatalogueRowsImported.WithLabelValues("skipped").Add(float64(cat.Skipped))

	res := &domain.ImportResult{
		Stations:    len(cat.Stations),
		Prices:      len(cat.Prices),
		Skipped:     cat.Skipped,
		Unlocated:   cat.Unlocated,
		CompletedAt: time.Now().UTC(),
	}
	logging.FromContext(ctx).Info("catalogue imported",
		"stations", res.Stations,
		"prices", res.Prices,
		"skipped", res.Skipped,
		"unlocated", res.Unlocated,
	)
	return res, nil
}
